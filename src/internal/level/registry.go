// FILE: src/internal/level/registry.go
package level

import (
	"sync"
	"sync/atomic"

	"emulog/src/internal/core"
)

// Registry mirrors every backend's thresholds and caches their minimum.
// The cached minimum is a pre-filter only; backends still filter on their own.
type Registry struct {
	mu         sync.Mutex
	thresholds map[core.Backend]*thresholds
	fallback   core.Level
	minimum    atomic.Int64
}

type thresholds struct {
	global    core.Level
	perSource map[int]core.Level
}

// New creates a registry whose minimum is fallback while no backend is tracked.
func New(fallback core.Level) *Registry {
	r := &Registry{
		thresholds: make(map[core.Backend]*thresholds),
		fallback:   fallback,
	}
	r.minimum.Store(int64(fallback))
	return r
}

// GlobalMinimum returns the lowest threshold of any backend/source pair.
func (r *Registry) GlobalMinimum() core.Level {
	return core.Level(r.minimum.Load())
}

// Track starts mirroring b's current thresholds.
func (r *Registry) Track(b core.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds[b] = snapshot(b)
	r.recompute()
}

// SetLevel applies level to b for sourceID (or every source for
// core.WildcardSource) and refreshes the cached minimum before returning.
func (r *Registry) SetLevel(b core.Backend, level core.Level, sourceID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.SetLevel(level, sourceID)
	if _, tracked := r.thresholds[b]; tracked {
		r.thresholds[b] = snapshot(b)
		r.recompute()
	}
}

// Refresh re-reads b's thresholds, e.g. after b.Reset().
func (r *Registry) Refresh(b core.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, tracked := r.thresholds[b]; tracked {
		r.thresholds[b] = snapshot(b)
		r.recompute()
	}
}

// Remove stops tracking b.
func (r *Registry) Remove(b core.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.thresholds, b)
	r.recompute()
}

func snapshot(b core.Backend) *thresholds {
	t := &thresholds{
		global:    b.CurrentLevel(),
		perSource: make(map[int]core.Level),
	}
	for id, lvl := range b.CustomLevelsBySource() {
		t.perSource[id] = lvl
	}
	return t
}

// recompute must be called with mu held.
func (r *Registry) recompute() {
	if len(r.thresholds) == 0 {
		r.minimum.Store(int64(r.fallback))
		return
	}
	first := true
	var lowest core.Level
	for _, t := range r.thresholds {
		if first || t.global < lowest {
			lowest = t.global
			first = false
		}
		for _, lvl := range t.perSource {
			if lvl < lowest {
				lowest = lvl
			}
		}
	}
	r.minimum.Store(int64(lowest))
}
