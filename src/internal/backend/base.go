// FILE: src/internal/backend/base.go
package backend

import (
	"maps"
	"sync"
	"sync/atomic"

	"emulog/src/internal/core"
	"emulog/src/internal/filter"
)

// Base carries the per-source level filter shared by every backend.
// Embed it and call Allows from Accept.
type Base struct {
	mu           sync.RWMutex
	initial      core.Level
	global       core.Level
	perSource    map[int]core.Level
	controllable bool
	filters      atomic.Pointer[filter.Chain]
}

func (b *Base) init(level core.Level, controllable bool) {
	b.initial = level
	b.global = level
	b.perSource = make(map[int]core.Level)
	b.controllable = controllable
}

// SetLevel sets the global threshold for core.WildcardSource, else the override for one source.
func (b *Base) SetLevel(level core.Level, sourceID int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sourceID == core.WildcardSource {
		b.global = level
		return
	}
	if b.perSource == nil {
		b.perSource = make(map[int]core.Level)
	}
	b.perSource[sourceID] = level
}

func (b *Base) CurrentLevel() core.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.global
}

func (b *Base) CustomLevelsBySource() map[int]core.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.perSource)
}

// Reset drops every per-source override and restores the construction level.
func (b *Base) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = b.initial
	clear(b.perSource)
}

func (b *Base) IsControllable() bool {
	return b.controllable
}

// SetFilters installs a message filter chain applied after the level check.
// A nil chain removes it.
func (b *Base) SetFilters(chain *filter.Chain) {
	b.filters.Store(chain)
}

// Filters returns the installed chain, nil when none.
func (b *Base) Filters() *filter.Chain {
	return b.filters.Load()
}

// Allows reports whether the entry passes this backend's threshold for its
// source and its filter chain.
func (b *Base) Allows(entry core.LogEntry) bool {
	b.mu.RLock()
	threshold := b.global
	if entry.SourceID != nil {
		if lvl, ok := b.perSource[*entry.SourceID]; ok {
			threshold = lvl
		}
	}
	b.mu.RUnlock()

	if entry.Level < threshold {
		return false
	}
	return b.filters.Load().Apply(entry)
}
