// FILE: src/internal/fanout/fanout.go
package fanout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

var (
	ErrDuplicateName    = errors.New("backend name already registered")
	ErrDuplicateBackend = errors.New("backend already registered")
	ErrEmptyName        = errors.New("backend name cannot be empty")
)

// Registration binds a backend to its unique name.
type Registration struct {
	Name    string
	Backend core.Backend
}

// Fanout owns the registered backend set and delivers entries to every backend
// in registration order. Backend failures are not isolated.
type Fanout struct {
	mu     sync.Mutex // serializes writers
	regs   atomic.Pointer[[]Registration]
	logger *log.Logger
}

// New creates an empty fan-out.
func New(logger *log.Logger) *Fanout {
	f := &Fanout{logger: logger}
	empty := make([]Registration, 0)
	f.regs.Store(&empty)
	return f
}

// Add registers b under name. With overwrite, an existing backend of the same
// name is replaced in place and returned; without it the call fails and
// nothing changes.
func (f *Fanout) Add(b core.Backend, name string, overwrite bool) (core.Backend, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current := *f.regs.Load()
	replaceAt := -1
	for i, reg := range current {
		if reg.Backend == b {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBackend, reg.Name)
		}
		if reg.Name == name {
			if !overwrite {
				f.logger.Warn("msg", "Backend name already in use",
					"component", "fanout",
					"backend", name)
				return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
			}
			replaceAt = i
		}
	}

	next := make([]Registration, len(current), len(current)+1)
	copy(next, current)

	var replaced core.Backend
	if replaceAt >= 0 {
		replaced = next[replaceAt].Backend
		next[replaceAt] = Registration{Name: name, Backend: b}
	} else {
		next = append(next, Registration{Name: name, Backend: b})
	}
	f.regs.Store(&next)

	f.logger.Info("msg", "Backend registered",
		"component", "fanout",
		"backend", name,
		"replaced", replaced != nil,
		"backend_count", len(next))
	return replaced, nil
}

// Remove unregisters b and returns the name it was registered under.
func (f *Fanout) Remove(b core.Backend) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := *f.regs.Load()
	for i, reg := range current {
		if reg.Backend != b {
			continue
		}
		next := make([]Registration, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		f.regs.Store(&next)

		f.logger.Info("msg", "Backend removed",
			"component", "fanout",
			"backend", reg.Name,
			"backend_count", len(next))
		return reg.Name, true
	}
	return "", false
}

// List returns the registered backends by name.
func (f *Fanout) List() map[string]core.Backend {
	current := *f.regs.Load()
	out := make(map[string]core.Backend, len(current))
	for _, reg := range current {
		out[reg.Name] = reg.Backend
	}
	return out
}

// Registrations returns the registered backends in dispatch order.
func (f *Fanout) Registrations() []Registration {
	current := *f.regs.Load()
	out := make([]Registration, len(current))
	copy(out, current)
	return out
}

func (f *Fanout) Len() int {
	return len(*f.regs.Load())
}

// Dispatch hands entry to every backend in registration order.
func (f *Fanout) Dispatch(entry core.LogEntry) {
	for _, reg := range *f.regs.Load() {
		reg.Backend.Accept(entry)
	}
}

// FlushAll flushes every backend.
func (f *Fanout) FlushAll() {
	for _, reg := range *f.regs.Load() {
		reg.Backend.Flush()
	}
}

// DisposeAll disposes and unregisters every backend.
func (f *Fanout) DisposeAll() {
	f.mu.Lock()
	current := *f.regs.Load()
	empty := make([]Registration, 0)
	f.regs.Store(&empty)
	f.mu.Unlock()

	for _, reg := range current {
		reg.Backend.Dispose()
		f.logger.Debug("msg", "Backend disposed",
			"component", "fanout",
			"backend", reg.Name)
	}
}
