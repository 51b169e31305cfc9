// FILE: src/internal/identity/registry.go
package identity

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
	"weak"
)

// NoSource is returned for values that cannot be tracked.
const NoSource = -1

// Namer resolves a live source object to its display names.
type Namer interface {
	Name(src any) (object, machine string, ok bool)
}

// MachineNamer is implemented by sources that belong to an emulated machine.
type MachineNamer interface {
	MachineName() string
}

// Registry maps source objects to small stable ids without keeping them alive.
// Ids are never reused and associations are never removed.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[any]int
	entries []entry
	namer   Namer
}

type entry struct {
	ref   weak.Pointer[byte]
	typ   reflect.Type // pointer type of the referent, nil for value sources
	value any          // value sources are held directly
}

// New creates a registry. A nil namer selects DefaultNamer.
func New(namer Namer) *Registry {
	if namer == nil {
		namer = DefaultNamer{}
	}
	return &Registry{
		byKey: make(map[any]int),
		namer: namer,
	}
}

// GetOrCreateID returns the id of src, allocating one on first use.
// Concurrent calls for the same source observe one id.
func (r *Registry) GetOrCreateID(src any) int {
	k, e, ok := keyOf(src)
	if !ok {
		return NoSource
	}

	r.mu.RLock()
	id, found := r.byKey[k]
	r.mu.RUnlock()
	if found {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, found = r.byKey[k]; found {
		return id
	}
	id = len(r.entries)
	r.entries = append(r.entries, e)
	r.byKey[k] = id
	return id
}

// TryGetID looks up src without allocating.
func (r *Registry) TryGetID(src any) (int, bool) {
	k, _, ok := keyOf(src)
	if !ok {
		return NoSource, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, found := r.byKey[k]
	return id, found
}

// TryResolveName returns the names of a live source. It fails for unknown ids
// and for sources that have been garbage collected.
func (r *Registry) TryResolveName(id int) (object, machine string, ok bool) {
	src, ok := r.Lookup(id)
	if !ok {
		return "", "", false
	}
	return r.namer.Name(src)
}

// Lookup dereferences the association for id.
func (r *Registry) Lookup(id int) (any, bool) {
	r.mu.RLock()
	if id < 0 || id >= len(r.entries) {
		r.mu.RUnlock()
		return nil, false
	}
	e := r.entries[id]
	r.mu.RUnlock()

	if e.typ == nil {
		return e.value, true
	}
	p := e.ref.Value()
	if p == nil {
		return nil, false
	}
	return reflect.NewAt(e.typ.Elem(), unsafe.Pointer(p)).Interface(), true
}

// Len returns the number of ids handed out so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// keyOf derives the map key for src. Heap pointers are keyed by a weak
// pointer to the pointee; weak pointers made from the same address compare equal.
func keyOf(src any) (any, entry, bool) {
	if src == nil {
		return nil, entry{}, false
	}
	v := reflect.ValueOf(src)
	t := v.Type()

	if t.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, entry{}, false
		}
		// zero-size values share one address outside the heap
		if t.Elem().Size() == 0 {
			return src, entry{value: src}, true
		}
		wp := weak.Make((*byte)(v.UnsafePointer()))
		return weakKey{ptr: wp, typ: t}, entry{ref: wp, typ: t}, true
	}

	// value sources are held strongly, so only pointer-free values qualify
	if !t.Comparable() || holdsPointers(t) {
		return nil, entry{}, false
	}
	return src, entry{value: src}, true
}

// holdsPointers reports whether a value of type t can reference other heap
// objects. Strings are immutable tags and are allowed.
func holdsPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String:
		return false
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return t.Len() > 0 && holdsPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// weakKey keeps pointers of different types to the same address apart.
type weakKey struct {
	ptr weak.Pointer[byte]
	typ reflect.Type
}

// DefaultNamer names sources through fmt.Stringer and MachineNamer, falling back to
// the dynamic type name.
type DefaultNamer struct{}

func (DefaultNamer) Name(src any) (object, machine string, ok bool) {
	switch s := src.(type) {
	case nil:
		return "", "", false
	case string:
		object = s
	case fmt.Stringer:
		object = s.String()
	default:
		object = reflect.TypeOf(src).String()
	}
	if m, isMachine := src.(MachineNamer); isMachine {
		machine = m.MachineName()
	}
	return object, machine, true
}
