// FILE: src/internal/facility/default.go
package facility

import "sync/atomic"

var current atomic.Pointer[Facility]

// Default returns the process-wide facility, or nil if none was set.
func Default() *Facility {
	return current.Load()
}

// SetDefault installs f as the process-wide facility and returns the previous one.
func SetDefault(f *Facility) *Facility {
	return current.Swap(f)
}
