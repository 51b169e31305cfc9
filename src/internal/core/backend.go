// FILE: src/internal/core/backend.go
package core

// Backend is a pluggable sink for ordered, leveled entries.
// A backend reports failure by panicking out of Accept or Flush; delivery paths
// do not isolate backends from each other.
type Backend interface {
	// Accept receives one dispatched entry. The backend applies its own level filter.
	Accept(entry LogEntry)

	// SetLevel sets the threshold for one source, or for all when sourceID is WildcardSource
	SetLevel(level Level, sourceID int)

	// CurrentLevel returns the backend-wide threshold
	CurrentLevel() Level

	// CustomLevelsBySource returns the per-source overrides
	CustomLevelsBySource() map[int]Level

	// Reset drops per-source overrides and restores the initial threshold
	Reset()

	Flush()
	Dispose()

	// IsControllable reports whether the backend takes part in global level changes
	IsControllable() bool
}
