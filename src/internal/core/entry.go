// FILE: src/internal/core/entry.go
package core

import "time"

// LogEntry is a single, already formatted log record.
// ID and the final RepeatCount are assigned once, by whichever delivery path
// dispatches the entry.
type LogEntry struct {
	ID               uint64    `json:"id"`
	Time             time.Time `json:"time"`
	Level            Level     `json:"level"`
	Message          string    `json:"message"`
	SourceID         *int      `json:"source_id,omitempty"`
	ThreadID         *int      `json:"thread_id,omitempty"`
	RepeatCount      int       `json:"repeat_count"`
	ForceMachineName bool      `json:"-"`
}

// NewLogEntry builds an undispatched entry with a repeat count of one.
func NewLogEntry(level Level, message string, sourceID, threadID *int, forceMachineName bool) LogEntry {
	return LogEntry{
		Time:             time.Now(),
		Level:            level,
		Message:          message,
		SourceID:         sourceID,
		ThreadID:         threadID,
		RepeatCount:      1,
		ForceMachineName: forceMachineName,
	}
}

// EqualContent reports whether two entries may be collapsed into one.
// ID, Time and RepeatCount are ignored.
func (e *LogEntry) EqualContent(other *LogEntry) bool {
	if e == nil || other == nil {
		return false
	}
	return e.Level == other.Level &&
		e.Message == other.Message &&
		equalOptional(e.SourceID, other.SourceID) &&
		equalOptional(e.ThreadID, other.ThreadID)
}

func equalOptional(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr is a convenience for optional ids.
func IntPtr(v int) *int {
	return &v
}
