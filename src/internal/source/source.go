// FILE: src/internal/source/source.go
package source

import (
	"time"

	"emulog/src/internal/core"
)

// Sink receives the lines read by a source
type Sink interface {
	LogAs(source any, lvl core.Level, message string, args ...any)
}

// Emitter is the object fed lines are attributed to
type Emitter struct {
	Name    string
	Machine string
}

func (e *Emitter) String() string {
	return e.Name
}

func (e *Emitter) MachineName() string {
	return e.Machine
}

// Contains statistics about a source
type SourceStats struct {
	Type         string
	TotalLines   uint64
	StartTime    time.Time
	LastLineTime time.Time
	Details      map[string]any
}
