// FILE: src/internal/facility/options.go
package facility

import (
	"fmt"
	"time"

	"emulog/src/internal/core"
	"emulog/src/internal/identity"
	"emulog/src/internal/pipeline"
)

// Options are the boot-time settings of a facility.
type Options struct {
	Synchronous             bool
	AlwaysAppendMachineName bool
	CollapseRepeated        bool
	RepeatThreshold         int
	FlushPeriod             time.Duration
	QueueCapacity           int
	// DefaultLevel is the global minimum while no backend is registered
	DefaultLevel core.Level
}

// DefaultOptions returns asynchronous delivery with repeat collapsing.
func DefaultOptions() Options {
	return Options{
		CollapseRepeated: true,
		RepeatThreshold:  core.DefaultRepeatThreshold,
		FlushPeriod:      core.DefaultFlushPeriod,
		QueueCapacity:    core.DefaultQueueCapacity,
		DefaultLevel:     core.DefaultMinimumLevel,
	}
}

func (o Options) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		QueueCapacity:   o.QueueCapacity,
		Aggregate:       o.CollapseRepeated,
		RepeatThreshold: o.RepeatThreshold,
		FlushPeriod:     o.FlushPeriod,
	}
}

func (o Options) validate() error {
	if o.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be positive: %d", o.QueueCapacity)
	}
	if o.CollapseRepeated {
		if o.RepeatThreshold < 1 {
			return fmt.Errorf("repeat threshold must be positive: %d", o.RepeatThreshold)
		}
		if o.FlushPeriod <= 0 {
			return fmt.Errorf("flush period must be positive: %v", o.FlushPeriod)
		}
	}
	return nil
}

// Option customizes a facility beyond its boot options.
type Option func(*Facility)

// WithNamer replaces the default source namer.
func WithNamer(namer identity.Namer) Option {
	return func(f *Facility) {
		f.sources = identity.New(namer)
	}
}

// WithThreadIdentifier stamps every entry with the id reported by fn, e.g.
// the index of the emulated CPU issuing the call.
func WithThreadIdentifier(fn func() (int, bool)) Option {
	return func(f *Facility) {
		f.threadID = fn
	}
}

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Facility) {
		f.now = now
	}
}
