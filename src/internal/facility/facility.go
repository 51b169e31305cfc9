// FILE: src/internal/facility/facility.go
package facility

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"emulog/src/internal/core"
	"emulog/src/internal/fanout"
	"emulog/src/internal/identity"
	"emulog/src/internal/level"
	"emulog/src/internal/pipeline"

	"github.com/lixenwraith/log"
)

// ErrDisposed is returned by registration calls after Dispose.
var ErrDisposed = errors.New("logging facility disposed")

// Facility owns the backend set, the level table, the source registry and
// the delivery path. In synchronous mode entries are dispatched on the
// caller's goroutine under one lock; in asynchronous mode they go through
// the ingestion pipeline. Both paths draw ids from one sequence.
type Facility struct {
	opts   Options
	logger *log.Logger

	ids      atomic.Uint64
	sources  *identity.Registry
	levels   *level.Registry
	backends *fanout.Fanout
	pipeline *pipeline.Pipeline

	// mode is held shared while routing an entry and exclusively while
	// switching delivery paths
	mode        sync.RWMutex
	synchronous bool
	syncMu      sync.Mutex

	disposed    atomic.Bool
	disposeOnce sync.Once

	threadID func() (int, bool)
	now      func() time.Time
}

// Stats is a point-in-time view of the facility.
type Stats struct {
	Synchronous   bool
	Backends      int
	Sources       int
	GlobalMinimum core.Level
	LastID        uint64
	Pipeline      pipeline.Stats
}

// New creates a facility and starts the pipeline unless opts.Synchronous.
func New(opts Options, logger *log.Logger, options ...Option) (*Facility, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid facility options: %w", err)
	}

	f := &Facility{
		opts:        opts,
		logger:      logger,
		sources:     identity.New(nil),
		levels:      level.New(opts.DefaultLevel),
		backends:    fanout.New(logger),
		synchronous: opts.Synchronous,
		now:         time.Now,
	}
	for _, o := range options {
		o(f)
	}

	p, err := pipeline.New(opts.pipelineConfig(), f.backends, &f.ids, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	f.pipeline = p

	if !f.synchronous {
		f.pipeline.Start()
	}

	logger.Info("msg", "Logging facility created",
		"component", "facility",
		"synchronous", opts.Synchronous,
		"collapse_repeated", opts.CollapseRepeated,
		"queue_capacity", opts.QueueCapacity)

	return f, nil
}

// AddBackend registers b under name. An existing backend of the same name
// is replaced and disposed only when overwrite is set.
func (f *Facility) AddBackend(b core.Backend, name string, overwrite bool) error {
	if f.disposed.Load() {
		return ErrDisposed
	}
	if b == nil {
		return fmt.Errorf("backend %q is nil", name)
	}

	replaced, err := f.backends.Add(b, name, overwrite)
	if err != nil {
		return err
	}
	f.levels.Track(b)

	if replaced != nil {
		f.levels.Remove(replaced)
		replaced.Dispose()
		f.logger.Info("msg", "Backend replaced",
			"component", "facility",
			"backend", name)
	}

	f.logger.Debug("msg", "Backend added",
		"component", "facility",
		"backend", name,
		"level", b.CurrentLevel().String())
	return nil
}

// RemoveBackend unregisters and disposes b. It reports whether b was registered.
func (f *Facility) RemoveBackend(b core.Backend) bool {
	name, ok := f.backends.Remove(b)
	if !ok {
		return false
	}
	f.levels.Remove(b)
	b.Dispose()

	f.logger.Debug("msg", "Backend removed",
		"component", "facility",
		"backend", name)
	return true
}

// ListBackends returns the registered backends by name.
func (f *Facility) ListBackends() map[string]core.Backend {
	return f.backends.List()
}

// Log emits an entry without a source.
func (f *Facility) Log(lvl core.Level, message string, args ...any) {
	f.emit(nil, lvl, message, args)
}

// LogAs emits an entry on behalf of source. The source is identified without
// being retained; nil means no source.
func (f *Facility) LogAs(source any, lvl core.Level, message string, args ...any) {
	f.emit(source, lvl, message, args)
}

func (f *Facility) emit(source any, lvl core.Level, message string, args []any) {
	if lvl < f.levels.GlobalMinimum() || f.disposed.Load() {
		return
	}

	var sourceID *int
	if source != nil {
		if id := f.sources.GetOrCreateID(source); id != identity.NoSource {
			sourceID = &id
		}
	}

	var threadID *int
	if f.threadID != nil {
		if tid, ok := f.threadID(); ok {
			threadID = &tid
		}
	}

	entry := core.NewLogEntry(lvl, formatMessage(message, args), sourceID, threadID, f.opts.AlwaysAppendMachineName)
	entry.Time = f.now()
	f.route(entry)
}

func (f *Facility) route(entry core.LogEntry) {
	f.mode.RLock()
	defer f.mode.RUnlock()

	// Dispose may have completed its final flush while we waited for the lock
	if f.disposed.Load() {
		return
	}

	if f.synchronous {
		f.dispatchSync(entry)
		return
	}
	f.pipeline.Enqueue(entry)
}

func (f *Facility) dispatchSync(entry core.LogEntry) {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()

	entry.ID = f.ids.Add(1)
	f.backends.Dispatch(entry)
}

// SetLogLevel sets the threshold of b for sourceID (core.WildcardSource for
// all sources). A nil b applies to every controllable backend.
func (f *Facility) SetLogLevel(b core.Backend, lvl core.Level, sourceID int) {
	if b != nil {
		f.levels.SetLevel(b, lvl, sourceID)
		return
	}
	for _, reg := range f.backends.Registrations() {
		if reg.Backend.IsControllable() {
			f.levels.SetLevel(reg.Backend, lvl, sourceID)
		}
	}
}

// ResetLevels restores every backend's construction-time thresholds.
func (f *Facility) ResetLevels() {
	for _, reg := range f.backends.Registrations() {
		reg.Backend.Reset()
		f.levels.Refresh(reg.Backend)
	}
}

// GlobalMinimumLevel is the lowest threshold of any backend and source.
func (f *Facility) GlobalMinimumLevel() core.Level {
	return f.levels.GlobalMinimum()
}

// Sources exposes the source registry, e.g. for formatters resolving names.
func (f *Facility) Sources() *identity.Registry {
	return f.sources
}

// Flush returns once every entry emitted before the call has reached every
// backend and every backend has been flushed.
func (f *Facility) Flush() {
	f.mode.RLock()
	defer f.mode.RUnlock()
	f.flushLocked()
}

func (f *Facility) flushLocked() {
	if f.synchronous {
		f.syncMu.Lock()
		defer f.syncMu.Unlock()
		f.backends.FlushAll()
		return
	}
	f.pipeline.Flush()
}

// SynchronousLogging reports the active delivery mode.
func (f *Facility) SynchronousLogging() bool {
	f.mode.RLock()
	defer f.mode.RUnlock()
	return f.synchronous
}

// SetSynchronousLogging switches delivery mode; it is a no-op when already
// in the requested mode. Leaving asynchronous mode drains the pipeline first.
func (f *Facility) SetSynchronousLogging(synchronous bool) {
	f.mode.Lock()
	defer f.mode.Unlock()

	if f.synchronous == synchronous || f.disposed.Load() {
		return
	}

	if synchronous {
		f.pipeline.Flush()
		f.pipeline.Stop()
	} else {
		f.pipeline.Start()
	}
	f.synchronous = synchronous

	f.logger.Info("msg", "Logging mode switched",
		"component", "facility",
		"synchronous", synchronous,
		"last_id", f.ids.Load())
}

// Err returns the failure that stopped asynchronous delivery, if any.
func (f *Facility) Err() error {
	return f.pipeline.Err()
}

// Stats returns current counters.
func (f *Facility) Stats() Stats {
	return Stats{
		Synchronous:   f.SynchronousLogging(),
		Backends:      f.backends.Len(),
		Sources:       f.sources.Len(),
		GlobalMinimum: f.levels.GlobalMinimum(),
		LastID:        f.ids.Load(),
		Pipeline:      f.pipeline.Stats(),
	}
}

// Dispose flushes, stops delivery and disposes every backend. Later calls
// are no-ops and later log calls are ignored.
func (f *Facility) Dispose() {
	f.disposeOnce.Do(func() {
		f.disposed.Store(true)

		f.mode.Lock()
		f.flushLocked()
		if !f.synchronous {
			f.pipeline.Stop()
		}
		f.mode.Unlock()

		for _, reg := range f.backends.Registrations() {
			f.levels.Remove(reg.Backend)
		}
		f.backends.DisposeAll()

		f.logger.Info("msg", "Logging facility disposed",
			"component", "facility",
			"last_id", f.ids.Load())
	})
}
