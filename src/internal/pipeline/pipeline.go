// FILE: src/internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Dispatcher receives entries once they have an id.
type Dispatcher interface {
	Dispatch(entry core.LogEntry)
	FlushAll()
}

// Config holds the ingestion tunables.
type Config struct {
	QueueCapacity   int
	Aggregate       bool
	RepeatThreshold int
	FlushPeriod     time.Duration
}

// DefaultConfig returns the stock tunables with aggregation enabled.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:   core.DefaultQueueCapacity,
		Aggregate:       true,
		RepeatThreshold: core.DefaultRepeatThreshold,
		FlushPeriod:     core.DefaultFlushPeriod,
	}
}

// Pipeline decouples producers from the single goroutine that assigns ids
// and dispatches. A full queue blocks producers; nothing is dropped.
type Pipeline struct {
	config Config
	target Dispatcher
	ids    *atomic.Uint64
	logger *log.Logger

	// lifecycle serializes Start, Stop and Flush
	lifecycle sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	queueMu sync.RWMutex
	queue   *queue

	// mu guards the aggregate and serializes every dispatch made by the
	// pipeline, whether from the consumer, the timer or a flush
	mu          sync.Mutex
	pending     core.LogEntry
	count       int
	timer       *time.Timer
	timerActive bool

	failure atomic.Pointer[error]
	stats   counters
}

type counters struct {
	enqueued   atomic.Uint64
	consumed   atomic.Uint64
	dispatched atomic.Uint64
	collapsed  atomic.Uint64
	flushes    atomic.Uint64
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Running       bool
	Aggregating   bool
	QueueDepth    int
	QueueCapacity int
	Enqueued      uint64
	Consumed      uint64
	Dispatched    uint64
	Collapsed     uint64
	Flushes       uint64
	PendingCount  int
}

// New creates a stopped pipeline. ids is shared with any other delivery path
// so that ids stay comparable across them.
func New(cfg Config, target Dispatcher, ids *atomic.Uint64, logger *log.Logger) (*Pipeline, error) {
	if target == nil {
		return nil, errors.New("pipeline dispatcher cannot be nil")
	}
	if ids == nil {
		return nil, errors.New("pipeline id sequence cannot be nil")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("queue capacity must be positive: %d", cfg.QueueCapacity)
	}
	if cfg.Aggregate {
		if cfg.RepeatThreshold < 1 {
			return nil, fmt.Errorf("repeat threshold must be positive: %d", cfg.RepeatThreshold)
		}
		if cfg.FlushPeriod <= 0 {
			return nil, fmt.Errorf("flush period must be positive: %v", cfg.FlushPeriod)
		}
	}

	return &Pipeline{
		config: cfg,
		target: target,
		ids:    ids,
		logger: logger,
		queue:  newQueue(cfg.QueueCapacity),
	}, nil
}

// Start spawns the consumer and, when aggregating, the periodic flush.
func (p *Pipeline) Start() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.running.Load() {
		return
	}
	p.failure.Store(nil)
	p.startConsumer()

	if p.config.Aggregate {
		p.mu.Lock()
		p.timerActive = true
		if p.timer == nil {
			p.timer = time.AfterFunc(p.config.FlushPeriod, p.onTimer)
		} else {
			p.timer.Reset(p.config.FlushPeriod)
		}
		p.mu.Unlock()
	}

	p.running.Store(true)
	p.logger.Debug("msg", "Pipeline started",
		"component", "pipeline",
		"queue_capacity", p.config.QueueCapacity,
		"aggregate", p.config.Aggregate)
}

// Stop cancels the consumer and waits for it to exit, then stops the timer.
// A pending aggregate and queued entries are kept for the next Start or Flush.
func (p *Pipeline) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.running.Load() {
		return
	}
	p.stopConsumer()

	if p.config.Aggregate {
		p.mu.Lock()
		p.timerActive = false
		p.timer.Stop()
		p.mu.Unlock()
	}

	p.running.Store(false)
	p.logger.Debug("msg", "Pipeline stopped", "component", "pipeline")
}

// Running reports whether Start has been called without a matching Stop.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Enqueue appends entry to the queue, blocking while it is full.
func (p *Pipeline) Enqueue(entry core.LogEntry) {
	p.queueMu.RLock()
	q := p.queue
	q.senders.Add(1)
	p.queueMu.RUnlock()

	q.items <- entry
	q.senders.Done()
	p.stats.enqueued.Add(1)
}

// Flush delivers everything enqueued before the call and then flushes every
// backend. The consumer is paused while the old queue is drained on the
// calling goroutine; producers continue into a fresh queue meanwhile.
func (p *Pipeline) Flush() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	wasRunning := p.running.Load()
	if wasRunning {
		p.stopConsumer()
	}

	p.withLock(p.flushPendingLocked)

	p.queueMu.Lock()
	old := p.queue
	p.queue = newQueue(p.config.QueueCapacity)
	p.queueMu.Unlock()

	old.retire()
	drained := 0
	for entry := range old.items {
		p.withLock(func() { p.dispatchLocked(entry) })
		drained++
	}

	p.withLock(p.target.FlushAll)
	p.stats.flushes.Add(1)

	if wasRunning {
		p.failure.Store(nil)
		p.startConsumer()
	}

	p.logger.Debug("msg", "Pipeline flushed",
		"component", "pipeline",
		"drained", drained)
}

// Err returns the failure that terminated the consumer, if any.
func (p *Pipeline) Err() error {
	if errPtr := p.failure.Load(); errPtr != nil {
		return *errPtr
	}
	return nil
}

// Stats returns current counters.
func (p *Pipeline) Stats() Stats {
	p.queueMu.RLock()
	depth := len(p.queue.items)
	p.queueMu.RUnlock()

	p.mu.Lock()
	pendingCount := p.count
	p.mu.Unlock()

	return Stats{
		Running:       p.running.Load(),
		Aggregating:   p.config.Aggregate,
		QueueDepth:    depth,
		QueueCapacity: p.config.QueueCapacity,
		Enqueued:      p.stats.enqueued.Load(),
		Consumed:      p.stats.consumed.Load(),
		Dispatched:    p.stats.dispatched.Load(),
		Collapsed:     p.stats.collapsed.Load(),
		Flushes:       p.stats.flushes.Load(),
		PendingCount:  pendingCount,
	}
}

// startConsumer must be called with lifecycle held.
func (p *Pipeline) startConsumer() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.queueMu.RLock()
	q := p.queue
	p.queueMu.RUnlock()

	go p.consume(ctx, q, p.done)
}

// stopConsumer must be called with lifecycle held.
func (p *Pipeline) stopConsumer() {
	p.cancel()
	<-p.done
}

func (p *Pipeline) consume(ctx context.Context, q *queue, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			p.fail("consumer", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-q.items:
			p.stats.consumed.Add(1)
			p.process(entry)
		}
	}
}

func (p *Pipeline) process(entry core.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.config.Aggregate {
		p.dispatchLocked(entry)
		return
	}

	if p.count > 0 && p.pending.EqualContent(&entry) {
		p.count++
		p.stats.collapsed.Add(1)
		if p.count >= p.config.RepeatThreshold {
			p.flushPendingLocked()
		}
		return
	}

	p.flushPendingLocked()
	p.pending = entry
	p.count = 1
}

// flushPendingLocked dispatches the aggregate, if any, carrying its repeat count.
func (p *Pipeline) flushPendingLocked() {
	if p.count == 0 {
		return
	}
	entry := p.pending
	entry.RepeatCount = p.count
	p.count = 0
	p.dispatchLocked(entry)
	p.resetTimerLocked()
}

func (p *Pipeline) dispatchLocked(entry core.LogEntry) {
	entry.ID = p.ids.Add(1)
	p.target.Dispatch(entry)
	p.stats.dispatched.Add(1)
}

func (p *Pipeline) resetTimerLocked() {
	if p.timerActive {
		p.timer.Reset(p.config.FlushPeriod)
	}
}

func (p *Pipeline) onTimer() {
	defer func() {
		if r := recover(); r != nil {
			p.fail("flush timer", r)
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.timerActive {
		return
	}
	if p.count > 0 {
		p.flushPendingLocked()
		return
	}
	p.timer.Reset(p.config.FlushPeriod)
}

func (p *Pipeline) withLock(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

// fail records a backend failure raised on a pipeline goroutine. The goroutine
// that raised it does not continue.
func (p *Pipeline) fail(where string, r any) {
	err := fmt.Errorf("backend failure in %s: %v", where, r)
	p.failure.Store(&err)
	p.logger.Error("msg", "Backend failure stopped delivery",
		"component", "pipeline",
		"goroutine", where,
		"panic", r,
		"stack", string(debug.Stack()))
}
