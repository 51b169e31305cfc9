// FILE: src/internal/pipeline/pipeline_test.go
package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// sink records dispatched entries and flush calls in observation order
type sink struct {
	mu        sync.Mutex
	entries   []core.LogEntry
	events    []string
	gate      chan struct{}
	failOn    string
	inflight  atomic.Int32
	overlaps  atomic.Int32
}

func (s *sink) Dispatch(e core.LogEntry) {
	if s.inflight.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inflight.Add(-1)

	if s.gate != nil {
		<-s.gate
	}
	if s.failOn != "" && e.Message == s.failOn {
		panic("backend rejected " + e.Message)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.events = append(s.events, "accept:"+e.Message)
}

func (s *sink) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "flush")
}

func (s *sink) snapshot() []core.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *sink) eventLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func entry(msg string) core.LogEntry {
	return core.NewLogEntry(core.LevelInfo, msg, nil, nil, false)
}

func newPipeline(t *testing.T, cfg Config, s *sink) (*Pipeline, *atomic.Uint64) {
	t.Helper()
	ids := &atomic.Uint64{}
	p, err := New(cfg, s, ids, newTestLogger())
	require.NoError(t, err)
	return p, ids
}

func plainConfig() Config {
	return Config{QueueCapacity: 64}
}

func aggregatingConfig(threshold int, period time.Duration) Config {
	return Config{
		QueueCapacity:   64,
		Aggregate:       true,
		RepeatThreshold: threshold,
		FlushPeriod:     period,
	}
}

func waitConsumed(t *testing.T, p *Pipeline, n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Stats().Consumed >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNew_Validation(t *testing.T) {
	ids := &atomic.Uint64{}
	logger := newTestLogger()

	testCases := []struct {
		name   string
		cfg    Config
		target Dispatcher
		ids    *atomic.Uint64
	}{
		{name: "NilDispatcher", cfg: plainConfig(), target: nil, ids: ids},
		{name: "NilIDs", cfg: plainConfig(), target: &sink{}, ids: nil},
		{name: "ZeroCapacity", cfg: Config{}, target: &sink{}, ids: ids},
		{name: "ZeroThreshold", cfg: aggregatingConfig(0, time.Second), target: &sink{}, ids: ids},
		{name: "ZeroPeriod", cfg: aggregatingConfig(10, 0), target: &sink{}, ids: ids},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.cfg, tc.target, tc.ids, logger)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestPipeline_SingleProducerOrder(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, plainConfig(), s)
	p.Start()
	defer p.Stop()

	for _, msg := range []string{"A", "B", "C"} {
		p.Enqueue(entry(msg))
	}
	p.Flush()

	got := s.snapshot()
	require.Len(t, got, 3)
	for i, msg := range []string{"A", "B", "C"} {
		assert.Equal(t, msg, got[i].Message)
		assert.Equal(t, 1, got[i].RepeatCount)
	}
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Less(t, got[1].ID, got[2].ID)
}

func TestPipeline_Aggregation(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, aggregatingConfig(core.DefaultRepeatThreshold, time.Hour), s)
	p.Start()
	defer p.Stop()

	p.Enqueue(entry("same"))
	p.Enqueue(entry("same"))
	p.Enqueue(entry("same"))
	p.Enqueue(entry("different"))
	waitConsumed(t, p, 4)
	p.Flush()

	got := s.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "same", got[0].Message)
	assert.Equal(t, 3, got[0].RepeatCount)
	assert.Equal(t, "different", got[1].Message)
	assert.Equal(t, 1, got[1].RepeatCount)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Equal(t, uint64(2), p.Stats().Collapsed)
}

func TestPipeline_AggregationIgnoresTimestampButNotContent(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, aggregatingConfig(100, time.Hour), s)
	p.Start()
	defer p.Stop()

	base := entry("tick")
	later := base
	later.Time = base.Time.Add(time.Second)
	otherSource := base
	otherSource.SourceID = core.IntPtr(4)
	otherLevel := base
	otherLevel.Level = core.LevelWarning

	p.Enqueue(base)
	p.Enqueue(later)
	p.Enqueue(otherSource)
	p.Enqueue(otherLevel)
	waitConsumed(t, p, 4)
	p.Flush()

	got := s.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].RepeatCount)
	assert.Equal(t, 1, got[1].RepeatCount)
	assert.Equal(t, 1, got[2].RepeatCount)
}

func TestPipeline_AggregationBound(t *testing.T) {
	testCases := []struct {
		name      string
		burst     int
		threshold int
	}{
		{name: "Remainder", burst: 25, threshold: 10},
		{name: "ExactMultiple", burst: 30, threshold: 10},
		{name: "ThresholdOne", burst: 5, threshold: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &sink{}
			p, _ := newPipeline(t, aggregatingConfig(tc.threshold, time.Hour), s)
			p.Start()
			defer p.Stop()

			for i := 0; i < tc.burst; i++ {
				p.Enqueue(entry("burst"))
			}
			waitConsumed(t, p, uint64(tc.burst))
			p.Flush()

			got := s.snapshot()
			expected := (tc.burst + tc.threshold - 1) / tc.threshold
			require.Len(t, got, expected)

			total := 0
			for _, e := range got {
				assert.LessOrEqual(t, e.RepeatCount, tc.threshold)
				total += e.RepeatCount
			}
			assert.Equal(t, tc.burst, total)
		})
	}
}

func TestPipeline_AggregationLiveness(t *testing.T) {
	s := &sink{}
	period := 50 * time.Millisecond
	p, _ := newPipeline(t, aggregatingConfig(100, period), s)
	p.Start()
	defer p.Stop()

	p.Enqueue(entry("lonely"))

	assert.Eventually(t, func() bool {
		return len(s.snapshot()) == 1
	}, 10*period, 5*time.Millisecond, "pending entry should be flushed by the timer")

	got := s.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "lonely", got[0].Message)
	assert.Equal(t, 1, got[0].RepeatCount)
}

func TestPipeline_FlushDeliversEverythingBeforeBackendFlush(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, Config{QueueCapacity: 8}, s)
	p.Start()
	defer p.Stop()

	const producers = 8
	const perProducer = 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				p.Enqueue(entry(fmt.Sprintf("p%d-%d", i, j)))
			}
		}(i)
	}
	wg.Wait()
	p.Flush()

	got := s.snapshot()
	require.Len(t, got, producers*perProducer)

	events := s.eventLog()
	require.NotEmpty(t, events)
	assert.Equal(t, "flush", events[len(events)-1])

	// ids strictly increase in dispatch order and per-producer order holds
	last := make(map[int]int)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID)
	}
	for _, e := range got {
		var producer, seq int
		_, err := fmt.Sscanf(e.Message, "p%d-%d", &producer, &seq)
		require.NoError(t, err)
		if prev, ok := last[producer]; ok {
			assert.Greater(t, seq, prev)
		}
		last[producer] = seq
	}
	assert.Zero(t, s.overlaps.Load(), "backend must never be invoked concurrently")
}

func TestPipeline_FlushRestartsConsumer(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, plainConfig(), s)
	p.Start()
	defer p.Stop()

	p.Enqueue(entry("before"))
	p.Flush()
	assert.True(t, p.Running())

	p.Enqueue(entry("after"))
	assert.Eventually(t, func() bool {
		return len(s.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPipeline_FlushWhileStopped(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, plainConfig(), s)

	p.Enqueue(entry("queued"))
	p.Flush()

	require.Len(t, s.snapshot(), 1)
	assert.False(t, p.Running())
}

func TestPipeline_StopJoinsConsumer(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, plainConfig(), s)
	p.Start()
	p.Stop()
	assert.False(t, p.Running())

	p.Enqueue(entry("held"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.snapshot(), "no consumer may run after Stop")

	p.Start()
	defer p.Stop()
	assert.Eventually(t, func() bool {
		return len(s.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPipeline_StartStopIdempotent(t *testing.T) {
	s := &sink{}
	p, _ := newPipeline(t, aggregatingConfig(10, time.Hour), s)
	p.Stop()
	p.Start()
	p.Start()
	assert.True(t, p.Running())
	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
}

func TestPipeline_Backpressure(t *testing.T) {
	gate := make(chan struct{})
	s := &sink{gate: gate}
	p, _ := newPipeline(t, Config{QueueCapacity: 1}, s)
	p.Start()

	// first entry parks the consumer in Dispatch, second fills the queue
	p.Enqueue(entry("1"))
	waitConsumed(t, p, 1)
	p.Enqueue(entry("2"))

	var returned atomic.Int32
	var wg sync.WaitGroup
	for _, msg := range []string{"3", "4"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			p.Enqueue(entry(msg))
			returned.Add(1)
		}(msg)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, returned.Load(), "producers must block while the queue is full")

	close(gate)
	wg.Wait()
	assert.Equal(t, int32(2), returned.Load())

	p.Flush()
	p.Stop()
	assert.Len(t, s.snapshot(), 4)
	assert.Equal(t, uint64(4), p.Stats().Enqueued)
}

func TestPipeline_ConsumerFailure(t *testing.T) {
	s := &sink{failOn: "poison"}
	p, _ := newPipeline(t, Config{QueueCapacity: 4}, s)
	p.Start()
	defer p.Stop()

	p.Enqueue(entry("ok"))
	p.Enqueue(entry("poison"))

	require.Eventually(t, func() bool {
		return p.Err() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, p.Err().Error(), "poison")

	// queue keeps accepting, nothing drains
	p.Enqueue(entry("stranded"))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, s.snapshot(), 1)
	assert.Equal(t, 1, p.Stats().QueueDepth)
}

func TestPipeline_SharedIDSequence(t *testing.T) {
	s := &sink{}
	p, ids := newPipeline(t, plainConfig(), s)
	ids.Store(41)
	p.Start()
	defer p.Stop()

	p.Enqueue(entry("x"))
	p.Flush()

	got := s.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(42), got[0].ID)
	assert.Equal(t, uint64(42), ids.Load())
}
