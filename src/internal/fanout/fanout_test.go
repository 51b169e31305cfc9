// FILE: src/internal/fanout/fanout_test.go
package fanout

import (
	"errors"
	"testing"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// journal records the order in which backends observe calls
type journal struct {
	events []string
}

type recorder struct {
	name     string
	journal  *journal
	accepted []core.LogEntry
	flushes  int
	disposed bool
	fail     bool
}

func (r *recorder) Accept(e core.LogEntry) {
	if r.fail {
		panic("backend " + r.name + " failed")
	}
	r.accepted = append(r.accepted, e)
	r.journal.events = append(r.journal.events, r.name+":accept")
}
func (r *recorder) SetLevel(core.Level, int)                {}
func (r *recorder) CurrentLevel() core.Level                { return core.LevelNoisy }
func (r *recorder) CustomLevelsBySource() map[int]core.Level { return nil }
func (r *recorder) Reset()                                  {}
func (r *recorder) Flush() {
	r.flushes++
	r.journal.events = append(r.journal.events, r.name+":flush")
}
func (r *recorder) Dispose()             { r.disposed = true }
func (r *recorder) IsControllable() bool { return true }

func TestFanout_Add(t *testing.T) {
	logger := newTestLogger()
	j := &journal{}

	t.Run("RejectsDuplicateName", func(t *testing.T) {
		f := New(logger)
		first := &recorder{name: "a", journal: j}
		second := &recorder{name: "b", journal: j}

		_, err := f.Add(first, "console", false)
		require.NoError(t, err)

		_, err = f.Add(second, "console", false)
		assert.True(t, errors.Is(err, ErrDuplicateName))
		assert.Contains(t, err.Error(), "console")

		list := f.List()
		assert.Len(t, list, 1)
		assert.Same(t, first, list["console"])
	})

	t.Run("OverwriteReplacesInPlace", func(t *testing.T) {
		f := New(logger)
		a := &recorder{name: "a", journal: j}
		b := &recorder{name: "b", journal: j}
		c := &recorder{name: "c", journal: j}

		_, err := f.Add(a, "first", false)
		require.NoError(t, err)
		_, err = f.Add(b, "second", false)
		require.NoError(t, err)

		replaced, err := f.Add(c, "first", true)
		require.NoError(t, err)
		assert.Same(t, a, replaced)

		regs := f.Registrations()
		require.Len(t, regs, 2)
		assert.Equal(t, "first", regs[0].Name)
		assert.Same(t, c, regs[0].Backend)
	})

	t.Run("RejectsSameBackendTwice", func(t *testing.T) {
		f := New(logger)
		a := &recorder{name: "a", journal: j}
		_, err := f.Add(a, "one", false)
		require.NoError(t, err)
		_, err = f.Add(a, "two", false)
		assert.True(t, errors.Is(err, ErrDuplicateBackend))
	})

	t.Run("RejectsEmptyName", func(t *testing.T) {
		f := New(logger)
		_, err := f.Add(&recorder{journal: j}, "", false)
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestFanout_DispatchOrder(t *testing.T) {
	j := &journal{}
	f := New(newTestLogger())
	for _, name := range []string{"x", "y", "z"} {
		_, err := f.Add(&recorder{name: name, journal: j}, name, false)
		require.NoError(t, err)
	}

	f.Dispatch(core.NewLogEntry(core.LevelInfo, "hello", nil, nil, false))
	f.FlushAll()

	assert.Equal(t, []string{
		"x:accept", "y:accept", "z:accept",
		"x:flush", "y:flush", "z:flush",
	}, j.events)
}

func TestFanout_Remove(t *testing.T) {
	j := &journal{}
	f := New(newTestLogger())
	a := &recorder{name: "a", journal: j}
	b := &recorder{name: "b", journal: j}
	_, _ = f.Add(a, "a", false)
	_, _ = f.Add(b, "b", false)

	name, ok := f.Remove(a)
	assert.True(t, ok)
	assert.Equal(t, "a", name)

	_, ok = f.Remove(a)
	assert.False(t, ok)

	f.Dispatch(core.NewLogEntry(core.LevelInfo, "m", nil, nil, false))
	assert.Empty(t, a.accepted)
	assert.Len(t, b.accepted, 1)

	assert.Equal(t, map[string]core.Backend{"b": b}, f.List())
}

func TestFanout_BackendFailurePropagates(t *testing.T) {
	j := &journal{}
	f := New(newTestLogger())
	bad := &recorder{name: "bad", journal: j, fail: true}
	after := &recorder{name: "after", journal: j}
	_, _ = f.Add(bad, "bad", false)
	_, _ = f.Add(after, "after", false)

	assert.Panics(t, func() {
		f.Dispatch(core.NewLogEntry(core.LevelError, "boom", nil, nil, false))
	})
	assert.Empty(t, after.accepted, "later backends are not reached")
}

func TestFanout_DisposeAll(t *testing.T) {
	j := &journal{}
	f := New(newTestLogger())
	a := &recorder{name: "a", journal: j}
	_, _ = f.Add(a, "a", false)

	f.DisposeAll()
	assert.True(t, a.disposed)
	assert.Equal(t, 0, f.Len())
}
