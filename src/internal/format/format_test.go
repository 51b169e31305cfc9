// FILE: src/internal/format/format_test.go
package format

import (
	"encoding/json"
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

type fakeNames map[int][2]string

func (n fakeNames) TryResolveName(id int) (string, string, bool) {
	v, ok := n[id]
	if !ok {
		return "", "", false
	}
	return v[0], v[1], true
}

func testEntry(msg string) core.LogEntry {
	e := core.NewLogEntry(core.LevelWarning, msg, core.IntPtr(1), nil, false)
	e.ID = 7
	e.Time = time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)
	return e
}

func TestNewFormatter(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name        string
		formatName  string
		expected    string
		expectError bool
	}{
		{name: "JSONFormatter", formatName: "json", expected: "json"},
		{name: "TextFormatter", formatName: "txt", expected: "txt"},
		{name: "TextAlias", formatName: "text", expected: "txt"},
		{name: "RawFormatter", formatName: "raw", expected: "raw"},
		{name: "DefaultToText", formatName: "", expected: "txt"},
		{name: "UnknownFormatter", formatName: "xml", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			formatter, err := New(tc.formatName, Options{}, nil, logger)
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, formatter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, formatter.Name())
		})
	}
}

func TestTextFormatter(t *testing.T) {
	names := fakeNames{1: {"uart0", "machine-0"}}

	t.Run("default template", func(t *testing.T) {
		f, err := NewTextFormatter(Options{TimestampFormat: DefaultTimestampFormat}, names, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry("hello"))
		require.NoError(t, err)
		assert.Equal(t, "03:04:05.000006 [WARNING] uart0: hello\n", string(out))
	})

	t.Run("machine name prefix", func(t *testing.T) {
		f, err := NewTextFormatter(Options{MachineNames: true}, names, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry("hello"))
		require.NoError(t, err)
		assert.Contains(t, string(out), "machine-0/uart0: hello")
	})

	t.Run("forced machine name", func(t *testing.T) {
		f, err := NewTextFormatter(Options{}, names, newTestLogger())
		require.NoError(t, err)

		e := testEntry("hello")
		e.ForceMachineName = true
		out, err := f.Format(e)
		require.NoError(t, err)
		assert.Contains(t, string(out), "machine-0/uart0: hello")
	})

	t.Run("unresolved source", func(t *testing.T) {
		f, err := NewTextFormatter(Options{}, fakeNames{}, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry("hello"))
		require.NoError(t, err)
		assert.Contains(t, string(out), "#1: hello")
	})

	t.Run("thread and repeat", func(t *testing.T) {
		f, err := NewTextFormatter(Options{}, names, newTestLogger())
		require.NoError(t, err)

		e := testEntry("tick")
		e.ThreadID = core.IntPtr(3)
		e.RepeatCount = 12
		out, err := f.Format(e)
		require.NoError(t, err)
		assert.Contains(t, string(out), "uart0: (tid: 3) tick (12)\n")
	})

	t.Run("custom template", func(t *testing.T) {
		f, err := NewTextFormatter(Options{Template: "{{.Level | ToUpper}} {{.Message}}"}, nil, newTestLogger())
		require.NoError(t, err)

		out, err := f.Format(testEntry("x"))
		require.NoError(t, err)
		assert.Equal(t, "WARNING x\n", string(out))
	})

	t.Run("invalid template", func(t *testing.T) {
		_, err := NewTextFormatter(Options{Template: "{{.Message"}, nil, newTestLogger())
		assert.Error(t, err)
	})
}

func TestJSONFormatter(t *testing.T) {
	f, err := NewJSONFormatter(Options{}, fakeNames{1: {"cpu", "m0"}}, newTestLogger())
	require.NoError(t, err)

	e := testEntry(`quote " here`)
	e.RepeatCount = 4
	out, err := f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(7), decoded["id"])
	assert.Equal(t, "WARNING", decoded["level"])
	assert.Equal(t, "cpu", decoded["source"])
	assert.Equal(t, "m0", decoded["machine"])
	assert.Equal(t, `quote " here`, decoded["message"])
	assert.Equal(t, float64(4), decoded["repeat"])
	assert.NotContains(t, decoded, "thread_id")
}

func TestRawFormatter(t *testing.T) {
	f, err := NewRawFormatter(newTestLogger())
	require.NoError(t, err)

	out, err := f.Format(testEntry("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain\n", string(out))

	e := testEntry("plain")
	e.RepeatCount = 3
	out, err = f.Format(e)
	require.NoError(t, err)
	assert.Equal(t, "plain (3)\n", string(out))
}
