// FILE: src/internal/core/core_test.go
package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{input: "noisy", expected: LevelNoisy},
		{input: "DEBUG", expected: LevelDebug},
		{input: " info ", expected: LevelInfo},
		{input: "warn", expected: LevelWarning},
		{input: "Warning", expected: LevelWarning},
		{input: "error", expected: LevelError},
		{input: "-1", expected: LevelNoisy},
		{input: "3", expected: LevelError},
		{input: "fatal", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			lvl, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, lvl)
		})
	}
}

func TestLevelOrderingAndNames(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		assert.Less(t, Levels[i-1], Levels[i])
	}
	assert.Equal(t, "WARNING", LevelWarning.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestLevelText(t *testing.T) {
	data, err := json.Marshal(struct{ L Level }{LevelError})
	require.NoError(t, err)
	assert.JSONEq(t, `{"L":"ERROR"}`, string(data))

	var decoded struct{ L Level }
	require.NoError(t, json.Unmarshal([]byte(`{"L":"noisy"}`), &decoded))
	assert.Equal(t, LevelNoisy, decoded.L)

	assert.Error(t, json.Unmarshal([]byte(`{"L":"loud"}`), &decoded))
}

func TestEqualContent(t *testing.T) {
	base := NewLogEntry(LevelInfo, "tick", IntPtr(1), IntPtr(2), false)
	assert.Equal(t, 1, base.RepeatCount)

	same := base
	same.ID = 99
	same.RepeatCount = 7
	same.Time = same.Time.Add(1e9)
	same.SourceID = IntPtr(1)
	assert.True(t, base.EqualContent(&same), "id, time and count are ignored")

	testCases := []struct {
		name  string
		other LogEntry
	}{
		{name: "level", other: NewLogEntry(LevelWarning, "tick", IntPtr(1), IntPtr(2), false)},
		{name: "message", other: NewLogEntry(LevelInfo, "tock", IntPtr(1), IntPtr(2), false)},
		{name: "source", other: NewLogEntry(LevelInfo, "tick", IntPtr(3), IntPtr(2), false)},
		{name: "missing source", other: NewLogEntry(LevelInfo, "tick", nil, IntPtr(2), false)},
		{name: "thread", other: NewLogEntry(LevelInfo, "tick", IntPtr(1), nil, false)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, base.EqualContent(&tc.other))
		})
	}

	assert.False(t, base.EqualContent(nil))
}
