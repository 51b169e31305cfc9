// FILE: src/internal/facility/message_test.go
package facility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessage(t *testing.T) {
	testCases := []struct {
		name     string
		message  string
		args     []any
		expected string
	}{
		{name: "no args", message: "plain {0}", expected: "plain {0}"},
		{name: "positional", message: "{0} wrote {1:x}", args: []any{"cpu", 2}, expected: "cpu wrote {1:x}"},
		{name: "reordered", message: "{1} then {0}", args: []any{"a", "b"}, expected: "b then a"},
		{name: "repeated", message: "{0}{0}", args: []any{7}, expected: "77"},
		{name: "escaped braces", message: "{{{0}}}", args: []any{"x"}, expected: "{x}"},
		{name: "out of range kept", message: "{0} {5}", args: []any{1}, expected: "1 {5}"},
		{name: "unterminated", message: "{0} {", args: []any{1}, expected: "1 {"},
		{name: "printf fallback", message: "addr 0x%04x", args: []any{255}, expected: "addr 0x00ff"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, formatMessage(tc.message, tc.args))
		})
	}
}
