// FILE: src/internal/facility/message.go
package facility

import (
	"fmt"
	"strconv"
	"strings"
)

// formatMessage expands positional placeholders {0}, {1}, ... with the
// matching argument. "{{" and "}}" stand for literal braces. A message that
// has no placeholder but does have arguments is treated as a Printf format.
func formatMessage(message string, args []any) string {
	if len(args) == 0 {
		return message
	}
	if out, ok := substitute(message, args); ok {
		return out
	}
	return fmt.Sprintf(message, args...)
}

func substitute(message string, args []any) (string, bool) {
	if !strings.ContainsRune(message, '{') {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(message))
	used := false

	for i := 0; i < len(message); i++ {
		c := message[i]
		switch {
		case c == '{' && i+1 < len(message) && message[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(message) && message[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(message[i+1:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			idx, err := strconv.Atoi(message[i+1 : i+1+end])
			if err != nil || idx < 0 || idx >= len(args) {
				b.WriteByte(c)
				continue
			}
			b.WriteString(fmt.Sprint(args[idx]))
			used = true
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), used
}
