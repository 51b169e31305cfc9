// FILE: src/internal/format/raw.go
package format

import (
	"strconv"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Outputs the log message as-is with a newline
type RawFormatter struct {
	logger *log.Logger
}

// Creates a new raw formatter
func NewRawFormatter(logger *log.Logger) (*RawFormatter, error) {
	return &RawFormatter{
		logger: logger,
	}, nil
}

// Returns the message with a newline appended, and the repeat count when collapsed
func (f *RawFormatter) Format(entry core.LogEntry) ([]byte, error) {
	out := []byte(entry.Message)
	if entry.RepeatCount > 1 {
		out = append(out, " ("...)
		out = strconv.AppendInt(out, int64(entry.RepeatCount), 10)
		out = append(out, ')')
	}
	return append(out, '\n'), nil
}

// Returns the formatter name
func (f *RawFormatter) Name() string {
	return "raw"
}
