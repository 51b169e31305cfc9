// FILE: src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces one JSON object per entry.
type JSONFormatter struct {
	config Options
	names  Resolver
	logger *log.Logger
}

type jsonEntry struct {
	ID       uint64     `json:"id"`
	Time     string     `json:"time"`
	Level    core.Level `json:"level"`
	SourceID *int       `json:"source_id,omitempty"`
	Source   string     `json:"source,omitempty"`
	Machine  string     `json:"machine,omitempty"`
	ThreadID *int       `json:"thread_id,omitempty"`
	Message  string     `json:"message"`
	Repeat   int        `json:"repeat,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter from configuration options.
func NewJSONFormatter(opts Options, names Resolver, logger *log.Logger) (*JSONFormatter, error) {
	return &JSONFormatter{
		config: opts,
		names:  names,
		logger: logger,
	}, nil
}

// Format transforms a single LogEntry into a JSON byte slice.
func (f *JSONFormatter) Format(entry core.LogEntry) ([]byte, error) {
	src := resolveSource(entry, f.names, f.config.MachineNames)

	out := jsonEntry{
		ID:       entry.ID,
		Time:     entry.Time.Format(time.RFC3339Nano),
		Level:    entry.Level,
		SourceID: entry.SourceID,
		Source:   src.object,
		Machine:  src.machine,
		ThreadID: entry.ThreadID,
		Message:  entry.Message,
	}
	if entry.RepeatCount > 1 {
		out.Repeat = entry.RepeatCount
	}

	var result []byte
	var err error
	if f.config.Pretty {
		result, err = json.MarshalIndent(out, "", "  ")
	} else {
		result, err = json.Marshal(out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
