// FILE: src/internal/format/format.go
package format

import (
	"fmt"
	"strconv"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogEntry into a byte slice.
type Formatter interface {
	// Format takes a LogEntry and returns the formatted log as a byte slice.
	Format(entry core.LogEntry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// Resolver maps source ids to display names.
type Resolver interface {
	TryResolveName(id int) (object, machine string, ok bool)
}

// Options configures every formatter; fields a formatter does not use are ignored.
type Options struct {
	TimestampFormat string `toml:"timestamp_format"`
	Template        string `toml:"template"`
	Pretty          bool   `toml:"pretty"`
	MachineNames    bool   `toml:"machine_names"`
}

const (
	DefaultTimestampFormat = "15:04:05.000000"
	DefaultTemplate        = "{{FmtTime .Timestamp}} [{{.Level}}] {{if .Source}}{{.Source}}: {{end}}{{if .HasThread}}(tid: {{.Thread}}) {{end}}{{.Message}}{{if gt .Repeat 1}} ({{.Repeat}}){{end}}"
)

// New creates a new Formatter based on the provided configuration.
func New(name string, opts Options, names Resolver, logger *log.Logger) (Formatter, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = DefaultTimestampFormat
	}

	switch name {
	case "", "txt", "text":
		return NewTextFormatter(opts, names, logger)
	case "json":
		return NewJSONFormatter(opts, names, logger)
	case "raw":
		return NewRawFormatter(logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}

// source holds the resolved naming of an entry's source.
type source struct {
	label   string
	object  string
	machine string
}

// resolveSource names the entry's source. Ids whose referent is gone render as "#id".
func resolveSource(entry core.LogEntry, names Resolver, machineNames bool) source {
	if entry.SourceID == nil {
		return source{}
	}
	id := *entry.SourceID
	if names == nil {
		return source{label: "#" + strconv.Itoa(id)}
	}
	object, machine, ok := names.TryResolveName(id)
	if !ok {
		return source{label: "#" + strconv.Itoa(id)}
	}
	s := source{label: object, object: object, machine: machine}
	if machine != "" && (entry.ForceMachineName || machineNames) {
		s.label = machine + "/" + object
	}
	return s
}

func formatTime(t time.Time, layout string) string {
	if layout == "" {
		layout = DefaultTimestampFormat
	}
	return t.Format(layout)
}
