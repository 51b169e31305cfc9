// FILE: src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Produces human-readable text logs using templates
type TextFormatter struct {
	config   Options
	template *template.Template
	names    Resolver
	logger   *log.Logger
}

// Creates a new text formatter
func NewTextFormatter(opts Options, names Resolver, logger *log.Logger) (*TextFormatter, error) {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}

	f := &TextFormatter{
		config: opts,
		names:  names,
		logger: logger,
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return formatTime(t, f.config.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("log").Funcs(funcMap).Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Formats the log entry using the template
func (f *TextFormatter) Format(entry core.LogEntry) ([]byte, error) {
	src := resolveSource(entry, f.names, f.config.MachineNames)

	data := map[string]any{
		"ID":        entry.ID,
		"Timestamp": entry.Time,
		"Level":     entry.Level.String(),
		"Source":    src.label,
		"Object":    src.object,
		"Machine":   src.machine,
		"Message":   entry.Message,
		"Repeat":    entry.RepeatCount,
		"HasThread": entry.ThreadID != nil,
		"Thread":    0,
	}
	if entry.ThreadID != nil {
		data["Thread"] = *entry.ThreadID
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("%s [%s] %s - %s\n",
			formatTime(entry.Time, f.config.TimestampFormat),
			entry.Level,
			src.label,
			entry.Message)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Returns the formatter name
func (f *TextFormatter) Name() string {
	return "txt"
}
