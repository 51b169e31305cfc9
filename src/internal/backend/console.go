// FILE: src/internal/backend/console.go
package backend

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"emulog/src/internal/core"
	"emulog/src/internal/format"

	"github.com/lixenwraith/log"
	"golang.org/x/term"
)

// ConsoleOptions holds configuration for the console backend
type ConsoleOptions struct {
	Target string `toml:"target"` // "stdout", "stderr", or "split"
	Color  bool   `toml:"color"`
}

const (
	colorReset  = "\x1b[0m"
	colorGray   = "\x1b[90m"
	colorCyan   = "\x1b[36m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// Console writes formatted entries to stdout/stderr.
// In split mode warnings and errors go to stderr, everything else to stdout.
type Console struct {
	Base

	mu        sync.Mutex
	target    string
	stdout    io.Writer
	stderr    io.Writer
	color     bool
	formatter format.Formatter
	logger    *log.Logger

	totalWritten atomic.Uint64
}

// NewConsole creates a console backend
func NewConsole(opts ConsoleOptions, level core.Level, formatter format.Formatter, logger *log.Logger) (*Console, error) {
	if formatter == nil {
		return nil, fmt.Errorf("console backend requires a formatter")
	}

	target := opts.Target
	if target == "" {
		target = "stdout"
	}

	var tty bool
	switch target {
	case "stdout":
		tty = term.IsTerminal(int(os.Stdout.Fd()))
	case "stderr":
		tty = term.IsTerminal(int(os.Stderr.Fd()))
	case "split":
		tty = term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
	default:
		return nil, fmt.Errorf("invalid console target: %s", target)
	}

	c := &Console{
		target:    target,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		color:     opts.Color && tty,
		formatter: formatter,
		logger:    logger,
	}
	c.init(level, true)

	logger.Debug("msg", "Console backend created",
		"component", "console_backend",
		"target", target,
		"color", c.color)

	return c, nil
}

func (c *Console) Accept(entry core.LogEntry) {
	if !c.Allows(entry) {
		return
	}

	formatted, err := c.formatter.Format(entry)
	if err != nil {
		c.logger.Error("msg", "Failed to format log entry for console",
			"component", "console_backend",
			"error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.writerFor(entry.Level)
	if c.color {
		fmt.Fprint(out, levelColor(entry.Level))
		out.Write(bytes.TrimSuffix(formatted, []byte{'\n'}))
		fmt.Fprintln(out, colorReset)
	} else {
		out.Write(formatted)
	}
	c.totalWritten.Add(1)
}

func (c *Console) writerFor(level core.Level) io.Writer {
	switch c.target {
	case "stderr":
		return c.stderr
	case "split":
		if level >= core.LevelWarning {
			return c.stderr
		}
	}
	return c.stdout
}

func levelColor(level core.Level) string {
	switch {
	case level >= core.LevelError:
		return colorRed
	case level == core.LevelWarning:
		return colorYellow
	case level == core.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

// Flush syncs the underlying files when they support it
func (c *Console) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range []io.Writer{c.stdout, c.stderr} {
		if f, ok := w.(*os.File); ok {
			f.Sync()
		}
	}
}

func (c *Console) Dispose() {
	c.logger.Debug("msg", "Console backend disposed",
		"component", "console_backend",
		"written", c.totalWritten.Load())
}

// Written returns the number of entries emitted
func (c *Console) Written() uint64 {
	return c.totalWritten.Load()
}
