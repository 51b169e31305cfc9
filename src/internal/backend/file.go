// FILE: src/internal/backend/file.go
package backend

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"emulog/src/internal/core"
	"emulog/src/internal/format"

	"github.com/lixenwraith/log"
)

// FileOptions configures the rotating file writer
type FileOptions struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
	MinDiskFreeMB  int64   `toml:"min_disk_free_mb"`
}

const fileWriterTimeout = 2 * time.Second

// Writes formatted entries to files with rotation
type File struct {
	Base

	writer    *log.Logger // Internal logger instance for file writing
	formatter format.Formatter
	logger    *log.Logger // Application logger
	disposed  atomic.Bool

	totalWritten atomic.Uint64
}

// Creates a new file backend and starts its writer
func NewFile(opts FileOptions, level core.Level, formatter format.Formatter, logger *log.Logger) (*File, error) {
	if formatter == nil {
		return nil, fmt.Errorf("file backend requires a formatter")
	}

	directory := opts.Directory
	if directory == "" {
		directory = "./"
		logger.Warn("msg", "No directory provided, current directory will be used",
			"component", "file_backend")
	}

	name := opts.Name
	if name == "" {
		name = "emulog"
		logger.Warn("msg", "No filename provided, default will be used",
			"component", "file_backend",
			"name", name)
	}

	// Create configuration for the internal log writer
	writerConfig := log.DefaultConfig()
	writerConfig.Directory = directory
	writerConfig.Name = name
	writerConfig.EnableConsole = false // File only
	writerConfig.ShowTimestamp = false // Entries carry their own timestamps
	writerConfig.ShowLevel = false     // and levels

	if opts.MaxSizeMB > 0 {
		writerConfig.MaxSizeKB = opts.MaxSizeMB * 1000
	}
	if opts.MaxTotalSizeMB >= 0 {
		writerConfig.MaxTotalSizeKB = opts.MaxTotalSizeMB * 1000
	}
	if opts.RetentionHours > 0 {
		writerConfig.RetentionPeriodHrs = opts.RetentionHours
	}
	if opts.MinDiskFreeMB > 0 {
		writerConfig.MinDiskFreeKB = opts.MinDiskFreeMB * 1000
	}

	writer := log.NewLogger()
	if err := writer.ApplyConfig(writerConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize file writer: %w", err)
	}
	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start file writer: %w", err)
	}

	f := &File{
		writer:    writer,
		formatter: formatter,
		logger:    logger,
	}
	f.init(level, true)

	logger.Info("msg", "File backend started",
		"component", "file_backend",
		"directory", directory,
		"name", name)

	return f, nil
}

func (f *File) Accept(entry core.LogEntry) {
	if f.disposed.Load() || !f.Allows(entry) {
		return
	}

	formatted, err := f.formatter.Format(entry)
	if err != nil {
		f.logger.Error("msg", "Failed to format log entry",
			"component", "file_backend",
			"error", err)
		return
	}

	// Convert to string to prevent hex encoding of []byte by log package
	// Strip new line, writer adds it
	f.writer.Message(string(bytes.TrimSuffix(formatted, []byte{'\n'})))
	f.totalWritten.Add(1)
}

func (f *File) Flush() {
	if f.disposed.Load() {
		return
	}
	if err := f.writer.Flush(fileWriterTimeout); err != nil {
		f.logger.Warn("msg", "File writer flush failed",
			"component", "file_backend",
			"error", err)
	}
}

func (f *File) Dispose() {
	if !f.disposed.CompareAndSwap(false, true) {
		return
	}

	if err := f.writer.Shutdown(fileWriterTimeout); err != nil {
		f.logger.Error("msg", "Error shutting down file writer",
			"component", "file_backend",
			"error", err)
	}

	f.logger.Info("msg", "File backend stopped",
		"component", "file_backend",
		"written", f.totalWritten.Load())
}
