// FILE: src/cmd/emulog/status.go
package main

import (
	"context"
	"os"
	"time"

	"emulog/src/internal/backend"
)

const statusInterval = 30 * time.Second

func enableStatusReporter(flagCfg *FlagConfig) bool {
	if flagCfg.DisableStatusReporter {
		return false
	}
	return os.Getenv("EMULOG_DISABLE_STATUS_REPORTER") != "1"
}

// Periodically logs facility status
func statusReporter(ctx context.Context, app *application, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportStatus(app)
		}
	}
}

func reportStatus(app *application) {
	stats := app.facility.Stats()

	if err := app.facility.Err(); err != nil {
		logger.Error("msg", "Asynchronous delivery stopped",
			"component", "status_reporter",
			"error", err)
	}

	logger.Debug("msg", "Status report",
		"component", "status_reporter",
		"synchronous", stats.Synchronous,
		"backends", stats.Backends,
		"sources", stats.Sources,
		"global_minimum", stats.GlobalMinimum,
		"last_id", stats.LastID,
		"queue_depth", stats.Pipeline.QueueDepth,
		"enqueued", stats.Pipeline.Enqueued,
		"dispatched", stats.Pipeline.Dispatched,
		"collapsed", stats.Pipeline.Collapsed)

	for name, b := range app.backends {
		fields := []any{
			"msg", "Backend status",
			"component", "status_reporter",
			"backend", name,
			"level", b.CurrentLevel(),
			"overrides", len(b.CustomLevelsBySource()),
		}
		switch v := b.(type) {
		case *backend.HTTP:
			fields = append(fields, "type", "http", "clients", v.ActiveClients())
		case *backend.TCP:
			fields = append(fields, "type", "tcp", "connections", v.ActiveConnections())
		case *backend.Console:
			fields = append(fields, "type", "console", "written", v.Written())
		case *backend.Memory:
			fields = append(fields, "type", "memory", "buffered", v.Len())
		case *backend.File:
			fields = append(fields, "type", "file")
		}
		logger.Debug(fields...)
	}

	if app.input != nil {
		in := app.input.GetStats()
		logger.Debug("msg", "Input status",
			"component", "status_reporter",
			"type", in.Type,
			"lines", in.TotalLines,
			"last_line", in.LastLineTime.Format(time.RFC3339))
	}
}
