// FILE: src/cmd/emulog/bootstrap.go
package main

import (
	"fmt"
	"strings"

	"emulog/src/internal/backend"
	"emulog/src/internal/config"
	"emulog/src/internal/core"
	"emulog/src/internal/facility"
	"emulog/src/internal/filter"
	"emulog/src/internal/format"
	"emulog/src/internal/source"
	"emulog/src/internal/version"

	"github.com/lixenwraith/log"
)

// listener is implemented by backends that serve network clients
type listener interface {
	Start() error
}

// application is the running facility with its backends and input
type application struct {
	facility  *facility.Facility
	backends  map[string]core.Backend
	input     *source.StdinSource
	listeners int
}

// bootstrap builds the facility, registers every configured backend in
// order and starts the input
func bootstrap(cfg *config.Config) (*application, error) {
	opts, err := cfg.Facility.Options()
	if err != nil {
		return nil, fmt.Errorf("facility options: %w", err)
	}

	f, err := facility.New(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create facility: %w", err)
	}

	app := &application{
		facility: f,
		backends: make(map[string]core.Backend),
	}

	for i := range cfg.Backends {
		bc := &cfg.Backends[i]
		logger.Info("msg", "Initializing backend", "backend", bc.Name, "type", bc.Type)

		b, err := newBackend(bc, f.Sources())
		if err != nil {
			f.Dispose()
			return nil, fmt.Errorf("backend '%s': %w", bc.Name, err)
		}

		if err := f.AddBackend(b, bc.Name, false); err != nil {
			b.Dispose()
			f.Dispose()
			return nil, err
		}

		if l, ok := b.(listener); ok {
			if err := l.Start(); err != nil {
				f.Dispose()
				return nil, fmt.Errorf("backend '%s': %w", bc.Name, err)
			}
			app.listeners++
			displayEndpoint(bc)
		}
		app.backends[bc.Name] = b
	}

	if cfg.Input.Stdin {
		lvl, err := core.ParseLevel(cfg.Input.Level)
		if err != nil {
			f.Dispose()
			return nil, fmt.Errorf("input level: %w", err)
		}
		emitter := &source.Emitter{Name: cfg.Input.Source}
		app.input = source.NewStdinSource(nil, f, emitter, lvl, logger)
		if err := app.input.Start(); err != nil {
			f.Dispose()
			return nil, err
		}
	}

	logger.Info("msg", "emulog started",
		"version", version.Short(),
		"backends", len(app.backends),
		"synchronous", f.SynchronousLogging(),
		"global_minimum", f.GlobalMinimumLevel())

	return app, nil
}

// filterable is implemented by backends embedding backend.Base
type filterable interface {
	SetFilters(chain *filter.Chain)
}

// newBackend creates the backend described by bc. Listeners are not started.
func newBackend(bc *config.BackendConfig, names format.Resolver) (core.Backend, error) {
	b, err := createBackend(bc, names)
	if err != nil {
		return nil, err
	}

	chain, err := filter.NewChain(bc.Filters, names, logger)
	if err != nil {
		b.Dispose()
		return nil, err
	}
	if chain != nil {
		fb, ok := b.(filterable)
		if !ok {
			b.Dispose()
			return nil, fmt.Errorf("backend type %s does not support filters", bc.Type)
		}
		fb.SetFilters(chain)
	}
	return b, nil
}

func createBackend(bc *config.BackendConfig, names format.Resolver) (core.Backend, error) {
	lvl, err := bc.ParsedLevel()
	if err != nil {
		return nil, err
	}

	formatter, err := format.New(bc.Format, bc.FormatterOptions(), names, logger)
	if err != nil {
		return nil, err
	}

	switch bc.Type {
	case config.BackendConsole:
		opts := backend.ConsoleOptions{Target: "stdout"}
		if bc.Console != nil {
			opts = *bc.Console
		}
		return backend.NewConsole(opts, lvl, formatter, logger)
	case config.BackendFile:
		if bc.File == nil {
			return nil, fmt.Errorf("missing file options")
		}
		return backend.NewFile(*bc.File, lvl, formatter, logger)
	case config.BackendMemory:
		capacity := 0
		if bc.Memory != nil {
			capacity = int(bc.Memory.Capacity)
		}
		return backend.NewMemory(capacity, lvl, formatter), nil
	case config.BackendHTTP:
		opts := backend.DefaultHTTPOptions()
		if bc.HTTP != nil {
			opts = mergeHTTPOptions(opts, *bc.HTTP)
		}
		return backend.NewHTTP(opts, lvl, formatter, logger)
	case config.BackendTCP:
		if bc.TCP == nil {
			return nil, fmt.Errorf("missing tcp options")
		}
		return backend.NewTCP(*bc.TCP, lvl, formatter, logger)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", bc.Type)
	}
}

// mergeHTTPOptions fills unset fields of configured from defaults
func mergeHTTPOptions(defaults, configured backend.HTTPOptions) backend.HTTPOptions {
	out := configured
	if out.StreamPath == "" {
		out.StreamPath = defaults.StreamPath
	}
	if out.StatusPath == "" {
		out.StatusPath = defaults.StatusPath
	}
	if out.BufferSize <= 0 {
		out.BufferSize = defaults.BufferSize
	}
	if out.WriteTimeoutMS <= 0 {
		out.WriteTimeoutMS = defaults.WriteTimeoutMS
	}
	if out.HeartbeatSeconds < 0 {
		out.HeartbeatSeconds = defaults.HeartbeatSeconds
	}
	return out
}

func displayEndpoint(bc *config.BackendConfig) {
	switch bc.Type {
	case config.BackendHTTP:
		host := bc.HTTP.Host
		if host == "" {
			host = "localhost"
		}
		streamPath := bc.HTTP.StreamPath
		if streamPath == "" {
			streamPath = backend.DefaultHTTPOptions().StreamPath
		}
		Print("Backend '%s' streaming at http://%s:%d%s\n", bc.Name, host, bc.HTTP.Port, streamPath)
	case config.BackendTCP:
		Print("Backend '%s' streaming at tcp://%s:%d\n", bc.Name, bc.TCP.Host, bc.TCP.Port)
	}
}

// inputDone is closed when stdin is exhausted and nothing else keeps the
// process useful. A nil channel never fires.
func (a *application) inputDone() <-chan struct{} {
	if a.input == nil || a.listeners > 0 {
		return nil
	}
	return a.input.Finished()
}

// Shutdown stops the input then flushes and disposes the facility
func (a *application) Shutdown() {
	if a.input != nil {
		a.input.Stop()
	}
	a.facility.Dispose()
}

// initializeLogger sets up the diagnostics logger
func initializeLogger(cfg *config.Config, quiet bool) error {
	logger = log.NewLogger()

	var configArgs []string

	if quiet {
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		return logger.InitWithDefaults(configArgs...)
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout", "stderr", "split":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target="+cfg.Logging.Output)

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "all":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	return logger.InitWithDefaults(configArgs...)
}

func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"
	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}
	*configArgs = append(*configArgs, fmt.Sprintf("stdout_target=%s", target))
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
