// FILE: src/cmd/emulog/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"emulog/src/internal/config"
	"emulog/src/internal/facility"
	"emulog/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	router := NewCommandRouter()
	handled, err := router.Route(os.Args[1:])
	if handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	flagCfg, configArgs, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	initOutput(flagCfg.Quiet)

	if flagCfg.ShowVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if flagCfg.ConfigFile != "" {
		os.Setenv("EMULOG_CONFIG_FILE", flagCfg.ConfigFile)
	}

	cfg, err := config.LoadWithCLI(configArgs)
	if err != nil {
		if flagCfg.ConfigFile != "" && strings.Contains(err.Error(), "not found") {
			FatalError(2, "Config file not found: %s\n", flagCfg.ConfigFile)
		}
		FatalError(1, "Failed to load config: %v\n", err)
	}

	if err := initializeLogger(cfg, flagCfg.Quiet); err != nil {
		FatalError(1, "Failed to initialize logger: %v\n", err)
	}
	defer shutdownLogger()

	logger.Info("msg", "emulog starting",
		"version", version.String(),
		"config_file", config.GetConfigPath(),
		"log_output", cfg.Logging.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := NewSignalHandler(nil, logger)
	defer sh.Stop()

	app, err := bootstrap(cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap", "error", err)
		shutdownLogger()
		os.Exit(1)
	}
	sh.facility = app.facility
	facility.SetDefault(app.facility)

	if enableStatusReporter(flagCfg) {
		go statusReporter(ctx, app, statusInterval)
	}

	if sig := sh.Handle(ctx, app.inputDone()); sig != nil {
		logger.Info("msg", "Shutdown signal received, starting graceful shutdown...", "signal", sig)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		app.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("msg", "Shutdown complete")
	case <-shutdownCtx.Done():
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit")
		shutdownLogger()
		os.Exit(1)
	}
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			Error("Logger shutdown error: %v\n", err)
		}
	}
}
