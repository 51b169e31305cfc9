// FILE: src/cmd/emulog/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// facilityControl is the part of the facility driven by signals
type facilityControl interface {
	SynchronousLogging() bool
	SetSynchronousLogging(synchronous bool)
	ResetLevels()
	Flush()
}

// Manages OS signals
type SignalHandler struct {
	facility facilityControl
	logger   *log.Logger
	sigChan  chan os.Signal
}

func NewSignalHandler(f facilityControl, logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		facility: f,
		logger:   logger,
		sigChan:  make(chan os.Signal, 1),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	return sh
}

// Handle serves control signals until a termination signal arrives, done
// fires or ctx ends. It returns the termination signal, or nil.
func (sh *SignalHandler) Handle(ctx context.Context, done <-chan struct{}) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			if !sh.control(sig) {
				return sig
			}
		case <-done:
			sh.logger.Info("msg", "Input exhausted")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// control applies a control signal and reports whether sig was one
func (sh *SignalHandler) control(sig os.Signal) bool {
	switch sig {
	case syscall.SIGUSR1:
		synchronous := !sh.facility.SynchronousLogging()
		sh.logger.Info("msg", "Switching logging mode",
			"signal", sig,
			"synchronous", synchronous)
		sh.facility.SetSynchronousLogging(synchronous)
	case syscall.SIGUSR2:
		sh.logger.Info("msg", "Resetting backend levels", "signal", sig)
		sh.facility.ResetLevels()
	case syscall.SIGHUP:
		sh.logger.Info("msg", "Flushing backends", "signal", sig)
		sh.facility.Flush()
	default:
		return false
	}
	return true
}

// Cleans up signal handling
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
