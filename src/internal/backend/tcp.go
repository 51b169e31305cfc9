// FILE: src/internal/backend/tcp.go
package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"emulog/src/internal/core"
	"emulog/src/internal/format"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// Consecutive failed writes after which a client is dropped
const maxConsecutiveWriteErrors = 3

// TCPOptions configures the line streaming backend
type TCPOptions struct {
	Host string `toml:"host"`
	Port int64  `toml:"port"`
}

// TCP streams newline-delimited formatted entries to every connected client.
type TCP struct {
	Base

	config    TCPOptions
	formatter format.Formatter
	logger    *log.Logger

	server   *tcpServer
	engine   *gnet.Engine
	engineMu sync.Mutex
	runDone  chan struct{}
	stopOnce sync.Once

	activeConns    atomic.Int64
	totalProcessed atomic.Uint64
	writeErrors    atomic.Uint64

	consecutiveWriteErrors map[gnet.Conn]int
	errorMu                sync.Mutex
}

// tcpServer implements the gnet.EventHandler interface for the TCP backend.
type tcpServer struct {
	gnet.BuiltinEventEngine
	backend *TCP
	booted  chan struct{}
	clients map[gnet.Conn]struct{}
	mu      sync.RWMutex
}

// NewTCP creates a TCP streaming backend; call Start to listen
func NewTCP(opts TCPOptions, level core.Level, formatter format.Formatter, logger *log.Logger) (*TCP, error) {
	if formatter == nil {
		return nil, fmt.Errorf("tcp backend requires a formatter")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid tcp port: %d", opts.Port)
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}

	t := &TCP{
		config:                 opts,
		formatter:              formatter,
		logger:                 logger,
		runDone:                make(chan struct{}),
		consecutiveWriteErrors: make(map[gnet.Conn]int),
	}
	t.init(level, true)
	return t, nil
}

// Start runs the gnet engine and waits for it to boot
func (t *TCP) Start() error {
	t.server = &tcpServer{
		backend: t,
		booted:  make(chan struct{}),
		clients: make(map[gnet.Conn]struct{}),
	}

	addr := fmt.Sprintf("tcp://%s:%d", t.config.Host, t.config.Port)

	errChan := make(chan error, 1)
	go func() {
		defer close(t.runDone)
		err := gnet.Run(t.server, addr,
			gnet.WithLogger(compat.NewGnetAdapter(t.logger)),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			t.logger.Error("msg", "TCP server failed",
				"component", "tcp_backend",
				"port", t.config.Port,
				"error", err)
		}
		errChan <- err
	}()

	select {
	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("tcp engine exited during startup")
		}
		return err
	case <-t.server.booted:
		t.logger.Info("msg", "TCP server started",
			"component", "tcp_backend",
			"host", t.config.Host,
			"port", t.config.Port)
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("tcp engine did not boot on %s", addr)
	}
}

func (t *TCP) Accept(entry core.LogEntry) {
	if !t.Allows(entry) || t.server == nil {
		return
	}
	t.totalProcessed.Add(1)

	t.server.mu.RLock()
	defer t.server.mu.RUnlock()
	if len(t.server.clients) == 0 {
		return
	}

	data, err := t.formatter.Format(entry)
	if err != nil {
		t.logger.Error("msg", "Failed to format log entry",
			"component", "tcp_backend",
			"error", err)
		return
	}

	for conn := range t.server.clients {
		conn.AsyncWrite(data, func(c gnet.Conn, err error) error {
			if err != nil {
				t.writeErrors.Add(1)
				t.handleWriteError(c, err)
			} else {
				// Reset consecutive error count on success
				t.errorMu.Lock()
				delete(t.consecutiveWriteErrors, c)
				t.errorMu.Unlock()
			}
			return nil
		})
	}
}

// Flush is a no-op; writes are queued on the connection event loops
func (t *TCP) Flush() {}

func (t *TCP) Dispose() {
	t.stopOnce.Do(func() {
		t.engineMu.Lock()
		engine := t.engine
		t.engineMu.Unlock()

		if engine != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := engine.Stop(ctx); err != nil {
				t.logger.Warn("msg", "TCP engine stop failed",
					"component", "tcp_backend",
					"error", err)
			}
			<-t.runDone
		}

		t.logger.Info("msg", "TCP backend stopped",
			"component", "tcp_backend",
			"processed", t.totalProcessed.Load(),
			"write_errors", t.writeErrors.Load())
	})
}

// ActiveConnections returns the current number of connected clients
func (t *TCP) ActiveConnections() int64 {
	return t.activeConns.Load()
}

// OnBoot is called when the server starts.
func (s *tcpServer) OnBoot(eng gnet.Engine) gnet.Action {
	s.backend.engineMu.Lock()
	s.backend.engine = &eng
	s.backend.engineMu.Unlock()
	close(s.booted)
	return gnet.None
}

// OnOpen is called when a new connection is established.
func (s *tcpServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	newCount := s.backend.activeConns.Add(1)
	s.backend.logger.Debug("msg", "TCP connection opened",
		"component", "tcp_backend",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount)

	return nil, gnet.None
}

// OnClose is called when a connection is closed.
func (s *tcpServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	s.backend.errorMu.Lock()
	delete(s.backend.consecutiveWriteErrors, c)
	s.backend.errorMu.Unlock()

	newCount := s.backend.activeConns.Add(-1)
	s.backend.logger.Debug("msg", "TCP connection closed",
		"component", "tcp_backend",
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

// OnTraffic discards anything clients send.
func (s *tcpServer) OnTraffic(c gnet.Conn) gnet.Action {
	c.Discard(-1)
	return gnet.None
}

// handleWriteError closes a connection after repeated failed writes.
func (t *TCP) handleWriteError(c gnet.Conn, err error) {
	t.errorMu.Lock()
	defer t.errorMu.Unlock()

	t.consecutiveWriteErrors[c]++
	errorCount := t.consecutiveWriteErrors[c]

	t.logger.Debug("msg", "AsyncWrite error",
		"component", "tcp_backend",
		"error", err,
		"consecutive_errors", errorCount)

	if errorCount >= maxConsecutiveWriteErrors {
		t.logger.Warn("msg", "Closing connection due to repeated write errors",
			"component", "tcp_backend",
			"error_count", errorCount)
		delete(t.consecutiveWriteErrors, c)
		c.Close()
	}
}
