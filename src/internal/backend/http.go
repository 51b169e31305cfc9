// FILE: src/internal/backend/http.go
package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"emulog/src/internal/auth"
	"emulog/src/internal/core"
	"emulog/src/internal/format"
	"emulog/src/internal/middleware"
	"emulog/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// HTTPOptions configures the SSE streaming backend
type HTTPOptions struct {
	Host             string       `toml:"host"`
	Port             int64        `toml:"port"`
	StreamPath       string       `toml:"stream_path"`
	StatusPath       string       `toml:"status_path"`
	BufferSize       int64        `toml:"buffer_size"`
	WriteTimeoutMS   int64        `toml:"write_timeout_ms"`
	HeartbeatSeconds int64        `toml:"heartbeat_seconds"`
	RateLimit        *RateOptions `toml:"rate_limit"`
	Auth             *auth.Config `toml:"auth"`
}

// RateOptions limits requests per client IP
type RateOptions struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// DefaultHTTPOptions returns the defaults applied to unset fields
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Host:             "127.0.0.1",
		Port:             8080,
		StreamPath:       "/stream",
		StatusPath:       "/status",
		BufferSize:       1000,
		WriteTimeoutMS:   0,
		HeartbeatSeconds: 30,
	}
}

// HTTP streams formatted entries to clients via Server-Sent Events.
// Accept never blocks: a client whose buffer is full misses entries.
type HTTP struct {
	Base

	config    HTTPOptions
	formatter format.Formatter
	logger    *log.Logger

	server   *fasthttp.Server
	listener net.Listener
	done     chan struct{}
	doneMu   sync.Mutex // orders stream registration against shutdown
	wg       sync.WaitGroup
	stopOnce sync.Once

	clients       map[uint64]chan []byte
	clientsMu     sync.RWMutex
	nextClientID  atomic.Uint64
	activeClients atomic.Int64

	authenticator *auth.Authenticator
	rateLimiter   *middleware.RateLimiter

	startTime      time.Time
	totalProcessed atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewHTTP creates an HTTP streaming backend; call Start to listen
func NewHTTP(opts HTTPOptions, level core.Level, formatter format.Formatter, logger *log.Logger) (*HTTP, error) {
	if formatter == nil {
		return nil, fmt.Errorf("http backend requires a formatter")
	}

	defaults := DefaultHTTPOptions()
	if opts.StreamPath == "" {
		opts.StreamPath = defaults.StreamPath
	}
	if opts.StatusPath == "" {
		opts.StatusPath = defaults.StatusPath
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}
	if opts.StreamPath == opts.StatusPath {
		return nil, fmt.Errorf("stream and status paths must differ: %s", opts.StreamPath)
	}

	h := &HTTP{
		config:    opts,
		formatter: formatter,
		logger:    logger,
		done:      make(chan struct{}),
		clients:   make(map[uint64]chan []byte),
		startTime: time.Now(),
	}
	h.init(level, true)

	authenticator, err := auth.New(opts.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	h.authenticator = authenticator

	if opts.RateLimit != nil && opts.RateLimit.RequestsPerSecond > 0 {
		h.rateLimiter = middleware.NewRateLimiter(opts.RateLimit.RequestsPerSecond, opts.RateLimit.Burst, time.Minute)
	}

	return h, nil
}

// Start listens on the configured address and serves in the background
func (h *HTTP) Start() error {
	addr := net.JoinHostPort(h.config.Host, fmt.Sprintf("%d", h.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.listener = ln

	var handler fasthttp.RequestHandler = h.requestHandler
	if h.rateLimiter != nil {
		handler = h.rateLimiter.Wrap(handler)
	}

	h.server = &fasthttp.Server{
		Name:         fmt.Sprintf("%s/%s", version.Name, version.Short()),
		Handler:      handler,
		Logger:       compat.NewFastHTTPAdapter(h.logger),
		WriteTimeout: time.Duration(h.config.WriteTimeoutMS) * time.Millisecond,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil {
			h.logger.Error("msg", "HTTP server failed",
				"component", "http_backend",
				"addr", addr,
				"error", err)
		}
	}()

	h.logger.Info("msg", "HTTP server started",
		"component", "http_backend",
		"addr", ln.Addr().String(),
		"stream_path", h.config.StreamPath,
		"status_path", h.config.StatusPath,
		"auth", h.authenticator.Type())

	return nil
}

// Addr returns the bound listen address, or nil before Start
func (h *HTTP) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *HTTP) Accept(entry core.LogEntry) {
	if !h.Allows(entry) {
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	h.totalProcessed.Add(1)
	if len(h.clients) == 0 {
		return
	}

	formatted, err := h.formatter.Format(entry)
	if err != nil {
		h.logger.Error("msg", "Failed to format log entry",
			"component", "http_backend",
			"error", err)
		return
	}

	slowClients := 0
	for id, ch := range h.clients {
		select {
		case ch <- formatted:
		default:
			slowClients++
			h.totalDropped.Add(1)
			if slowClients == 1 { // Log only once per broadcast
				h.logger.Debug("msg", "Dropped entry for slow client(s)",
					"component", "http_backend",
					"client_id", id)
			}
		}
	}
}

// Flush is a no-op; delivery to clients is best effort
func (h *HTTP) Flush() {}

func (h *HTTP) Dispose() {
	h.stopOnce.Do(func() {
		h.logger.Info("msg", "Stopping HTTP backend", "component", "http_backend")

		// Signal all client streams to stop
		h.doneMu.Lock()
		close(h.done)
		h.doneMu.Unlock()

		if h.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.server.ShutdownWithContext(ctx); err != nil {
				h.logger.Warn("msg", "HTTP server shutdown incomplete",
					"component", "http_backend",
					"error", err)
			}
		}

		h.wg.Wait()

		if h.rateLimiter != nil {
			h.rateLimiter.Stop()
		}
		h.authenticator.Close()

		h.logger.Info("msg", "HTTP backend stopped", "component", "http_backend")
	})
}

// ActiveClients returns the current number of streaming clients
func (h *HTTP) ActiveClients() int64 {
	return h.activeClients.Load()
}

func (h *HTTP) requestHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())

	// Status endpoint doesn't require auth
	if path == h.config.StatusPath {
		h.handleStatus(ctx)
		return
	}

	if path != h.config.StreamPath {
		writeJSONError(ctx, fasthttp.StatusNotFound, "Not Found")
		return
	}

	remoteAddr := ctx.RemoteAddr().String()
	session, err := h.authenticator.AuthenticateHTTP(string(ctx.Request.Header.Peek("Authorization")), remoteAddr)
	if err != nil {
		h.logger.Warn("msg", "Authentication failed",
			"component", "http_backend",
			"remote_addr", remoteAddr,
			"error", err)
		ctx.Response.Header.Set("WWW-Authenticate", h.authenticator.Challenge())
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "Unauthorized")
		return
	}

	h.handleStream(ctx, session)
}

func (h *HTTP) handleStream(ctx *fasthttp.RequestCtx, session *auth.Session) {
	remoteAddr := ctx.RemoteAddr().String()

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	streamFunc := func(w *bufio.Writer) {
		h.doneMu.Lock()
		select {
		case <-h.done:
			h.doneMu.Unlock()
			return
		default:
		}
		h.wg.Add(1)
		h.doneMu.Unlock()
		defer h.wg.Done()

		clientID := h.nextClientID.Add(1)
		clientChan := make(chan []byte, h.config.BufferSize)

		h.clientsMu.Lock()
		h.clients[clientID] = clientChan
		h.clientsMu.Unlock()

		connectCount := h.activeClients.Add(1)
		h.logger.Debug("msg", "HTTP client connected",
			"component", "http_backend",
			"remote_addr", remoteAddr,
			"username", session.Username,
			"client_id", clientID,
			"active_clients", connectCount)

		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, clientID)
			h.clientsMu.Unlock()

			disconnectCount := h.activeClients.Add(-1)
			h.logger.Debug("msg", "HTTP client disconnected",
				"component", "http_backend",
				"remote_addr", remoteAddr,
				"client_id", clientID,
				"active_clients", disconnectCount)
		}()

		connectionInfo := map[string]any{
			"client_id":   fmt.Sprintf("%d", clientID),
			"username":    session.Username,
			"auth_method": session.Method,
			"buffer_size": h.config.BufferSize,
		}
		data, _ := json.Marshal(connectionInfo)
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", data)
		if err := w.Flush(); err != nil {
			return
		}

		var tickerChan <-chan time.Time
		if h.config.HeartbeatSeconds > 0 {
			ticker := time.NewTicker(time.Duration(h.config.HeartbeatSeconds) * time.Second)
			defer ticker.Stop()
			tickerChan = ticker.C
		}

		for {
			select {
			case formatted := <-clientChan:
				writeSSEData(w, formatted)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-tickerChan:
				fmt.Fprintf(w, ": heartbeat %d\n\n", time.Now().Unix())
				if err := w.Flush(); err != nil {
					return
				}

			case <-h.done:
				fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"server_shutdown\"}\n\n")
				w.Flush()
				return
			}
		}
	}

	ctx.SetBodyStreamWriter(streamFunc)
}

// writeSSEData emits one event, prefixing every line with "data: "
func writeSSEData(w *bufio.Writer, formatted []byte) {
	formatted = bytes.TrimSuffix(formatted, []byte{'\n'})
	for line := range bytes.SplitSeq(formatted, []byte{'\n'}) {
		w.WriteString("data: ")
		w.Write(line)
		w.WriteByte('\n')
	}
	w.WriteByte('\n')
}

func (h *HTTP) handleStatus(ctx *fasthttp.RequestCtx) {
	var rateStats any = map[string]any{"enabled": false}
	if h.rateLimiter != nil {
		rateStats = h.rateLimiter.Stats()
	}

	status := map[string]any{
		"service": version.Name,
		"version": version.Short(),
		"server": map[string]any{
			"type":           "http",
			"host":           h.config.Host,
			"port":           h.config.Port,
			"active_clients": h.activeClients.Load(),
			"buffer_size":    h.config.BufferSize,
			"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		},
		"endpoints": map[string]string{
			"stream": h.config.StreamPath,
			"status": h.config.StatusPath,
		},
		"level": h.CurrentLevel().String(),
		"features": map[string]any{
			"auth":       h.authenticator.Stats(),
			"rate_limit": rateStats,
		},
		"statistics": map[string]any{
			"total_processed": h.totalProcessed.Load(),
			"total_dropped":   h.totalDropped.Load(),
		},
	}

	ctx.SetContentType("application/json")
	data, _ := json.Marshal(status)
	ctx.SetBody(data)
}

func writeJSONError(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(map[string]string{
		"error": msg,
	})
}
