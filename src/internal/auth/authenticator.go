// FILE: src/internal/auth/authenticator.go
package auth

import (
	"bufio"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Prevent unbounded map growth
const maxAuthTrackedIPs = 10000

// Config selects and parameterises HTTP authentication
type Config struct {
	Type      string     `toml:"type"` // none, basic, bearer
	Realm     string     `toml:"realm"`
	Users     []User     `toml:"users"`
	UsersFile string     `toml:"users_file"`
	Tokens    []string   `toml:"tokens"`
	JWT       *JWTConfig `toml:"jwt"`
}

// User is a basic auth credential with an Argon2id PHC hash
type User struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

// JWTConfig enables bearer JWT validation with a static HMAC key
type JWTConfig struct {
	SigningKey string `toml:"signing_key"`
	Issuer     string `toml:"issuer"`
	Audience   string `toml:"audience"`
}

// Validate checks the auth block without loading user files
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case "", "none":
	case "basic":
		if len(c.Users) == 0 && c.UsersFile == "" {
			return fmt.Errorf("basic auth requires users or users_file")
		}
	case "bearer":
		if len(c.Tokens) == 0 && (c.JWT == nil || c.JWT.SigningKey == "") {
			return fmt.Errorf("bearer auth requires tokens or jwt.signing_key")
		}
	default:
		return fmt.Errorf("invalid auth type '%s' (valid: none, basic, bearer)", c.Type)
	}
	return nil
}

// Authenticator validates Authorization headers for the HTTP backend
type Authenticator struct {
	config       *Config
	logger       *log.Logger
	basicUsers   map[string]string // username -> password hash
	bearerTokens map[string]bool   // token -> valid
	jwtParser    *jwt.Parser
	jwtKey       []byte
	failureDelay time.Duration

	// Brute-force protection
	ipAuthAttempts map[string]*ipAuthState
	authMu         sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	successes atomic.Uint64
	failures  atomic.Uint64
}

// Per-IP auth attempt tracking
type ipAuthState struct {
	limiter      *rate.Limiter
	failCount    int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// Session describes an authenticated client
type Session struct {
	ID         string
	Username   string
	Method     string // none, basic, bearer, jwt
	RemoteAddr string
	CreatedAt  time.Time
}

// New creates an authenticator; it returns nil for type "none"
func New(cfg *Config, logger *log.Logger) (*Authenticator, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Authenticator{
		config:         cfg,
		logger:         logger,
		basicUsers:     make(map[string]string),
		bearerTokens:   make(map[string]bool),
		ipAuthAttempts: make(map[string]*ipAuthState),
		failureDelay:   500 * time.Millisecond,
		done:           make(chan struct{}),
	}

	switch cfg.Type {
	case "basic":
		for _, user := range cfg.Users {
			a.basicUsers[user.Username] = user.PasswordHash
		}
		if cfg.UsersFile != "" {
			if err := a.loadUsersFile(cfg.UsersFile); err != nil {
				return nil, fmt.Errorf("failed to load users file: %w", err)
			}
		}

	case "bearer":
		for _, token := range cfg.Tokens {
			a.bearerTokens[token] = true
		}
		if cfg.JWT != nil && cfg.JWT.SigningKey != "" {
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
				jwt.WithLeeway(5 * time.Second),
				jwt.WithExpirationRequired(),
			}
			if cfg.JWT.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.JWT.Issuer))
			}
			if cfg.JWT.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.JWT.Audience))
			}
			a.jwtParser = jwt.NewParser(opts...)
			a.jwtKey = []byte(cfg.JWT.SigningKey)
		}
	}

	go a.authAttemptCleanup()

	logger.Info("msg", "Authenticator initialized",
		"component", "auth",
		"type", cfg.Type)

	return a, nil
}

// Close stops the background cleanup
func (a *Authenticator) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() { close(a.done) })
}

// Type returns the configured auth type
func (a *Authenticator) Type() string {
	if a == nil {
		return "none"
	}
	return a.config.Type
}

// Challenge returns the WWW-Authenticate header value for a 401
func (a *Authenticator) Challenge() string {
	if a == nil {
		return ""
	}
	if a.config.Type == "basic" {
		realm := a.config.Realm
		if realm == "" {
			realm = "Restricted"
		}
		return fmt.Sprintf("Basic realm=%q", realm)
	}
	return "Bearer"
}

// AuthenticateHTTP handles HTTP authentication headers
func (a *Authenticator) AuthenticateHTTP(authHeader, remoteAddr string) (*Session, error) {
	if a == nil {
		return &Session{
			ID:         generateSessionID(),
			Username:   "anonymous",
			Method:     "none",
			RemoteAddr: remoteAddr,
			CreatedAt:  time.Now(),
		}, nil
	}

	if err := a.checkRateLimit(remoteAddr); err != nil {
		a.failures.Add(1)
		return nil, err
	}

	var session *Session
	var err error

	switch a.config.Type {
	case "basic":
		session, err = a.authenticateBasic(authHeader, remoteAddr)
	case "bearer":
		session, err = a.authenticateBearer(authHeader, remoteAddr)
	default:
		err = fmt.Errorf("unsupported auth type: %s", a.config.Type)
	}

	if err != nil {
		a.failures.Add(1)
		a.recordFailure(remoteAddr)
		if a.failureDelay > 0 {
			time.Sleep(a.failureDelay)
		}
		return nil, err
	}

	a.successes.Add(1)
	a.recordSuccess(remoteAddr)
	return session, nil
}

// Check and enforce rate limits
func (a *Authenticator) checkRateLimit(remoteAddr string) error {
	ip := hostOf(remoteAddr)

	a.authMu.Lock()
	defer a.authMu.Unlock()

	state, exists := a.ipAuthAttempts[ip]
	now := time.Now()

	if !exists {
		if len(a.ipAuthAttempts) >= maxAuthTrackedIPs {
			a.evictOldestLocked(now)
		}

		// 5 attempts per minute, burst of 3
		state = &ipAuthState{
			limiter:     rate.NewLimiter(rate.Every(12*time.Second), 3),
			lastAttempt: now,
		}
		a.ipAuthAttempts[ip] = state
	}

	if now.Before(state.blockedUntil) {
		remaining := state.blockedUntil.Sub(now)
		a.logger.Warn("msg", "IP temporarily blocked",
			"component", "auth",
			"ip", ip,
			"remaining", remaining)
		return fmt.Errorf("temporarily blocked, try again in %v", remaining.Round(time.Second))
	}

	if !state.limiter.Allow() {
		state.failCount++

		// Progressive blocking: 2^failCount minutes, capped at 64
		blockMinutes := 1 << min(state.failCount, 6)
		state.blockedUntil = now.Add(time.Duration(blockMinutes) * time.Minute)

		a.logger.Warn("msg", "Rate limit exceeded, blocking IP",
			"component", "auth",
			"ip", ip,
			"fail_count", state.failCount,
			"block_duration", time.Duration(blockMinutes)*time.Minute)

		return fmt.Errorf("rate limit exceeded")
	}

	state.lastAttempt = now
	return nil
}

// Sample 20 entries and evict the oldest
func (a *Authenticator) evictOldestLocked(now time.Time) {
	const sampleSize = 20
	var oldestIP string
	oldestTime := now

	sampled := 0
	for ip, state := range a.ipAuthAttempts {
		if state.lastAttempt.Before(oldestTime) {
			oldestIP = ip
			oldestTime = state.lastAttempt
		}
		sampled++
		if sampled >= sampleSize {
			break
		}
	}

	if oldestIP != "" {
		delete(a.ipAuthAttempts, oldestIP)
	}
}

func (a *Authenticator) recordFailure(remoteAddr string) {
	a.authMu.Lock()
	defer a.authMu.Unlock()

	if state, exists := a.ipAuthAttempts[hostOf(remoteAddr)]; exists {
		state.failCount++
		state.lastAttempt = time.Now()
	}
}

// Reset failure count on success
func (a *Authenticator) recordSuccess(remoteAddr string) {
	a.authMu.Lock()
	defer a.authMu.Unlock()

	if state, exists := a.ipAuthAttempts[hostOf(remoteAddr)]; exists {
		state.failCount = 0
		state.blockedUntil = time.Time{}
	}
}

func (a *Authenticator) authenticateBasic(authHeader, remoteAddr string) (*Session, error) {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return nil, fmt.Errorf("invalid basic auth header")
	}

	payload, err := base64.StdEncoding.DecodeString(authHeader[6:])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding")
	}

	username, password, ok := strings.Cut(string(payload), ":")
	if !ok {
		return nil, fmt.Errorf("invalid credentials format")
	}

	expectedHash, exists := a.basicUsers[username]
	if !exists {
		return nil, fmt.Errorf("invalid credentials")
	}

	match, err := VerifyPassword(password, expectedHash)
	if err != nil {
		a.logger.Warn("msg", "Stored password hash is unusable",
			"component", "auth",
			"username", username,
			"error", err)
		return nil, fmt.Errorf("invalid credentials")
	}
	if !match {
		return nil, fmt.Errorf("invalid credentials")
	}

	return &Session{
		ID:         generateSessionID(),
		Username:   username,
		Method:     "basic",
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
	}, nil
}

func (a *Authenticator) authenticateBearer(authHeader, remoteAddr string) (*Session, error) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("invalid bearer auth header")
	}

	for static := range a.bearerTokens {
		if subtle.ConstantTimeCompare([]byte(static), []byte(token)) == 1 {
			return &Session{
				ID:         generateSessionID(),
				Method:     "bearer",
				RemoteAddr: remoteAddr,
				CreatedAt:  time.Now(),
			}, nil
		}
	}

	if a.jwtParser == nil {
		return nil, fmt.Errorf("invalid token")
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := a.jwtParser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("JWT validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid JWT token")
	}

	return &Session{
		ID:         generateSessionID(),
		Username:   claims.Subject,
		Method:     "jwt",
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
	}, nil
}

// Cleanup old auth attempts
func (a *Authenticator) authAttemptCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.authMu.Lock()
			now := time.Now()
			for ip, state := range a.ipAuthAttempts {
				if now.Sub(state.lastAttempt) > time.Hour {
					delete(a.ipAuthAttempts, ip)
				}
			}
			a.authMu.Unlock()
		}
	}
}

func (a *Authenticator) loadUsersFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open users file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		username, hash, ok := strings.Cut(line, ":")
		if !ok {
			a.logger.Warn("msg", "Skipping malformed line in users file",
				"component", "auth",
				"path", path,
				"line_number", lineNumber)
			continue
		}
		username, hash = strings.TrimSpace(username), strings.TrimSpace(hash)
		if username != "" && hash != "" {
			// File-based users overwrite inline users
			a.basicUsers[username] = hash
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading users file: %w", err)
	}

	a.logger.Info("msg", "Loaded users from file",
		"component", "auth",
		"path", path,
		"user_count", len(a.basicUsers))

	return nil
}

// Stats returns authentication statistics
func (a *Authenticator) Stats() map[string]any {
	if a == nil {
		return map[string]any{"enabled": false}
	}

	a.authMu.Lock()
	tracked := len(a.ipAuthAttempts)
	a.authMu.Unlock()

	return map[string]any{
		"enabled":       true,
		"type":          a.config.Type,
		"basic_users":   len(a.basicUsers),
		"static_tokens": len(a.bearerTokens),
		"jwt":           a.jwtParser != nil,
		"tracked_ips":   tracked,
		"successes":     a.successes.Load(),
		"failures":      a.failures.Load(),
	}
}

func hostOf(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || ip == "" {
		return remoteAddr
	}
	return ip
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
