// FILE: src/internal/auth/auth_test.go
package auth

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func newTestAuthenticator(t *testing.T, cfg *Config) *Authenticator {
	t.Helper()
	a, err := New(cfg, newTestLogger())
	require.NoError(t, err)
	require.NotNil(t, a)
	a.failureDelay = 0
	t.Cleanup(a.Close)
	return a
}

func TestPasswordHash(t *testing.T) {
	phc, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=65536,t=3,p=4$"))

	ok, err := VerifyPassword("hunter2", phc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter3", phc)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "$2a$10$notargon")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil", cfg: nil},
		{name: "none", cfg: &Config{Type: "none"}},
		{name: "basic without users", cfg: &Config{Type: "basic"}, wantErr: true},
		{name: "basic with file", cfg: &Config{Type: "basic", UsersFile: "users"}},
		{name: "bearer without tokens", cfg: &Config{Type: "bearer"}, wantErr: true},
		{name: "bearer with jwt", cfg: &Config{Type: "bearer", JWT: &JWTConfig{SigningKey: "k"}}},
		{name: "unknown", cfg: &Config{Type: "mtls"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNoneReturnsNil(t *testing.T) {
	a, err := New(&Config{Type: "none"}, newTestLogger())
	require.NoError(t, err)
	assert.Nil(t, a)

	session, err := a.AuthenticateHTTP("", "127.0.0.1:1000")
	require.NoError(t, err)
	assert.Equal(t, "none", session.Method)
	assert.Equal(t, "none", a.Type())
}

func TestBasicAuth(t *testing.T) {
	phc, err := HashPassword("secret")
	require.NoError(t, err)

	a := newTestAuthenticator(t, &Config{
		Type:  "basic",
		Realm: "emulog",
		Users: []User{{Username: "admin", PasswordHash: phc}},
	})

	session, err := a.AuthenticateHTTP(basicHeader("admin", "secret"), "10.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "admin", session.Username)
	assert.Equal(t, "basic", session.Method)

	_, err = a.AuthenticateHTTP(basicHeader("admin", "wrong"), "10.0.0.2:5000")
	assert.Error(t, err)

	_, err = a.AuthenticateHTTP("Bearer abc", "10.0.0.3:5000")
	assert.Error(t, err)

	assert.Equal(t, `Basic realm="emulog"`, a.Challenge())
	stats := a.Stats()
	assert.Equal(t, uint64(1), stats["successes"])
	assert.Equal(t, uint64(2), stats["failures"])
}

func TestUsersFile(t *testing.T) {
	phc, err := HashPassword("pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "users")
	content := "# comment\n\nmalformed\nops:" + phc + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	a := newTestAuthenticator(t, &Config{Type: "basic", UsersFile: path})
	_, err = a.AuthenticateHTTP(basicHeader("ops", "pw"), "10.0.0.1:1")
	assert.NoError(t, err)
}

func TestBearerAuth(t *testing.T) {
	key := "signing-key-for-tests"
	a := newTestAuthenticator(t, &Config{
		Type:   "bearer",
		Tokens: []string{"static-token"},
		JWT:    &JWTConfig{SigningKey: key, Issuer: "emulog"},
	})

	t.Run("static token", func(t *testing.T) {
		session, err := a.AuthenticateHTTP("Bearer static-token", "10.1.0.1:1")
		require.NoError(t, err)
		assert.Equal(t, "bearer", session.Method)
	})

	t.Run("valid jwt", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "viewer",
			Issuer:    "emulog",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)

		session, err := a.AuthenticateHTTP("Bearer "+signed, "10.1.0.2:1")
		require.NoError(t, err)
		assert.Equal(t, "jwt", session.Method)
		assert.Equal(t, "viewer", session.Username)
	})

	t.Run("jwt without expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "emulog"})
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)

		_, err = a.AuthenticateHTTP("Bearer "+signed, "10.1.0.3:1")
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    "other",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)

		_, err = a.AuthenticateHTTP("Bearer "+signed, "10.1.0.4:1")
		assert.Error(t, err)
	})
}

func TestRateLimitBlocksIP(t *testing.T) {
	a := newTestAuthenticator(t, &Config{Type: "bearer", Tokens: []string{"tok"}})

	// burst of 3, then blocked
	for range 3 {
		_, err := a.AuthenticateHTTP("Bearer bad", "192.168.1.9:4000")
		require.Error(t, err)
	}
	_, err := a.AuthenticateHTTP("Bearer tok", "192.168.1.9:4001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")

	_, err = a.AuthenticateHTTP("Bearer tok", "192.168.1.9:4002")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")

	// other IPs are unaffected
	_, err = a.AuthenticateHTTP("Bearer tok", "192.168.1.10:4000")
	assert.NoError(t, err)
}

func TestGeneratorCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	g := &GeneratorCommand{output: &out, errOut: &errOut}
	g.prompt = func(string) (string, error) { return "pw", nil }

	require.NoError(t, g.Execute([]string{"-u", "admin"}))
	assert.Contains(t, out.String(), `username = "admin"`)
	assert.Contains(t, out.String(), "admin:$argon2id$")

	out.Reset()
	require.NoError(t, g.Execute([]string{"-t", "-l", "24"}))
	assert.Contains(t, out.String(), "tokens = [")

	assert.Error(t, g.Execute([]string{}))
	assert.Error(t, g.Execute([]string{"-t", "-l", "1024"}))
}
