// FILE: src/internal/core/level.go
package core

import (
	"fmt"
	"strings"
)

// Level is the severity of an entry. Higher is more severe.
type Level int

const (
	LevelNoisy   Level = -1
	LevelDebug   Level = 0
	LevelInfo    Level = 1
	LevelWarning Level = 2
	LevelError   Level = 3
)

// Levels lists every level in ascending severity.
var Levels = []Level{LevelNoisy, LevelDebug, LevelInfo, LevelWarning, LevelError}

func (l Level) String() string {
	switch l {
	case LevelNoisy:
		return "NOISY"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel accepts level names case-insensitively, plus "warn" and numeric values.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noisy", "-1":
		return LevelNoisy, nil
	case "debug", "0":
		return LevelDebug, nil
	case "info", "1":
		return LevelInfo, nil
	case "warning", "warn", "2":
		return LevelWarning, nil
	case "error", "3":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}

// MarshalText lets levels appear by name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
