// FILE: src/internal/core/const.go
package core

import "time"

// Pipeline tunables. The repeat threshold and flush period have no derivation
// beyond keeping bursts bounded; treat them as knobs.
const (
	DefaultRepeatThreshold = 10000
	DefaultFlushPeriod     = 500 * time.Millisecond
	DefaultQueueCapacity   = 100000
	DefaultMinimumLevel    = LevelInfo
)

// WildcardSource addresses every source when setting a backend threshold.
const WildcardSource = -1

// Argon2id parameters for HTTP basic auth credentials
const (
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2SaltLen = 16
	Argon2KeyLen  = 32
)
