// FILE: src/internal/config/config.go
package config

import (
	"fmt"
	"time"

	"emulog/src/internal/backend"
	"emulog/src/internal/core"
	"emulog/src/internal/facility"
	"emulog/src/internal/filter"
	"emulog/src/internal/format"
)

// Backend types accepted in [[backends]]
const (
	BackendConsole = "console"
	BackendFile    = "file"
	BackendMemory  = "memory"
	BackendHTTP    = "http"
	BackendTCP     = "tcp"
)

type Config struct {
	// Diagnostics logger of the emulog process itself
	Logging *LogConfig `toml:"logging"`

	// Boot options of the logging facility
	Facility FacilityConfig `toml:"facility"`

	// Line source feeding the facility
	Input InputConfig `toml:"input"`

	// Registered destinations, in registration order
	Backends []BackendConfig `toml:"backends"`
}

type FacilityConfig struct {
	Synchronous             bool   `toml:"synchronous"`
	AlwaysAppendMachineName bool   `toml:"always_append_machine_name"`
	CollapseRepeated        bool   `toml:"collapse_repeated"`
	RepeatThreshold         int64  `toml:"repeat_threshold"`
	FlushPeriodMS           int64  `toml:"flush_period_ms"`
	QueueCapacity           int64  `toml:"queue_capacity"`
	DefaultLevel            string `toml:"default_level"`
}

// Options converts the boot block into facility options.
func (c FacilityConfig) Options() (facility.Options, error) {
	lvl, err := core.ParseLevel(c.DefaultLevel)
	if err != nil {
		return facility.Options{}, err
	}
	return facility.Options{
		Synchronous:             c.Synchronous,
		AlwaysAppendMachineName: c.AlwaysAppendMachineName,
		CollapseRepeated:        c.CollapseRepeated,
		RepeatThreshold:         int(c.RepeatThreshold),
		FlushPeriod:             time.Duration(c.FlushPeriodMS) * time.Millisecond,
		QueueCapacity:           int(c.QueueCapacity),
		DefaultLevel:            lvl,
	}, nil
}

type InputConfig struct {
	// Read lines from stdin and log them through the facility
	Stdin bool `toml:"stdin"`

	// Emitter tag the lines are logged under
	Source string `toml:"source"`

	// Level for lines without a recognizable level marker
	Level string `toml:"level"`
}

type BackendConfig struct {
	Name string `toml:"name"`

	// One of console, file, memory, http, tcp
	Type string `toml:"type"`

	// Initial global level of the backend
	Level string `toml:"level"`

	// Formatter name: txt, json, raw
	Format string `toml:"format"`

	FormatOptions *format.Options `toml:"format_options"`

	// Message filters applied after the level check, all must pass
	Filters []filter.Config `toml:"filters"`

	Console *backend.ConsoleOptions `toml:"console"`
	File    *backend.FileOptions    `toml:"file"`
	Memory  *MemoryOptions          `toml:"memory"`
	HTTP    *backend.HTTPOptions    `toml:"http"`
	TCP     *backend.TCPOptions     `toml:"tcp"`
}

type MemoryOptions struct {
	Capacity int64 `toml:"capacity"`
}

// ParsedLevel returns the backend's initial level.
func (b *BackendConfig) ParsedLevel() (core.Level, error) {
	if b.Level == "" {
		return core.DefaultMinimumLevel, nil
	}
	return core.ParseLevel(b.Level)
}

// FormatterOptions returns the configured formatter options or the defaults.
func (b *BackendConfig) FormatterOptions() format.Options {
	if b.FormatOptions == nil {
		return format.Options{}
	}
	return *b.FormatOptions
}

// Backend looks up a backend block by name.
func (c *Config) Backend(name string) (*BackendConfig, error) {
	for i := range c.Backends {
		if c.Backends[i].Name == name {
			return &c.Backends[i], nil
		}
	}
	return nil, fmt.Errorf("backend '%s' not configured", name)
}

func defaults() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Facility: FacilityConfig{
			CollapseRepeated: true,
			RepeatThreshold:  core.DefaultRepeatThreshold,
			FlushPeriodMS:    core.DefaultFlushPeriod.Milliseconds(),
			QueueCapacity:    core.DefaultQueueCapacity,
			DefaultLevel:     "info",
		},
		Input: InputConfig{
			Stdin:  true,
			Source: "stdin",
			Level:  "info",
		},
		Backends: []BackendConfig{
			{
				Name:   "console",
				Type:   BackendConsole,
				Level:  "info",
				Format: "txt",
				Console: &backend.ConsoleOptions{
					Target: "stdout",
				},
			},
		},
	}
}
