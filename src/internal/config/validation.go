// FILE: src/internal/config/validation.go
package config

import (
	"fmt"

	"emulog/src/internal/core"
	"emulog/src/internal/format"

	lconfig "github.com/lixenwraith/config"
)

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if c.Logging == nil {
		c.Logging = DefaultLogConfig()
	}
	if err := validateLogConfig(c.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := validateFacility(&c.Facility); err != nil {
		return fmt.Errorf("facility config: %w", err)
	}

	if c.Input.Stdin {
		if _, err := core.ParseLevel(c.Input.Level); err != nil {
			return fmt.Errorf("input config: %w", err)
		}
	}

	names := make(map[string]bool)
	ports := make(map[int64]string)
	for i := range c.Backends {
		if err := validateBackend(i, &c.Backends[i], names, ports); err != nil {
			return err
		}
	}

	return nil
}

func validateLogConfig(cfg *LogConfig) error {
	validOutputs := map[string]bool{
		"file": true, "stdout": true, "stderr": true,
		"split": true, "all": true, "none": true,
	}
	if !validOutputs[cfg.Output] {
		return fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if cfg.Console != nil {
		validTargets := map[string]bool{
			"stdout": true, "stderr": true, "split": true,
		}
		if !validTargets[cfg.Console.Target] {
			return fmt.Errorf("invalid console target: %s", cfg.Console.Target)
		}
		if cfg.Console.Format != "" && cfg.Console.Format != "txt" && cfg.Console.Format != "json" {
			return fmt.Errorf("invalid console format: %s", cfg.Console.Format)
		}
	}

	return nil
}

func validateFacility(cfg *FacilityConfig) error {
	if _, err := core.ParseLevel(cfg.DefaultLevel); err != nil {
		return err
	}
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive: %d", cfg.QueueCapacity)
	}
	if cfg.CollapseRepeated {
		if cfg.RepeatThreshold < 1 {
			return fmt.Errorf("repeat_threshold must be positive: %d", cfg.RepeatThreshold)
		}
		if cfg.FlushPeriodMS < 1 {
			return fmt.Errorf("flush_period_ms must be positive: %d", cfg.FlushPeriodMS)
		}
	}
	return nil
}

func validateBackend(index int, b *BackendConfig, names map[string]bool, ports map[int64]string) error {
	if err := lconfig.NonEmpty(b.Name); err != nil {
		return fmt.Errorf("backend %d: missing name", index)
	}
	if names[b.Name] {
		return fmt.Errorf("backend %d: duplicate name '%s'", index, b.Name)
	}
	names[b.Name] = true

	if _, err := b.ParsedLevel(); err != nil {
		return fmt.Errorf("backend '%s': %w", b.Name, err)
	}

	switch b.Format {
	case "", "txt", "text", "json", "raw":
	default:
		return fmt.Errorf("backend '%s': invalid format '%s' (valid: txt, json, raw)", b.Name, b.Format)
	}
	if b.FormatOptions != nil && b.FormatOptions.Template != "" {
		// Fail at load time instead of at first entry
		if _, err := format.New("txt", *b.FormatOptions, nil, nil); err != nil {
			return fmt.Errorf("backend '%s': %w", b.Name, err)
		}
	}

	for i, f := range b.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("backend '%s' filter[%d]: %w", b.Name, i, err)
		}
	}

	switch b.Type {
	case BackendConsole:
		if b.Console != nil {
			switch b.Console.Target {
			case "", "stdout", "stderr", "split":
			default:
				return fmt.Errorf("backend '%s': invalid console target '%s'", b.Name, b.Console.Target)
			}
		}
	case BackendFile:
		if b.File == nil {
			return fmt.Errorf("backend '%s': file backend requires a [file] block", b.Name)
		}
		if err := lconfig.NonEmpty(b.File.Directory); err != nil {
			return fmt.Errorf("backend '%s': file directory: %w", b.Name, err)
		}
		if b.File.MaxSizeMB < 0 || b.File.MaxTotalSizeMB < 0 || b.File.RetentionHours < 0 {
			return fmt.Errorf("backend '%s': file limits must not be negative", b.Name)
		}
	case BackendMemory:
		if b.Memory != nil && b.Memory.Capacity < 0 {
			return fmt.Errorf("backend '%s': memory capacity must not be negative", b.Name)
		}
	case BackendHTTP:
		if b.HTTP == nil {
			return fmt.Errorf("backend '%s': http backend requires an [http] block", b.Name)
		}
		if err := validateListener(b.Name, b.HTTP.Host, b.HTTP.Port, ports); err != nil {
			return err
		}
		if b.HTTP.StreamPath != "" && b.HTTP.StreamPath == b.HTTP.StatusPath {
			return fmt.Errorf("backend '%s': stream and status paths must differ", b.Name)
		}
		if b.HTTP.RateLimit != nil && (b.HTTP.RateLimit.RequestsPerSecond <= 0 || b.HTTP.RateLimit.Burst < 1) {
			return fmt.Errorf("backend '%s': rate_limit requires positive requests_per_second and burst", b.Name)
		}
		if err := b.HTTP.Auth.Validate(); err != nil {
			return fmt.Errorf("backend '%s': auth: %w", b.Name, err)
		}
	case BackendTCP:
		if b.TCP == nil {
			return fmt.Errorf("backend '%s': tcp backend requires a [tcp] block", b.Name)
		}
		if err := validateListener(b.Name, b.TCP.Host, b.TCP.Port, ports); err != nil {
			return err
		}
	default:
		return fmt.Errorf("backend '%s': unknown type '%s' (valid: console, file, memory, http, tcp)", b.Name, b.Type)
	}

	return nil
}

func validateListener(name, host string, port int64, ports map[int64]string) error {
	if err := lconfig.Port(port); err != nil {
		return fmt.Errorf("backend '%s': %w", name, err)
	}
	if owner, taken := ports[port]; taken {
		return fmt.Errorf("backend '%s': port %d already used by backend '%s'", name, port, owner)
	}
	ports[port] = name

	if host != "" && host != "0.0.0.0" && host != "localhost" {
		if err := lconfig.IPAddress(host); err != nil {
			return fmt.Errorf("backend '%s': %w", name, err)
		}
	}
	return nil
}
