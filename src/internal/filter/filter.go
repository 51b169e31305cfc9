// FILE: src/internal/filter/filter.go
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

const (
	TypeInclude = "include"
	TypeExclude = "exclude"
	LogicOr     = "or"
	LogicAnd    = "and"
)

// Config is one [[backends.filters]] block
type Config struct {
	// "include" passes matching entries, "exclude" drops them
	Type string `toml:"type"`

	// "or" matches any pattern, "and" requires all
	Logic string `toml:"logic"`

	Patterns []string `toml:"patterns"`
}

// Validate checks the block and compiles its patterns
func (c Config) Validate() error {
	switch c.Type {
	case "", TypeInclude, TypeExclude:
	default:
		return fmt.Errorf("invalid filter type '%s' (valid: include, exclude)", c.Type)
	}
	switch c.Logic {
	case "", LogicOr, LogicAnd:
	default:
		return fmt.Errorf("invalid filter logic '%s' (valid: or, and)", c.Logic)
	}
	for i, pattern := range c.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
	}
	return nil
}

// Resolver names entry sources for matching
type Resolver interface {
	TryResolveName(id int) (object, machine string, ok bool)
}

// Filter applies regex patterns to the text "source LEVEL message" of an entry
type Filter struct {
	config   Config
	patterns []*regexp.Regexp
	names    Resolver
	mu       sync.RWMutex
	logger   *log.Logger

	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewFilter compiles cfg. names may be nil, in which case sources match as "#id".
func NewFilter(cfg Config, names Resolver, logger *log.Logger) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Type == "" {
		cfg.Type = TypeInclude
	}
	if cfg.Logic == "" {
		cfg.Logic = LogicOr
	}

	f := &Filter{
		config:   cfg,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		names:    names,
		logger:   logger,
	}
	for _, pattern := range cfg.Patterns {
		f.patterns = append(f.patterns, regexp.MustCompile(pattern))
	}

	logger.Debug("msg", "Filter created",
		"component", "filter",
		"type", cfg.Type,
		"logic", cfg.Logic,
		"pattern_count", len(cfg.Patterns))

	return f, nil
}

// Apply reports whether the entry passes
func (f *Filter) Apply(entry core.LogEntry) bool {
	f.totalProcessed.Add(1)

	f.mu.RLock()
	patterns := f.patterns
	f.mu.RUnlock()

	if len(patterns) == 0 {
		return true
	}

	matched := f.matches(patterns, f.text(entry))
	if matched {
		f.totalMatched.Add(1)
	}

	pass := matched
	if f.config.Type == TypeExclude {
		pass = !matched
	}
	if !pass {
		f.totalDropped.Add(1)
	}
	return pass
}

func (f *Filter) text(entry core.LogEntry) string {
	text := entry.Level.String() + " " + entry.Message
	if entry.SourceID == nil {
		return text
	}
	if f.names != nil {
		if object, machine, ok := f.names.TryResolveName(*entry.SourceID); ok {
			if machine != "" {
				object = machine + "/" + object
			}
			return object + " " + text
		}
	}
	return "#" + strconv.Itoa(*entry.SourceID) + " " + text
}

func (f *Filter) matches(patterns []*regexp.Regexp, text string) bool {
	if f.config.Logic == LogicAnd {
		for _, re := range patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true
	}

	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (f *Filter) GetStats() map[string]any {
	f.mu.RLock()
	patternCount := len(f.patterns)
	f.mu.RUnlock()

	return map[string]any{
		"type":            f.config.Type,
		"logic":           f.config.Logic,
		"pattern_count":   patternCount,
		"total_processed": f.totalProcessed.Load(),
		"total_matched":   f.totalMatched.Load(),
		"total_dropped":   f.totalDropped.Load(),
	}
}

// UpdatePatterns swaps the pattern set; an invalid set leaves the filter unchanged
func (f *Filter) UpdatePatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		compiled = append(compiled, re)
	}

	f.mu.Lock()
	f.patterns = compiled
	f.mu.Unlock()

	f.logger.Info("msg", "Filter patterns updated",
		"component", "filter",
		"pattern_count", len(patterns))
	return nil
}
