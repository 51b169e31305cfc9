// FILE: src/internal/filter/chain.go
package filter

import (
	"fmt"
	"sync/atomic"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain applies filters in order; an entry passes when every filter passes.
// A nil chain passes everything.
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	totalProcessed atomic.Uint64
	totalPassed    atomic.Uint64
}

// NewChain returns nil for an empty configuration
func NewChain(configs []Config, names Resolver, logger *log.Logger) (*Chain, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	chain := &Chain{
		filters: make([]*Filter, 0, len(configs)),
		logger:  logger,
	}
	for i, cfg := range configs {
		f, err := NewFilter(cfg, names, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, f)
	}

	logger.Debug("msg", "Filter chain created",
		"component", "filter_chain",
		"filter_count", len(configs))
	return chain, nil
}

func (c *Chain) Apply(entry core.LogEntry) bool {
	if c == nil {
		return true
	}
	c.totalProcessed.Add(1)

	for _, f := range c.filters {
		if !f.Apply(entry) {
			return false
		}
	}

	c.totalPassed.Add(1)
	return true
}

func (c *Chain) GetStats() map[string]any {
	if c == nil {
		return map[string]any{"filter_count": 0}
	}

	filterStats := make([]map[string]any, len(c.filters))
	for i, f := range c.filters {
		filterStats[i] = f.GetStats()
	}

	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": c.totalProcessed.Load(),
		"total_passed":    c.totalPassed.Load(),
		"filters":         filterStats,
	}
}
