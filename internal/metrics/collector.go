// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"sync"
	"time"

	"grimm.is/wlanguard/internal/logging"
)

// CounterSource reports per-rule packet counts (kernel.Kernel satisfies it).
type CounterSource interface {
	Counters() (map[string]uint64, error)
}

// Collector polls drop-rule counters into the registry.
type Collector struct {
	registry *Registry
	source   CounterSource
	logger   *logging.Logger
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector. Call Start to begin polling.
func NewCollector(registry *Registry, source CounterSource, logger *logging.Logger, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	return &Collector{
		registry: registry,
		source:   source,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins polling in the background.
func (c *Collector) Start() {
	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.Collect()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops polling and waits for the loop to exit.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

// Collect reads the counters once.
func (c *Collector) Collect() {
	if c.registry == nil || c.source == nil {
		return
	}
	counters, err := c.source.Counters()
	if err != nil {
		c.logger.Debug("rule counters unavailable", "error", err)
		return
	}
	for rule, packets := range counters {
		c.registry.rulePackets.WithLabelValues(rule).Set(float64(packets))
	}
}
