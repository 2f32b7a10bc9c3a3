// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package intake reads detection events as JSON lines and dispatches them
// concurrently.
package intake

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/mitigation"
)

// Event is one classified detection.
type Event struct {
	Category string                   `json:"category"`
	Context  mitigation.PacketContext `json:"context"`
}

// Result pairs an input line with its dispatch report.
type Result struct {
	Line   int               `json:"line"`
	Report mitigation.Report `json:"report"`
}

// Dispatcher is the subset of *mitigation.Mitigator intake needs.
type Dispatcher interface {
	HandleReport(ctx context.Context, category string, pc mitigation.PacketContext) mitigation.Report
}

// Stats summarizes a Run.
type Stats struct {
	Dispatched int
	Malformed  int
}

// Runner dispatches events with at most Workers in flight.
type Runner struct {
	Dispatcher Dispatcher
	Workers    int
	Logger     *logging.Logger
}

// Run reads r until EOF or ctx is done. Reports are written to out as JSON
// lines in completion order; out may be nil. Malformed lines are logged and
// skipped.
func (ru *Runner) Run(ctx context.Context, r io.Reader, out io.Writer) (Stats, error) {
	logger := ru.Logger
	if logger == nil {
		logger = logging.WithComponent("intake")
	}
	workers := ru.Workers
	if workers <= 0 {
		workers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu    sync.Mutex
		enc   *json.Encoder
		stats Stats
	)
	if out != nil {
		enc = json.NewEncoder(out)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil || ev.Category == "" {
			stats.Malformed++
			logger.Warn("skipping malformed event", "line", line, "error", err)
			continue
		}

		if gctx.Err() != nil {
			break
		}
		n := line
		stats.Dispatched++
		g.Go(func() error {
			rep := ru.Dispatcher.HandleReport(gctx, ev.Category, ev.Context)
			if enc == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			return enc.Encode(Result{Line: n, Report: rep})
		})
	}

	err := g.Wait()
	if err == nil {
		err = scanner.Err()
	}
	if err == nil {
		err = ctx.Err()
	}
	return stats, err
}
