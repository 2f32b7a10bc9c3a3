// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/metrics"
)

// Mitigator dispatches classified threats to playbooks. It is safe for
// concurrent use.
type Mitigator struct {
	tk      *Toolkit
	cfg     *config.Config
	metrics *metrics.Registry
	logger  *logging.Logger
	hooks   []ReportHook
}

// ReportHook observes every finished dispatch. Hooks run synchronously on
// the dispatching goroutine, after all steps have been logged.
type ReportHook func(ctx context.Context, rep Report)

// New creates a Mitigator around a toolkit.
func New(tk *Toolkit) *Mitigator {
	return &Mitigator{
		tk:      tk,
		cfg:     tk.cfg,
		metrics: tk.metrics,
		logger:  tk.logger,
	}
}

// OnReport registers a hook. Register hooks before the first dispatch.
func (m *Mitigator) OnReport(h ReportHook) {
	m.hooks = append(m.hooks, h)
}

func (m *Mitigator) notify(ctx context.Context, rep Report) {
	for _, h := range m.hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					m.logger.Error("report hook panicked", "panic", fmt.Sprint(p))
				}
			}()
			h(ctx, rep)
		}()
	}
}

// Toolkit returns the underlying toolkit.
func (m *Mitigator) Toolkit() *Toolkit { return m.tk }

// Handle runs the playbook for category and returns its outcome tags. It
// never fails: unknown categories yield [PASS] and step errors are recorded
// in the action log only.
func (m *Mitigator) Handle(ctx context.Context, category string, pc PacketContext) []Outcome {
	return m.HandleReport(ctx, category, pc).Outcomes
}

// HandleReport is Handle with per-step detail. Cancelling ctx does not cut
// the playbook short; each process is bounded by the runner timeout alone.
func (m *Mitigator) HandleReport(ctx context.Context, category string, pc PacketContext) (rep Report) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	cat := ParseCategory(category)
	label := string(cat)
	if cat == CategoryUnknown {
		label = category
	}
	r := &run{tk: m.tk.withThreat(label), strict: m.cfg.Strict}

	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("playbook panicked", "threat", label, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
		}
		rep = Report{Category: cat, Outcomes: r.outcomes, Steps: r.steps, Duration: time.Since(start)}
		if rep.Outcomes == nil {
			rep.Outcomes = []Outcome{}
		}
		if rep.Steps == nil {
			rep.Steps = []StepResult{}
		}
		for _, o := range rep.Outcomes {
			m.metrics.Outcome(label, string(o))
		}
		m.notify(ctx, rep)
	}()

	if pc == nil {
		pc = PacketContext{}
	}

	switch cat {
	case CategoryRogueAP:
		m.rogueAP(ctx, r, pc)
	case CategoryDeauthFlood:
		m.deauthFlood(ctx, r, pc)
	case CategoryBotnetDDoS:
		m.botnetDDoS(ctx, r, pc)
	case CategorySQLInjection:
		m.sqlInjection(ctx, r, pc)
	case CategoryReassociationFlood:
		m.reassociationFlood(ctx, r, pc)
	case CategoryPortScan:
		m.portScan(ctx, r, pc)
	case CategoryMalware:
		m.malware(ctx, r, pc)
	case CategoryUnknown:
		fallthrough
	default:
		m.logger.Warn("no playbook for threat category", "threat", category)
		r.outcomes = []Outcome{OutcomePass}
	}
	return rep
}
