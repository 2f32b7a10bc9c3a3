// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"context"
	"strconv"
	"time"

	"grimm.is/wlanguard/internal/actionlog"
)

// ResetOptions overrides the configured reset behaviour.
type ResetOptions struct {
	// Interfaces to clear shaping on. Nil uses the configured list.
	Interfaces []string
	// TruncateLog clears the action log before anything else.
	TruncateLog bool
}

// ResetReport lists what the reset did.
type ResetReport struct {
	Steps     []StepResult  `json:"steps"`
	Truncated int           `json:"truncated"`
	Duration  time.Duration `json:"duration"`
}

// DefaultResetOptions returns the configured reset behaviour.
func (m *Mitigator) DefaultResetOptions() ResetOptions {
	return ResetOptions{
		Interfaces:  append([]string(nil), m.cfg.Reset.Interfaces...),
		TruncateLog: m.cfg.Reset.TruncateLog,
	}
}

// Reset tears down everything mitigation may have installed, independent of
// what was dispatched in this process: packet filters for both families,
// shaping on the reset interfaces, the neighbor cache, a hardened hostapd
// config with a backup, and access points recorded under the state dir.
// Each step is isolated; the final reset_complete entry is always written.
// Like HandleReport it ignores cancellation of ctx.
func (m *Mitigator) Reset(ctx context.Context, opts ResetOptions) ResetReport {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	tk := m.tk.withThreat("reset")
	rep := ResetReport{}

	if opts.TruncateLog {
		rep.Truncated = tk.log.Truncate()
		m.logger.Info("action log truncated", "entries", rep.Truncated)
		tk.log.Append(ActionTruncateLog, "reset", actionlog.Applied, map[string]string{
			"entries": strconv.Itoa(rep.Truncated),
		}, nil)
	}

	ifaces := opts.Interfaces
	if ifaces == nil {
		ifaces = m.cfg.Reset.Interfaces
	}

	guard := func(f func() StepResult) {
		defer func() {
			if p := recover(); p != nil {
				m.logger.Error("reset step panicked", "panic", p)
			}
		}()
		rep.Steps = append(rep.Steps, f())
	}

	guard(func() StepResult { return tk.FlushRules(ctx) })
	guard(func() StepResult { return tk.FlushRules6(ctx) })
	guard(func() StepResult { return tk.FlushNAT(ctx) })
	if tk.kernelMode() {
		guard(func() StepResult { return tk.KernelReset(ctx) })
	}
	for _, iface := range ifaces {
		guard(func() StepResult { return tk.ClearShaping(ctx, iface) })
	}
	guard(func() StepResult { return tk.FlushNeighbors(ctx, "") })
	if hostapd := m.cfg.Hostapd.ConfigPath; tk.exists(hostapd + ".bak") {
		var restored StepResult
		guard(func() StepResult {
			restored = tk.RestoreServiceConfig(ctx, hostapd)
			return restored
		})
		if restored.Result == actionlog.Applied && restored.Err() == nil {
			guard(func() StepResult { return tk.RestartService(ctx, m.cfg.Hostapd.Service) })
		}
	}
	for _, iface := range tk.DisabledAPs() {
		guard(func() StepResult { return tk.SetAPAuth(ctx, iface, true) })
	}

	failed := 0
	for _, s := range rep.Steps {
		if s.Failed() {
			failed++
		}
	}
	tk.log.Append(ActionResetComplete, "reset", actionlog.Applied, map[string]string{
		"steps":  strconv.Itoa(len(rep.Steps)),
		"failed": strconv.Itoa(failed),
	}, nil)
	m.metrics.Reset()

	rep.Duration = time.Since(start)
	m.logger.Info("reset complete", "steps", len(rep.Steps), "failed", failed, "duration", rep.Duration)
	return rep
}
