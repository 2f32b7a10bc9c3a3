// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package notification

import (
	"context"
	"fmt"
	"strings"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/mitigation"
)

// FromReport summarizes a dispatch. ok is false when there is nothing worth
// telling anyone: no steps ran (PASS).
//
// Any failed step makes the notification critical; a countermeasure that
// touched the host makes it a warning; simulation only is info.
func FromReport(rep mitigation.Report) (n Notification, ok bool) {
	if len(rep.Steps) == 0 {
		return Notification{}, false
	}

	level := LevelInfo
	var lines []string
	for _, s := range rep.Steps {
		switch s.Result {
		case actionlog.Failed:
			level = LevelCritical
		case actionlog.Applied:
			if level == LevelInfo {
				level = LevelWarning
			}
		}
		line := fmt.Sprintf("%s: %s", s.Action, s.Result)
		if s.Error != "" {
			line += " (" + s.Error + ")"
		}
		lines = append(lines, line)
	}

	outcomes := make([]string, len(rep.Outcomes))
	for i, o := range rep.Outcomes {
		outcomes[i] = string(o)
	}

	return Notification{
		Title:   fmt.Sprintf("wlanguard: %s mitigated", rep.Category),
		Message: fmt.Sprintf("Outcomes: %s\n%s", strings.Join(outcomes, ", "), strings.Join(lines, "\n")),
		Level:   level,
		Data: map[string]any{
			"category": string(rep.Category),
			"outcomes": outcomes,
			"steps":    len(rep.Steps),
		},
	}, true
}

// NotifyReport queues the summary of rep for delivery and returns at once,
// so a slow channel never holds up a dispatch. It has the signature of a
// mitigation.ReportHook. Call Wait before exiting to let deliveries finish.
func (d *Dispatcher) NotifyReport(ctx context.Context, rep mitigation.Report) {
	n, ok := FromReport(rep)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.Send(ctx, n)
	}()
}

// Wait blocks until every delivery queued by NotifyReport has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}
