// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package host

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"grimm.is/wlanguard/internal/errors"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec under a per-command timeout.
type ExecRunner struct {
	Timeout time.Duration
	// UseSudo prefixes commands with "sudo -n" so a missing password fails fast.
	UseSudo bool
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin, argv := name, args
	if r.UseSudo {
		bin = "sudo"
		argv = append([]string{"-n", name}, args...)
	}

	cmd := exec.CommandContext(ctx, bin, argv...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if ctx.Err() == context.DeadlineExceeded {
		return out, errors.Attr(errors.Errorf(errors.KindTimeout, "%s timed out after %s", line, timeout), "command", line)
	}
	wrapped := errors.Wrapf(err, errors.KindExecution, "%s failed", line)
	wrapped = errors.Attr(wrapped, "command", line)
	if msg := strings.TrimSpace(string(out)); msg != "" {
		wrapped = errors.Attr(wrapped, "output", msg)
	}
	return out, wrapped
}
