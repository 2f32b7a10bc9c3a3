// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/netutil"
	"grimm.is/wlanguard/internal/qos"
)

// Action names recorded in the log.
const (
	ActionBlockIP        = "block_ip"
	ActionBlockMAC       = "block_mac"
	ActionBlockDeauth    = "block_deauth"
	ActionRateLimit      = "rate_limit"
	ActionFlushNeighbors = "flush_neighbors"
	ActionSysctl         = "set_sysctl"
	ActionHardenConfig   = "harden_config"
	ActionRestoreConfig  = "restore_config"
	ActionRestartService = "restart_service"
	ActionDisableAuth    = "disable_auth"
	ActionEnableAuth     = "enable_auth"
	ActionRedirect       = "redirect"
	ActionPatchSQL       = "patch_sql"
	ActionFlushRules     = "flush_rules"
	ActionFlushRules6    = "flush_rules6"
	ActionFlushNAT       = "flush_nat"
	ActionKernelReset    = "kernel_reset"
	ActionClearShaping   = "clear_shaping"
	ActionTruncateLog    = "truncate_log"
	ActionResetComplete  = "reset_complete"
)

// BlockIP drops inbound traffic from ip.
func (t *Toolkit) BlockIP(ctx context.Context, ip string) StepResult {
	s := step{action: ActionBlockIP, resource: resFilter, details: map[string]string{"ip": ip}}

	parsed, err := netutil.ParseIP(ip)
	if err != nil {
		s.invalid = err
		return t.invoke(ctx, s)
	}

	if t.kernelMode() {
		s.resource = resKernel
		t.kernelOp(&s, func() error { return t.kern.BlockIP(parsed) })
		return t.invoke(ctx, s)
	}

	tool := t.cfg.Tools.PacketFilter
	if parsed.To4() == nil {
		s.resource, tool = resFilter6, t.cfg.Tools.PacketFilter6
	}
	t.command(&s, tool, "-A", "INPUT", "-s", parsed.String(), "-j", "DROP")
	return t.invoke(ctx, s)
}

// BlockMAC drops inbound frames from mac.
func (t *Toolkit) BlockMAC(ctx context.Context, mac string) StepResult {
	return t.blockMAC(ctx, ActionBlockMAC, mac)
}

func (t *Toolkit) blockMAC(ctx context.Context, action, mac string) StepResult {
	s := step{action: action, resource: resFilter, details: map[string]string{"mac": mac}}

	hw, err := netutil.ParseMAC(mac)
	if err != nil {
		s.invalid = err
		return t.invoke(ctx, s)
	}
	s.details["mac"] = hw.String()
	if netutil.IsLocallyAdministered(hw) {
		s.details["locally_administered"] = "true"
	}

	if t.kernelMode() {
		s.resource = resKernel
		t.kernelOp(&s, func() error { return t.kern.BlockMAC(hw) })
		return t.invoke(ctx, s)
	}
	t.command(&s, t.cfg.Tools.PacketFilter, "-A", "INPUT", "-m", "mac", "--mac-source", hw.String(), "-j", "DROP")
	return t.invoke(ctx, s)
}

// BlockDeauth turns on management frame protection when the deauth guard
// tool exists, and otherwise falls back to a packet-filter rule on mac.
// Either way exactly one entry is written.
func (t *Toolkit) BlockDeauth(ctx context.Context, iface, mac string) StepResult {
	guard := t.cfg.Tools.DeauthGuard
	if t.prober.Available(guard) {
		s := step{action: ActionBlockDeauth, resource: resAP(iface), details: map[string]string{
			"interface": iface,
			"method":    "pmf",
		}}
		t.command(&s, guard, "-i", iface, "set", "ieee80211w", "2")
		return t.invoke(ctx, s)
	}

	t.logger.Debug("deauth guard unavailable, falling back to packet filter", "tool", guard)
	return t.blockMAC(ctx, ActionBlockDeauth, mac)
}

// RateLimit installs a token bucket filter on iface.
func (t *Toolkit) RateLimit(ctx context.Context, iface, rate string) StepResult {
	s := step{action: ActionRateLimit, resource: resTC(iface), details: map[string]string{
		"interface": iface,
		"rate":      rate,
	}}

	tbf, err := qos.NewTBF(iface, rate)
	if err != nil {
		s.invalid = err
		return t.invoke(ctx, s)
	}

	if t.kernelMode() {
		t.kernelOp(&s, func() error { return t.kern.Shape(tbf) })
		return t.invoke(ctx, s)
	}
	t.command(&s, t.cfg.Tools.TrafficControl, tbf.ReplaceArgs()...)
	return t.invoke(ctx, s)
}

// ClearShaping removes the root qdisc from iface.
func (t *Toolkit) ClearShaping(ctx context.Context, iface string) StepResult {
	s := step{action: ActionClearShaping, resource: resTC(iface), details: map[string]string{"interface": iface}}
	if t.kernelMode() {
		t.kernelOp(&s, func() error { return t.kern.Unshape(iface) })
		return t.invoke(ctx, s)
	}
	t.command(&s, t.cfg.Tools.TrafficControl, qos.DeleteArgs(iface)...)
	return t.invoke(ctx, s)
}

// FlushNeighbors clears the neighbor (ARP) cache of iface, or of every
// interface when iface is empty.
func (t *Toolkit) FlushNeighbors(ctx context.Context, iface string) StepResult {
	s := step{action: ActionFlushNeighbors, resource: resNeigh, details: map[string]string{}}
	if iface != "" {
		s.details["interface"] = iface
	}

	if t.kernelMode() {
		t.kernelOp(&s, func() error { return t.kern.FlushNeighbors(iface) })
		return t.invoke(ctx, s)
	}

	args := []string{"neigh", "flush", "all"}
	if iface != "" {
		args = []string{"neigh", "flush", "dev", iface}
	}
	t.command(&s, t.cfg.Tools.Neighbor, args...)
	return t.invoke(ctx, s)
}

// ToggleSysctl writes value to a kernel parameter. The control file existing
// is the capability.
func (t *Toolkit) ToggleSysctl(ctx context.Context, key, value string) StepResult {
	path := t.sysctl.Path(key)
	s := step{action: ActionSysctl, resource: resSysctl(key), details: map[string]string{
		"key":   key,
		"value": value,
		"path":  path,
	}}
	s.available = func() bool { return t.exists(path) }
	s.apply = func(context.Context) error { return t.sysctl.Write(key, value) }
	return t.invoke(ctx, s)
}

// RewriteServiceConfig sets directives in a key=value service config. When
// the file is absent a hardened copy is written under the state directory
// and the step is simulated.
func (t *Toolkit) RewriteServiceConfig(ctx context.Context, path string, directives []string) StepResult {
	s := step{action: ActionHardenConfig, resource: resFile(path), details: map[string]string{
		"path":       path,
		"directives": strings.Join(directives, ","),
	}}

	s.available = func() bool { return t.exists(path) }
	s.simulate = func() {
		copyPath := filepath.Join(t.cfg.StateDir, filepath.Base(path)+".simulated")
		body, _ := hardenConfig("", directives)
		if err := t.fs.MkdirAll(t.cfg.StateDir, 0o755); err == nil {
			if err := afero.WriteFile(t.fs, copyPath, []byte(body), 0o644); err == nil {
				s.details["simulated_copy"] = copyPath
				return
			}
		}
		t.logger.Debug("could not write simulated config copy", "path", copyPath)
	}
	s.apply = func(context.Context) error {
		data, err := afero.ReadFile(t.fs, path)
		if err != nil {
			return errors.Wrapf(err, errors.KindExecution, "read %s", path)
		}
		body, changed := hardenConfig(string(data), directives)
		s.details["changed"] = strconv.FormatBool(changed)
		if !changed {
			return nil
		}
		info, err := t.fs.Stat(path)
		if err != nil {
			return errors.Wrapf(err, errors.KindExecution, "stat %s", path)
		}
		if ok, _ := afero.Exists(t.fs, path+".bak"); !ok {
			if err := afero.WriteFile(t.fs, path+".bak", data, info.Mode().Perm()); err != nil {
				return errors.Wrapf(err, errors.KindExecution, "backup %s", path)
			}
		}
		if err := afero.WriteFile(t.fs, path, []byte(body), info.Mode().Perm()); err != nil {
			return errors.Wrapf(err, errors.KindExecution, "write %s", path)
		}
		return nil
	}
	return t.invoke(ctx, s)
}

// RestoreServiceConfig puts back the <path>.bak written by
// RewriteServiceConfig and removes the backup.
func (t *Toolkit) RestoreServiceConfig(ctx context.Context, path string) StepResult {
	backup := path + ".bak"
	s := step{action: ActionRestoreConfig, resource: resFile(path), details: map[string]string{
		"path":   path,
		"backup": backup,
	}}
	s.available = func() bool { return t.exists(backup) }
	s.apply = func(context.Context) error {
		data, err := afero.ReadFile(t.fs, backup)
		if err != nil {
			return errors.Wrapf(err, errors.KindExecution, "read %s", backup)
		}
		mode := os.FileMode(0o644)
		if info, err := t.fs.Stat(backup); err == nil {
			mode = info.Mode().Perm()
		}
		if err := afero.WriteFile(t.fs, path, data, mode); err != nil {
			return errors.Wrapf(err, errors.KindExecution, "write %s", path)
		}
		if err := t.fs.Remove(backup); err != nil {
			return errors.Wrapf(err, errors.KindExecution, "remove %s", backup)
		}
		return nil
	}
	return t.invoke(ctx, s)
}

// RestartService restarts a system service through the service manager.
func (t *Toolkit) RestartService(ctx context.Context, name string) StepResult {
	s := step{action: ActionRestartService, resource: resService(name), details: map[string]string{"service": name}}
	t.command(&s, t.cfg.Tools.ServiceManager, "restart", name)
	return t.invoke(ctx, s)
}

// SetAPAuth enables or disables client authentication on an access point.
// Disabled interfaces are remembered so Reset can re-enable them.
func (t *Toolkit) SetAPAuth(ctx context.Context, iface string, enabled bool) StepResult {
	action, verb := ActionDisableAuth, "disable"
	if enabled {
		action, verb = ActionEnableAuth, "enable"
	}
	s := step{action: action, resource: resAP(iface), details: map[string]string{"interface": iface}}
	if strings.TrimSpace(iface) == "" {
		s.invalid = errors.New(errors.KindValidation, "interface is required")
		return t.invoke(ctx, s)
	}

	t.command(&s, t.cfg.Tools.APControl, "-i", iface, verb)
	res := t.invoke(ctx, s)
	if res.Result != actionlog.Simulated {
		t.markDisabled(iface, !enabled)
	}
	return res
}

// Redirect DNATs all traffic from ip to the honeypot address.
func (t *Toolkit) Redirect(ctx context.Context, ip, honeypot string) StepResult {
	s := step{action: ActionRedirect, resource: resNAT, details: map[string]string{
		"ip":       ip,
		"honeypot": honeypot,
	}}

	src, err := netutil.ParseIP(ip)
	if err != nil {
		s.invalid = err
		return t.invoke(ctx, s)
	}
	dst := net.ParseIP(honeypot)
	if dst == nil {
		s.invalid = errors.Errorf(errors.KindValidation, "invalid honeypot address %q", honeypot)
		return t.invoke(ctx, s)
	}

	t.command(&s, t.cfg.Tools.PacketFilter,
		"-t", "nat", "-A", "PREROUTING", "-s", src.String(), "-j", "DNAT", "--to-destination", dst.String())
	return t.invoke(ctx, s)
}

// PatchInjectionSurface sanitizes request-parameter reads under dir. A
// missing directory, or one with nothing to patch, is simulated. The scan is
// the capability probe.
func (t *Toolkit) PatchInjectionSurface(ctx context.Context, dir string) StepResult {
	s := step{action: ActionPatchSQL, resource: resWebapp(dir), details: map[string]string{"dir": dir}}

	s.available = func() bool {
		vulnerable, err := t.patcher.Scan(dir)
		if err != nil {
			t.logger.WithError(err).Warn("webapp scan failed", "dir", dir)
		}
		s.details["vulnerable_files"] = strconv.Itoa(len(vulnerable))
		return len(vulnerable) > 0
	}
	s.apply = func(context.Context) error {
		patched, err := t.patcher.Patch(dir)
		s.details["patched_files"] = strconv.Itoa(len(patched))
		if err != nil {
			return errors.Wrapf(err, errors.KindExecution, "patch %s", dir)
		}
		return nil
	}
	return t.invoke(ctx, s)
}

// FlushRules removes every rule from the filter table.
func (t *Toolkit) FlushRules(ctx context.Context) StepResult {
	s := step{action: ActionFlushRules, resource: resFilter, details: map[string]string{}}
	t.command(&s, t.cfg.Tools.PacketFilter, "-F")
	return t.invoke(ctx, s)
}

// FlushRules6 removes every rule from the IPv6 filter table.
func (t *Toolkit) FlushRules6(ctx context.Context) StepResult {
	s := step{action: ActionFlushRules6, resource: resFilter6, details: map[string]string{}}
	t.command(&s, t.cfg.Tools.PacketFilter6, "-F")
	return t.invoke(ctx, s)
}

// FlushNAT removes every rule from the nat table.
func (t *Toolkit) FlushNAT(ctx context.Context) StepResult {
	s := step{action: ActionFlushNAT, resource: resNAT, details: map[string]string{}}
	t.command(&s, t.cfg.Tools.PacketFilter, "-t", "nat", "-F")
	return t.invoke(ctx, s)
}

// KernelReset removes everything the kernel backend installed.
func (t *Toolkit) KernelReset(ctx context.Context) StepResult {
	s := step{action: ActionKernelReset, resource: resKernel, details: map[string]string{}}
	t.kernelOp(&s, t.kern.Reset)
	return t.invoke(ctx, s)
}
