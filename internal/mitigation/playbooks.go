// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mitigation

import (
	"context"
)

// run collects the steps and outcome tags of one playbook execution.
type run struct {
	tk       *Toolkit
	strict   bool
	outcomes []Outcome
	steps    []StepResult
}

func (r *run) do(s StepResult) StepResult {
	r.steps = append(r.steps, s)
	return s
}

// emit appends o. In strict mode a failed feeding step suppresses the tag.
func (r *run) emit(o Outcome, feeding ...StepResult) {
	if r.strict {
		for _, s := range feeding {
			if s.Failed() {
				return
			}
		}
	}
	r.outcomes = append(r.outcomes, o)
}

func (m *Mitigator) iface(pc PacketContext) string {
	return pc.getOr(KeyInterface, m.cfg.Interface)
}

// rogueAP blocks the impostor's hardware address and flushes cached
// neighbor bindings it may have poisoned.
func (m *Mitigator) rogueAP(ctx context.Context, r *run, pc PacketContext) {
	block := r.do(r.tk.BlockMAC(ctx, pc.Get(KeyMAC)))
	flush := r.do(r.tk.FlushNeighbors(ctx, pc.Get(KeyInterface)))
	r.emit(OutcomeBlock, block)
	r.emit(OutcomeFlushARP, flush)
}

func (m *Mitigator) deauthFlood(ctx context.Context, r *run, pc PacketContext) {
	s := r.do(r.tk.BlockDeauth(ctx, m.iface(pc), pc.Get(KeyMAC)))
	r.emit(OutcomeBlockDeauth, s)
}

// botnetDDoS executes block, shape, syncookies but reports the rate limit first.
func (m *Mitigator) botnetDDoS(ctx context.Context, r *run, pc PacketContext) {
	ip := pc.Get(KeyIP)
	if ip == "" {
		if mac := pc.Get(KeyMAC); mac != "" {
			if resolved, ok := r.tk.ResolveIP(ctx, mac); ok {
				m.logger.Info("resolved attacker address from neighbor table", "mac", mac, "ip", resolved)
				ip = resolved
			}
		}
	}

	block := r.do(r.tk.BlockIP(ctx, ip))
	limit := r.do(r.tk.RateLimit(ctx, m.iface(pc), pc.getOr(KeyRate, m.cfg.Mitigation.DefaultRate)))
	syn := r.do(r.tk.ToggleSysctl(ctx, m.cfg.Mitigation.SynCookies, "1"))

	r.emit(OutcomeRateLimit, limit)
	r.emit(OutcomeBlockIP, block)
	r.emit(OutcomeProtectSYN, syn)
}

func (m *Mitigator) sqlInjection(ctx context.Context, r *run, pc PacketContext) {
	s := r.do(r.tk.PatchInjectionSurface(ctx, pc.getOr(KeyWebappDir, m.cfg.Webapp.Dir)))
	r.emit(OutcomePatchSQL, s)
}

// reassociationFlood hardens hostapd, restarts it and suspends authentication
// until Reset. A supplied MAC is blocked as well.
func (m *Mitigator) reassociationFlood(ctx context.Context, r *run, pc PacketContext) {
	harden := r.do(r.tk.RewriteServiceConfig(ctx, m.cfg.Hostapd.ConfigPath, m.cfg.Hostapd.Hardening))
	restart := r.do(r.tk.RestartService(ctx, m.cfg.Hostapd.Service))
	auth := r.do(r.tk.SetAPAuth(ctx, m.iface(pc), false))
	if mac := pc.Get(KeyMAC); mac != "" {
		r.do(r.tk.BlockMAC(ctx, mac))
	}

	r.emit(OutcomeDisableAuth, auth)
	r.emit(OutcomeHostapdConfig, harden, restart)
}

func (m *Mitigator) portScan(ctx context.Context, r *run, pc PacketContext) {
	s := r.do(r.tk.BlockIP(ctx, pc.Get(KeyIP)))
	r.emit(OutcomeBlockIP, s)
}

func (m *Mitigator) malware(ctx context.Context, r *run, pc PacketContext) {
	s := r.do(r.tk.Redirect(ctx, pc.Get(KeyIP), pc.getOr(KeyHoneypot, m.cfg.Mitigation.Honeypot)))
	r.emit(OutcomeRedirect, s)
}
