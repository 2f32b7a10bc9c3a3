// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mitigation maps classified threats to playbooks of host-level
// countermeasures and records every step in the action log.
package mitigation

import (
	"strings"
	"time"

	"grimm.is/wlanguard/internal/actionlog"
)

// Category is a classified threat type.
type Category string

const (
	CategoryUnknown            Category = ""
	CategoryRogueAP            Category = "rogue_ap"
	CategoryDeauthFlood        Category = "deauth_flood"
	CategoryBotnetDDoS         Category = "botnet_ddos"
	CategorySQLInjection       Category = "sql_injection"
	CategoryReassociationFlood Category = "reassociation_flood"
	CategoryPortScan           Category = "port_scan"
	CategoryMalware            Category = "malware"
)

var knownCategories = []Category{
	CategoryRogueAP,
	CategoryDeauthFlood,
	CategoryBotnetDDoS,
	CategorySQLInjection,
	CategoryReassociationFlood,
	CategoryPortScan,
	CategoryMalware,
}

// Categories lists every category with a playbook.
func Categories() []Category {
	return append([]Category(nil), knownCategories...)
}

// Labels emitted by upstream classifiers for the same threats.
var categoryAliases = map[string]Category{
	"ddos":         CategoryBotnetDDoS,
	"ddos_attack":  CategoryBotnetDDoS,
	"syn_flood":    CategoryBotnetDDoS,
	"udp_flood":    CategoryBotnetDDoS,
	"nmap_scan":    CategoryPortScan,
	"stealth_scan": CategoryPortScan,
	"trojan":       CategoryMalware,
	"ransomware":   CategoryMalware,
}

// ParseCategory maps a classifier label or one of its aliases to a
// Category. Matching ignores case and surrounding space; anything else is
// CategoryUnknown.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range knownCategories {
		if string(c) == s {
			return c
		}
	}
	if c, ok := categoryAliases[s]; ok {
		return c
	}
	return CategoryUnknown
}

// Outcome tags what a playbook exercised.
type Outcome string

const (
	OutcomeBlock         Outcome = "BLOCK"
	OutcomeFlushARP      Outcome = "FLUSH_ARP"
	OutcomeBlockDeauth   Outcome = "BLOCK_DEAUTH"
	OutcomeRateLimit     Outcome = "RATE_LIMIT"
	OutcomeBlockIP       Outcome = "BLOCK_IP"
	OutcomeProtectSYN    Outcome = "PROTECT_SYN"
	OutcomePatchSQL      Outcome = "PATCH_SQL"
	OutcomeDisableAuth   Outcome = "DISABLE_AUTH"
	OutcomeHostapdConfig Outcome = "HOSTAPD_CONFIG_PROTECTION"
	OutcomeRedirect      Outcome = "REDIRECT"
	OutcomePass          Outcome = "PASS"
)

// PacketContext carries the fields of one detection event. It is never modified.
type PacketContext map[string]string

// Context keys. Aliases used by packet dissectors are accepted too.
const (
	KeyIP        = "ip"
	KeyMAC       = "mac"
	KeyInterface = "interface"
	KeyRate      = "rate"
	KeyWebappDir = "webapp_dir"
	KeyHoneypot  = "honeypot"
)

var keyAliases = map[string][]string{
	KeyIP:  {"ip.src"},
	KeyMAC: {"wlan.sa"},
}

// Get returns the first non-empty value for key or one of its aliases.
func (pc PacketContext) Get(key string) string {
	if v := strings.TrimSpace(pc[key]); v != "" {
		return v
	}
	for _, alias := range keyAliases[key] {
		if v := strings.TrimSpace(pc[alias]); v != "" {
			return v
		}
	}
	return ""
}

func (pc PacketContext) getOr(key, fallback string) string {
	if v := pc.Get(key); v != "" {
		return v
	}
	return fallback
}

// StepResult is the outcome of a single primitive.
type StepResult struct {
	Action   string           `json:"action"`
	Resource string           `json:"resource,omitempty"`
	Result   actionlog.Result `json:"result"`
	Error    string           `json:"error,omitempty"`
	EntryID  string           `json:"entry_id"`

	err error
}

// Err returns the execution or validation error, if any.
func (s StepResult) Err() error { return s.err }

// Failed reports whether the step ended as failed.
func (s StepResult) Failed() bool { return s.Result == actionlog.Failed }

// Report is the full account of one dispatch.
type Report struct {
	Category Category      `json:"category"`
	Outcomes []Outcome     `json:"outcomes"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}
