// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads wlanguard configuration from HCL, JSON or YAML.
package config

import (
	"time"
)

// Backend selects how host-mutating primitives are carried out.
const (
	BackendExec   = "exec"   // external tools found on PATH
	BackendKernel = "kernel" // nftables + netlink, no external tools
	BackendSim    = "sim"    // in-memory kernel, nothing touches the host
)

// Config is the root configuration.
type Config struct {
	// Interface is the default wireless/LAN interface used when a packet context has none.
	Interface string `hcl:"interface,optional" json:"interface,omitempty" yaml:"interface,omitempty"`

	// Strict reports execution failures as failed instead of applied.
	Strict bool `hcl:"strict,optional" json:"strict,omitempty" yaml:"strict,omitempty"`

	Backend        string `hcl:"backend,optional" json:"backend,omitempty" yaml:"backend,omitempty"`
	CommandTimeout string `hcl:"command_timeout,optional" json:"command_timeout,omitempty" yaml:"command_timeout,omitempty"`
	UseSudo        bool   `hcl:"use_sudo,optional" json:"use_sudo,omitempty" yaml:"use_sudo,omitempty"`
	StateDir       string `hcl:"state_dir,optional" json:"state_dir,omitempty" yaml:"state_dir,omitempty"`

	Tools      *ToolsConfig      `hcl:"tools,block" json:"tools,omitempty" yaml:"tools,omitempty"`
	Mitigation *MitigationConfig `hcl:"mitigation,block" json:"mitigation,omitempty" yaml:"mitigation,omitempty"`
	Hostapd    *HostapdConfig    `hcl:"hostapd,block" json:"hostapd,omitempty" yaml:"hostapd,omitempty"`
	Webapp     *WebappConfig     `hcl:"webapp,block" json:"webapp,omitempty" yaml:"webapp,omitempty"`
	Reset      *ResetConfig      `hcl:"reset,block" json:"reset,omitempty" yaml:"reset,omitempty"`
	ActionLog  *ActionLogConfig  `hcl:"action_log,block" json:"action_log,omitempty" yaml:"action_log,omitempty"`
	API        *APIConfig        `hcl:"api,block" json:"api,omitempty" yaml:"api,omitempty"`
	Logging    *LoggingConfig    `hcl:"logging,block" json:"logging,omitempty" yaml:"logging,omitempty"`

	Notifications *NotificationsConfig `hcl:"notifications,block" json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// ToolsConfig names the host executables. Any of them may be swapped for a
// compatible replacement.
type ToolsConfig struct {
	PacketFilter   string `hcl:"packet_filter,optional" json:"packet_filter,omitempty" yaml:"packet_filter,omitempty"`
	PacketFilter6  string `hcl:"packet_filter6,optional" json:"packet_filter6,omitempty" yaml:"packet_filter6,omitempty"`
	TrafficControl string `hcl:"traffic_control,optional" json:"traffic_control,omitempty" yaml:"traffic_control,omitempty"`
	Neighbor       string `hcl:"neighbor,optional" json:"neighbor,omitempty" yaml:"neighbor,omitempty"`
	APControl      string `hcl:"ap_control,optional" json:"ap_control,omitempty" yaml:"ap_control,omitempty"`
	ServiceManager string `hcl:"service_manager,optional" json:"service_manager,omitempty" yaml:"service_manager,omitempty"`
	DeauthGuard    string `hcl:"deauth_guard,optional" json:"deauth_guard,omitempty" yaml:"deauth_guard,omitempty"`
}

// MitigationConfig holds playbook defaults.
type MitigationConfig struct {
	DefaultRate string `hcl:"default_rate,optional" json:"default_rate,omitempty" yaml:"default_rate,omitempty"`
	Honeypot    string `hcl:"honeypot,optional" json:"honeypot,omitempty" yaml:"honeypot,omitempty"`
	SynCookies  string `hcl:"syn_cookies_key,optional" json:"syn_cookies_key,omitempty" yaml:"syn_cookies_key,omitempty"`
	SysctlRoot  string `hcl:"sysctl_root,optional" json:"sysctl_root,omitempty" yaml:"sysctl_root,omitempty"`
	NFTable     string `hcl:"nft_table,optional" json:"nft_table,omitempty" yaml:"nft_table,omitempty"`
}

// HostapdConfig locates the access-point daemon.
type HostapdConfig struct {
	ConfigPath string   `hcl:"config_path,optional" json:"config_path,omitempty" yaml:"config_path,omitempty"`
	Service    string   `hcl:"service,optional" json:"service,omitempty" yaml:"service,omitempty"`
	Hardening  []string `hcl:"hardening,optional" json:"hardening,omitempty" yaml:"hardening,omitempty"`
}

// WebappConfig describes the application scanned by the injection playbook.
type WebappConfig struct {
	Dir        string   `hcl:"dir,optional" json:"dir,omitempty" yaml:"dir,omitempty"`
	Extensions []string `hcl:"extensions,optional" json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// ResetConfig controls the teardown procedure.
type ResetConfig struct {
	Interfaces  []string `hcl:"interfaces,optional" json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	TruncateLog bool     `hcl:"truncate_log,optional" json:"truncate_log,omitempty" yaml:"truncate_log,omitempty"`
}

// ActionLogConfig selects where drained action log entries are persisted.
type ActionLogConfig struct {
	SQLitePath    string `hcl:"sqlite_path,optional" json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	JSONLPath     string `hcl:"jsonl_path,optional" json:"jsonl_path,omitempty" yaml:"jsonl_path,omitempty"`
	FlushInterval string `hcl:"flush_interval,optional" json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty" yaml:"listen,omitempty"`
	Workers int    `hcl:"workers,optional" json:"workers,omitempty" yaml:"workers,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string        `hcl:"level,optional" json:"level,omitempty" yaml:"level,omitempty"`
	JSON   bool          `hcl:"json,optional" json:"json,omitempty" yaml:"json,omitempty"`
	Syslog *SyslogConfig `hcl:"syslog,block" json:"syslog,omitempty" yaml:"syslog,omitempty"`
}

// SyslogConfig mirrors logging.SyslogConfig for file decoding.
type SyslogConfig struct {
	Enabled  bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Host     string `hcl:"host,optional" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `hcl:"port,optional" json:"port,omitempty" yaml:"port,omitempty"`
	Protocol string `hcl:"protocol,optional" json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Tag      string `hcl:"tag,optional" json:"tag,omitempty" yaml:"tag,omitempty"`
	Facility int    `hcl:"facility,optional" json:"facility,omitempty" yaml:"facility,omitempty"`
}

// NotificationsConfig routes mitigation reports to operators.
type NotificationsConfig struct {
	Enabled bool `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// RateLimit suppresses repeats of the same title per channel within the window.
	RateLimit string                `hcl:"rate_limit,optional" json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Channels  []NotificationChannel `hcl:"channel,block" json:"channels,omitempty" yaml:"channels,omitempty"`
}

// NotificationChannel is one delivery target.
//
//	channel "ops" {
//	  type        = "slack"
//	  webhook_url = "https://hooks.slack.com/..."
//	  level       = "warning"
//	}
type NotificationChannel struct {
	Name    string `hcl:"name,label" json:"name" yaml:"name"`
	Type    string `hcl:"type" json:"type" yaml:"type"` // webhook, slack, discord, ntfy, email
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `hcl:"level,optional" json:"level,omitempty" yaml:"level,omitempty"` // minimum level: info, warning, critical

	WebhookURL string            `hcl:"webhook_url,optional" json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	Headers    map[string]string `hcl:"headers,optional" json:"headers,omitempty" yaml:"headers,omitempty"`

	// ntfy
	Server string `hcl:"server,optional" json:"server,omitempty" yaml:"server,omitempty"`
	Topic  string `hcl:"topic,optional" json:"topic,omitempty" yaml:"topic,omitempty"`

	// email
	SMTPHost     string   `hcl:"smtp_host,optional" json:"smtp_host,omitempty" yaml:"smtp_host,omitempty"`
	SMTPPort     int      `hcl:"smtp_port,optional" json:"smtp_port,omitempty" yaml:"smtp_port,omitempty"`
	SMTPUser     string   `hcl:"smtp_user,optional" json:"smtp_user,omitempty" yaml:"smtp_user,omitempty"`
	SMTPPassword string   `hcl:"smtp_password,optional" json:"smtp_password,omitempty" yaml:"smtp_password,omitempty"`
	From         string   `hcl:"from,optional" json:"from,omitempty" yaml:"from,omitempty"`
	To           []string `hcl:"to,optional" json:"to,omitempty" yaml:"to,omitempty"`
}

// Window returns the deduplication window, 60s by default.
func (n *NotificationsConfig) Window() time.Duration {
	if n == nil {
		return time.Minute
	}
	return parseDuration(n.RateLimit, time.Minute)
}

// DefaultHardening are the hostapd directives appended against reassociation abuse.
var DefaultHardening = []string{
	"ieee80211w=2",
	"disassoc_low_ack=1",
	"ap_max_inactivity=300",
	"wpa_disable_eapol_key_retries=1",
}

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field. It is idempotent.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Interface, "wlan0")
	setDefault(&c.Backend, BackendExec)
	setDefault(&c.CommandTimeout, "10s")
	setDefault(&c.StateDir, "/var/lib/wlanguard")

	if c.Tools == nil {
		c.Tools = &ToolsConfig{}
	}
	setDefault(&c.Tools.PacketFilter, "iptables")
	setDefault(&c.Tools.PacketFilter6, "ip6tables")
	setDefault(&c.Tools.TrafficControl, "tc")
	setDefault(&c.Tools.Neighbor, "ip")
	setDefault(&c.Tools.APControl, "hostapd_cli")
	setDefault(&c.Tools.ServiceManager, "systemctl")
	setDefault(&c.Tools.DeauthGuard, "hostapd_cli")

	if c.Mitigation == nil {
		c.Mitigation = &MitigationConfig{}
	}
	setDefault(&c.Mitigation.DefaultRate, "1mbit")
	setDefault(&c.Mitigation.Honeypot, "127.0.0.1")
	setDefault(&c.Mitigation.SynCookies, "net.ipv4.tcp_syncookies")
	setDefault(&c.Mitigation.SysctlRoot, "/proc/sys")
	setDefault(&c.Mitigation.NFTable, "wlanguard")

	if c.Hostapd == nil {
		c.Hostapd = &HostapdConfig{}
	}
	setDefault(&c.Hostapd.ConfigPath, "/etc/hostapd/hostapd.conf")
	setDefault(&c.Hostapd.Service, "hostapd")
	if len(c.Hostapd.Hardening) == 0 {
		c.Hostapd.Hardening = append([]string(nil), DefaultHardening...)
	}

	if c.Webapp == nil {
		c.Webapp = &WebappConfig{}
	}
	setDefault(&c.Webapp.Dir, "/var/www/html")
	if len(c.Webapp.Extensions) == 0 {
		c.Webapp.Extensions = []string{".php"}
	}

	if c.Reset == nil {
		c.Reset = &ResetConfig{}
	}
	if len(c.Reset.Interfaces) == 0 {
		c.Reset.Interfaces = []string{"wlan0", "eth0"}
	}

	if c.ActionLog == nil {
		c.ActionLog = &ActionLogConfig{}
	}
	setDefault(&c.ActionLog.FlushInterval, "5s")

	if c.API == nil {
		c.API = &APIConfig{}
	}
	setDefault(&c.API.Listen, "127.0.0.1:8088")
	if c.API.Workers <= 0 {
		c.API.Workers = 4
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	setDefault(&c.Logging.Level, "info")
}

// Timeout returns the parsed command timeout, falling back to 10s.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.CommandTimeout, 10*time.Second)
}

// Interval returns how often the action log is drained to its store.
func (c *ActionLogConfig) Interval() time.Duration {
	if c == nil {
		return 5 * time.Second
	}
	return parseDuration(c.FlushInterval, 5*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
