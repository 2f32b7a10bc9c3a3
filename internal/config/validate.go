// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"net"
	"strings"
	"time"

	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/qos"
)

// Validate checks a defaulted configuration. All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Backend {
	case BackendExec, BackendKernel, BackendSim:
	default:
		problems = append(problems, "backend must be one of exec, kernel, sim (got "+c.Backend+")")
	}

	if d, err := time.ParseDuration(c.CommandTimeout); err != nil || d <= 0 {
		problems = append(problems, "command_timeout must be a positive duration (got "+c.CommandTimeout+")")
	}

	if c.Mitigation != nil {
		if _, err := qos.ParseRate(c.Mitigation.DefaultRate); err != nil {
			problems = append(problems, "mitigation.default_rate: "+err.Error())
		}
		if net.ParseIP(c.Mitigation.Honeypot) == nil {
			problems = append(problems, "mitigation.honeypot must be an IP address (got "+c.Mitigation.Honeypot+")")
		}
	}

	if c.ActionLog != nil && c.ActionLog.FlushInterval != "" {
		if d, err := time.ParseDuration(c.ActionLog.FlushInterval); err != nil || d <= 0 {
			problems = append(problems, "action_log.flush_interval must be a positive duration")
		}
	}

	if c.Logging != nil && c.Logging.Syslog != nil && c.Logging.Syslog.Enabled && c.Logging.Syslog.Host == "" {
		problems = append(problems, "logging.syslog.host is required when syslog is enabled")
	}

	if n := c.Notifications; n != nil {
		if n.RateLimit != "" {
			if d, err := time.ParseDuration(n.RateLimit); err != nil || d <= 0 {
				problems = append(problems, "notifications.rate_limit must be a positive duration")
			}
		}
		for _, ch := range n.Channels {
			if p := validateChannel(ch); p != "" {
				problems = append(problems, "notifications.channel."+ch.Name+": "+p)
			}
		}
	}

	if len(problems) > 0 {
		return errors.Errorf(errors.KindValidation, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateChannel(ch NotificationChannel) string {
	switch strings.ToLower(ch.Type) {
	case "webhook", "slack", "discord":
		if ch.WebhookURL == "" {
			return "webhook_url is required"
		}
	case "ntfy":
		if ch.Topic == "" {
			return "topic is required"
		}
	case "email":
		if ch.SMTPHost == "" || len(ch.To) == 0 {
			return "smtp_host and to are required"
		}
	default:
		return "unknown type " + ch.Type
	}
	switch strings.ToLower(ch.Level) {
	case "", "info", "warning", "critical":
	default:
		return "level must be info, warning or critical"
	}
	return ""
}
