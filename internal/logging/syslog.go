// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !windows && !plan9

package logging

import (
	"fmt"
	"io"
	"log/syslog"
	"net"
	"strconv"
)

// SyslogConfig configures remote syslog forwarding.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int // syslog local facility number, 0-7
}

// DefaultSyslogConfig returns a disabled config with standard defaults.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "wlanguard",
		Facility: 1,
	}
}

// NewSyslogWriter dials the remote syslog server described by cfg.
func NewSyslogWriter(cfg SyslogConfig) (io.Writer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "wlanguard"
	}
	if cfg.Facility < 0 || cfg.Facility > 7 {
		return nil, fmt.Errorf("syslog facility must be between 0 and 7, got %d", cfg.Facility)
	}

	priority := syslog.LOG_INFO | syslog.Priority((16+cfg.Facility)<<3)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	w, err := syslog.Dial(cfg.Protocol, addr, priority, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog %s: %w", addr, err)
	}
	return w, nil
}
