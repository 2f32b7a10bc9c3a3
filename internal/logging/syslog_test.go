// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !windows && !plan9

package logging

import (
	"testing"
)

func TestDefaultSyslogConfig(t *testing.T) {
	cfg := DefaultSyslogConfig()

	if cfg.Enabled {
		t.Error("Default should be disabled")
	}
	if cfg.Port != 514 {
		t.Errorf("Expected port 514, got %d", cfg.Port)
	}
	if cfg.Protocol != "udp" {
		t.Errorf("Expected protocol udp, got %s", cfg.Protocol)
	}
	if cfg.Tag != "wlanguard" {
		t.Errorf("Expected tag wlanguard, got %s", cfg.Tag)
	}
	if cfg.Facility != 1 {
		t.Errorf("Expected facility 1, got %d", cfg.Facility)
	}
}

func TestNewSyslogWriter_MissingHost(t *testing.T) {
	cfg := SyslogConfig{
		Enabled: true,
		Host:    "",
	}

	if _, err := NewSyslogWriter(cfg); err == nil {
		t.Error("Expected error for missing host")
	}
}

func TestNewSyslogWriter_BadFacility(t *testing.T) {
	cfg := SyslogConfig{
		Enabled:  true,
		Host:     "localhost",
		Facility: 12,
	}

	if _, err := NewSyslogWriter(cfg); err == nil {
		t.Error("Expected error for out of range facility")
	}
}
