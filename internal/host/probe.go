// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package host inspects and drives the local system: which tools exist and
// how external commands are run.
package host

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Prober reports whether a named capability is usable right now.
// Implementations must not cache and must not error.
type Prober interface {
	Available(name string) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(name string) bool

// Available implements Prober.
func (f ProberFunc) Available(name string) bool { return f(name) }

// PathProber resolves bare names on PATH and stats absolute paths
// (kernel control files, config files).
type PathProber struct {
	LookPath func(string) (string, error)
	Stat     func(string) (os.FileInfo, error)
}

// NewPathProber returns a prober backed by the real filesystem.
func NewPathProber() *PathProber {
	return &PathProber{LookPath: exec.LookPath, Stat: os.Stat}
}

// Available implements Prober.
func (p *PathProber) Available(name string) bool {
	if name == "" {
		return false
	}
	if filepath.IsAbs(name) {
		stat := p.Stat
		if stat == nil {
			stat = os.Stat
		}
		_, err := stat(name)
		return err == nil
	}
	look := p.LookPath
	if look == nil {
		look = exec.LookPath
	}
	_, err := look(name)
	return err == nil
}

// StaticProber answers from a fixed set. Used by tests and the sim backend.
type StaticProber map[string]bool

// Available implements Prober.
func (s StaticProber) Available(name string) bool { return s[name] }

// Status probes every name once.
func Status(p Prober, names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		out[n] = p.Available(n)
	}
	return out
}
