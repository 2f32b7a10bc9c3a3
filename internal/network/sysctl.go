// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package network handles kernel network tunables exposed under /proc/sys.
package network

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"grimm.is/wlanguard/internal/errors"
)

// DefaultSysctlRoot is where the kernel exposes sysctl files.
const DefaultSysctlRoot = "/proc/sys"

// Sysctl reads and writes sysctl keys through an afero filesystem so the
// same code runs against /proc and an in-memory tree.
type Sysctl struct {
	Fs   afero.Fs
	Root string
}

// NewSysctl returns a Sysctl on fs rooted at root (DefaultSysctlRoot when empty).
func NewSysctl(fs afero.Fs, root string) *Sysctl {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if root == "" {
		root = DefaultSysctlRoot
	}
	return &Sysctl{Fs: fs, Root: root}
}

// Path maps a dotted key such as net.ipv4.tcp_syncookies to its file.
// Keys already given as a path are returned unchanged.
func (s *Sysctl) Path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.Root, strings.ReplaceAll(key, ".", "/"))
}

// Read returns the trimmed value of key.
func (s *Sysctl) Read(key string) (string, error) {
	data, err := afero.ReadFile(s.Fs, s.Path(key))
	if err != nil {
		return "", wrapSysctlErr(err, key)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write sets key to value. The file must already exist: sysctl files are
// never created.
func (s *Sysctl) Write(key, value string) error {
	path := s.Path(key)
	if _, err := s.Fs.Stat(path); err != nil {
		return wrapSysctlErr(err, key)
	}
	if err := afero.WriteFile(s.Fs, path, []byte(value+"\n"), 0o644); err != nil {
		return wrapSysctlErr(err, key)
	}
	return nil
}

// IsNotExist checks if an error indicates that a sysctl key does not exist.
func IsNotExist(err error) bool {
	return errors.GetKind(err) == errors.KindNotFound
}

func wrapSysctlErr(err error, key string) error {
	kind := errors.KindExecution
	switch {
	case os.IsNotExist(err):
		kind = errors.KindNotFound
	case os.IsPermission(err):
		kind = errors.KindPermission
	}
	return errors.Attr(errors.Wrapf(err, kind, "sysctl %s", key), "key", key)
}
