// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package kernel

import (
	"net"

	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/qos"
)

var errNotLinux = errors.New(errors.KindUnavailable, "kernel backend requires linux")

// LinuxKernel is unavailable on this platform; every call fails.
type LinuxKernel struct{}

// NewLinuxKernel returns a provider whose Available always fails.
func NewLinuxKernel(string, *logging.Logger) *LinuxKernel { return &LinuxKernel{} }

func (k *LinuxKernel) Available() error                     { return errNotLinux }
func (k *LinuxKernel) BlockIP(net.IP) error                 { return errNotLinux }
func (k *LinuxKernel) BlockMAC(net.HardwareAddr) error      { return errNotLinux }
func (k *LinuxKernel) Shape(qos.TBF) error                  { return errNotLinux }
func (k *LinuxKernel) Unshape(string) error                 { return errNotLinux }
func (k *LinuxKernel) FlushNeighbors(string) error          { return errNotLinux }
func (k *LinuxKernel) Counters() (map[string]uint64, error) { return nil, errNotLinux }
func (k *LinuxKernel) Reset() error                         { return errNotLinux }
func (k *LinuxKernel) LookupNeighbor(net.HardwareAddr) (net.IP, bool) {
	return nil, false
}
