// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernel provides an abstraction over the Linux kernel's network subsystems.
// On Linux, it wraps real netlink/nftables calls.
// The simulation provider keeps the same state in memory for tests and dry runs.
package kernel

import (
	"net"

	"grimm.is/wlanguard/internal/qos"
)

// Kernel abstracts the OS network subsystem.
// Primitives use it instead of shelling out when the kernel backend is selected.
type Kernel interface {
	// Available returns nil when the backend can be used right now.
	Available() error

	// Blocklist operations
	BlockIP(ip net.IP) error
	BlockMAC(mac net.HardwareAddr) error

	// Traffic shaping
	Shape(t qos.TBF) error
	Unshape(iface string) error

	// Neighbor (ARP) table. An empty iface means every interface.
	FlushNeighbors(iface string) error
	LookupNeighbor(mac net.HardwareAddr) (net.IP, bool)

	// Counters returns per-rule packet counts keyed by rule tag.
	Counters() (map[string]uint64, error)

	// Reset removes everything this backend installed.
	Reset() error
}

// RuleTag is the identifier stored with each installed rule.
func RuleTag(kind, subject string) string {
	return kind + ":" + subject
}
