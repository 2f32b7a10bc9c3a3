// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package qos

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"grimm.is/wlanguard/internal/logging"
)

// Manager installs and removes root TBF qdiscs over netlink.
type Manager struct {
	logger *logging.Logger
}

// NewManager creates a new QoS manager.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.WithComponent("qos")
	}
	return &Manager{logger: logger}
}

// Apply replaces the root qdisc of t.Interface with a token bucket filter.
func (m *Manager) Apply(t TBF) error {
	link, err := netlink.LinkByName(t.Interface)
	if err != nil {
		return fmt.Errorf("interface %s not found: %w", t.Interface, err)
	}

	tbf := &netlink.Tbf{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Parent:    netlink.HANDLE_ROOT,
			Handle:    netlink.MakeHandle(1, 0),
		},
		Rate:   t.BytesPerSec,
		Limit:  t.Limit(),
		Buffer: netlink.Xmittime(t.BytesPerSec, t.Burst()),
	}
	if err := netlink.QdiscReplace(tbf); err != nil {
		return fmt.Errorf("failed to replace root qdisc on %s: %w", t.Interface, err)
	}
	m.logger.Info("rate limit applied", "interface", t.Interface, "rate", t.Rate)
	return nil
}

// Clear deletes every root qdisc on iface. A missing interface is not an error.
func (m *Manager) Clear(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		m.logger.Debug("skipping qdisc clear, interface not found", "interface", iface)
		return nil
	}

	qdiscs, err := netlink.QdiscList(link)
	if err != nil {
		return fmt.Errorf("failed to list qdiscs: %w", err)
	}
	for _, q := range qdiscs {
		if q.Attrs().Parent != netlink.HANDLE_ROOT {
			continue
		}
		if err := netlink.QdiscDel(q); err != nil {
			m.logger.Warn("failed to delete root qdisc", "interface", iface, "error", err)
		}
	}
	return nil
}
