// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"net"
	"sort"
	"strings"
	"sync"

	"grimm.is/wlanguard/internal/qos"
)

// SimKernel is a stateful in-memory kernel. It records what would have been
// installed without touching the host, and can be told to fail operations.
type SimKernel struct {
	mu sync.RWMutex

	// State tables
	BlockedIPs  map[string]bool    // IP -> blocked
	BlockedMACs map[string]bool    // MAC -> blocked
	Shaped      map[string]qos.TBF // interface -> qdisc
	Neighbors   map[string]string  // MAC -> IP
	Hits        map[string]uint64  // rule tag -> packets

	// FailOn makes the named operation ("block_ip", "shape", ...) return the error.
	FailOn map[string]error
	// Unavailable is returned by Available when set.
	Unavailable error

	resets int
}

// NewSimKernel creates a new simulation kernel.
func NewSimKernel() *SimKernel {
	return &SimKernel{
		BlockedIPs:  make(map[string]bool),
		BlockedMACs: make(map[string]bool),
		Shaped:      make(map[string]qos.TBF),
		Neighbors:   make(map[string]string),
		Hits:        make(map[string]uint64),
		FailOn:      make(map[string]error),
	}
}

func (s *SimKernel) fail(op string) error {
	return s.FailOn[op]
}

// Available implements Kernel.
func (s *SimKernel) Available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Unavailable
}

// BlockIP adds an IP to the blocklist.
func (s *SimKernel) BlockIP(ip net.IP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("block_ip"); err != nil {
		return err
	}
	s.BlockedIPs[ip.String()] = true
	return nil
}

// BlockMAC adds a MAC to the blocklist.
func (s *SimKernel) BlockMAC(mac net.HardwareAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("block_mac"); err != nil {
		return err
	}
	s.BlockedMACs[mac.String()] = true
	return nil
}

// IsBlocked checks if an IP or MAC is in the blocklist.
func (s *SimKernel) IsBlocked(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BlockedIPs[addr] || s.BlockedMACs[strings.ToLower(addr)]
}

// Shape records a root qdisc.
func (s *SimKernel) Shape(t qos.TBF) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("shape"); err != nil {
		return err
	}
	s.Shaped[t.Interface] = t
	return nil
}

// Unshape forgets the root qdisc of iface.
func (s *SimKernel) Unshape(iface string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("unshape"); err != nil {
		return err
	}
	delete(s.Shaped, iface)
	return nil
}

// AddNeighbor seeds the neighbor table.
func (s *SimKernel) AddNeighbor(mac, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Neighbors[strings.ToLower(mac)] = ip
}

// FlushNeighbors empties the neighbor table. The sim has no per-interface view.
func (s *SimKernel) FlushNeighbors(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("flush_neighbors"); err != nil {
		return err
	}
	s.Neighbors = make(map[string]string)
	return nil
}

// LookupNeighbor implements Kernel.
func (s *SimKernel) LookupNeighbor(mac net.HardwareAddr) (net.IP, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ip, ok := s.Neighbors[mac.String()]
	if !ok {
		return nil, false
	}
	parsed := net.ParseIP(ip)
	return parsed, parsed != nil
}

// Counters returns one entry per installed rule with its simulated hit count.
func (s *SimKernel) Counters() (map[string]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]uint64, len(s.BlockedIPs)+len(s.BlockedMACs))
	for ip := range s.BlockedIPs {
		tag := RuleTag("block_ip", ip)
		out[tag] = s.Hits[tag]
	}
	for mac := range s.BlockedMACs {
		tag := RuleTag("block_mac", mac)
		out[tag] = s.Hits[tag]
	}
	return out, nil
}

// Reset clears blocklists and counters. Shaping and the neighbor table are
// left alone, matching the real table removal; Unshape clears shaping.
func (s *SimKernel) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("reset"); err != nil {
		return err
	}
	s.BlockedIPs = make(map[string]bool)
	s.BlockedMACs = make(map[string]bool)
	s.Hits = make(map[string]uint64)
	s.resets++
	return nil
}

// SimStats summarizes the simulated state.
type SimStats struct {
	BlockedIPs  []string
	BlockedMACs []string
	Shaped      []string
	Resets      int
}

// Stats returns a sorted snapshot of the simulated state.
func (s *SimKernel) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SimStats{Resets: s.resets}
	for ip := range s.BlockedIPs {
		st.BlockedIPs = append(st.BlockedIPs, ip)
	}
	for mac := range s.BlockedMACs {
		st.BlockedMACs = append(st.BlockedMACs, mac)
	}
	for iface := range s.Shaped {
		st.Shaped = append(st.Shaped, iface)
	}
	sort.Strings(st.BlockedIPs)
	sort.Strings(st.BlockedMACs)
	sort.Strings(st.Shaped)
	return st
}
