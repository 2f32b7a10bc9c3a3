// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package qos turns rate-limit requests into token bucket shaping, either as
// tc arguments or as netlink qdiscs.
package qos

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"grimm.is/wlanguard/internal/errors"
)

var rateRe = regexp.MustCompile(`^(\d+)(bit|kbit|mbit|gbit|bps|kbps|mbps)$`)

// Token bucket parameters used for every rate limit.
const (
	DefaultBurst   = "32kbit"
	DefaultLatency = 400 * time.Millisecond
	burstBytes     = 32 * 1000 / 8
)

// ParseRate converts a tc rate string to bytes per second.
// "bit" suffixes are bits per second, "bps" suffixes are bytes per second,
// both with decimal multipliers like tc(8).
func ParseRate(rate string) (uint64, error) {
	m := rateRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(rate)))
	if m == nil {
		return 0, errors.Errorf(errors.KindValidation, "invalid rate %q (want e.g. 512kbit, 1mbit)", rate)
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || n == 0 {
		return 0, errors.Errorf(errors.KindValidation, "invalid rate %q", rate)
	}

	switch m[2] {
	case "bit":
		return n / 8, nil
	case "kbit":
		return n * 1000 / 8, nil
	case "mbit":
		return n * 125000, nil
	case "gbit":
		return n * 125000000, nil
	case "bps":
		return n, nil
	case "kbps":
		return n * 1000, nil
	default: // mbps
		return n * 1000000, nil
	}
}

// TBF describes a root token bucket filter on one interface.
type TBF struct {
	Interface string
	Rate      string
	// BytesPerSec is Rate parsed.
	BytesPerSec uint64
}

// NewTBF validates the rate and builds the qdisc description.
func NewTBF(iface, rate string) (TBF, error) {
	if strings.TrimSpace(iface) == "" {
		return TBF{}, errors.New(errors.KindValidation, "interface is required")
	}
	bps, err := ParseRate(rate)
	if err != nil {
		return TBF{}, err
	}
	return TBF{Interface: iface, Rate: rate, BytesPerSec: bps}, nil
}

// Limit is the queue size in bytes: what drains in DefaultLatency plus one burst.
func (t TBF) Limit() uint32 {
	l := t.BytesPerSec*uint64(DefaultLatency)/uint64(time.Second) + burstBytes
	if l > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(l)
}

// Burst is the bucket size in bytes.
func (t TBF) Burst() uint32 { return burstBytes }

// ReplaceArgs are the tc arguments installing the filter.
func (t TBF) ReplaceArgs() []string {
	return []string{"qdisc", "replace", "dev", t.Interface, "root", "tbf",
		"rate", t.Rate, "burst", DefaultBurst, "latency", "400ms"}
}

// DeleteArgs are the tc arguments removing any root qdisc on iface.
func DeleteArgs(iface string) []string {
	return []string{"qdisc", "del", "dev", iface, "root"}
}
