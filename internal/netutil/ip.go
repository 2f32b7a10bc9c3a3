// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"net"
	"strings"

	"grimm.is/wlanguard/internal/errors"
)

// ParseIP accepts a bare IPv4 or IPv6 address. IPv4 results are 4 bytes long.
func ParseIP(s string) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return nil, errors.Errorf(errors.KindValidation, "invalid IP address %q", s)
	}
	if v4 := ip.To4(); v4 != nil {
		return v4, nil
	}
	return ip, nil
}
