// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"fmt"
	"net"
	"strings"

	"grimm.is/wlanguard/internal/errors"
)

// ParseMAC parses a 48-bit hardware address in any of the notations
// net.ParseMAC accepts. Longer EUI-64/InfiniBand forms are rejected.
func ParseMAC(macStr string) (net.HardwareAddr, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(macStr))
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "invalid MAC address %q", macStr)
	}
	if len(hw) != 6 {
		return nil, errors.Errorf(errors.KindValidation, "MAC address %q is not 48 bits", macStr)
	}
	return hw, nil
}

// FormatMAC renders a 6-byte address as lower-case colon notation.
func FormatMAC(mac []byte) string {
	if len(mac) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// NormalizeMAC parses and re-formats a MAC so equal addresses compare equal.
func NormalizeMAC(macStr string) (string, error) {
	hw, err := ParseMAC(macStr)
	if err != nil {
		return "", err
	}
	return FormatMAC(hw), nil
}

// IsLocallyAdministered reports whether the U/L bit is set. Randomized
// client MACs and spoofed AP BSSIDs usually carry it.
func IsLocallyAdministered(mac []byte) bool {
	return len(mac) > 0 && mac[0]&0x02 != 0
}
