// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/errors"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", true},
		{"aa-bb-cc-dd-ee-ff", "aa:bb:cc:dd:ee:ff", true},
		{"aabb.ccdd.eeff", "aa:bb:cc:dd:ee:ff", true},
		{" 00:11:22:33:44:55 ", "00:11:22:33:44:55", true},
		{"00:11:22:33:44", "", false},
		{"02:00:5e:10:00:00:00:01", "", false},
		{"not-a-mac", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeMAC(tt.in)
		if !tt.ok {
			require.Error(t, err, tt.in)
			assert.Equal(t, errors.KindValidation, errors.GetKind(err))
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatMAC_WrongLength(t *testing.T) {
	assert.Empty(t, FormatMAC([]byte{1, 2, 3}))
}

func TestIsLocallyAdministered(t *testing.T) {
	hw, err := ParseMAC("02:67:63:00:00:01")
	require.NoError(t, err)
	assert.True(t, IsLocallyAdministered(hw))

	hw, err = ParseMAC("00:11:22:33:44:55")
	require.NoError(t, err)
	assert.False(t, IsLocallyAdministered(hw))
}

func TestParseIP(t *testing.T) {
	ip, err := ParseIP("192.168.1.50")
	require.NoError(t, err)
	assert.Len(t, ip, 4)

	ip, err = ParseIP("2001:db8::1")
	require.NoError(t, err)
	assert.Len(t, ip, 16)

	_, err = ParseIP("192.168.1.500")
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}
