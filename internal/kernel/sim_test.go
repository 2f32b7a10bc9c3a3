// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/qos"
)

var _ Kernel = (*SimKernel)(nil)
var _ Kernel = (*LinuxKernel)(nil)

func TestSimKernel_BlockAndReset(t *testing.T) {
	k := NewSimKernel()
	require.NoError(t, k.Available())

	require.NoError(t, k.BlockIP(net.ParseIP("192.168.1.50")))
	mac, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, k.BlockMAC(mac))

	assert.True(t, k.IsBlocked("192.168.1.50"))
	assert.True(t, k.IsBlocked("AA:BB:CC:DD:EE:FF"))

	counters, err := k.Counters()
	require.NoError(t, err)
	assert.Contains(t, counters, "block_ip:192.168.1.50")
	assert.Contains(t, counters, "block_mac:aa:bb:cc:dd:ee:ff")

	require.NoError(t, k.Reset())
	st := k.Stats()
	assert.Empty(t, st.BlockedIPs)
	assert.Empty(t, st.BlockedMACs)
	assert.Equal(t, 1, st.Resets)
}

func TestSimKernel_Shape(t *testing.T) {
	k := NewSimKernel()
	tbf, err := qos.NewTBF("wlan0", "1mbit")
	require.NoError(t, err)

	require.NoError(t, k.Shape(tbf))
	assert.Equal(t, []string{"wlan0"}, k.Stats().Shaped)

	require.NoError(t, k.Unshape("wlan0"))
	assert.Empty(t, k.Stats().Shaped)
}

func TestSimKernel_Neighbors(t *testing.T) {
	k := NewSimKernel()
	k.AddNeighbor("AA:BB:CC:DD:EE:FF", "192.168.1.77")

	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	ip, ok := k.LookupNeighbor(mac)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.77", ip.String())

	require.NoError(t, k.FlushNeighbors("wlan0"))
	_, ok = k.LookupNeighbor(mac)
	assert.False(t, ok)
}

func TestSimKernel_FailOn(t *testing.T) {
	k := NewSimKernel()
	boom := errors.New("boom")
	k.FailOn["block_ip"] = boom

	assert.ErrorIs(t, k.BlockIP(net.ParseIP("10.0.0.1")), boom)
	assert.False(t, k.IsBlocked("10.0.0.1"))

	k.Unavailable = errors.New("no CAP_NET_ADMIN")
	assert.Error(t, k.Available())
}
