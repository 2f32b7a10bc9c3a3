// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package kernel

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/qos"
	"grimm.is/wlanguard/internal/testutil"
)

func TestLinuxKernel_BlockAndReset(t *testing.T) {
	testutil.RequireHost(t)
	testutil.InNetNS(t, func() { testBlockAndReset(t) })
}

func testBlockAndReset(t *testing.T) {
	k := NewLinuxKernel("wlanguard_test", logging.Discard())
	require.NoError(t, k.Available())

	require.NoError(t, k.BlockIP(net.ParseIP("192.0.2.10")))
	require.NoError(t, k.BlockIP(net.ParseIP("2001:db8::10")))
	mac, _ := net.ParseMAC("02:00:00:00:00:10")
	require.NoError(t, k.BlockMAC(mac))

	counters, err := k.Counters()
	require.NoError(t, err)
	assert.Contains(t, counters, RuleTag("block_ip", "192.0.2.10"))
	assert.Contains(t, counters, RuleTag("block_ip", "2001:db8::10"))
	assert.Contains(t, counters, RuleTag("block_mac", "02:00:00:00:00:10"))

	require.NoError(t, k.Reset())
	counters, err = k.Counters()
	require.NoError(t, err)
	assert.Empty(t, counters)

	assert.NoError(t, k.Reset(), "resetting a missing table is not an error")
}

func TestLinuxKernel_ShapeLoopback(t *testing.T) {
	testutil.RequireHost(t)
	testutil.InNetNS(t, func() {
		k := NewLinuxKernel("wlanguard_test", logging.Discard())
		tbf, err := qos.NewTBF("lo", "1mbit")
		require.NoError(t, err)

		require.NoError(t, k.Shape(tbf))
		assert.NoError(t, k.Unshape("lo"))
		assert.NoError(t, k.Unshape("lo"), "unshaping twice is harmless")
		assert.NoError(t, k.Unshape("missing0"), "missing interfaces are ignored")
	})
}

func TestLinuxKernel_NeighborsInEmptyNamespace(t *testing.T) {
	testutil.RequireHost(t)
	testutil.InNetNS(t, func() {
		k := NewLinuxKernel("wlanguard_test", logging.Discard())
		mac, _ := net.ParseMAC("02:00:00:00:00:20")
		_, ok := k.LookupNeighbor(mac)
		assert.False(t, ok)
		assert.NoError(t, k.FlushNeighbors(""))
		assert.Error(t, k.FlushNeighbors("missing0"))
	})
}

func TestLinuxKernel_BlockInvalid(t *testing.T) {
	k := NewLinuxKernel("", logging.Discard())
	assert.Error(t, k.BlockIP(nil))
	assert.Error(t, k.BlockMAC(net.HardwareAddr{1, 2}))
}
