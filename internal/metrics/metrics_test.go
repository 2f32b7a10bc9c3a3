// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.Outcome("rogue_ap", "BLOCK")
	r.Outcome("rogue_ap", "BLOCK")
	r.Step("block_mac", "simulated", 2*time.Millisecond)
	r.Reset()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("rogue_ap", "BLOCK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("block_mac", "simulated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resets))
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	r.Outcome("x", "PASS")
	r.Step("x", "applied", time.Second)
	r.Reset()
	r.SetPending(3)
	assert.NotNil(t, r.Handler())
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Outcome("botnet_ddos", "RATE_LIMIT")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `wlanguard_outcomes_total{outcome="RATE_LIMIT",threat="botnet_ddos"} 1`)
}

type fakeSource struct {
	counters map[string]uint64
	err      error
}

func (f fakeSource) Counters() (map[string]uint64, error) { return f.counters, f.err }

func TestCollector_Collect(t *testing.T) {
	r := NewRegistry()
	c := NewCollector(r, fakeSource{counters: map[string]uint64{"block_ip:10.0.0.1": 42}}, nil, time.Hour)
	c.Collect()
	assert.Equal(t, 42.0, testutil.ToFloat64(r.rulePackets.WithLabelValues("block_ip:10.0.0.1")))

	r.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(r.rulePackets))

	failing := NewCollector(r, fakeSource{err: errors.New("no nftables")}, nil, time.Hour)
	failing.Collect()
	assert.Equal(t, 0, testutil.CollectAndCount(r.rulePackets))
}

func TestCollector_StartStop(t *testing.T) {
	r := NewRegistry()
	c := NewCollector(r, fakeSource{counters: map[string]uint64{"block_mac:aa:bb:cc:dd:ee:ff": 1}}, nil, 5*time.Millisecond)
	c.Start()
	require.Eventually(t, func() bool {
		return testutil.CollectAndCount(r.rulePackets) == 1
	}, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}
