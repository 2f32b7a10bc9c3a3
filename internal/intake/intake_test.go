// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/mitigation"
)

type countingDispatcher struct {
	mu       sync.Mutex
	seen     map[string]int
	inflight int32
	peak     int32
}

func (d *countingDispatcher) HandleReport(_ context.Context, category string, pc mitigation.PacketContext) mitigation.Report {
	n := atomic.AddInt32(&d.inflight, 1)
	for {
		p := atomic.LoadInt32(&d.peak)
		if n <= p || atomic.CompareAndSwapInt32(&d.peak, p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&d.inflight, -1)

	d.mu.Lock()
	d.seen[category+"|"+pc.Get(mitigation.KeyIP)]++
	d.mu.Unlock()
	return mitigation.Report{Category: mitigation.ParseCategory(category), Outcomes: []mitigation.Outcome{mitigation.OutcomePass}}
}

func TestRunner_Run(t *testing.T) {
	input := strings.Join([]string{
		`{"category": "port_scan", "context": {"ip": "10.0.0.1"}}`,
		``,
		`# comment`,
		`{"category": "botnet_ddos", "context": {"ip.src": "10.0.0.2"}}`,
		`not json`,
		`{"context": {}}`,
		`{"category": "port_scan", "context": {"ip": "10.0.0.3"}}`,
	}, "\n")

	d := &countingDispatcher{seen: map[string]int{}}
	var out bytes.Buffer
	r := &Runner{Dispatcher: d, Workers: 2, Logger: logging.Discard()}

	stats, err := r.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Equal(t, Stats{Dispatched: 3, Malformed: 2}, stats)
	assert.Equal(t, 1, d.seen["botnet_ddos|10.0.0.2"])
	assert.LessOrEqual(t, d.peak, int32(2))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var res Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &res))
	assert.Equal(t, []mitigation.Outcome{mitigation.OutcomePass}, res.Report.Outcomes)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &countingDispatcher{seen: map[string]int{}}
	r := &Runner{Dispatcher: d, Logger: logging.Discard()}
	_, err := r.Run(ctx, strings.NewReader(`{"category": "port_scan"}`), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.seen)
}
