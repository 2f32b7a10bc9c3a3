// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/config"
	"grimm.is/wlanguard/internal/errors"
	"grimm.is/wlanguard/internal/host"
	"grimm.is/wlanguard/internal/kernel"
	"grimm.is/wlanguard/internal/logging"
	"grimm.is/wlanguard/internal/metrics"
	"grimm.is/wlanguard/internal/mitigation"
)

type fakeStore struct {
	entries []actionlog.Entry
	err     error
}

func (f *fakeStore) Save(_ context.Context, entries []actionlog.Entry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeStore) Recent(_ context.Context, limit int) ([]actionlog.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

func (f *fakeStore) Close() error { return nil }

type fixture struct {
	server *Server
	kern   *kernel.SimKernel
	log    *actionlog.Log
	store  *fakeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendSim

	f := &fixture{
		kern:  kernel.NewSimKernel(),
		log:   actionlog.New(),
		store: &fakeStore{},
	}
	tk := mitigation.NewToolkit(mitigation.Options{
		Config: cfg,
		Prober: host.StaticProber{},
		Kernel: f.kern,
		Fs:     afero.NewMemMapFs(),
		Log:    f.log,
		Logger: logging.Discard(),
	})

	srv, err := NewServer(Options{
		Mitigator: mitigation.New(tk),
		Store:     f.store,
		Counters:  f.kern,
		Metrics:   metrics.NewRegistry(),
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	f.server = srv
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestNewServer_RequiresMitigator(t *testing.T) {
	_, err := NewServer(Options{})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestHandleThreat(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "POST", "/api/threats", `{"category":"rogue_ap","context":{"wlan.sa":"00:11:22:33:44:55"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var rep mitigation.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, mitigation.CategoryRogueAP, rep.Category)
	assert.Equal(t, []mitigation.Outcome{mitigation.OutcomeBlock, mitigation.OutcomeFlushARP}, rep.Outcomes)
	require.Len(t, rep.Steps, 2)
	assert.Equal(t, actionlog.Applied, rep.Steps[0].Result)
	assert.True(t, f.kern.IsBlocked("00:11:22:33:44:55"))
	assert.Equal(t, 2, f.log.Len())
}

func TestHandleThreat_UnknownCategoryPasses(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "POST", "/api/threats", `{"category":"teleportation"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var rep mitigation.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, []mitigation.Outcome{mitigation.OutcomePass}, rep.Outcomes)
	assert.Empty(t, rep.Steps)
	assert.Equal(t, 0, f.log.Len())
}

func TestHandleThreat_BadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing category", `{"context":{}}`},
		{"malformed json", `{"category":`},
		{"unknown field", `{"category":"rogue_ap","extra":1}`},
		{"non-string context", `{"category":"rogue_ap","context":{"mac":5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, "POST", "/api/threats", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}
	assert.Equal(t, 0, f.log.Len())
}

func TestHandleThreat_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, target string }{
		{"GET", "/api/threats"},
		{"GET", "/api/reset"},
		{"DELETE", "/api/actions"},
		{"POST", "/api/capabilities"},
	} {
		rr := f.do(t, tc.method, tc.target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, tc.method+" "+tc.target)
		assert.Contains(t, rr.Body.String(), "method not allowed")
	}
	assert.Equal(t, 0, f.log.Len())
}

func TestHandleReset(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/threats", `{"category":"botnet_ddos","context":{"ip":"10.0.0.9"}}`)
	require.True(t, f.kern.IsBlocked("10.0.0.9"))

	rr := f.do(t, "POST", "/api/reset", `{"interfaces":["wlan0"],"truncate_log":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rep mitigation.ResetReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, 3, rep.Truncated)
	assert.False(t, f.kern.IsBlocked("10.0.0.9"))
	assert.Empty(t, f.kern.Stats().Shaped)

	entries := f.log.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, mitigation.ActionTruncateLog, entries[0].Action)
	assert.Equal(t, mitigation.ActionResetComplete, entries[len(entries)-1].Action)
}

func TestHandleReset_EmptyBodyUsesDefaults(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "POST", "/api/reset", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rep mitigation.ResetReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Zero(t, rep.Truncated)
	assert.NotEmpty(t, rep.Steps)
}

func TestHandleActions_Drain(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/threats", `{"category":"rogue_ap","context":{"mac":"00:11:22:33:44:55"}}`)

	var resp ActionsResponse
	rr := f.do(t, "GET", "/api/actions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	rr = f.do(t, "GET", "/api/actions?drain=true", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	rr = f.do(t, "GET", "/api/actions?drain=true", "")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count, "already drained")
	assert.NotNil(t, resp.Entries)

	assert.Equal(t, 2, f.log.Len(), "draining does not delete")
}

func TestHandleHistory(t *testing.T) {
	f := newFixture(t)
	f.store.entries = []actionlog.Entry{{ID: "b", Action: "block_ip"}, {ID: "a", Action: "block_mac"}}

	var resp ActionsResponse
	rr := f.do(t, "GET", "/api/actions/history?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "b", resp.Entries[0].ID)

	rr = f.do(t, "GET", "/api/actions/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.store.err = errors.New(errors.KindExecution, "disk gone")
	rr = f.do(t, "GET", "/api/actions/history", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	f.server.store = nil
	rr = f.do(t, "GET", "/api/actions/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleCapabilities(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "GET", "/api/capabilities", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var caps map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &caps))
	assert.False(t, caps["iptables"])
	assert.True(t, caps["kernel:sim"])
}

func TestHandleCounters(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/threats", `{"category":"botnet_ddos","context":{"ip":"10.0.0.9"}}`)

	rr := f.do(t, "GET", "/api/counters", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var counters map[string]uint64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &counters))
	assert.Contains(t, counters, kernel.RuleTag("block_ip", "10.0.0.9"))

	f.server.counters = nil
	rr = f.do(t, "GET", "/api/counters", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = f.do(t, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeAndShutdown(t *testing.T) {
	f := newFixture(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.server.Serve(l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func dialStream(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/actions/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEntry(t *testing.T, conn *websocket.Conn) actionlog.Entry {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e actionlog.Entry
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestStream_PushesNewEntries(t *testing.T) {
	f := newFixture(t)
	f.server.streamInterval = 10 * time.Millisecond
	f.log.Append("old", "", actionlog.Applied, nil, nil)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()
	conn := dialStream(t, ts, "")

	f.do(t, "POST", "/api/threats", `{"category":"rogue_ap","context":{"mac":"00:11:22:33:44:55"}}`)

	first := readEntry(t, conn)
	second := readEntry(t, conn)
	assert.Equal(t, mitigation.ActionBlockMAC, first.Action, "entries before connecting are skipped")
	assert.Equal(t, mitigation.ActionFlushNeighbors, second.Action)
	assert.Equal(t, first.Seq+1, second.Seq)
}

func TestStream_ReplaysSince(t *testing.T) {
	f := newFixture(t)
	f.server.streamInterval = 10 * time.Millisecond
	for _, a := range []string{"a", "b", "c"} {
		f.log.Append(a, "", actionlog.Applied, nil, nil)
	}

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()
	conn := dialStream(t, ts, "?since=1")

	assert.Equal(t, "b", readEntry(t, conn).Action)
	assert.Equal(t, "c", readEntry(t, conn).Action)

	rr := f.do(t, "GET", "/api/actions/stream?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSameOrigin(t *testing.T) {
	r := httptest.NewRequest("GET", "http://127.0.0.1:8088/api/actions/stream", nil)
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "http://127.0.0.1:8088")
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(r))
}
