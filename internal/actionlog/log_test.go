// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package actionlog

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Append(t *testing.T) {
	l := New()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	details := map[string]string{"ip": "192.168.1.50"}
	e := l.Append("block_ip", "botnet_ddos", Applied, details, errors.New("exit status 1"))
	details["ip"] = "mutated"

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, uint64(1), e.Seq)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, "exit status 1", e.Error)
	assert.Equal(t, "192.168.1.50", l.Entries()[0].Details["ip"], "details must be copied")

	e2 := l.Append("rate_limit", "botnet_ddos", Simulated, nil, nil)
	assert.Equal(t, uint64(2), e2.Seq)
	assert.NotEqual(t, e.ID, e2.ID)
	assert.Empty(t, e2.Error)
	assert.Equal(t, 2, l.Len())
}

func TestLog_Drain(t *testing.T) {
	l := New()
	assert.Nil(t, l.Drain())

	l.Append("a", "", Applied, nil, nil)
	l.Append("b", "", Applied, nil, nil)

	first := l.Drain()
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Action)
	assert.Nil(t, l.Drain(), "nothing new since last drain")

	l.Append("c", "", Applied, nil, nil)
	second := l.Drain()
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].Action)

	assert.Equal(t, 3, l.Len(), "drain does not remove entries")
}

func TestLog_Truncate(t *testing.T) {
	l := New()
	l.Append("a", "", Applied, nil, nil)
	l.Append("b", "", Applied, nil, nil)
	l.Drain()

	assert.Equal(t, 2, l.Truncate())
	assert.Equal(t, 0, l.Len())

	e := l.Append("c", "", Applied, nil, nil)
	assert.Equal(t, uint64(3), e.Seq)
	require.Len(t, l.Drain(), 1)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := New()
	const workers, each = 16, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				l.Append("block_ip", "botnet_ddos", Applied, nil, nil)
			}
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, workers*each)
	seen := make(map[uint64]bool, len(entries))
	for _, e := range entries {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
}

func TestLog_Since(t *testing.T) {
	l := New()
	for _, a := range []string{"a", "b", "c"} {
		l.Append(a, "", Applied, nil, nil)
	}

	got := l.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Action)
	assert.Nil(t, l.Since(3))
	assert.Len(t, l.Since(0), 3)

	l.Truncate()
	l.Append("d", "", Applied, nil, nil)
	got = l.Since(3)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(4), got[0].Seq)

	assert.Len(t, l.Drain(), 1, "Since does not move the drain cursor")
}
