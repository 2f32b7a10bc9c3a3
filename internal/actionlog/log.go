// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package actionlog records every mitigation step that was executed or
// simulated, and hands the records to a persistence store.
package actionlog

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is how a step ended.
type Result string

const (
	Applied   Result = "applied"
	Simulated Result = "simulated"
	Failed    Result = "failed"
)

// Entry is one record in the log. Entries are never modified once appended.
type Entry struct {
	ID        string            `json:"id"`
	Seq       uint64            `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Threat    string            `json:"threat,omitempty"`
	Result    Result            `json:"result"`
	Details   map[string]string `json:"details,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Log is an append-only, concurrency-safe action log.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	cursor  int
	seq     uint64
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append records a step and returns the stored entry.
// details is copied so callers may reuse their map.
func (l *Log) Append(action, threat string, result Result, details map[string]string, err error) Entry {
	var copied map[string]string
	if len(details) > 0 {
		copied = make(map[string]string, len(details))
		for k, v := range details {
			copied[k] = v
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e := Entry{
		ID:        uuid.NewString(),
		Seq:       l.seq,
		Timestamp: l.now().UTC(),
		Action:    action,
		Threat:    threat,
		Result:    result,
		Details:   copied,
	}
	if err != nil {
		e.Error = err.Error()
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a snapshot of every entry in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Since returns the entries with a sequence number above seq. It does not
// move the drain cursor.
func (l *Log) Since(seq uint64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Seq > seq })
	if i == len(l.entries) {
		return nil
	}
	return append([]Entry(nil), l.entries[i:]...)
}

// Drain returns the entries appended since the previous Drain. Entries stay
// in the log.
func (l *Log) Drain() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.entries) {
		return nil
	}
	out := append([]Entry(nil), l.entries[l.cursor:]...)
	l.cursor = len(l.entries)
	return out
}

// Truncate removes every entry and returns how many were removed.
// Sequence numbers keep increasing afterwards.
func (l *Log) Truncate() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	l.entries = nil
	l.cursor = 0
	return n
}
