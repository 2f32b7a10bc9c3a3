// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package testutil

import (
	"runtime"
	"testing"

	"github.com/vishvananda/netns"
)

// InNetNS runs fn on a locked OS thread inside a fresh network namespace,
// so nftables tables, qdiscs and neighbor entries created by fn vanish with
// it. Requires root.
func InNetNS(t *testing.T, fn func()) {
	t.Helper()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		t.Fatalf("failed to get current netns: %v", err)
	}
	defer orig.Close()

	ns, err := netns.New()
	if err != nil {
		t.Fatalf("failed to create netns: %v", err)
	}
	defer ns.Close()
	defer func() {
		if err := netns.Set(orig); err != nil {
			t.Errorf("failed to restore netns: %v", err)
		}
	}()

	fn()
}
