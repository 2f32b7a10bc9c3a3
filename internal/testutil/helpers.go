// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"os"
	"testing"
)

// HostTestEnv must be set for tests that mutate the real host.
const HostTestEnv = "WLANGUARD_HOST_TEST"

// RequireHost skips the test unless WLANGUARD_HOST_TEST is set and the test
// runs as root. Such tests install nftables rules and qdiscs, so they belong
// in a throwaway VM or network namespace.
func RequireHost(t *testing.T) {
	t.Helper()
	if os.Getenv(HostTestEnv) == "" {
		t.Skip("Skipping test: requires " + HostTestEnv + " environment")
	}
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
