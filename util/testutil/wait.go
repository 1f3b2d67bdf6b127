package testutil

import (
	"testing"
	"time"
)

// WaitFor polls condition every 50ms until it returns true, failing the test with
// message once timeout elapses.
//
//	testutil.WaitFor(t, 5*time.Second, "rule set to be published", func() bool {
//	    return store.RuleSet() != nil
//	})
func WaitFor(t testing.TB, timeout time.Duration, message string, condition func() bool) {
	t.Helper()

	if condition() {
		return
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s (waited %v)", message, timeout)
		}
	}
}
