package testutil

import (
	"sync"
	"testing"
)

var metricsTestMutex sync.Mutex

// LockMetrics acquires a global lock for tests that touch the global prometheus
// metrics, so one test's Reset() cannot clear values another test is reading.
// The lock is released via t.Cleanup when the test completes.
//
//	func TestMyMetrics(t *testing.T) {
//	    testutil.LockMetrics(t)
//	    metrics.RouteDecisionsTotal.Reset()
//	    // ...
//	}
func LockMetrics(t testing.TB) {
	t.Helper()

	metricsTestMutex.Lock()
	t.Cleanup(func() {
		metricsTestMutex.Unlock()
	})
}
