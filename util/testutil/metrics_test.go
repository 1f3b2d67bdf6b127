package testutil

import (
	"sync"
	"testing"
	"time"
)

func TestLockMetrics_Serializes(t *testing.T) {
	var mu sync.Mutex
	inside := 0
	overlap := false

	t.Run("group", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			t.Run("", func(t *testing.T) {
				t.Parallel()
				LockMetrics(t)

				mu.Lock()
				inside++
				if inside > 1 {
					overlap = true
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
			})
		}
	})

	if overlap {
		t.Error("LockMetrics allowed two tests to run concurrently")
	}
}
