package stats

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestServiceCounter_Bounded(t *testing.T) {
	sc := NewServiceCounter("svc", 2, nil)
	a := sc.GetOrCreateEndpoint("a")
	sc.GetOrCreateEndpoint("b")
	if sc.GetOrCreateEndpoint("a") != a {
		t.Fatal("existing endpoint should be returned")
	}
	sc.GetOrCreateEndpoint("c")

	if sc.Len() != 2 {
		t.Errorf("Len = %d, want 2", sc.Len())
	}
	if sc.GetEndpoint("b") != nil {
		t.Error("least recently used endpoint b should have been dropped")
	}
	if sc.GetEndpoint("a") == nil || sc.GetEndpoint("c") == nil {
		t.Error("a and c should remain")
	}
}

func TestServiceCounter_EvictIdle(t *testing.T) {
	mock := clock.NewMock()
	sc := NewServiceCounter("svc", 0, mock)
	sc.GetOrCreateEndpoint("old")
	mock.Add(10 * time.Minute)
	sc.GetOrCreateEndpoint("fresh")

	if n := sc.EvictIdle(5 * time.Minute); n != 1 {
		t.Fatalf("EvictIdle removed %d, want 1", n)
	}
	if sc.GetEndpoint("old") != nil {
		t.Error("old endpoint should be evicted")
	}
	if sc.GetEndpoint("fresh") == nil {
		t.Error("fresh endpoint should remain")
	}
}

func TestRegistry_EvictIdleKeepsInFlight(t *testing.T) {
	mock := clock.NewMock()
	r := NewRegistry(0, mock)
	c := r.Counter("svc", "ep", "/m")
	if !c.Begin(1) {
		t.Fatal("first Begin should be admitted")
	}
	mock.Add(2 * time.Minute)

	if n := r.EvictIdle(time.Minute); n != 0 {
		t.Fatalf("EvictIdle removed %d, want 0 while a call is in flight", n)
	}
	if r.Counter("svc", "ep", "/m").Begin(1) {
		t.Error("the in-flight call should still count against max")
	}

	c.End(10, true)
	mock.Add(2 * time.Minute)
	if n := r.EvictIdle(time.Minute); n != 1 {
		t.Fatalf("EvictIdle removed %d, want 1 after the call ended", n)
	}
	if r.Lookup("svc", "ep", "/m") != nil {
		t.Error("endpoint should be gone")
	}
}

func TestRegistry_CounterAndLookup(t *testing.T) {
	r := NewRegistry(0, nil)
	if r.Lookup("svc", "ep", "/m") != nil {
		t.Fatal("Lookup must not create counters")
	}

	c := r.Counter("svc", "ep", "/m/")
	if r.Lookup("svc", "ep", "/m") != c {
		t.Error("Lookup should find the created counter")
	}
	if r.Service("svc") == nil || r.Service("other") != nil {
		t.Error("Service lookup mismatch")
	}
	if r.Lookup("svc", "other", "/m") != nil {
		t.Error("Lookup on unknown endpoint should be nil")
	}
}

func TestRegistry_SnapshotAndEvict(t *testing.T) {
	mock := clock.NewMock()
	r := NewRegistry(0, mock)
	c := r.Counter("svc", "ep1", "/m")
	for i := 0; i < 12; i++ {
		c.Success(8)
	}
	r.Snapshot()
	if got := c.GetSnapshot().LastSucceededAverageElapsed(); got != 8 {
		t.Errorf("cached average = %d, want 8", got)
	}

	mock.Add(time.Hour)
	r.Counter("svc2", "ep2", "/n")
	if n := r.EvictIdle(30 * time.Minute); n != 1 {
		t.Errorf("EvictIdle = %d, want 1", n)
	}
	if r.Lookup("svc", "ep1", "/m") != nil {
		t.Error("idle endpoint should be gone")
	}
}

func TestSnapshotter_Run(t *testing.T) {
	mock := clock.NewMock()
	r := NewRegistry(0, mock)
	c := r.Counter("svc", "ep", "/m")
	for i := 0; i < 10; i++ {
		c.Success(40)
	}

	s := NewSnapshotter(r, time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for c.GetSnapshot().LastSucceededAverageElapsed() != 40 {
		if time.Now().After(deadline) {
			t.Fatal("snapshot was never rotated")
		}
		mock.Add(time.Second)
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestSnapshotter_TickEvicts(t *testing.T) {
	mock := clock.NewMock()
	r := NewRegistry(0, mock)
	r.Counter("svc", "ep", "/m")

	s := NewSnapshotter(r, 0, time.Minute)
	if s.interval != DefaultSnapshotInterval {
		t.Errorf("interval = %v, want default", s.interval)
	}

	mock.Add(2 * time.Minute)
	s.Tick()
	if r.Service("svc").Len() != 0 {
		t.Error("Tick should evict idle endpoints")
	}
}
