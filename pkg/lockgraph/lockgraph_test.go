package lockgraph

import (
	"testing"
	"time"
)

func TestAcquireAllOrNothing(t *testing.T) {
	g := New()
	now := time.Now()

	if r := g.TryAcquire("tx1", 1, []string{"a", "b"}, time.Minute, now); r != Acquired {
		t.Fatalf("expected Acquired, got %v", r)
	}

	// tx2 conflicts on "b"; must not partially lock "c".
	r := g.TryAcquire("tx2", 2, []string{"c", "b"}, time.Minute, now)
	if r != Conflict {
		t.Fatalf("expected Conflict, got %v", r)
	}
	// "c" must not have been locked despite appearing before the conflicting resource.
	r2 := g.TryAcquire("tx3", 3, []string{"c"}, time.Minute, now)
	if r2 != Acquired {
		t.Errorf("expected tx3 to acquire unheld resource c, got %v", r2)
	}
}

func TestDeadlockDetection(t *testing.T) {
	g := New()
	now := time.Now()

	if r := g.TryAcquire("tx1", 1, []string{"a"}, time.Minute, now); r != Acquired {
		t.Fatalf("tx1 acquire a: %v", r)
	}
	if r := g.TryAcquire("tx2", 2, []string{"b"}, time.Minute, now); r != Acquired {
		t.Fatalf("tx2 acquire b: %v", r)
	}

	// tx1 now wants b (held by tx2) - conflict, tx1 becomes a waiter on b.
	if r := g.TryAcquire("tx1", 1, []string{"b"}, time.Minute, now); r != Conflict {
		t.Fatalf("tx1 wants b: %v", r)
	}

	// tx2 now wants a (held by tx1) - this closes the cycle tx2->a->tx1->b->tx2.
	if r := g.TryAcquire("tx2", 2, []string{"a"}, time.Minute, now); r != Deadlock {
		t.Fatalf("expected deadlock, got %v", r)
	}
}

func TestReleaseFreesResources(t *testing.T) {
	g := New()
	now := time.Now()
	g.TryAcquire("tx1", 1, []string{"a"}, time.Minute, now)
	g.Release("tx1")
	if r := g.TryAcquire("tx2", 2, []string{"a"}, time.Minute, now); r != Acquired {
		t.Errorf("expected resource to be free after release, got %v", r)
	}
}

func TestSweepExpiresLocks(t *testing.T) {
	g := New()
	now := time.Now()
	g.TryAcquire("tx1", 1, []string{"a"}, time.Millisecond, now)

	later := now.Add(time.Second)
	expired := g.Sweep(later)
	if len(expired) != 1 || expired[0] != "a" {
		t.Errorf("expected resource a to expire, got %v", expired)
	}

	if r := g.TryAcquire("tx2", 2, []string{"a"}, time.Minute, later); r != Acquired {
		t.Errorf("expected resource free after expiry, got %v", r)
	}
}
