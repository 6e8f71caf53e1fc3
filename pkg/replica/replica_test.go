package replica

import (
	"testing"
	"time"
)

func TestFailoverToLowestHealthy(t *testing.T) {
	set := NewSet(1, map[uint32]string{2: "ep2", 3: "ep3"}, 10*time.Millisecond)
	base := time.Now()
	set.RecordHeartbeat(2, base)
	set.RecordHeartbeat(3, base)

	// primary should start as the lowest id (1, self)
	if set.Primary() != 1 {
		t.Fatalf("expected initial primary 1, got %d", set.Primary())
	}

	// force replica 1 (self) to look failed by manipulating health directly
	set.mu.Lock()
	set.replicas[1].Health = HealthFailed
	set.mu.Unlock()

	later := base.Add(20 * time.Millisecond)
	failedOver := set.CheckHealth(later)
	if !failedOver {
		t.Fatal("expected failover to occur")
	}
	if set.Primary() == 1 {
		t.Error("primary should no longer be the failed replica")
	}
}

func TestDefaultThreshold(t *testing.T) {
	cases := map[int]int{1: 2, 2: 2, 3: 2, 4: 4, 5: 4, 6: 4, 7: 6}
	for n, want := range cases {
		if got := DefaultThreshold(n); got != want {
			t.Errorf("DefaultThreshold(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestDecisionApprovalRequiresThreshold(t *testing.T) {
	sk1, pk1, _ := GenerateKeyPair()
	sk2, pk2, _ := GenerateKeyPair()
	msg := []byte("evict shard 7")

	d := NewDecision("p1", msg, 2)
	sig1 := sk1.Sign(msg)
	if _, err := d.AddVote(1, sig1, pk1); err != nil {
		t.Fatalf("add vote 1: %v", err)
	}
	if ok, _, _ := d.Approved(); ok {
		t.Error("should not be approved with only one vote")
	}

	sig2 := sk2.Sign(msg)
	if _, err := d.AddVote(2, sig2, pk2); err != nil {
		t.Fatalf("add vote 2: %v", err)
	}
	ok, agg, err := d.Approved()
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	if !ok || agg == nil {
		t.Error("expected decision to be approved with aggregate signature")
	}
}

func TestVotingKeyRegistrationAndPeers(t *testing.T) {
	set := NewSet(1, map[uint32]string{2: "ep2", 3: "ep3"}, time.Second)
	_, pk2, _ := GenerateKeyPair()
	set.SetVotingKey(2, pk2)

	got, ok := set.VotingKey(2)
	if !ok || got != pk2 {
		t.Fatalf("expected voting key for replica 2 to round-trip")
	}
	if _, ok := set.VotingKey(99); ok {
		t.Error("expected no voting key for an unknown replica")
	}

	peers := set.Peers()
	if len(peers) != 2 || peers[0] != 2 || peers[1] != 3 {
		t.Errorf("unexpected peer set: %v", peers)
	}
}

func TestDecisionRejectsInvalidVote(t *testing.T) {
	sk1, _, _ := GenerateKeyPair()
	_, pk2, _ := GenerateKeyPair()
	msg := []byte("evict shard 7")
	d := NewDecision("p1", msg, 1)
	sig := sk1.Sign(msg)
	if _, err := d.AddVote(1, sig, pk2); err == nil {
		t.Error("expected signature verification to fail against the wrong public key")
	}
}
