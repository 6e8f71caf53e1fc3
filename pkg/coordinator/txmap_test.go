package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

func TestTxMapWithInsertsAndDeletes(t *testing.T) {
	tm := newTxMap()
	id := shard.NewTxID()

	tm.With(id, func(existing *TxState, ok bool) *TxState {
		if ok {
			t.Fatal("expected no existing state for a fresh id")
		}
		return newTxState(id, shard.TxTypeGeneric, 1, []uint32{2}, []string{"r"}, [32]byte{}, nil, time.Now())
	})

	got, ok := tm.Get(id)
	if !ok || got.TxID != id {
		t.Fatalf("expected tx to be stored, ok=%v", ok)
	}

	tm.With(id, func(existing *TxState, ok bool) *TxState {
		if !ok || existing.TxID != id {
			t.Fatal("expected to see the previously stored state")
		}
		return nil // delete
	})

	if _, ok := tm.Get(id); ok {
		t.Fatal("expected tx to be removed after With returned nil")
	}
}

func TestTxMapRangeVisitsEveryBucket(t *testing.T) {
	tm := newTxMap()
	const n = 50
	ids := make([]shard.TxID, n)
	for i := 0; i < n; i++ {
		id := shard.NewTxID()
		ids[i] = id
		tm.With(id, func(*TxState, bool) *TxState {
			return newTxState(id, shard.TxTypeGeneric, 1, nil, nil, [32]byte{}, nil, time.Now())
		})
	}

	seen := map[shard.TxID]bool{}
	var mu sync.Mutex
	tm.Range(func(s *TxState) {
		mu.Lock()
		seen[s.TxID] = true
		mu.Unlock()
	})

	if len(seen) != n {
		t.Fatalf("expected Range to visit %d transactions, saw %d", n, len(seen))
	}
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("Range missed transaction %s", id)
		}
	}
}

func TestTxMapBucketingIsStable(t *testing.T) {
	tm := newTxMap()
	id := shard.NewTxID()
	b1 := tm.bucket(id)
	b2 := tm.bucket(id)
	if b1 != b2 {
		t.Fatal("expected bucket(id) to be deterministic for the same id")
	}
}
