package coordinator

import (
	"sync"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

// txMapShards is the number of independent buckets the tx map is split
// across, so unrelated transactions never contend on the same mutex.
const txMapShards = 16

// txMap is a TxID-sharded map of live transaction states. Sharding by the
// low bits of the TxID hash means per-TxId serialization never blocks
// unrelated transactions, matching the "tx-map sharded by TxId hash"
// concurrency rule.
type txMap struct {
	buckets [txMapShards]struct {
		mu sync.Mutex
		m  map[shard.TxID]*TxState
	}
}

func newTxMap() *txMap {
	tm := &txMap{}
	for i := range tm.buckets {
		tm.buckets[i].m = make(map[shard.TxID]*TxState)
	}
	return tm
}

func (tm *txMap) bucket(id shard.TxID) *struct {
	mu sync.Mutex
	m  map[shard.TxID]*TxState
} {
	var h byte
	for _, b := range id.Bytes() {
		h ^= b
	}
	return &tm.buckets[int(h)%txMapShards]
}

// With runs fn while holding the exclusive section for id's bucket,
// serializing every handler touching this TxID. No network send may happen
// while fn is running; callers must return outbound messages to be sent
// after With returns.
func (tm *txMap) With(id shard.TxID, fn func(*TxState, bool) *TxState) *TxState {
	b := tm.bucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	existing, ok := b.m[id]
	result := fn(existing, ok)
	if result == nil {
		delete(b.m, id)
	} else {
		b.m[id] = result
	}
	return result
}

func (tm *txMap) Get(id shard.TxID) (*TxState, bool) {
	b := tm.bucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.m[id]
	return s, ok
}

// Range calls fn for every live transaction. Each bucket is snapshotted
// under its mutex and fn runs after that mutex is released, so fn may call
// back into With; a state it sees may have changed or been removed since.
func (tm *txMap) Range(fn func(*TxState)) {
	for i := range tm.buckets {
		b := &tm.buckets[i]
		b.mu.Lock()
		states := make([]*TxState, 0, len(b.m))
		for _, s := range b.m {
			states = append(states, s)
		}
		b.mu.Unlock()
		for _, s := range states {
			fn(s)
		}
	}
}
