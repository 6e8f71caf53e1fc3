// Package shardstate defines the narrow hook the cross-shard coordinator
// uses to apply a committed transaction's effects to local shard state.
// Everything about how a shard validates or executes a block is out of
// scope here — this is only the interface the participant calls once a
// commit's proofs have verified.
package shardstate

import (
	"fmt"
	"sync"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

// Applier applies a committed transaction's payload to local state. Apply
// must be idempotent: the participant may call it more than once for the
// same txID after a crash-restart replay of the journal.
type Applier interface {
	Apply(txID shard.TxID, payload []byte) error
}

// InMemory is a reference Applier that records applied payloads in memory,
// used by tests and standalone demos in place of real shard execution.
type InMemory struct {
	mu      sync.Mutex
	applied map[shard.TxID][]byte
}

// NewInMemory creates an empty in-memory state applier.
func NewInMemory() *InMemory {
	return &InMemory{applied: make(map[shard.TxID][]byte)}
}

// Apply records payload as applied for txID. Re-applying the same txID
// with an identical payload is a no-op; re-applying with a different
// payload is rejected, since that would indicate a non-idempotent replay.
func (m *InMemory) Apply(txID shard.TxID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.applied[txID]; ok {
		if string(existing) != string(payload) {
			return fmt.Errorf("shardstate: conflicting re-apply for tx %s", txID.String())
		}
		return nil
	}
	m.applied[txID] = append([]byte(nil), payload...)
	return nil
}

// Get returns the payload previously applied for txID, if any.
func (m *InMemory) Get(txID shard.TxID) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.applied[txID]
	return v, ok
}
