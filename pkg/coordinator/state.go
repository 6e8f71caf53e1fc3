// Package coordinator implements the cross-shard transaction coordinator's
// state machine: initiation, prepare-response handling, commit/abort
// broadcast, acknowledgment collection, and the timeout/retry loop.
package coordinator

import (
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

// TxState is the coordinator's durable record of one in-flight cross-shard
// transaction. It is journaled on every state-observable transition before
// any corresponding message leaves the process.
type TxState struct {
	TxID         shard.TxID
	TxType       shard.TxType
	Phase        shard.Phase
	Participants []uint32
	Resources    []string
	QuantumHash  [32]byte
	Payload      []byte // the opaque TransactionPayload.Apply bytes

	Prepared  map[uint32]bool
	Committed map[uint32]bool // acks received for the terminal phase

	RetryCount int
	LastAction time.Time
	AbortReason string
}

// newTxState builds a fresh Prepare-phase state for a just-initiated
// transaction. The local shard is implicitly prepared, matching the
// coordinator's "local shard never round-trips a message to itself" rule.
func newTxState(txID shard.TxID, txType shard.TxType, localShard uint32, participants []uint32, resources []string, quantumHash [32]byte, payload []byte, now time.Time) *TxState {
	prepared := make(map[uint32]bool, len(participants)+1)
	prepared[localShard] = true
	return &TxState{
		TxID:         txID,
		TxType:       txType,
		Phase:        shard.PhasePrepare,
		Participants: participants,
		Resources:    resources,
		QuantumHash:  quantumHash,
		Payload:      payload,
		Prepared:     prepared,
		Committed:    make(map[uint32]bool),
		LastAction:   now,
	}
}

// allPrepared reports whether every participant (plus the implicit local
// shard) has prepared.
func (s *TxState) allPrepared(localShard uint32) bool {
	for _, p := range s.Participants {
		if !s.Prepared[p] {
			return false
		}
	}
	return s.Prepared[localShard]
}

// remotePeers returns Participants excluding localShard, the set that is
// ever sent a wire message.
func (s *TxState) remotePeers(localShard uint32) []uint32 {
	out := make([]uint32, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p != localShard {
			out = append(out, p)
		}
	}
	return out
}

// unacked returns the subset of remote peers that have not yet acked the
// current terminal phase.
func (s *TxState) unacked(localShard uint32) []uint32 {
	out := make([]uint32, 0, len(s.Participants))
	for _, p := range s.remotePeers(localShard) {
		if !s.Committed[p] {
			out = append(out, p)
		}
	}
	return out
}

// unprepared returns the subset of remote peers that have not yet prepared.
func (s *TxState) unprepared(localShard uint32) []uint32 {
	out := make([]uint32, 0, len(s.Participants))
	for _, p := range s.remotePeers(localShard) {
		if !s.Prepared[p] {
			out = append(out, p)
		}
	}
	return out
}
