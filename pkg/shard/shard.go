// Package shard defines the identifiers shared by every coordinator
// component: the participant shard tag and the cross-shard transaction id.
package shard

import (
	"github.com/google/uuid"
)

// ID tags a participant domain in the cross-shard protocol.
type ID uint32

// TxID uniquely identifies a cross-shard transaction. It is assigned once at
// initiation and never reused.
type TxID uuid.UUID

// NewTxID generates a fresh random transaction id.
func NewTxID() TxID {
	return TxID(uuid.New())
}

// String renders the canonical UUID form.
func (t TxID) String() string {
	return uuid.UUID(t).String()
}

// Bytes returns the raw 16-byte representation used on the wire.
func (t TxID) Bytes() []byte {
	u := uuid.UUID(t)
	return u[:]
}

// Bytes16 returns the fixed-size array form used by wire message structs.
func (t TxID) Bytes16() [16]byte {
	return [16]byte(uuid.UUID(t))
}

// TxIDFromBytes parses a 16-byte wire representation.
func TxIDFromBytes(b []byte) (TxID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return TxID{}, err
	}
	return TxID(u), nil
}

// ParseTxID parses the canonical string UUID form, as stored in journal keys.
func ParseTxID(s string) (TxID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TxID{}, err
	}
	return TxID(u), nil
}

// Phase is the two-phase-commit state of a cross-shard transaction.
// It advances monotonically: Prepare -> Commit or Prepare -> Abort.
// Commit and Abort are both terminal; transitions between them are forbidden.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseCommit
	PhaseAbort
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseCommit:
		return "commit"
	case PhaseAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase is a fixed point of the state machine.
func (p Phase) Terminal() bool {
	return p == PhaseCommit || p == PhaseAbort
}

// TxType classifies the application-level effect of a transaction. It rides
// opaquely through the coordinator and is never interpreted by the protocol
// itself.
type TxType int

const (
	TxTypeDirectTransfer TxType = iota
	TxTypeGeneric
)

func (t TxType) String() string {
	switch t {
	case TxTypeDirectTransfer:
		return "direct_transfer"
	case TxTypeGeneric:
		return "generic"
	default:
		return "unknown"
	}
}
