// Package xerr defines the structured error kinds surfaced across the
// coordinator, mirroring the coordinator's own CoordinatorError enum from
// the original Rust implementation.
package xerr

import "fmt"

// Kind classifies a coordinator-level failure.
type Kind string

const (
	KindCrypto       Kind = "crypto"
	KindConsensus    Kind = "consensus"
	KindShardFailure Kind = "shard_failure"
	KindLockFailure  Kind = "lock_failure"
	KindInvalidProof Kind = "invalid_proof"
	KindStorage      Kind = "storage"
)

// Error is the structured error type returned at package boundaries where
// callers need more than a sentinel to decide how to react.
type Error struct {
	Kind     Kind
	Message  string
	ShardID  uint32
	Resource string
	TxID     string
	Votes    int
	Required int
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindShardFailure:
		return fmt.Sprintf("shard failure: shard=%d: %s", e.ShardID, e.Message)
	case KindLockFailure:
		return fmt.Sprintf("lock failure: resource=%s: %s", e.Resource, e.Message)
	case KindInvalidProof:
		return fmt.Sprintf("invalid proof: tx=%s: %s", e.TxID, e.Message)
	case KindConsensus:
		return fmt.Sprintf("consensus failure: got %d votes, need %d: %s", e.Votes, e.Required, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Crypto(msg string, err error) error {
	return &Error{Kind: KindCrypto, Message: msg, Err: err}
}

func Storage(msg string, err error) error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

func ShardFailure(shardID uint32, msg string, err error) error {
	return &Error{Kind: KindShardFailure, ShardID: shardID, Message: msg, Err: err}
}

func LockFailure(resource, msg string) error {
	return &Error{Kind: KindLockFailure, Resource: resource, Message: msg}
}

func InvalidProof(txID, msg string) error {
	return &Error{Kind: KindInvalidProof, TxID: txID, Message: msg}
}

func Consensus(votes, required int, msg string) error {
	return &Error{Kind: KindConsensus, Votes: votes, Required: required, Message: msg}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}
