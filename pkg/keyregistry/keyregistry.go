// Package keyregistry maps a shard id to the public keys used to
// authenticate that shard's messages. It is a process-wide explicit handle
// shared by the coordinator and participant handler — never a hidden
// global.
package keyregistry

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cloudflare/circl/kem"
	circlsign "github.com/cloudflare/circl/sign"
)

// Entry is the published key material for one shard.
type Entry struct {
	SigPrimary   circlsign.PublicKey // family A (ML-DSA-65)
	SigSecondary circlsign.PublicKey // family B (SLH-DSA), optional
	KEMPublic    kem.PublicKey
}

// Registry is safe for concurrent reads; registration is serialized and
// idempotent only when the new value equals the stored one.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint32]*Entry
}

func New() *Registry {
	return &Registry{entries: make(map[uint32]*Entry)}
}

// Register publishes shard_id's keys. A second call for the same shard_id
// succeeds only if every field is byte-identical to what is already stored;
// otherwise it fails rather than silently overwriting.
func (r *Registry) Register(shardID uint32, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[shardID]
	if !ok {
		r.entries[shardID] = entry
		return nil
	}
	if !entriesEqual(existing, entry) {
		return fmt.Errorf("keyregistry: shard %d already registered with different keys", shardID)
	}
	return nil
}

// Get returns the registered entry for shardID, or false if unknown.
func (r *Registry) Get(shardID uint32) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[shardID]
	return e, ok
}

// SigPublicKey returns the primary (family A) signing public key for
// shardID, or the secondary (family B) if wantSecondary is set.
func (r *Registry) SigPublicKey(shardID uint32, wantSecondary bool) (circlsign.PublicKey, bool) {
	e, ok := r.Get(shardID)
	if !ok {
		return nil, false
	}
	if wantSecondary {
		if e.SigSecondary == nil {
			return nil, false
		}
		return e.SigSecondary, true
	}
	if e.SigPrimary == nil {
		return nil, false
	}
	return e.SigPrimary, true
}

// KEMPublicKey returns the registered KEM public key for shardID.
func (r *Registry) KEMPublicKey(shardID uint32) (kem.PublicKey, bool) {
	e, ok := r.Get(shardID)
	if !ok || e.KEMPublic == nil {
		return nil, false
	}
	return e.KEMPublic, true
}

func entriesEqual(a, b *Entry) bool {
	return publicKeyBytesEqual(a.SigPrimary, b.SigPrimary) &&
		publicKeyBytesEqual(a.SigSecondary, b.SigSecondary) &&
		kemPublicKeyBytesEqual(a.KEMPublic, b.KEMPublic)
}

func publicKeyBytesEqual(a, b circlsign.PublicKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, errA := a.MarshalBinary()
	bb, errB := b.MarshalBinary()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func kemPublicKeyBytesEqual(a, b kem.PublicKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, errA := a.MarshalBinary()
	bb, errB := b.MarshalBinary()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
