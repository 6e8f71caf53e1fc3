package shardstate

import (
	"testing"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

func TestApplyIsIdempotent(t *testing.T) {
	a := NewInMemory()
	txID := shard.NewTxID()
	if err := a.Apply(txID, []byte("payload")); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := a.Apply(txID, []byte("payload")); err != nil {
		t.Errorf("re-apply with identical payload should succeed, got %v", err)
	}
	got, ok := a.Get(txID)
	if !ok || string(got) != "payload" {
		t.Errorf("unexpected stored payload: %q ok=%v", got, ok)
	}
}

func TestApplyRejectsConflictingReplay(t *testing.T) {
	a := NewInMemory()
	txID := shard.NewTxID()
	if err := a.Apply(txID, []byte("a")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := a.Apply(txID, []byte("b")); err == nil {
		t.Error("expected conflicting re-apply to fail")
	}
}
