package keyregistry

import (
	"testing"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
)

func newEntry(t *testing.T) *Entry {
	t.Helper()
	sigA, err := pqcrypto.GenerateSigKeyPair(pqcrypto.FamilyA)
	if err != nil {
		t.Fatalf("gen sig: %v", err)
	}
	kemKP, err := pqcrypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("gen kem: %v", err)
	}
	return &Entry{SigPrimary: sigA.Public, KEMPublic: kemKP.Public}
}

func TestRegisterAndGet(t *testing.T) {
	reg := New()
	e := newEntry(t)
	if err := reg.Register(1, e); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := reg.Get(1)
	if !ok || got != e {
		t.Error("expected to retrieve the exact registered entry")
	}
}

func TestRegisterIdempotentSameValue(t *testing.T) {
	reg := New()
	e := newEntry(t)
	if err := reg.Register(1, e); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register(1, e); err != nil {
		t.Errorf("re-registering identical entry should succeed, got %v", err)
	}
}

func TestRegisterRejectsConflict(t *testing.T) {
	reg := New()
	e1 := newEntry(t)
	e2 := newEntry(t)
	if err := reg.Register(1, e1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(1, e2); err == nil {
		t.Error("expected conflicting registration to fail")
	}
}
