package participant_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/journal"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/keyregistry"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/lockgraph"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/participant"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shardstate"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/transport"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/wire"
)

func keypair(t *testing.T) (*pqcrypto.SignerKeys, *pqcrypto.KEMKeyPair) {
	t.Helper()
	sigA, err := pqcrypto.GenerateSigKeyPair(pqcrypto.FamilyA)
	if err != nil {
		t.Fatalf("gen sig: %v", err)
	}
	kemKP, err := pqcrypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("gen kem: %v", err)
	}
	return &pqcrypto.SignerKeys{A: sigA}, kemKP
}

func TestHandlePrepareRequestRejectsBadSignature(t *testing.T) {
	registry := keyregistry.New()
	coordKeys, coordKEM := keypair(t)
	partKeys, partKEM := keypair(t)
	registry.Register(1, &keyregistry.Entry{SigPrimary: coordKeys.A.Public, KEMPublic: coordKEM.Public})
	registry.Register(2, &keyregistry.Entry{SigPrimary: partKeys.A.Public, KEMPublic: partKEM.Public})

	mem := transport.NewMemory(4)
	logger := log.New(os.Stderr, "", 0)
	h := participant.New(2, pqcrypto.SchemeFamilyA, partKeys, partKEM, nil, registry, lockgraph.New(), journal.OpenWith(dbm.NewMemDB()), mem, shardstate.NewInMemory(), time.Minute, time.Minute, logger)

	// Sign with the wrong key (shard 2's own key instead of shard 1's) so
	// the envelope signature check must fail.
	badSig, err := pqcrypto.Sign(partKeys, pqcrypto.SchemeFamilyA, []byte("not the real signed bytes"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := &wire.PrepareRequest{
		TxID:            [16]byte{1},
		TxCiphertext:    make([]byte, pqcrypto.KEMCiphertextSize()+16),
		SharedSecretSig: badSig,
		FromShard:       1,
		ToShard:         2,
		Signature:       badSig,
		Timestamp:       time.Now(),
	}
	if err := h.HandlePrepareRequest(context.Background(), req); err == nil {
		t.Error("expected signature verification to fail")
	}
}

func TestAbortIsIdempotentForUnknownTx(t *testing.T) {
	registry := keyregistry.New()
	coordKeys, coordKEM := keypair(t)
	partKeys, partKEM := keypair(t)
	registry.Register(1, &keyregistry.Entry{SigPrimary: coordKeys.A.Public, KEMPublic: coordKEM.Public})
	registry.Register(2, &keyregistry.Entry{SigPrimary: partKeys.A.Public, KEMPublic: partKEM.Public})

	mem := transport.NewMemory(4)
	logger := log.New(os.Stderr, "", 0)
	h := participant.New(2, pqcrypto.SchemeFamilyA, partKeys, partKEM, nil, registry, lockgraph.New(), journal.OpenWith(dbm.NewMemDB()), mem, shardstate.NewInMemory(), time.Minute, time.Minute, logger)

	req := &wire.AbortRequest{TxID: [16]byte{9}, Reason: "unknown", CoordinatorShard: 1}
	sig, err := pqcrypto.Sign(coordKeys, pqcrypto.SchemeFamilyA, append(append([]byte{}, req.TxID[:]...), []byte(req.Reason)...))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req.Signature = sig

	if err := h.HandleAbortRequest(context.Background(), req); err != nil {
		t.Fatalf("abort of unknown tx should succeed, got %v", err)
	}
	raw, err := mem.Recv(context.Background(), 1)
	if err != nil {
		t.Fatalf("recv ack: %v", err)
	}
	ack, err := wire.UnmarshalAcknowledgment(raw)
	if err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if !ack.Success || ack.Phase != wire.PhaseAbort {
		t.Errorf("expected successful abort ack, got %+v", ack)
	}
}
