package coordinator_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/coordinator"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/journal"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/keyregistry"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/lockgraph"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/participant"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shardstate"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/transport"
)

type node struct {
	signer *pqcrypto.SignerKeys
	kem    *pqcrypto.KEMKeyPair
}

func newNode(t *testing.T) *node {
	t.Helper()
	sigA, err := pqcrypto.GenerateSigKeyPair(pqcrypto.FamilyA)
	if err != nil {
		t.Fatalf("gen sig: %v", err)
	}
	kemKP, err := pqcrypto.GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("gen kem: %v", err)
	}
	return &node{signer: &pqcrypto.SignerKeys{A: sigA}, kem: kemKP}
}

func memJournal(t *testing.T) *journal.Journal {
	t.Helper()
	return journal.OpenWith(dbm.NewMemDB())
}

func TestTwoPhaseCommitHappyPath(t *testing.T) {
	registry := keyregistry.New()
	shard1 := newNode(t)
	shard2 := newNode(t)

	if err := registry.Register(1, &keyregistry.Entry{SigPrimary: shard1.signer.A.Public, KEMPublic: shard1.kem.Public}); err != nil {
		t.Fatalf("register shard1: %v", err)
	}
	if err := registry.Register(2, &keyregistry.Entry{SigPrimary: shard2.signer.A.Public, KEMPublic: shard2.kem.Public}); err != nil {
		t.Fatalf("register shard2: %v", err)
	}

	mem := transport.NewMemory(16)
	logger := log.New(os.Stderr, "", 0)

	coord := coordinator.New(1, pqcrypto.SchemeFamilyA, nil, shard1.signer, shard1.kem, nil, nil, registry, lockgraph.New(), memJournal(t), mem, metrics.New(), time.Second, 3, time.Minute, time.Minute, logger)

	applier := shardstate.NewInMemory()
	p2 := participant.New(2, pqcrypto.SchemeFamilyA, shard2.signer, shard2.kem, nil, registry, lockgraph.New(), memJournal(t), mem, applier, time.Minute, time.Minute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p2.Serve(ctx)
	go coord.Serve(ctx)

	txID, err := coord.InitiateTransaction(ctx, shard.TxTypeGeneric, []byte("transfer 10 from a to b"), []uint32{1, 2}, []string{"acct:a", "acct:b"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		s, ok := coord.GetTransactionStatus(txID)
		if !ok {
			break // finalized and removed on unanimity
		}
		_ = s
		select {
		case <-deadline:
			t.Fatalf("transaction did not finalize in time, last state: %+v", s)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPrepareFailureAborts(t *testing.T) {
	registry := keyregistry.New()
	shard1 := newNode(t)
	shard2 := newNode(t)
	registry.Register(1, &keyregistry.Entry{SigPrimary: shard1.signer.A.Public, KEMPublic: shard1.kem.Public})
	registry.Register(2, &keyregistry.Entry{SigPrimary: shard2.signer.A.Public, KEMPublic: shard2.kem.Public})

	mem := transport.NewMemory(16)
	logger := log.New(os.Stderr, "", 0)

	coord := coordinator.New(1, pqcrypto.SchemeFamilyA, nil, shard1.signer, shard1.kem, nil, nil, registry, lockgraph.New(), memJournal(t), mem, metrics.New(), time.Second, 3, time.Minute, time.Minute, logger)

	locks2 := lockgraph.New()
	// Pre-lock the contested resource under an unrelated tx so shard2's
	// prepare attempt conflicts and the whole transaction aborts.
	locks2.TryAcquire("blocking-tx", 2, []string{"acct:b"}, time.Minute, time.Now())

	applier := shardstate.NewInMemory()
	p2 := participant.New(2, pqcrypto.SchemeFamilyA, shard2.signer, shard2.kem, nil, registry, locks2, memJournal(t), mem, applier, time.Minute, time.Minute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p2.Serve(ctx)
	go coord.Serve(ctx)

	txID, err := coord.InitiateTransaction(ctx, shard.TxTypeGeneric, []byte("transfer"), []uint32{1, 2}, []string{"acct:a", "acct:b"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	deadline := time.After(2 * time.Second)
	var lastPhase shard.Phase
	for {
		s, ok := coord.GetTransactionStatus(txID)
		if !ok {
			if lastPhase != shard.PhaseAbort {
				t.Fatalf("expected to observe Abort phase before finalization, last was %v", lastPhase)
			}
			break
		}
		lastPhase = s.Phase
		select {
		case <-deadline:
			t.Fatalf("transaction did not finalize in time, last state: %+v", s)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
