package coordinator_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/coordinator"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/keyregistry"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/lockgraph"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/replica"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/transport"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/wire"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	registry := keyregistry.New()
	n := newNode(t)
	registry.Register(1, &keyregistry.Entry{SigPrimary: n.signer.A.Public, KEMPublic: n.kem.Public})
	logger := log.New(os.Stderr, "", 0)
	return coordinator.New(1, pqcrypto.SchemeFamilyA, nil, n.signer, n.kem, nil, nil, registry, lockgraph.New(), memJournal(t), transport.NewMemory(4), metrics.New(), time.Second, 3, time.Minute, time.Minute, logger)
}

func TestInitiateTransactionRejectsWhenNotPrimary(t *testing.T) {
	coord := newTestCoordinator(t)
	set := replica.NewSet(2, map[uint32]string{1: "ep1"}, time.Second) // selfID 2, primary will be 1
	coord.EnableReplicaSet(set, transport.NewMemory(4), nil)

	if set.IsPrimary() {
		t.Fatal("test setup expects self not to be primary")
	}

	_, err := coord.InitiateTransaction(context.Background(), shard.TxTypeGeneric, []byte("x"), []uint32{1}, []string{"r"})
	if err == nil {
		t.Error("expected InitiateTransaction to fail when this replica is not primary")
	}
}

func TestReplicaHeartbeatRoundTrip(t *testing.T) {
	coord := newTestCoordinator(t)
	sk, pk, err := replica.GenerateKeyPair()
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	set := replica.NewSet(1, map[uint32]string{2: "ep2"}, time.Second)
	set.SetVotingKey(2, pk)
	coord.EnableReplicaSet(set, transport.NewMemory(4), nil)

	// Sign over the same RFC3339Nano-formatted timestamp HandleReplicaHeartbeat
	// will recompute the hash against.
	hb := &wire.ReplicaHeartbeat{ReplicaID: 2, Timestamp: time.Unix(0, 0).UTC()}
	msgHash := replica.ComputeMessageHash(replica.DomainHeartbeat, []byte(hb.Timestamp.Format(time.RFC3339Nano)))
	sig := sk.SignWithDomain(msgHash[:], replica.DomainHeartbeat)
	hb.BLSSignature = sig.Bytes()

	if err := coord.HandleReplicaHeartbeat(hb); err != nil {
		t.Fatalf("expected valid heartbeat to verify, got %v", err)
	}
}
