// xshard-coordinator runs one shard's cross-shard transaction coordinator
// and participant handler, wired from XSHARD_* environment configuration.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/config"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/coordinator"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/journal"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/keyregistry"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/lockgraph"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/participant"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/replica"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shardstate"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "xshard-coordinator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.New(os.Stderr, fmt.Sprintf("[shard-%d] ", cfg.LocalShard), log.LstdFlags)

	scheme := pqcrypto.Scheme(cfg.QuantumSigScheme)
	signer := &pqcrypto.SignerKeys{}
	sigA, err := pqcrypto.LoadOrGenerateSigKey(pqcrypto.FamilyA, cfg.DBPath+"_dilithium.key")
	if err != nil {
		return fmt.Errorf("load family A key: %w", err)
	}
	signer.A = sigA
	sigB, err := pqcrypto.LoadOrGenerateSigKey(pqcrypto.FamilyB, cfg.DBPath+"_falcon.key")
	if err != nil {
		return fmt.Errorf("load family B key: %w", err)
	}
	signer.B = sigB
	kemKeys, err := pqcrypto.LoadOrGenerateKEMKey(cfg.DBPath + "_kyber.key")
	if err != nil {
		return fmt.Errorf("load kem key: %w", err)
	}

	zkpk, zkvk, err := pqcrypto.LoadOrGenerateZKKeys(cfg.DBPath+"_zk_pk.bin", cfg.DBPath+"_zk_vk.bin")
	if err != nil {
		return fmt.Errorf("load zk proving/verifying keys: %w", err)
	}

	registry := keyregistry.New()
	registry.Register(cfg.LocalShard, &keyregistry.Entry{SigPrimary: signer.A.Public, SigSecondary: signer.B.Public, KEMPublic: kemKeys.Public})

	locks := lockgraph.New()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	j, err := journal.Open("journal", cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	m := metrics.New()
	mem := transport.NewMemory(256)

	coord := coordinator.New(cfg.LocalShard, scheme, cfg.ConnectedShards, signer, kemKeys, zkpk, zkvk, registry, locks, j, mem, m,
		time.Duration(cfg.TimeoutMS)*time.Millisecond, cfg.MaxRetries, cfg.LockTTL, cfg.FreshnessWindow, logger)
	if err := coord.Rehydrate(); err != nil {
		return fmt.Errorf("rehydrate coordinator state: %w", err)
	}

	applier := shardstate.NewInMemory()
	part := participant.New(cfg.LocalShard, scheme, signer, kemKeys, zkvk, registry, locks, j, mem, applier, cfg.LockTTL, cfg.FreshnessWindow, logger)

	if cfg.EnableDistributedCoordination {
		votingKey, err := replica.LoadOrGenerateKey(cfg.DBPath + "_bls.key")
		if err != nil {
			return fmt.Errorf("load replica voting key: %w", err)
		}
		endpoints := make(map[uint32]string, cfg.CoordinatorReplicas)
		for i, ep := range cfg.ReplicaEndpoints {
			endpoints[uint32(i)] = ep
		}
		replicaSet := replica.NewSet(cfg.ReplicaID, endpoints, cfg.ReplicaHeartbeatInterval)
		replicaSet.SetVotingKey(cfg.ReplicaID, votingKey.PublicKey())
		coord.EnableReplicaSet(replicaSet, transport.NewMemory(64), votingKey)
		logger.Printf("distributed coordination enabled: replica %d of %d", cfg.ReplicaID, cfg.CoordinatorReplicas)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go coord.Serve(ctx)
	go part.Serve(ctx)
	go coord.RunTimeoutLoop(ctx, time.Duration(cfg.TimeoutCheckIntervalMS)*time.Millisecond)
	if cfg.EnableDistributedCoordination {
		go coord.ServeReplica(ctx, cfg.ReplicaID)
		go coord.RunReplicaLoop(ctx, cfg.ReplicaID, cfg.ReplicaHeartbeatInterval)
	}

	logger.Printf("xshard coordinator up, connected shards %v", cfg.ConnectedShards)
	<-ctx.Done()
	logger.Printf("shutting down")
	return nil
}

