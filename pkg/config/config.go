// Copyright 2025 Certen Protocol

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"os"
)

// QuantumSigScheme selects which post-quantum signature family signs
// coordinator and participant messages.
type QuantumSigScheme string

const (
	SchemeA      QuantumSigScheme = "A"      // lattice-based (ML-DSA-65)
	SchemeB      QuantumSigScheme = "B"      // hash-based (SLH-DSA)
	SchemeHybrid QuantumSigScheme = "hybrid" // deterministically collapses to SchemeA
)

// Config holds all configuration for the cross-shard coordinator service.
type Config struct {
	// Identity
	LocalShard      uint32
	ConnectedShards []uint32
	DBPath          string

	// Timing
	TimeoutMS                  int
	TimeoutCheckIntervalMS     int
	HealthCheckIntervalMS      int
	MaxRetries                 int
	LockTTL                    time.Duration
	FreshnessWindow            time.Duration

	// Crypto
	QuantumSignatureEnabled bool
	QuantumSigScheme        QuantumSigScheme

	// Distributed coordination
	EnableDistributedCoordination bool
	ReplicaID                     uint32
	CoordinatorReplicas           int
	ConsensusThreshold            int
	ReplicaEndpoints              []string
	ReplicaHeartbeatInterval      time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, applying the same
// defaults-then-validate discipline used across the rest of this codebase:
// Load never fails on a missing optional value, but Validate() must be
// called before the coordinator starts.
func Load() (*Config, error) {
	cfg := &Config{
		LocalShard:      uint32(getEnvInt("XSHARD_LOCAL_SHARD", 0)),
		ConnectedShards: parseShardList(getEnv("XSHARD_CONNECTED_SHARDS", "")),
		DBPath:          getEnv("XSHARD_DB_PATH", "./data/xshard"),

		TimeoutMS:              getEnvInt("XSHARD_TIMEOUT_MS", 5000),
		TimeoutCheckIntervalMS: getEnvInt("XSHARD_TIMEOUT_CHECK_INTERVAL_MS", 100),
		HealthCheckIntervalMS:  getEnvInt("XSHARD_HEALTH_CHECK_INTERVAL_MS", 2000),
		MaxRetries:             getEnvInt("XSHARD_MAX_RETRIES", 5),
		LockTTL:                getEnvDuration("XSHARD_LOCK_TTL", 30*time.Second),
		FreshnessWindow:        getEnvDuration("XSHARD_FRESHNESS_WINDOW", 30*time.Second),

		QuantumSignatureEnabled: getEnvBool("XSHARD_QUANTUM_SIGNATURE_ENABLED", true),
		QuantumSigScheme:        QuantumSigScheme(getEnv("XSHARD_QUANTUM_SIG_SCHEME", string(SchemeHybrid))),

		EnableDistributedCoordination: getEnvBool("XSHARD_ENABLE_DISTRIBUTED", false),
		ReplicaID:                     uint32(getEnvInt("XSHARD_REPLICA_ID", 0)),
		CoordinatorReplicas:           getEnvInt("XSHARD_COORDINATOR_REPLICAS", 1),
		ConsensusThreshold:            getEnvInt("XSHARD_CONSENSUS_THRESHOLD", 1),
		ReplicaEndpoints:              parseAttestationPeers(getEnv("XSHARD_REPLICA_ENDPOINTS", "")),
		ReplicaHeartbeatInterval:      getEnvDuration("XSHARD_REPLICA_HEARTBEAT_INTERVAL", time.Second),

		LogLevel: getEnv("XSHARD_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks the configuration against the rules the coordinator
// depends on for correctness. Unlike Load, Validate fails closed.
func (c *Config) Validate() error {
	var errs []string

	if c.TimeoutMS <= 0 {
		errs = append(errs, "XSHARD_TIMEOUT_MS must be > 0")
	}
	if c.TimeoutCheckIntervalMS <= 0 {
		errs = append(errs, "XSHARD_TIMEOUT_CHECK_INTERVAL_MS must be > 0")
	}
	if c.HealthCheckIntervalMS <= 0 {
		errs = append(errs, "XSHARD_HEALTH_CHECK_INTERVAL_MS must be > 0")
	}
	if c.DBPath == "" {
		errs = append(errs, "XSHARD_DB_PATH is required")
	}

	switch c.QuantumSigScheme {
	case SchemeA, SchemeB, SchemeHybrid:
	default:
		errs = append(errs, fmt.Sprintf("XSHARD_QUANTUM_SIG_SCHEME %q is not one of A, B, hybrid", c.QuantumSigScheme))
	}

	if c.EnableDistributedCoordination {
		if c.CoordinatorReplicas < c.ConsensusThreshold {
			errs = append(errs, "coordinator_replicas must be >= consensus_threshold")
		}
		if c.ConsensusThreshold < 1 {
			errs = append(errs, "consensus_threshold must be >= 1")
		}
		if len(c.ReplicaEndpoints) != c.CoordinatorReplicas {
			errs = append(errs, fmt.Sprintf("replica_endpoints has %d entries, expected coordinator_replicas=%d",
				len(c.ReplicaEndpoints), c.CoordinatorReplicas))
		}
		if int(c.ReplicaID) >= c.CoordinatorReplicas {
			errs = append(errs, fmt.Sprintf("XSHARD_REPLICA_ID %d out of range for coordinator_replicas=%d", c.ReplicaID, c.CoordinatorReplicas))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseAttestationPeers parses comma-separated endpoint URLs.
func parseAttestationPeers(value string) []string {
	if value == "" {
		return nil
	}
	peers := strings.Split(value, ",")
	result := make([]string, 0, len(peers))
	for _, peer := range peers {
		peer = strings.TrimSpace(peer)
		if peer != "" {
			result = append(result, peer)
		}
	}
	return result
}

// parseShardList parses comma-separated numeric shard ids.
func parseShardList(value string) []uint32 {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]uint32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			continue
		}
		result = append(result, uint32(n))
	}
	return result
}
