package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TimeoutMS <= 0 {
		t.Error("TimeoutMS should default to a positive value")
	}
	if cfg.QuantumSigScheme != SchemeHybrid {
		t.Errorf("expected default scheme hybrid, got %s", cfg.QuantumSigScheme)
	}
}

func TestValidateRejectsZeroTimeout(t *testing.T) {
	cfg := &Config{TimeoutMS: 0, TimeoutCheckIntervalMS: 1, HealthCheckIntervalMS: 1, DBPath: "x", QuantumSigScheme: SchemeA}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero timeout")
	}
}

func TestValidateDistributedReplicaCounts(t *testing.T) {
	cfg := &Config{
		TimeoutMS: 1, TimeoutCheckIntervalMS: 1, HealthCheckIntervalMS: 1, DBPath: "x",
		QuantumSigScheme:              SchemeA,
		EnableDistributedCoordination: true,
		CoordinatorReplicas:           3,
		ConsensusThreshold:            2,
		ReplicaEndpoints:              []string{"a", "b"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when replica_endpoints count mismatches coordinator_replicas")
	}

	cfg.ReplicaEndpoints = []string{"a", "b", "c"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidateThresholdBounds(t *testing.T) {
	cfg := &Config{
		TimeoutMS: 1, TimeoutCheckIntervalMS: 1, HealthCheckIntervalMS: 1, DBPath: "x",
		QuantumSigScheme:              SchemeA,
		EnableDistributedCoordination: true,
		CoordinatorReplicas:           2,
		ConsensusThreshold:            3,
		ReplicaEndpoints:              []string{"a", "b"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when consensus_threshold exceeds coordinator_replicas")
	}
}

func TestParseShardList(t *testing.T) {
	got := parseShardList("1, 2,3")
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("unexpected parse result: %v", got)
	}
	if parseShardList("") != nil {
		t.Error("expected nil for empty input")
	}
}
