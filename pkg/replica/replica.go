// Package replica implements the coordinator replica set: heartbeat-driven
// health tracking, lowest-id failover election, and BLS-aggregated-signature
// consensus voting for slashing-class decisions.
package replica

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Health is the observed liveness of a replica.
type Health int

const (
	HealthHealthy Health = iota
	HealthDegraded
	HealthFailed
	HealthRecovering
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthFailed:
		return "failed"
	case HealthRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// Replica describes one coordinator replica in the statically configured
// set.
type Replica struct {
	ID            uint32
	Endpoint      string
	IsActive      bool
	LastHeartbeat time.Time
	Health        Health
	VotingPubKey  *PublicKey
}

// Set tracks the health of every known replica and the current primary. It
// is safe for concurrent use.
type Set struct {
	mu                  sync.RWMutex
	replicas            map[uint32]*Replica
	primary             uint32
	selfID              uint32
	healthCheckInterval time.Duration
}

// NewSet builds a replica set from the statically configured endpoints.
// selfID is initially assumed primary if it is the lowest id; callers update
// this after the first health check pass.
func NewSet(selfID uint32, endpoints map[uint32]string, healthCheckInterval time.Duration) *Set {
	s := &Set{
		replicas:            make(map[uint32]*Replica, len(endpoints)),
		selfID:              selfID,
		healthCheckInterval: healthCheckInterval,
	}
	lowest := selfID
	for id, ep := range endpoints {
		s.replicas[id] = &Replica{ID: id, Endpoint: ep, IsActive: true, LastHeartbeat: time.Time{}, Health: HealthHealthy}
		if id < lowest {
			lowest = id
		}
	}
	s.replicas[selfID] = &Replica{ID: selfID, Endpoint: "", IsActive: true, LastHeartbeat: time.Now(), Health: HealthHealthy}
	s.primary = lowest
	return s
}

// RecordHeartbeat stamps the liveness of a peer replica.
func (s *Set) RecordHeartbeat(id uint32, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.replicas[id]; ok {
		r.LastHeartbeat = at
		if r.Health == HealthFailed {
			r.Health = HealthRecovering
		} else {
			r.Health = HealthHealthy
		}
	}
}

// Primary returns the current primary replica id.
func (s *Set) Primary() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary
}

// IsPrimary reports whether selfID is currently primary.
func (s *Set) IsPrimary() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary == s.selfID
}

// CheckHealth marks any replica whose heartbeat is older than
// 3*health_check_interval as Failed, and triggers failover if the failed
// replica was primary. Returns true if a failover occurred.
func (s *Set) CheckHealth(now time.Time) (failedOver bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := 3 * s.healthCheckInterval
	for id, r := range s.replicas {
		if id == s.selfID {
			continue
		}
		if r.Health == HealthFailed {
			continue
		}
		if !r.LastHeartbeat.IsZero() && now.Sub(r.LastHeartbeat) > threshold {
			r.Health = HealthFailed
			r.IsActive = false
		}
	}

	if current, ok := s.replicas[s.primary]; !ok || current.Health == HealthFailed {
		newPrimary, found := s.lowestHealthyLocked()
		if found && newPrimary != s.primary {
			s.primary = newPrimary
			failedOver = true
		}
	}
	return failedOver
}

func (s *Set) lowestHealthyLocked() (uint32, bool) {
	ids := make([]uint32, 0, len(s.replicas))
	for id, r := range s.replicas {
		if r.Health != HealthFailed {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0], true
}

// SetVotingKey records the BLS voting public key for a known replica, used
// to verify its heartbeats and slashing-decision votes.
func (s *Set) SetVotingKey(id uint32, pub *PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.replicas[id]; ok {
		r.VotingPubKey = pub
	}
}

// VotingKey returns the registered BLS voting public key for a replica, if
// any.
func (s *Set) VotingKey(id uint32) (*PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.replicas[id]
	if !ok || r.VotingPubKey == nil {
		return nil, false
	}
	return r.VotingPubKey, true
}

// Peers returns the ids of every replica other than selfID.
func (s *Set) Peers() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint32, 0, len(s.replicas))
	for id := range s.replicas {
		if id != s.selfID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActiveCount returns the number of non-Failed replicas, used to compute the
// default consensus threshold 2*ceil(n/3).
func (s *Set) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.replicas {
		if r.Health != HealthFailed {
			n++
		}
	}
	return n
}

// DefaultThreshold computes 2*ceil(n/3) for n active replicas.
func DefaultThreshold(n int) int {
	return 2 * ((n + 2) / 3)
}

// Vote is one replica's signed assent to a slashing-class decision.
type Vote struct {
	ReplicaID uint32
	Signature *Signature
}

// Decision accumulates votes on a single slashing-class proposal (e.g.
// "mark shard X byzantine and evict it from the connected set") until an
// aggregate signature meeting the configured threshold is available.
type Decision struct {
	mu         sync.Mutex
	ProposalID string
	Message    []byte
	Threshold  int
	votes      map[uint32]*Vote
	resolved   bool
	aggregate  *Signature
}

// NewDecision starts tracking votes for a new proposal.
func NewDecision(proposalID string, message []byte, threshold int) *Decision {
	return &Decision{ProposalID: proposalID, Message: message, Threshold: threshold, votes: make(map[uint32]*Vote)}
}

// AddVote records a replica's vote after validating the signature against
// its voting public key. Returns the current vote count.
func (d *Decision) AddVote(replicaID uint32, sig *Signature, pub *PublicKey) (int, error) {
	if !pub.Verify(sig, d.Message) {
		return 0, fmt.Errorf("replica %d: invalid vote signature", replicaID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.votes[replicaID] = &Vote{ReplicaID: replicaID, Signature: sig}
	return len(d.votes), nil
}

// Approved reports whether the threshold has been met, aggregating the
// collected signatures on first success.
func (d *Decision) Approved() (bool, *Signature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.votes) < d.Threshold {
		return false, nil, nil
	}
	if d.resolved {
		return true, d.aggregate, nil
	}

	sigs := make([]*Signature, 0, len(d.votes))
	for _, v := range d.votes {
		sigs = append(sigs, v.Signature)
	}
	agg, err := AggregateSignatures(sigs)
	if err != nil {
		return false, nil, err
	}
	d.resolved = true
	d.aggregate = agg
	return true, agg, nil
}
