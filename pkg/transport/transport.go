// Package transport abstracts how a coordinator or participant ships raw
// wire bytes to a peer shard, so the protocol logic never depends on a
// concrete network stack.
package transport

import (
	"context"
	"fmt"
	"sync"
)

// Channel sends an encoded message to a destination shard and is the only
// surface the coordinator and participant packages use to communicate.
type Channel interface {
	Send(ctx context.Context, toShard uint32, payload []byte) error
	// Recv blocks until a message addressed to shard arrives or ctx is
	// done.
	Recv(ctx context.Context, shard uint32) ([]byte, error)
}

// Memory is an in-process Channel implementation for tests and
// single-process deployments, backed by one buffered queue per destination
// shard. DropShard discards all traffic to a shard, for tests exercising
// timeout and retry paths; messages are never reordered.
type Memory struct {
	mu      sync.Mutex
	queues  map[uint32]chan []byte
	dropAll map[uint32]bool
	capacity int
}

// NewMemory creates an in-memory transport with the given per-shard queue
// capacity.
func NewMemory(capacity int) *Memory {
	return &Memory{
		queues:  make(map[uint32]chan []byte),
		dropAll: make(map[uint32]bool),
		capacity: capacity,
	}
}

func (m *Memory) queueFor(shard uint32) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[shard]
	if !ok {
		q = make(chan []byte, m.capacity)
		m.queues[shard] = q
	}
	return q
}

// Send enqueues payload for toShard, unless that shard has been configured
// to drop all inbound traffic via DropShard.
func (m *Memory) Send(ctx context.Context, toShard uint32, payload []byte) error {
	m.mu.Lock()
	dropped := m.dropAll[toShard]
	m.mu.Unlock()
	if dropped {
		return nil
	}

	q := m.queueFor(toShard)
	select {
	case q <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("transport: queue full for shard %d", toShard)
	}
}

// Recv blocks until a message addressed to shard is available.
func (m *Memory) Recv(ctx context.Context, shard uint32) ([]byte, error) {
	q := m.queueFor(shard)
	select {
	case msg := <-q:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DropShard makes every future Send to shard silently discard its payload,
// simulating a partitioned or dead peer for timeout/retry tests.
func (m *Memory) DropShard(shard uint32, drop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropAll[shard] = drop
}
