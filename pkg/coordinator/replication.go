package coordinator

import (
	"context"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/replica"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/wire"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// BroadcastHeartbeat signs a liveness ping with this replica's BLS voting
// key and sends it to every peer replica over ReplicaTransport. No-op if
// EnableReplicaSet was never called.
func (c *Coordinator) BroadcastHeartbeat(ctx context.Context, selfID uint32) error {
	if c.Replicas == nil || c.ReplicaTransport == nil || c.replicaKey == nil {
		return nil
	}
	// The wire carries whole seconds only; sign exactly what the peer decodes.
	now := time.Now().Truncate(time.Second)
	msgHash := replica.ComputeMessageHash(replica.DomainHeartbeat, []byte(now.UTC().Format(time.RFC3339Nano)))
	sig := c.replicaKey.SignWithDomain(msgHash[:], replica.DomainHeartbeat)
	hb := &wire.ReplicaHeartbeat{ReplicaID: selfID, Timestamp: now, BLSSignature: sig.Bytes()}
	raw := wire.MarshalReplicaHeartbeat(hb)

	var firstErr error
	for _, peer := range c.Replicas.Peers() {
		if err := c.ReplicaTransport.Send(ctx, peer, raw); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleReplicaHeartbeat verifies a peer replica's signed heartbeat and
// records its liveness.
func (c *Coordinator) HandleReplicaHeartbeat(hb *wire.ReplicaHeartbeat) error {
	pub, ok := c.Replicas.VotingKey(hb.ReplicaID)
	if !ok {
		return xerr.Crypto("no voting key registered for replica", nil)
	}
	sig, err := replica.SignatureFromBytes(hb.BLSSignature)
	if err != nil {
		return xerr.Crypto("malformed replica heartbeat signature", err)
	}
	msgHash := replica.ComputeMessageHash(replica.DomainHeartbeat, []byte(hb.Timestamp.UTC().Format(time.RFC3339Nano)))
	if !pub.VerifyWithDomain(sig, msgHash[:], replica.DomainHeartbeat) {
		return xerr.Crypto("replica heartbeat signature invalid", nil)
	}
	c.Replicas.RecordHeartbeat(hb.ReplicaID, hb.Timestamp)
	return nil
}

// ServeReplica loops on ReplicaTransport.Recv, dispatching inbound
// ReplicaHeartbeat traffic, until ctx is canceled. It is a no-op if
// EnableReplicaSet was never called.
func (c *Coordinator) ServeReplica(ctx context.Context, selfID uint32) {
	if c.Replicas == nil || c.ReplicaTransport == nil {
		return
	}
	for {
		raw, err := c.ReplicaTransport.Recv(ctx, selfID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Printf("xshard: replica recv: %v", err)
			continue
		}
		hb, err := wire.UnmarshalReplicaHeartbeat(raw)
		if err != nil {
			c.Logger.Printf("xshard: replica heartbeat decode: %v", err)
			continue
		}
		if err := c.HandleReplicaHeartbeat(hb); err != nil {
			c.Logger.Printf("xshard: replica heartbeat from %d: %v", hb.ReplicaID, err)
		}
	}
}

// RunReplicaLoop periodically broadcasts this replica's own heartbeat and
// runs failure detection + primary failover, until ctx is canceled.
func (c *Coordinator) RunReplicaLoop(ctx context.Context, selfID uint32, interval time.Duration) {
	if c.Replicas == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := c.BroadcastHeartbeat(ctx, selfID); err != nil {
				c.Logger.Printf("xshard: broadcast heartbeat: %v", err)
			}
			if failedOver := c.Replicas.CheckHealth(now); failedOver {
				if c.Metrics != nil {
					c.Metrics.ReplicaFailovers.Inc()
				}
				c.Logger.Printf("xshard: replica failover, new primary is %d", c.Replicas.Primary())
				if c.Replicas.IsPrimary() {
					if err := c.Rehydrate(); err != nil {
						c.Logger.Printf("xshard: rehydrate after failover: %v", err)
					}
				}
			}
		}
	}
}
