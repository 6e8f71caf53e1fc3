package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/wire"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// broadcastHeartbeat signs and sends a shard-level liveness ping to every
// configured peer shard. Unlike BroadcastHeartbeat (the replica-set BLS
// ping exchanged between a coordinator's own replicas) this reuses the
// coordinator's post-quantum signing key and travels over the regular shard
// Transport, since it announces this shard's liveness to the other shards
// it runs transactions against.
func (c *Coordinator) broadcastHeartbeat(ctx context.Context, now time.Time) {
	if len(c.ConnectedShards) == 0 {
		return
	}
	msg := &wire.Heartbeat{FromShard: c.LocalShard, Timestamp: now}
	sig, err := c.sign(heartbeatSigningBytes(msg))
	if err != nil {
		c.Logger.Printf("xshard: sign heartbeat: %v", err)
		return
	}
	msg.Signature = sig
	raw := wire.MarshalHeartbeat(msg)
	for _, peer := range c.ConnectedShards {
		if err := c.Transport.Send(ctx, peer, raw); err != nil {
			c.Logger.Printf("xshard: send heartbeat to shard %d: %v", peer, err)
		}
	}
}

func heartbeatSigningBytes(m *wire.Heartbeat) []byte {
	var buf [12]byte
	putU32(buf[0:4], m.FromShard)
	ts := m.Timestamp.Unix()
	buf[4], buf[5], buf[6], buf[7] = byte(ts>>56), byte(ts>>48), byte(ts>>40), byte(ts>>32)
	buf[8], buf[9], buf[10], buf[11] = byte(ts>>24), byte(ts>>16), byte(ts>>8), byte(ts)
	return buf[:]
}

// HandleHeartbeat verifies a peer shard's signed heartbeat and records it as
// the most recently observed liveness ping from that shard.
func (c *Coordinator) HandleHeartbeat(hb *wire.Heartbeat) error {
	ok, err := c.verifyFrom(hb.FromShard, heartbeatSigningBytes(hb), hb.Signature)
	if err != nil || !ok {
		return xerr.Crypto(fmt.Sprintf("heartbeat signature invalid for shard %d", hb.FromShard), err)
	}
	c.peerMu.Lock()
	c.peerLastSeen[hb.FromShard] = hb.Timestamp
	c.peerMu.Unlock()
	if c.Metrics != nil {
		c.Metrics.PeerHeartbeats.WithLabelValues(fmt.Sprint(hb.FromShard)).Inc()
	}
	return nil
}

// PeerLastSeen returns the timestamp of the most recent valid heartbeat
// received from a peer shard, if any.
func (c *Coordinator) PeerLastSeen(shardID uint32) (time.Time, bool) {
	c.peerMu.Lock()
	defer c.peerMu.Unlock()
	t, ok := c.peerLastSeen[shardID]
	return t, ok
}
