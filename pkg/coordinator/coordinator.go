package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/journal"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/keyregistry"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/lockgraph"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/metrics"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/replica"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/transport"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/wire"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// Coordinator drives the cross-shard 2PC state machine for one local shard.
type Coordinator struct {
	LocalShard uint32
	Scheme     pqcrypto.Scheme

	SignerKeys *pqcrypto.SignerKeys
	KEMKeys    *pqcrypto.KEMKeyPair
	ZKPKey     *pqcrypto.ZKProvingKey
	ZKVKey     *pqcrypto.ZKVerifyingKey

	Registry  *keyregistry.Registry
	Locks     *lockgraph.Graph
	Journal   *journal.Journal
	Transport transport.Channel
	Metrics   *metrics.Set

	// ConnectedShards is the set of peer shards the timeout loop sends
	// periodic Heartbeat traffic to, independent of any live transaction.
	ConnectedShards []uint32

	Timeout         time.Duration
	MaxRetries      int
	LockTTL         time.Duration
	FreshnessWindow time.Duration

	Logger *log.Logger

	// Replicas and ReplicaTransport are nil unless EnableReplicaSet was
	// called: single-replica deployments never pay for replica-set
	// bookkeeping.
	Replicas         *replica.Set
	ReplicaTransport transport.Channel
	replicaKey       *replica.PrivateKey

	txs *txMap

	peerMu       sync.Mutex
	peerLastSeen map[uint32]time.Time
}

// EnableReplicaSet turns on distributed coordination for this shard: set
// tracks peer replica health and primary election, ch carries
// ReplicaHeartbeat traffic between replicas (addressed by replica id rather
// than shard id), and key is this replica's own BLS voting key used to sign
// outgoing heartbeats.
func (c *Coordinator) EnableReplicaSet(set *replica.Set, ch transport.Channel, key *replica.PrivateKey) {
	c.Replicas = set
	c.ReplicaTransport = ch
	c.replicaKey = key
}

// New builds a Coordinator from its dependencies. Callers are expected to
// have already registered the local shard's own keys into Registry. zkpk
// may be nil to disable self-proving (commit requests then carry an empty
// ZKProof, accepted only if the receiving participant also has no verifying
// key configured).
func New(localShard uint32, scheme pqcrypto.Scheme, connectedShards []uint32, signer *pqcrypto.SignerKeys, kemKeys *pqcrypto.KEMKeyPair, zkpk *pqcrypto.ZKProvingKey, zkvk *pqcrypto.ZKVerifyingKey, registry *keyregistry.Registry, locks *lockgraph.Graph, j *journal.Journal, ch transport.Channel, m *metrics.Set, timeout time.Duration, maxRetries int, lockTTL, freshness time.Duration, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		LocalShard:      localShard,
		Scheme:          scheme,
		ConnectedShards: connectedShards,
		SignerKeys:      signer,
		KEMKeys:         kemKeys,
		ZKPKey:          zkpk,
		ZKVKey:          zkvk,
		Registry:        registry,
		Locks:           locks,
		Journal:         j,
		Transport:       ch,
		Metrics:         m,
		Timeout:         timeout,
		MaxRetries:      maxRetries,
		LockTTL:         lockTTL,
		FreshnessWindow: freshness,
		Logger:          logger,
		txs:             newTxMap(),
		peerLastSeen:    make(map[uint32]time.Time),
	}
}

// InitiateTransaction starts a new cross-shard transaction: it acquires
// coordinator-side locks, journals the initial Prepare state, and sends
// PrepareRequest to every remote participant.
func (c *Coordinator) InitiateTransaction(ctx context.Context, txType shard.TxType, txData []byte, participants []uint32, resources []string) (shard.TxID, error) {
	if c.Replicas != nil && !c.Replicas.IsPrimary() {
		return shard.TxID{}, xerr.Consensus(0, 1, fmt.Sprintf("not primary replica, current primary is %d", c.Replicas.Primary()))
	}
	txID := shard.NewTxID()
	now := time.Now()

	result := c.Locks.TryAcquire(txID.String(), c.LocalShard, resources, c.LockTTL, now)
	if result != lockgraph.Acquired {
		if c.Metrics != nil {
			c.Metrics.LockConflicts.WithLabelValues(fmt.Sprint(c.LocalShard)).Inc()
			if result == lockgraph.Deadlock {
				c.Metrics.Deadlocks.Inc()
			}
		}
		return shard.TxID{}, xerr.LockFailure(fmt.Sprint(resources), result.String())
	}

	qhash := pqcrypto.QHash(txID.Bytes(), txData)
	state := newTxState(txID, txType, c.LocalShard, participants, resources, qhash, txData, now)

	if err := c.persist(state); err != nil {
		c.Locks.Release(txID.String())
		return shard.TxID{}, err
	}
	c.txs.With(txID, func(*TxState, bool) *TxState { return state })

	if c.Metrics != nil {
		c.Metrics.TxsInitiated.WithLabelValues(fmt.Sprint(c.LocalShard)).Inc()
	}

	for _, peer := range state.remotePeers(c.LocalShard) {
		if err := c.sendPrepare(ctx, state, peer); err != nil {
			c.Logger.Printf("xshard: send prepare to shard %d for tx %s: %v", peer, txID, err)
		}
	}
	return txID, nil
}

// SubmitProvenTransaction verifies the carried Merkle and ZK proofs before
// any coordinator state is created. A rejection returns InvalidProof and
// leaves nothing behind.
func (c *Coordinator) SubmitProvenTransaction(ctx context.Context, txType shard.TxType, txData []byte, participants []uint32, resources []string, proof *pqcrypto.MerkleProof, trustedRoot [32]byte, zkProof *pqcrypto.ZKProof) (shard.TxID, error) {
	if !pqcrypto.VerifyMerkle(proof, trustedRoot) {
		return shard.TxID{}, xerr.InvalidProof("", "merkle proof did not verify")
	}
	if c.ZKVKey != nil {
		commitment := pqcrypto.CommitmentFromHash(pqcrypto.QHash(nil, txData))
		ok, err := pqcrypto.VerifyZK(zkProof, c.ZKVKey, commitment)
		if err != nil {
			return shard.TxID{}, xerr.InvalidProof("", err.Error())
		}
		if !ok {
			return shard.TxID{}, xerr.InvalidProof("", "zk proof did not verify")
		}
	}
	return c.InitiateTransaction(ctx, txType, txData, participants, resources)
}

// GetTransactionStatus returns a snapshot of a live transaction's state.
func (c *Coordinator) GetTransactionStatus(txID shard.TxID) (*TxState, bool) {
	return c.txs.Get(txID)
}

func (c *Coordinator) persist(s *TxState) error {
	raw := encodeTxState(s)
	return c.Journal.PutTx(s.TxID.String(), raw)
}

// persistLogged journals s and logs (rather than propagates) a failure, for
// call sites inside a txMap.With closure where returning an error isn't an
// option — the closure's signature returns the next TxState, not an error.
func (c *Coordinator) persistLogged(s *TxState) {
	if err := c.persist(s); err != nil {
		c.Logger.Printf("xshard: journal write failed for tx %s: %v", s.TxID, err)
	}
}

func (c *Coordinator) forget(txID shard.TxID) error {
	return c.Journal.DeleteTx(txID.String())
}

// sign produces a QuantumSignature under the coordinator's configured
// scheme for msg.
func (c *Coordinator) sign(msg []byte) (*pqcrypto.QuantumSignature, error) {
	return pqcrypto.Sign(c.SignerKeys, c.Scheme, msg)
}

// verifyFrom checks sig against the known signing key for shardID, using
// the primary key for a family A signature and the secondary key (if
// registered) for a family B signature.
func (c *Coordinator) verifyFrom(shardID uint32, msg []byte, sig *pqcrypto.QuantumSignature) (bool, error) {
	wantSecondary := sig.Family == pqcrypto.FamilyB
	pub, ok := c.Registry.SigPublicKey(shardID, wantSecondary)
	if !ok {
		return false, xerr.Crypto(fmt.Sprintf("no signing key registered for shard %d", shardID), nil)
	}
	return pqcrypto.Verify(sig, msg, pub)
}

func (c *Coordinator) sendPrepare(ctx context.Context, s *TxState, peer uint32) error {
	kemPub, ok := c.Registry.KEMPublicKey(peer)
	if !ok {
		return xerr.Crypto(fmt.Sprintf("no kem key registered for shard %d", peer), nil)
	}
	ciphertextKEM, sharedSecret, err := pqcrypto.Encapsulate(kemPub)
	if err != nil {
		return err
	}
	payload := wire.MarshalTransactionPayload(&wire.TransactionPayload{Resources: s.Resources, Apply: s.Payload})
	sealed, err := pqcrypto.SealPayload(sharedSecret, payload)
	if err != nil {
		return err
	}
	sharedSig, err := c.sign(sharedSecret)
	if err != nil {
		return err
	}

	msg := &wire.PrepareRequest{
		TxID:            s.TxID.Bytes16(),
		TxCiphertext:    append(ciphertextKEM, sealed...),
		SharedSecretSig: sharedSig,
		FromShard:       c.LocalShard,
		ToShard:         peer,
		Timestamp:       time.Now(),
	}
	envelopeSig, err := c.sign(prepareSigningBytes(msg))
	if err != nil {
		return err
	}
	msg.Signature = envelopeSig

	return c.Transport.Send(ctx, peer, wire.MarshalPrepareRequest(msg))
}

// prepareSigningBytes is the canonical byte sequence a PrepareRequest
// envelope signature covers.
func prepareSigningBytes(m *wire.PrepareRequest) []byte {
	buf := append([]byte{}, m.TxID[:]...)
	buf = append(buf, m.TxCiphertext...)
	var shards [8]byte
	shards[0], shards[1], shards[2], shards[3] = byte(m.FromShard>>24), byte(m.FromShard>>16), byte(m.FromShard>>8), byte(m.FromShard)
	shards[4], shards[5], shards[6], shards[7] = byte(m.ToShard>>24), byte(m.ToShard>>16), byte(m.ToShard>>8), byte(m.ToShard)
	return append(buf, shards[:]...)
}

// HandlePrepareResponse applies a participant's PrepareResponse to the
// owning TxState's exclusive section.
func (c *Coordinator) HandlePrepareResponse(ctx context.Context, resp *wire.PrepareResponse) error {
	txID, err := shard.TxIDFromBytes(resp.TxID[:])
	if err != nil {
		return err
	}

	ok, err := c.verifyFrom(resp.ShardID, prepareResponseSigningBytes(resp), resp.Signature)
	if err != nil || !ok {
		return xerr.Crypto(fmt.Sprintf("prepare response signature invalid for shard %d", resp.ShardID), err)
	}

	var toSend []func(context.Context) error
	c.txs.With(txID, func(s *TxState, present bool) *TxState {
		if !present || s.Phase != shard.PhasePrepare {
			return s
		}
		now := time.Now()
		if !resp.Success {
			s.Phase = shard.PhaseAbort
			s.AbortReason = resp.Reason
			s.LastAction = now
			c.persistLogged(s)
			for _, peer := range s.remotePeers(c.LocalShard) {
				peer := peer
				toSend = append(toSend, func(ctx context.Context) error { return c.sendAbort(ctx, s, peer) })
			}
			return s
		}

		s.Prepared[resp.ShardID] = true
		s.LastAction = now
		c.persistLogged(s)

		if s.allPrepared(c.LocalShard) {
			s.Phase = shard.PhaseCommit
			s.LastAction = now
			c.persistLogged(s)
			for _, peer := range s.remotePeers(c.LocalShard) {
				peer := peer
				toSend = append(toSend, func(ctx context.Context) error { return c.sendCommit(ctx, s, peer) })
			}
		}
		return s
	})

	for _, send := range toSend {
		if err := send(ctx); err != nil {
			c.Logger.Printf("xshard: tx %s: %v", txID, err)
		}
	}
	return nil
}

func prepareResponseSigningBytes(r *wire.PrepareResponse) []byte {
	buf := append([]byte{}, r.TxID[:]...)
	if r.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return append(buf, []byte(r.Reason)...)
}

func (c *Coordinator) sendCommit(ctx context.Context, s *TxState, peer uint32) error {
	leaves := pqcrypto.CommitLeaves(s.QuantumHash, s.Resources)
	proof, err := pqcrypto.BuildMerkleProof(leaves, 0)
	if err != nil {
		return err
	}

	zkProof := &pqcrypto.ZKProof{}
	if c.ZKPKey != nil {
		zkProof, err = pqcrypto.ProveCommitment(c.ZKPKey, proof.LeafHash)
		if err != nil {
			return err
		}
	}

	msg := &wire.CommitRequest{
		TxID:             s.TxID.Bytes16(),
		MerkleProof:      proof,
		ZKProof:          zkProof,
		CoordinatorShard: c.LocalShard,
	}
	sig, err := c.sign(commitSigningBytes(msg))
	if err != nil {
		return err
	}
	msg.Signature = sig
	return c.Transport.Send(ctx, peer, wire.MarshalCommitRequest(msg))
}

func commitSigningBytes(m *wire.CommitRequest) []byte {
	return append([]byte{}, m.TxID[:]...)
}

func (c *Coordinator) sendAbort(ctx context.Context, s *TxState, peer uint32) error {
	msg := &wire.AbortRequest{
		TxID:             s.TxID.Bytes16(),
		Reason:           s.AbortReason,
		CoordinatorShard: c.LocalShard,
	}
	sig, err := c.sign(abortSigningBytes(msg))
	if err != nil {
		return err
	}
	msg.Signature = sig
	return c.Transport.Send(ctx, peer, wire.MarshalAbortRequest(msg))
}

func abortSigningBytes(m *wire.AbortRequest) []byte {
	return append(append([]byte{}, m.TxID[:]...), []byte(m.Reason)...)
}

// HandleAcknowledgment records a participant's commit/abort ack. On
// unanimity it deletes the TxState and releases coordinator-side locks.
func (c *Coordinator) HandleAcknowledgment(ctx context.Context, ack *wire.Acknowledgment) error {
	txID, err := shard.TxIDFromBytes(ack.TxID[:])
	if err != nil {
		return err
	}

	ok, err := c.verifyFrom(ack.ShardID, ackSigningBytes(ack), ack.Signature)
	if err != nil || !ok {
		return xerr.Crypto(fmt.Sprintf("ack signature invalid for shard %d", ack.ShardID), err)
	}

	var finalized *TxState
	c.txs.With(txID, func(s *TxState, present bool) *TxState {
		if !present {
			return nil
		}
		wantPhase := shard.PhaseCommit
		if s.Phase == shard.PhaseAbort {
			wantPhase = shard.PhaseAbort
		}
		if shard.Phase(ack.Phase) != wantPhase {
			return s
		}
		if ack.Success {
			s.Committed[ack.ShardID] = true
		}
		s.LastAction = time.Now()

		if len(s.unacked(c.LocalShard)) == 0 {
			finalized = s
			c.forget(txID)
			c.Locks.Release(txID.String())
			if c.Metrics != nil {
				if s.Phase == shard.PhaseCommit {
					c.Metrics.TxsCommitted.WithLabelValues(fmt.Sprint(c.LocalShard)).Inc()
				} else {
					c.Metrics.TxsAborted.WithLabelValues(fmt.Sprint(c.LocalShard), s.AbortReason).Inc()
				}
			}
			return nil
		}
		c.persistLogged(s)
		return s
	})
	_ = finalized
	return nil
}

func ackSigningBytes(a *wire.Acknowledgment) []byte {
	buf := append([]byte{}, a.TxID[:]...)
	buf = append(buf, byte(a.Phase))
	if a.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// Dispatch decodes raw and routes it to the matching handler by wire Kind.
func (c *Coordinator) Dispatch(ctx context.Context, raw []byte) error {
	kind, err := wire.PeekKind(raw)
	if err != nil {
		return err
	}
	switch kind {
	case wire.KindPrepareResponse:
		m, err := wire.UnmarshalPrepareResponse(raw)
		if err != nil {
			return err
		}
		return c.HandlePrepareResponse(ctx, m)
	case wire.KindAcknowledgment:
		m, err := wire.UnmarshalAcknowledgment(raw)
		if err != nil {
			return err
		}
		return c.HandleAcknowledgment(ctx, m)
	case wire.KindHeartbeat:
		m, err := wire.UnmarshalHeartbeat(raw)
		if err != nil {
			return err
		}
		return c.HandleHeartbeat(m)
	default:
		return fmt.Errorf("coordinator: unexpected message kind %d", kind)
	}
}

// Serve loops on Transport.Recv for LocalShard, dispatching every inbound
// message, until ctx is canceled.
func (c *Coordinator) Serve(ctx context.Context) {
	for {
		raw, err := c.Transport.Recv(ctx, c.LocalShard)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Printf("xshard: coordinator recv: %v", err)
			continue
		}
		if err := c.Dispatch(ctx, raw); err != nil {
			c.Logger.Printf("xshard: coordinator dispatch: %v", err)
		}
	}
}

// RunTimeoutLoop ticks every interval until ctx is canceled, re-sending
// outstanding phase messages for timed-out transactions and sweeping
// expired resource locks. Intended to run as the coordinator's single
// dedicated timeout/retry goroutine.
func (c *Coordinator) RunTimeoutLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.tick(ctx, now)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context, now time.Time) {
	c.Locks.Sweep(now)

	var due []shard.TxID
	c.txs.Range(func(s *TxState) {
		if now.Sub(s.LastAction) >= c.Timeout {
			due = append(due, s.TxID)
		}
	})

	for _, id := range due {
		c.retryOne(ctx, id, now)
	}

	c.broadcastHeartbeat(ctx, now)
}

func (c *Coordinator) retryOne(ctx context.Context, txID shard.TxID, now time.Time) {
	var toSend []func(context.Context) error
	c.txs.With(txID, func(s *TxState, present bool) *TxState {
		if !present {
			return nil
		}
		s.RetryCount++
		s.LastAction = now

		if s.RetryCount > c.MaxRetries && s.Phase == shard.PhasePrepare {
			s.Phase = shard.PhaseAbort
			s.AbortReason = "max retries"
		}
		c.persistLogged(s)

		switch s.Phase {
		case shard.PhasePrepare:
			for _, peer := range s.unprepared(c.LocalShard) {
				peer := peer
				toSend = append(toSend, func(ctx context.Context) error { return c.sendPrepare(ctx, s, peer) })
			}
		case shard.PhaseCommit:
			for _, peer := range s.unacked(c.LocalShard) {
				peer := peer
				toSend = append(toSend, func(ctx context.Context) error { return c.sendCommit(ctx, s, peer) })
			}
		case shard.PhaseAbort:
			for _, peer := range s.unacked(c.LocalShard) {
				peer := peer
				toSend = append(toSend, func(ctx context.Context) error { return c.sendAbort(ctx, s, peer) })
			}
		}
		return s
	})

	for _, send := range toSend {
		if err := send(ctx); err != nil {
			c.Logger.Printf("xshard: retry tx %s: %v", txID, err)
		}
	}
}

// encodeTxState is a minimal deterministic encoder for journal persistence.
// It mirrors pkg/wire's length-prefix conventions rather than pulling in an
// extra serialization dependency for a purely internal record.
func encodeTxState(s *TxState) []byte {
	buf := append([]byte{}, s.TxID.Bytes()...)
	buf = append(buf, byte(s.TxType), byte(s.Phase))
	buf = appendUint32Slice(buf, s.Participants)
	buf = appendStringSlice(buf, s.Resources)
	buf = append(buf, s.QuantumHash[:]...)
	buf = appendBytesField(buf, s.Payload)
	buf = appendUint32Slice(buf, setToSlice(s.Prepared))
	buf = appendUint32Slice(buf, setToSlice(s.Committed))
	var tail [12]byte
	putU32(tail[0:4], uint32(s.RetryCount))
	lastAction := s.LastAction.Unix()
	tail[4], tail[5], tail[6], tail[7] = byte(lastAction>>56), byte(lastAction>>48), byte(lastAction>>40), byte(lastAction>>32)
	tail[8], tail[9], tail[10], tail[11] = byte(lastAction>>24), byte(lastAction>>16), byte(lastAction>>8), byte(lastAction)
	buf = append(buf, tail[:]...)
	buf = appendBytesField(buf, []byte(s.AbortReason))
	return buf
}

func setToSlice(m map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	return out
}

func appendUint32Slice(dst []byte, vals []uint32) []byte {
	var n [4]byte
	putU32(n[:], uint32(len(vals)))
	dst = append(dst, n[:]...)
	for _, v := range vals {
		var b [4]byte
		putU32(b[:], v)
		dst = append(dst, b[:]...)
	}
	return dst
}

func appendStringSlice(dst []byte, vals []string) []byte {
	var n [4]byte
	putU32(n[:], uint32(len(vals)))
	dst = append(dst, n[:]...)
	for _, v := range vals {
		dst = appendBytesField(dst, []byte(v))
	}
	return dst
}

func appendBytesField(dst, b []byte) []byte {
	var n [4]byte
	putU32(n[:], uint32(len(b)))
	dst = append(dst, n[:]...)
	return append(dst, b...)
}

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

func getU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// decodeTxState reverses encodeTxState.
func decodeTxState(txID shard.TxID, buf []byte) (*TxState, error) {
	if len(buf) < 18 {
		return nil, xerr.Storage("decode tx state: truncated header", nil)
	}
	buf = buf[16:] // TxID already known from the journal key
	txType := shard.TxType(buf[0])
	phase := shard.Phase(buf[1])
	buf = buf[2:]

	participants, buf, err := readUint32Slice(buf)
	if err != nil {
		return nil, err
	}
	resources, buf, err := readStringSlice(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < 32 {
		return nil, xerr.Storage("decode tx state: truncated quantum hash", nil)
	}
	var qhash [32]byte
	copy(qhash[:], buf[:32])
	buf = buf[32:]

	payload, buf, err := readBytesField(buf)
	if err != nil {
		return nil, err
	}
	preparedList, buf, err := readUint32Slice(buf)
	if err != nil {
		return nil, err
	}
	committedList, buf, err := readUint32Slice(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) < 12 {
		return nil, xerr.Storage("decode tx state: truncated retry/lastAction tail", nil)
	}
	retryCount := getU32(buf[0:4])
	lastAction := int64(buf[4])<<56 | int64(buf[5])<<48 | int64(buf[6])<<40 | int64(buf[7])<<32 |
		int64(buf[8])<<24 | int64(buf[9])<<16 | int64(buf[10])<<8 | int64(buf[11])
	buf = buf[12:]
	reason, _, err := readBytesField(buf)
	if err != nil {
		return nil, err
	}

	s := &TxState{
		TxID:         txID,
		TxType:       txType,
		Phase:        phase,
		Participants: participants,
		Resources:    resources,
		QuantumHash:  qhash,
		Payload:      payload,
		Prepared:     sliceToSet(preparedList),
		Committed:    sliceToSet(committedList),
		RetryCount:   int(retryCount),
		LastAction:   time.Unix(lastAction, 0),
		AbortReason:  string(reason),
	}
	return s, nil
}

func sliceToSet(vals []uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func readUint32Slice(buf []byte) ([]uint32, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, xerr.Storage("decode uint32 slice: truncated count", nil)
	}
	n := getU32(buf[:4])
	buf = buf[4:]
	out := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(buf) < 4 {
			return nil, nil, xerr.Storage("decode uint32 slice: truncated element", nil)
		}
		out = append(out, getU32(buf[:4]))
		buf = buf[4:]
	}
	return out, buf, nil
}

func readStringSlice(buf []byte) ([]string, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, xerr.Storage("decode string slice: truncated count", nil)
	}
	n := getU32(buf[:4])
	buf = buf[4:]
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var b []byte
		var err error
		b, buf, err = readBytesField(buf)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, string(b))
	}
	return out, buf, nil
}

func readBytesField(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, xerr.Storage("decode bytes field: truncated length", nil)
	}
	n := getU32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, xerr.Storage("decode bytes field: truncated body", nil)
	}
	return buf[:n], buf[n:], nil
}

// Rehydrate loads every persisted transaction state from the journal into
// the in-memory tx map, resuming timeout tracking after a restart.
func (c *Coordinator) Rehydrate() error {
	return c.Journal.IterateTx(func(txIDStr string, value []byte) error {
		id, err := parseTxIDString(txIDStr)
		if err != nil {
			return err
		}
		s, err := decodeTxState(id, value)
		if err != nil {
			return err
		}
		c.txs.With(id, func(*TxState, bool) *TxState { return s })
		return nil
	})
}

func parseTxIDString(s string) (shard.TxID, error) {
	u, err := shard.ParseTxID(s)
	if err != nil {
		return shard.TxID{}, xerr.Storage("parse journaled tx id", err)
	}
	return u, nil
}
