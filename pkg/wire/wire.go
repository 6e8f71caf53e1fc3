// Package wire defines the cross-shard protocol's messages and their
// length-prefixed, deterministic, version-tagged encoding.
package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/pqcrypto"
)

// Version is the single leading byte of every encoded message.
const Version byte = 1

// Kind tags which message a decoded envelope carries.
type Kind byte

const (
	KindPrepareRequest Kind = iota + 1
	KindPrepareResponse
	KindCommitRequest
	KindAbortRequest
	KindAcknowledgment
	KindHeartbeat
	KindReplicaHeartbeat
)

// PrepareRequest initiates the prepare phase against one participant.
type PrepareRequest struct {
	TxID                 [16]byte
	TxCiphertext         []byte
	SharedSecretSig      *pqcrypto.QuantumSignature
	FromShard            uint32
	ToShard              uint32
	Signature            *pqcrypto.QuantumSignature
	Timestamp            time.Time
}

// PrepareResponse is a participant's reply to PrepareRequest.
type PrepareResponse struct {
	TxID      [16]byte
	Success   bool
	Reason    string
	Signature *pqcrypto.QuantumSignature
	ShardID   uint32
}

// CommitRequest carries the proofs gating commit application.
type CommitRequest struct {
	TxID            [16]byte
	MerkleProof     *pqcrypto.MerkleProof
	ZKProof         *pqcrypto.ZKProof
	Signature       *pqcrypto.QuantumSignature
	CoordinatorShard uint32
}

// AbortRequest tells a participant to release its prepared locks.
type AbortRequest struct {
	TxID            [16]byte
	Reason          string
	Signature       *pqcrypto.QuantumSignature
	CoordinatorShard uint32
}

// Phase mirrors shard.Phase without importing it, to keep wire free of the
// higher packages; callers convert at the boundary.
type Phase byte

const (
	PhasePrepare Phase = iota
	PhaseCommit
	PhaseAbort
)

// Acknowledgment is a participant's reply to Commit/AbortRequest.
type Acknowledgment struct {
	TxID      [16]byte
	Phase     Phase
	Success   bool
	Signature *pqcrypto.QuantumSignature
	ShardID   uint32
}

// Heartbeat announces a shard's liveness to its connected peer shards
// (replicas of one coordinator use ReplicaHeartbeat instead).
type Heartbeat struct {
	FromShard uint32
	Timestamp time.Time
	Signature *pqcrypto.QuantumSignature
}

// ReplicaHeartbeat is the liveness ping exchanged between replicas of the
// same shard's coordinator. Unlike every other message on the wire it is
// signed with the replica's BLS12-381 voting key rather than a post-quantum
// family key: the replica set is small, fixed, and local to one shard's
// operator, so aggregate-signature bandwidth savings apply and a non-PQ
// primitive here is an accepted tradeoff.
type ReplicaHeartbeat struct {
	ReplicaID    uint32
	Timestamp    time.Time
	BLSSignature []byte
}

// MarshalReplicaHeartbeat encodes a ReplicaHeartbeat with its header.
func MarshalReplicaHeartbeat(m *ReplicaHeartbeat) []byte {
	buf := []byte{Version, byte(KindReplicaHeartbeat)}
	var idBuf [4]byte
	putUint32(idBuf[:], m.ReplicaID)
	buf = append(buf, idBuf[:]...)
	buf = appendTime(buf, m.Timestamp)
	buf = appendBytes(buf, m.BLSSignature)
	return buf
}

// UnmarshalReplicaHeartbeat decodes a ReplicaHeartbeat.
func UnmarshalReplicaHeartbeat(buf []byte) (*ReplicaHeartbeat, error) {
	body, err := checkHeader(buf, KindReplicaHeartbeat)
	if err != nil {
		return nil, err
	}
	m := &ReplicaHeartbeat{}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated replica id")
	}
	m.ReplicaID = getUint32(body[:4])
	body = body[4:]

	m.Timestamp, body, err = readTime(body)
	if err != nil {
		return nil, err
	}
	m.BLSSignature, _, err = readBytes(body)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TransactionPayload is the pinned schema for the batched resource/apply
// payload carried inside PrepareRequest.TxCiphertext once decrypted. This
// resolves the previously unpinned "how does a participant derive its
// resource set from a PrepareRequest" question.
type TransactionPayload struct {
	Resources []string
	Apply     []byte
}

func putUint32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

func getUint32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

func appendBytes(dst []byte, b []byte) []byte {
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(len(b)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, b...)
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("wire: truncated length prefix")
	}
	n := getUint32(buf)
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, fmt.Errorf("wire: truncated body, want %d have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}

func appendString(dst []byte, s string) []byte {
	return appendBytes(dst, []byte(s))
}

func readString(buf []byte) (string, []byte, error) {
	b, rest, err := readBytes(buf)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

func appendSig(dst []byte, sig *pqcrypto.QuantumSignature) []byte {
	return append(dst, sig.Encode()...)
}

func readSig(buf []byte) (*pqcrypto.QuantumSignature, []byte, error) {
	sig, n, err := pqcrypto.DecodeQuantumSignature(buf)
	if err != nil {
		return nil, nil, err
	}
	return sig, buf[n:], nil
}

func appendTime(dst []byte, t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.Unix()))
	return append(dst, b[:]...)
}

func readTime(buf []byte) (time.Time, []byte, error) {
	if len(buf) < 8 {
		return time.Time{}, nil, fmt.Errorf("wire: truncated timestamp")
	}
	sec := int64(binary.BigEndian.Uint64(buf[:8]))
	return time.Unix(sec, 0).UTC(), buf[8:], nil
}

func appendMerkleProof(dst []byte, p *pqcrypto.MerkleProof) []byte {
	dst = append(dst, p.LeafHash[:]...)
	var countBuf [4]byte
	putUint32(countBuf[:], uint32(len(p.Path)))
	dst = append(dst, countBuf[:]...)
	for _, node := range p.Path {
		dst = append(dst, node.Hash[:]...)
		if node.OnLeft {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}

func readMerkleProof(buf []byte) (*pqcrypto.MerkleProof, []byte, error) {
	if len(buf) < 36 {
		return nil, nil, fmt.Errorf("wire: truncated merkle proof header")
	}
	p := &pqcrypto.MerkleProof{}
	copy(p.LeafHash[:], buf[:32])
	n := getUint32(buf[32:36])
	buf = buf[36:]
	p.Path = make([]pqcrypto.MerkleProofNode, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(buf) < 33 {
			return nil, nil, fmt.Errorf("wire: truncated merkle proof node")
		}
		var node pqcrypto.MerkleProofNode
		copy(node.Hash[:], buf[:32])
		node.OnLeft = buf[32] != 0
		buf = buf[33:]
		p.Path = append(p.Path, node)
	}
	return p, buf, nil
}

func checkHeader(buf []byte, want Kind) ([]byte, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("wire: message too short")
	}
	if buf[0] != Version {
		return nil, fmt.Errorf("wire: unsupported version %d", buf[0])
	}
	if Kind(buf[1]) != want {
		return nil, fmt.Errorf("wire: kind mismatch, want %d got %d", want, buf[1])
	}
	return buf[2:], nil
}

// MarshalPrepareRequest encodes a PrepareRequest with its version/kind header.
func MarshalPrepareRequest(m *PrepareRequest) []byte {
	buf := []byte{Version, byte(KindPrepareRequest)}
	buf = append(buf, m.TxID[:]...)
	buf = appendBytes(buf, m.TxCiphertext)
	buf = appendSig(buf, m.SharedSecretSig)
	var shards [8]byte
	putUint32(shards[0:4], m.FromShard)
	putUint32(shards[4:8], m.ToShard)
	buf = append(buf, shards[:]...)
	buf = appendSig(buf, m.Signature)
	buf = appendTime(buf, m.Timestamp)
	return buf
}

// UnmarshalPrepareRequest decodes a PrepareRequest previously produced by
// MarshalPrepareRequest.
func UnmarshalPrepareRequest(buf []byte) (*PrepareRequest, error) {
	body, err := checkHeader(buf, KindPrepareRequest)
	if err != nil {
		return nil, err
	}
	m := &PrepareRequest{}
	if len(body) < 16 {
		return nil, fmt.Errorf("wire: truncated tx id")
	}
	copy(m.TxID[:], body[:16])
	body = body[16:]

	m.TxCiphertext, body, err = readBytes(body)
	if err != nil {
		return nil, err
	}
	m.SharedSecretSig, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("wire: truncated shard ids")
	}
	m.FromShard = getUint32(body[0:4])
	m.ToShard = getUint32(body[4:8])
	body = body[8:]

	m.Signature, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	m.Timestamp, _, err = readTime(body)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalPrepareResponse encodes a PrepareResponse with its header.
func MarshalPrepareResponse(m *PrepareResponse) []byte {
	buf := []byte{Version, byte(KindPrepareResponse)}
	buf = append(buf, m.TxID[:]...)
	if m.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendString(buf, m.Reason)
	buf = appendSig(buf, m.Signature)
	var shardBuf [4]byte
	putUint32(shardBuf[:], m.ShardID)
	buf = append(buf, shardBuf[:]...)
	return buf
}

// UnmarshalPrepareResponse decodes a PrepareResponse.
func UnmarshalPrepareResponse(buf []byte) (*PrepareResponse, error) {
	body, err := checkHeader(buf, KindPrepareResponse)
	if err != nil {
		return nil, err
	}
	m := &PrepareResponse{}
	if len(body) < 17 {
		return nil, fmt.Errorf("wire: truncated prepare response")
	}
	copy(m.TxID[:], body[:16])
	m.Success = body[16] != 0
	body = body[17:]

	m.Reason, body, err = readString(body)
	if err != nil {
		return nil, err
	}
	m.Signature, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated shard id")
	}
	m.ShardID = getUint32(body[:4])
	return m, nil
}

// MarshalCommitRequest encodes a CommitRequest with its header.
func MarshalCommitRequest(m *CommitRequest) []byte {
	buf := []byte{Version, byte(KindCommitRequest)}
	buf = append(buf, m.TxID[:]...)
	buf = appendMerkleProof(buf, m.MerkleProof)
	buf = appendBytes(buf, m.ZKProof.Raw)
	buf = appendSig(buf, m.Signature)
	var shardBuf [4]byte
	putUint32(shardBuf[:], m.CoordinatorShard)
	buf = append(buf, shardBuf[:]...)
	return buf
}

// UnmarshalCommitRequest decodes a CommitRequest.
func UnmarshalCommitRequest(buf []byte) (*CommitRequest, error) {
	body, err := checkHeader(buf, KindCommitRequest)
	if err != nil {
		return nil, err
	}
	m := &CommitRequest{}
	if len(body) < 16 {
		return nil, fmt.Errorf("wire: truncated tx id")
	}
	copy(m.TxID[:], body[:16])
	body = body[16:]

	m.MerkleProof, body, err = readMerkleProof(body)
	if err != nil {
		return nil, err
	}
	var zkRaw []byte
	zkRaw, body, err = readBytes(body)
	if err != nil {
		return nil, err
	}
	m.ZKProof = &pqcrypto.ZKProof{Raw: zkRaw}

	m.Signature, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated coordinator shard")
	}
	m.CoordinatorShard = getUint32(body[:4])
	return m, nil
}

// MarshalAbortRequest encodes an AbortRequest with its header.
func MarshalAbortRequest(m *AbortRequest) []byte {
	buf := []byte{Version, byte(KindAbortRequest)}
	buf = append(buf, m.TxID[:]...)
	buf = appendString(buf, m.Reason)
	buf = appendSig(buf, m.Signature)
	var shardBuf [4]byte
	putUint32(shardBuf[:], m.CoordinatorShard)
	buf = append(buf, shardBuf[:]...)
	return buf
}

// UnmarshalAbortRequest decodes an AbortRequest.
func UnmarshalAbortRequest(buf []byte) (*AbortRequest, error) {
	body, err := checkHeader(buf, KindAbortRequest)
	if err != nil {
		return nil, err
	}
	m := &AbortRequest{}
	if len(body) < 16 {
		return nil, fmt.Errorf("wire: truncated tx id")
	}
	copy(m.TxID[:], body[:16])
	body = body[16:]

	m.Reason, body, err = readString(body)
	if err != nil {
		return nil, err
	}
	m.Signature, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated coordinator shard")
	}
	m.CoordinatorShard = getUint32(body[:4])
	return m, nil
}

// MarshalAcknowledgment encodes an Acknowledgment with its header.
func MarshalAcknowledgment(m *Acknowledgment) []byte {
	buf := []byte{Version, byte(KindAcknowledgment)}
	buf = append(buf, m.TxID[:]...)
	buf = append(buf, byte(m.Phase))
	if m.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendSig(buf, m.Signature)
	var shardBuf [4]byte
	putUint32(shardBuf[:], m.ShardID)
	buf = append(buf, shardBuf[:]...)
	return buf
}

// UnmarshalAcknowledgment decodes an Acknowledgment.
func UnmarshalAcknowledgment(buf []byte) (*Acknowledgment, error) {
	body, err := checkHeader(buf, KindAcknowledgment)
	if err != nil {
		return nil, err
	}
	m := &Acknowledgment{}
	if len(body) < 18 {
		return nil, fmt.Errorf("wire: truncated acknowledgment")
	}
	copy(m.TxID[:], body[:16])
	m.Phase = Phase(body[16])
	m.Success = body[17] != 0
	body = body[18:]

	m.Signature, body, err = readSig(body)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated shard id")
	}
	m.ShardID = getUint32(body[:4])
	return m, nil
}

// MarshalHeartbeat encodes a Heartbeat with its header.
func MarshalHeartbeat(m *Heartbeat) []byte {
	buf := []byte{Version, byte(KindHeartbeat)}
	var shardBuf [4]byte
	putUint32(shardBuf[:], m.FromShard)
	buf = append(buf, shardBuf[:]...)
	buf = appendTime(buf, m.Timestamp)
	buf = appendSig(buf, m.Signature)
	return buf
}

// UnmarshalHeartbeat decodes a Heartbeat.
func UnmarshalHeartbeat(buf []byte) (*Heartbeat, error) {
	body, err := checkHeader(buf, KindHeartbeat)
	if err != nil {
		return nil, err
	}
	m := &Heartbeat{}
	if len(body) < 4 {
		return nil, fmt.Errorf("wire: truncated from shard")
	}
	m.FromShard = getUint32(body[:4])
	body = body[4:]

	m.Timestamp, body, err = readTime(body)
	if err != nil {
		return nil, err
	}
	m.Signature, _, err = readSig(body)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// PeekKind reports the Kind of an encoded message without fully decoding it.
func PeekKind(buf []byte) (Kind, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("wire: message too short")
	}
	if buf[0] != Version {
		return 0, fmt.Errorf("wire: unsupported version %d", buf[0])
	}
	return Kind(buf[1]), nil
}

// MarshalTransactionPayload encodes the pinned resource/apply schema.
func MarshalTransactionPayload(p *TransactionPayload) []byte {
	var buf []byte
	var countBuf [4]byte
	putUint32(countBuf[:], uint32(len(p.Resources)))
	buf = append(buf, countBuf[:]...)
	for _, r := range p.Resources {
		buf = appendString(buf, r)
	}
	buf = appendBytes(buf, p.Apply)
	return buf
}

// UnmarshalTransactionPayload decodes a TransactionPayload.
func UnmarshalTransactionPayload(buf []byte) (*TransactionPayload, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("wire: truncated resource count")
	}
	n := getUint32(buf[:4])
	buf = buf[4:]
	p := &TransactionPayload{Resources: make([]string, 0, n)}
	for i := uint32(0); i < n; i++ {
		var r string
		var err error
		r, buf, err = readString(buf)
		if err != nil {
			return nil, err
		}
		p.Resources = append(p.Resources, r)
	}
	apply, _, err := readBytes(buf)
	if err != nil {
		return nil, err
	}
	p.Apply = apply
	return p, nil
}
