package pqcrypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// MerkleProofNode is a single sibling hash on the path from a leaf to a root.
type MerkleProofNode struct {
	Hash     [32]byte
	OnLeft   bool // true if this sibling sits to the left of the running hash
}

// MerkleProof is the tx-hash-plus-sibling-path inclusion proof consumed by
// CommitRequest. Verify recomputes the root and compares it against the
// locally trusted one.
type MerkleProof struct {
	LeafHash [32]byte
	Path     []MerkleProofNode
}

// VerifyMerkle recomputes the Merkle root along proof.Path starting from
// proof.LeafHash and compares it, in constant time, against expectedRoot.
func VerifyMerkle(proof *MerkleProof, expectedRoot [32]byte) bool {
	if proof == nil {
		return false
	}
	current := proof.LeafHash
	for _, node := range proof.Path {
		if node.OnLeft {
			current = hashPair(node.Hash, current)
		} else {
			current = hashPair(current, node.Hash)
		}
	}
	return subtle.ConstantTimeCompare(current[:], expectedRoot[:]) == 1
}

// BuildMerkleRoot computes the root over leaves using the standard
// odd-node-duplication rule; used by a participant at prepare time to derive
// the root it later checks a CommitRequest's proof against.
func BuildMerkleRoot(leaves [][32]byte) ([32]byte, error) {
	if len(leaves) == 0 {
		return [32]byte{}, fmt.Errorf("pqcrypto: cannot build merkle root from zero leaves")
	}
	level := leaves
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0], nil
}

// BuildMerkleProof computes the inclusion proof for leaves[index] against
// the tree formed by leaves.
func BuildMerkleProof(leaves [][32]byte, index int) (*MerkleProof, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("pqcrypto: leaf index %d out of range [0,%d)", index, len(leaves))
	}
	proof := &MerkleProof{LeafHash: leaves[index]}
	level := leaves
	cur := index
	for len(level) > 1 {
		var sibling [32]byte
		onLeft := false
		if cur%2 == 0 {
			if cur+1 < len(level) {
				sibling = level[cur+1]
			} else {
				sibling = level[cur]
			}
			onLeft = false
		} else {
			sibling = level[cur-1]
			onLeft = true
		}
		proof.Path = append(proof.Path, MerkleProofNode{Hash: sibling, OnLeft: onLeft})

		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
		cur = cur / 2
	}
	return proof, nil
}

// CommitLeaves derives the canonical Merkle leaf set committing a
// transaction's quantum hash together with its resource set: leaves[0] is
// the quantum hash itself, followed by one leaf per resource binding it to
// that hash. The coordinator and each participant independently derive this
// same set from data they both already hold (qhash and the resource list),
// so the root they each compute only agrees when both sides agree on what
// is being committed.
func CommitLeaves(qhash [32]byte, resources []string) [][32]byte {
	leaves := make([][32]byte, 0, len(resources)+1)
	leaves = append(leaves, qhash)
	for _, r := range resources {
		leaves = append(leaves, QHash([]byte(r), qhash[:]))
	}
	return leaves
}

func hashPair(left, right [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return sha256.Sum256(buf)
}
