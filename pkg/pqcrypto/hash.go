package pqcrypto

import "crypto/sha256"

// qhashDomain domain-separates the quantum-resistant hash from any other
// SHA-256 usage in the process.
const qhashDomain = "xshard/qhash/v1"

// QHash computes the domain-separated hash binding a transaction id to its
// transaction data. It is a hash-based construction rather than a lattice
// one, so it carries no algebraic structure an attacker could target
// independently of the signature/KEM families above.
func QHash(txID, txData []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(qhashDomain))
	h.Write(txID)
	h.Write(txData)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
