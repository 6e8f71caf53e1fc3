package pqcrypto

import (
	"github.com/cloudflare/circl/kem"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// Encapsulate performs a single-shot ML-KEM-768 encapsulation against the
// recipient's public key, returning the ciphertext to send and the shared
// secret to sign and use locally.
func Encapsulate(recipientPub kem.PublicKey) (ciphertext, sharedSecret []byte, err error) {
	scheme := kemScheme()
	ct, ss, err := scheme.Encapsulate(recipientPub)
	if err != nil {
		return nil, nil, xerr.Crypto("kem encapsulate", err)
	}
	return ct, ss, nil
}

// Decapsulate recovers the shared secret from a ciphertext using the local
// KEM secret key.
func Decapsulate(localSecret kem.PrivateKey, ciphertext []byte) ([]byte, error) {
	scheme := kemScheme()
	ss, err := scheme.Decapsulate(localSecret, ciphertext)
	if err != nil {
		return nil, xerr.Crypto("kem decapsulate", err)
	}
	return ss, nil
}

// UnmarshalKEMPublicKey parses a raw ML-KEM-768 public key.
func UnmarshalKEMPublicKey(raw []byte) (kem.PublicKey, error) {
	scheme := kemScheme()
	pub, err := scheme.UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, xerr.Crypto("unmarshal kem public key", err)
	}
	return pub, nil
}

// MarshalKEMPublicKey serializes a KEM public key to raw wire bytes.
func MarshalKEMPublicKey(pub kem.PublicKey) ([]byte, error) {
	raw, err := pub.MarshalBinary()
	if err != nil {
		return nil, xerr.Crypto("marshal kem public key", err)
	}
	return raw, nil
}

// KEMCiphertextSize returns the fixed ML-KEM-768 ciphertext length, so
// callers splitting a combined KEM-ciphertext-plus-AEAD blob never need to
// hardcode the algorithm's wire size themselves.
func KEMCiphertextSize() int {
	return kemScheme().CiphertextSize()
}
