package pqcrypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// QuantumSignature is the tagged-variant wire representation of a signature:
// a single discriminant byte naming the family, followed by the opaque
// signature bytes. New algorithms are added by extending Family and the
// dispatch in Verify, never by subclassing.
type QuantumSignature struct {
	Family Family
	Bytes  []byte
}

// Scheme selects which concrete family a signer should use. Hybrid must
// deterministically collapse to exactly one family so verifiers never need
// to try both.
type Scheme string

const (
	SchemeFamilyA Scheme = "A"
	SchemeFamilyB Scheme = "B"
	SchemeHybrid  Scheme = "hybrid"
)

// resolveFamily deterministically collapses a configured Scheme to one
// concrete Family. Hybrid resolves to FamilyA, mirroring the original
// coordinator's Hybrid-defaults-to-its-primary-family behavior.
func resolveFamily(s Scheme) (Family, error) {
	switch s {
	case SchemeFamilyA:
		return FamilyA, nil
	case SchemeFamilyB:
		return FamilyB, nil
	case SchemeHybrid:
		return FamilyA, nil
	default:
		return 0, fmt.Errorf("pqcrypto: unknown scheme %q", s)
	}
}

// SignerKeys bundles both family secret keys a participant or coordinator
// may be asked to sign with, so any configured Scheme can be honored without
// reloading keys per call.
type SignerKeys struct {
	A *SigKeyPair
	B *SigKeyPair
}

// Sign produces a QuantumSignature under the family the given scheme
// resolves to.
func Sign(keys *SignerKeys, s Scheme, msg []byte) (*QuantumSignature, error) {
	family, err := resolveFamily(s)
	if err != nil {
		return nil, xerr.Crypto("resolve signature scheme", err)
	}

	var kp *SigKeyPair
	switch family {
	case FamilyA:
		kp = keys.A
	case FamilyB:
		kp = keys.B
	}
	if kp == nil {
		return nil, xerr.Crypto(fmt.Sprintf("no key loaded for family %v", family), nil)
	}

	scheme, err := signScheme(family)
	if err != nil {
		return nil, xerr.Crypto("load signature scheme", err)
	}
	sig := scheme.Sign(kp.Secret, msg, nil)
	return &QuantumSignature{Family: family, Bytes: sig}, nil
}

// Verify dispatches on the signature's tag and fails closed on an unknown
// tag, a malformed public key, or a malformed signature encoding. A
// well-formed but invalid signature returns (false, nil), never an error.
func Verify(sig *QuantumSignature, msg []byte, pub sign.PublicKey) (bool, error) {
	if sig == nil {
		return false, xerr.Crypto("nil signature", nil)
	}
	scheme, err := signScheme(sig.Family)
	if err != nil {
		return false, xerr.Crypto("verify: unknown family", err)
	}
	return scheme.Verify(pub, msg, sig.Bytes, nil), nil
}

// UnmarshalPublicKey parses a raw public key for the given family. Used by
// the key registry when loading peers' published keys.
func UnmarshalPublicKey(f Family, raw []byte) (sign.PublicKey, error) {
	scheme, err := signScheme(f)
	if err != nil {
		return nil, err
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, xerr.Crypto("unmarshal public key", err)
	}
	return pub, nil
}

// MarshalPublicKey serializes a public key to its raw wire bytes.
func MarshalPublicKey(pub sign.PublicKey) ([]byte, error) {
	raw, err := pub.MarshalBinary()
	if err != nil {
		return nil, xerr.Crypto("marshal public key", err)
	}
	return raw, nil
}

// Encode serializes a QuantumSignature as a single discriminant byte
// followed by a length-prefixed blob, matching the wire format's
// "QuantumSignature is a single discriminant byte plus length-prefixed
// blob" rule.
func (s *QuantumSignature) Encode() []byte {
	out := make([]byte, 0, 5+len(s.Bytes))
	out = append(out, byte(s.Family))
	out = appendUint32(out, uint32(len(s.Bytes)))
	out = append(out, s.Bytes...)
	return out
}

// DecodeQuantumSignature parses the Encode format, returning the number of
// bytes consumed.
func DecodeQuantumSignature(buf []byte) (*QuantumSignature, int, error) {
	if len(buf) < 5 {
		return nil, 0, xerr.Crypto("truncated quantum signature", nil)
	}
	family := Family(buf[0])
	n := readUint32(buf[1:5])
	if len(buf) < 5+int(n) {
		return nil, 0, xerr.Crypto("truncated quantum signature body", nil)
	}
	return &QuantumSignature{Family: family, Bytes: append([]byte(nil), buf[5:5+int(n)]...)}, 5 + int(n), nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
