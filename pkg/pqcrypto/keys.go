// Package pqcrypto implements the post-quantum cryptographic primitives the
// coordinator depends on: two signature families behind a common tagged
// interface, a KEM used to wrap per-message shared secrets, a
// domain-separated hash binding transaction id to transaction data, and
// verification of Merkle inclusion proofs and Groth16 zero-knowledge proofs.
//
// All circl calls are isolated in this file and kem.go/sign.go so the rest
// of the coordinator only ever sees the tagged Family/QuantumSignature types.
package pqcrypto

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/slhdsa"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// Family identifies a concrete post-quantum signature scheme. The protocol
// only ever reasons about the two abstract families named A and B, never the
// concrete algorithm; this is the polymorphism-over-signature-schemes design
// note in practice.
type Family byte

const (
	FamilyA Family = iota + 1 // lattice-based, ML-DSA-65
	FamilyB                  // hash-based, SLH-DSA-SHA2-128s
)

func (f Family) String() string {
	switch f {
	case FamilyA:
		return "A"
	case FamilyB:
		return "B"
	default:
		return "unknown"
	}
}

func signScheme(f Family) (sign.Scheme, error) {
	switch f {
	case FamilyA:
		return mldsa65.Scheme(), nil
	case FamilyB:
		return slhdsa.SchemeSHA2128Small, nil
	default:
		return nil, fmt.Errorf("pqcrypto: unknown signature family %v", f)
	}
}

func kemScheme() kem.Scheme {
	return mlkem768.Scheme()
}

// SigKeyPair holds both halves of a signing keypair for one family.
type SigKeyPair struct {
	Family Family
	Public sign.PublicKey
	Secret sign.PrivateKey
}

// KEMKeyPair holds both halves of a KEM keypair.
type KEMKeyPair struct {
	Public kem.PublicKey
	Secret kem.PrivateKey
}

// GenerateSigKeyPair creates a fresh keypair for the given family.
func GenerateSigKeyPair(f Family) (*SigKeyPair, error) {
	scheme, err := signScheme(f)
	if err != nil {
		return nil, err
	}
	pub, priv, err := scheme.GenerateKey()
	if err != nil {
		return nil, xerr.Crypto("generate signature keypair", err)
	}
	return &SigKeyPair{Family: f, Public: pub, Secret: priv}, nil
}

// GenerateKEMKeyPair creates a fresh ML-KEM-768 keypair.
func GenerateKEMKeyPair() (*KEMKeyPair, error) {
	scheme := kemScheme()
	pub, priv, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, xerr.Crypto("generate kem keypair", err)
	}
	return &KEMKeyPair{Public: pub, Secret: priv}, nil
}

// LoadOrGenerateSigKey loads a secret key from path, or generates and
// atomically persists a new one if the file does not exist. Matches the
// original coordinator's "<db_path>_dilithium.key"/"<db_path>_falcon.key"
// bootstrapping behavior, kept under the same filenames for continuity even
// though the concrete algorithms differ.
func LoadOrGenerateSigKey(f Family, path string) (*SigKeyPair, error) {
	scheme, err := signScheme(f)
	if err != nil {
		return nil, err
	}
	if raw, err := os.ReadFile(path); err == nil {
		priv, err := scheme.UnmarshalBinaryPrivateKey(raw)
		if err != nil {
			return nil, xerr.Crypto("unmarshal signing key from "+path, err)
		}
		pub := priv.Public().(sign.PublicKey)
		return &SigKeyPair{Family: f, Public: pub, Secret: priv}, nil
	}

	kp, err := GenerateSigKeyPair(f)
	if err != nil {
		return nil, err
	}
	raw, err := kp.Secret.MarshalBinary()
	if err != nil {
		return nil, xerr.Crypto("marshal signing key", err)
	}
	if err := writeKeyAtomic(path, raw); err != nil {
		return nil, err
	}
	return kp, nil
}

// LoadOrGenerateKEMKey loads or creates a KEM keypair, mirroring
// LoadOrGenerateSigKey. Matches "<db_path>_kyber.key".
func LoadOrGenerateKEMKey(path string) (*KEMKeyPair, error) {
	scheme := kemScheme()
	if raw, err := os.ReadFile(path); err == nil {
		priv, err := scheme.UnmarshalBinaryPrivateKey(raw)
		if err != nil {
			return nil, xerr.Crypto("unmarshal kem key from "+path, err)
		}
		pub := priv.Public()
		return &KEMKeyPair{Public: pub, Secret: priv}, nil
	}

	kp, err := GenerateKEMKeyPair()
	if err != nil {
		return nil, err
	}
	raw, err := kp.Secret.MarshalBinary()
	if err != nil {
		return nil, xerr.Crypto("marshal kem key", err)
	}
	if err := writeKeyAtomic(path, raw); err != nil {
		return nil, err
	}
	return kp, nil
}

// writeKeyAtomic writes secret key material to path with 0600 permissions
// using a write-fsync-rename sequence so a crash mid-write never leaves a
// truncated key on disk.
func writeKeyAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return xerr.Storage("create key directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return xerr.Storage("create temp key file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return xerr.Storage("chmod temp key file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return xerr.Storage("write temp key file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return xerr.Storage("fsync temp key file", err)
	}
	if err := tmp.Close(); err != nil {
		return xerr.Storage("close temp key file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return xerr.Storage("rename temp key file", err)
	}
	return nil
}

// randomBytes is a small seam kept so tests can exercise deterministic
// behavior elsewhere without touching crypto/rand directly.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
