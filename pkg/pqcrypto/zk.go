package pqcrypto

import (
	"io"
	"math/big"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// CommitmentCircuit is the Groth16 arithmetic circuit backing ZKProof
// verification: it attests that the prover knows a transaction witness
// binding to the single public Commitment value (derived from qhash) without
// revealing it. Real witness-derivation constraints for a specific
// transaction type are out of scope; this definition exists only so
// setup/prove/verify share one public-input layout.
type CommitmentCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	Witness    frontend.Variable
}

// Define enforces Witness*Witness == Commitment, a minimal quadratic
// constraint sufficient to exercise Groth16 setup/prove/verify end to end.
func (c *CommitmentCircuit) Define(api frontend.API) error {
	sq := api.Mul(c.Witness, c.Witness)
	api.AssertIsEqual(sq, c.Commitment)
	return nil
}

// ZKProof is the opaque Groth16/BN254 proof object attached to CommitRequest.
type ZKProof struct {
	Raw []byte
}

// ZKVerifyingKey wraps a loaded Groth16 BN254 verifying key.
type ZKVerifyingKey struct {
	vk groth16.VerifyingKey
}

// ZKProvingKey wraps a loaded or freshly generated Groth16 BN254 proving key
// together with the compiled constraint system groth16.Prove needs
// alongside it. Held by the coordinator so it can produce its own commit-time
// proofs without a trusted external prover.
type ZKProvingKey struct {
	pk groth16.ProvingKey
	cs constraint.ConstraintSystem
}

func compileCommitmentCircuit() (constraint.ConstraintSystem, error) {
	var circuit CommitmentCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, xerr.Crypto("compile commitment circuit", err)
	}
	return cs, nil
}

// LoadZKVerifyingKey reads a canonical verifying key from path (the
// "<db_path>_zk_vk.bin" persisted artifact).
func LoadZKVerifyingKey(path string) (*ZKVerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.Storage("open zk verifying key", err)
	}
	defer f.Close()

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, xerr.Crypto("read zk verifying key", err)
	}
	return &ZKVerifyingKey{vk: vk}, nil
}

func loadZKProvingKey(path string) (*ZKProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.Storage("open zk proving key", err)
	}
	defer f.Close()

	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(f); err != nil {
		return nil, xerr.Crypto("read zk proving key", err)
	}
	cs, err := compileCommitmentCircuit()
	if err != nil {
		return nil, err
	}
	return &ZKProvingKey{pk: pk, cs: cs}, nil
}

// SetupCommitmentCircuit runs a one-time trusted setup for the commitment
// circuit and persists both the proving and verifying key so later startups
// load rather than re-run Setup.
func SetupCommitmentCircuit(pkPath, vkPath string) (*ZKProvingKey, *ZKVerifyingKey, error) {
	cs, err := compileCommitmentCircuit()
	if err != nil {
		return nil, nil, err
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, nil, xerr.Crypto("groth16 setup", err)
	}
	if err := persistZKArtifact(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := persistZKArtifact(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return &ZKProvingKey{pk: pk, cs: cs}, &ZKVerifyingKey{vk: vk}, nil
}

// writerTo is the subset of gnark-crypto's serialization interface both
// groth16.ProvingKey and groth16.VerifyingKey satisfy.
type writerTo interface {
	WriteTo(w io.Writer) (int64, error)
}

func persistZKArtifact(path string, w writerTo) error {
	f, err := os.Create(path)
	if err != nil {
		return xerr.Storage("create zk key file", err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		return xerr.Storage("write zk key", err)
	}
	return nil
}

// LoadOrGenerateZKKeys loads a previously persisted proving/verifying key
// pair from pkPath/vkPath, mirroring the LoadOrGenerate* convention used for
// signing and KEM keys elsewhere in this package. If either file is absent
// it runs SetupCommitmentCircuit to generate and persist a fresh pair.
func LoadOrGenerateZKKeys(pkPath, vkPath string) (*ZKProvingKey, *ZKVerifyingKey, error) {
	_, pkErr := os.Stat(pkPath)
	_, vkErr := os.Stat(vkPath)
	if pkErr == nil && vkErr == nil {
		pk, err := loadZKProvingKey(pkPath)
		if err != nil {
			return nil, nil, err
		}
		vk, err := LoadZKVerifyingKey(vkPath)
		if err != nil {
			return nil, nil, err
		}
		return pk, vk, nil
	}
	return SetupCommitmentCircuit(pkPath, vkPath)
}

// VerifyZK verifies proof.Raw against vk using commitment as the sole
// public input. It returns false (not an error) on a well-formed but
// invalid proof, and an error only on malformed encoding.
func VerifyZK(proof *ZKProof, vk *ZKVerifyingKey, commitment *big.Int) (bool, error) {
	if proof == nil || vk == nil {
		return false, xerr.Crypto("nil proof or verifying key", nil)
	}

	gProof := groth16_bn254.Proof{}
	if err := gProof.UnmarshalBinary(proof.Raw); err != nil {
		return false, xerr.Crypto("unmarshal zk proof", err)
	}

	assignment := &CommitmentCircuit{Commitment: commitment}
	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, xerr.Crypto("build zk public witness", err)
	}

	if err := groth16.Verify(&gProof, vk.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// ProveCommitment proves knowledge of the witness CommitmentFromHash derives
// from h, producing the ZKProof a CommitRequest attaches at commit time. The
// coordinator is always able to self-derive a satisfying witness (see
// CommitmentFromHash), so this never fails for lack of a witness.
func ProveCommitment(pk *ZKProvingKey, h [32]byte) (*ZKProof, error) {
	witness := witnessFromHash(h)
	assignment := &CommitmentCircuit{Commitment: squareMod(witness), Witness: witness}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, xerr.Crypto("build zk full witness", err)
	}

	proof, err := groth16.Prove(pk.cs, pk.pk, fullWitness)
	if err != nil {
		return nil, xerr.Crypto("groth16 prove", err)
	}
	gProof, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, xerr.Crypto("unexpected groth16 proof type", nil)
	}
	raw, err := gProof.MarshalBinary()
	if err != nil {
		return nil, xerr.Crypto("marshal zk proof", err)
	}
	return &ZKProof{Raw: raw}, nil
}

func witnessFromHash(h [32]byte) *big.Int {
	n := new(big.Int).SetBytes(h[:])
	return n.Mod(n, ecc.BN254.ScalarField())
}

func squareMod(witness *big.Int) *big.Int {
	sq := new(big.Int).Mul(witness, witness)
	return sq.Mod(sq, ecc.BN254.ScalarField())
}

// CommitmentFromHash derives the public commitment value for h: the square,
// modulo the BN254 scalar field, of h reduced into that field. Squaring
// guarantees the reduced hash itself is always a valid witness for the
// commitment, so a prover can self-derive a proof for any hash without
// needing to find a modular square root that might not exist.
func CommitmentFromHash(h [32]byte) *big.Int {
	return squareMod(witnessFromHash(h))
}
