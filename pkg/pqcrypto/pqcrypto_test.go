package pqcrypto

import "testing"

func TestSignVerifyFamilyA(t *testing.T) {
	kp, err := GenerateSigKeyPair(FamilyA)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	keys := &SignerKeys{A: kp}
	msg := []byte("hello cross-shard")

	sig, err := Sign(keys, SchemeFamilyA, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(sig, msg, kp.Public)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify")
	}

	ok, err = Verify(sig, []byte("tampered"), kp.Public)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if ok {
		t.Error("expected tampered message to fail verification")
	}
}

func TestSignVerifyFamilyB(t *testing.T) {
	kp, err := GenerateSigKeyPair(FamilyB)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	keys := &SignerKeys{B: kp}
	msg := []byte("hash-based family")

	sig, err := Sign(keys, SchemeFamilyB, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := Verify(sig, msg, kp.Public)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("expected family B signature to verify")
	}
}

func TestHybridResolvesDeterministically(t *testing.T) {
	f1, err := resolveFamily(SchemeHybrid)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	f2, err := resolveFamily(SchemeHybrid)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f1 != f2 || f1 != FamilyA {
		t.Errorf("hybrid must deterministically resolve to family A, got %v then %v", f1, f2)
	}
}

func TestQuantumSignatureEncodeDecode(t *testing.T) {
	sig := &QuantumSignature{Family: FamilyA, Bytes: []byte{1, 2, 3, 4}}
	enc := sig.Encode()
	decoded, n, err := DecodeQuantumSignature(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(enc) {
		t.Errorf("expected to consume %d bytes, consumed %d", len(enc), n)
	}
	if decoded.Family != sig.Family {
		t.Errorf("family mismatch")
	}
	if string(decoded.Bytes) != string(sig.Bytes) {
		t.Errorf("bytes mismatch")
	}
}

func TestKEMEncapsulateDecapsulate(t *testing.T) {
	kp, err := GenerateKEMKeyPair()
	if err != nil {
		t.Fatalf("generate kem: %v", err)
	}
	ct, ss1, err := Encapsulate(kp.Public)
	if err != nil {
		t.Fatalf("encapsulate: %v", err)
	}
	ss2, err := Decapsulate(kp.Secret, ct)
	if err != nil {
		t.Fatalf("decapsulate: %v", err)
	}
	if string(ss1) != string(ss2) {
		t.Error("shared secrets must match")
	}
}

func TestQHashDomainSeparation(t *testing.T) {
	a := QHash([]byte("tx1"), []byte("data"))
	b := QHash([]byte("tx2"), []byte("data"))
	if a == b {
		t.Error("different tx ids should hash differently")
	}
}

func TestMerkleBuildAndVerify(t *testing.T) {
	leaves := [][32]byte{
		QHash([]byte("a"), nil),
		QHash([]byte("b"), nil),
		QHash([]byte("c"), nil),
	}
	root, err := BuildMerkleRoot(leaves)
	if err != nil {
		t.Fatalf("build root: %v", err)
	}
	proof, err := BuildMerkleProof(leaves, 1)
	if err != nil {
		t.Fatalf("build proof: %v", err)
	}
	if !VerifyMerkle(proof, root) {
		t.Error("expected valid proof to verify")
	}

	proof.LeafHash[0] ^= 0xff
	if VerifyMerkle(proof, root) {
		t.Error("expected tampered proof to fail")
	}
}
