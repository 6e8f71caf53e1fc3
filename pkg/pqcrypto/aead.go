package pqcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// SealPayload encrypts plaintext under the KEM-derived shared secret using
// AES-256-GCM, producing the tx_ciphertext carried on PrepareRequest. No
// third-party AEAD is wired anywhere in the dependency surface this module
// draws from, so this one primitive stays on the standard library rather
// than reaching for an ungrounded package.
func SealPayload(sharedSecret, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, xerr.Crypto("build aes cipher from shared secret", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerr.Crypto("build gcm from aes cipher", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, xerr.Crypto("generate gcm nonce", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenPayload reverses SealPayload.
func OpenPayload(sharedSecret, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, xerr.Crypto("build aes cipher from shared secret", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerr.Crypto("build gcm from aes cipher", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, xerr.Crypto("truncated ciphertext", nil)
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	pt, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, xerr.Crypto("gcm open", err)
	}
	return pt, nil
}
