package replica

import (
	"fmt"
	"os"
)

// LoadOrGenerateKey loads a replica's BLS voting private key from path,
// generating and persisting a fresh one if the file does not exist yet.
// Mirrors pkg/pqcrypto's load-or-generate convention for the shard-level
// signing and KEM keys.
func LoadOrGenerateKey(path string) (*PrivateKey, error) {
	if raw, err := os.ReadFile(path); err == nil {
		return PrivateKeyFromBytes(raw)
	}

	sk, _, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate replica voting key: %w", err)
	}
	if err := os.WriteFile(path, sk.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("persist replica voting key to %s: %w", path, err)
	}
	return sk, nil
}
