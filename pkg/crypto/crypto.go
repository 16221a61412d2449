package crypto

import "crypto/sha256"

// Digest returns the raw SHA-256 digest, sized for bytes32 contract
// arguments.
func Digest(b []byte) [32]byte {
	return sha256.Sum256(b)
}
