package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// New generates a cryptographically random 64-character hex token used in
// consent, employer-response and work-email links.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate action token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash returns the at-rest form of an action token. Only hashes are stored,
// so a leaked table never yields working links.
func Hash(tok string) string {
	sum := blake2b.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}
