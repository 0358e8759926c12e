package hashing

import (
	"crypto/rand"
	"fmt"
	"io"
)

// DefaultSaltLen is the random salt length in bytes used by the PBKDF2,
// scrypt and Argon2 hashers unless configured otherwise.
const DefaultSaltLen = 16

// randomSalt returns n random bytes read from r, or from crypto/rand when r
// is nil.
func randomSalt(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("hashing: failed to generate salt: %w", err)
	}
	return b, nil
}
