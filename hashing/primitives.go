package hashing

import (
	"hash"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Primitives supplies the standard key-derivation functions that bcrypt,
// PBKDF2 and scrypt hashers delegate to.  This package only frames their
// parameters and output; the rounds themselves run inside these functions.
//
// A nil member falls back to the golang.org/x/crypto implementation, so the
// zero value is ready to use.  Replace members to route derivation through a
// different provider, e.g. a FIPS module or an instrumented wrapper.
type Primitives struct {
	// PBKDF2 derives keyLen bytes with iter rounds of HMAC over h.
	PBKDF2 func(password, salt []byte, iter, keyLen int, h func() hash.Hash) []byte

	// Scrypt derives keyLen bytes with cost N and block parameters r and p.
	Scrypt func(password, salt []byte, N, r, p, keyLen int) ([]byte, error)

	// Bcrypt returns a complete "$2a$" modular crypt string for password.
	Bcrypt func(password []byte, cost int) ([]byte, error)

	// BcryptCompare returns nil when password matches hashed and
	// bcrypt.ErrMismatchedHashAndPassword when it does not.
	BcryptCompare func(hashed, password []byte) error
}

// DefaultPrimitives returns Primitives backed by golang.org/x/crypto.
func DefaultPrimitives() Primitives {
	return Primitives{
		PBKDF2:        pbkdf2.Key,
		Scrypt:        scrypt.Key,
		Bcrypt:        bcrypt.GenerateFromPassword,
		BcryptCompare: bcrypt.CompareHashAndPassword,
	}
}

// withDefaults fills nil members from [DefaultPrimitives].
func (p Primitives) withDefaults() Primitives {
	d := DefaultPrimitives()
	if p.PBKDF2 == nil {
		p.PBKDF2 = d.PBKDF2
	}
	if p.Scrypt == nil {
		p.Scrypt = d.Scrypt
	}
	if p.Bcrypt == nil {
		p.Bcrypt = d.Bcrypt
	}
	if p.BcryptCompare == nil {
		p.BcryptCompare = d.BcryptCompare
	}
	return p
}
