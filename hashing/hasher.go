package hashing

import "strings"

// Scheme identifies a password hashing scheme together with the variant that
// changes its text representation (bcrypt ident, PBKDF2 digest).
// Using a named string type prevents accidental confusion with plain strings.
type Scheme string

const (
	// SchemeBcrypt2a selects bcrypt hashes with the "$2a$" ident.
	SchemeBcrypt2a Scheme = "bcrypt-2a"
	// SchemeBcrypt2b selects bcrypt hashes with the "$2b$" ident.
	SchemeBcrypt2b Scheme = "bcrypt-2b"
	// SchemeBcrypt2y selects bcrypt hashes with the "$2y$" ident (PHP).
	SchemeBcrypt2y Scheme = "bcrypt-2y"

	// SchemePBKDF2SHA1 selects PBKDF2 with HMAC-SHA1.
	SchemePBKDF2SHA1 Scheme = "pbkdf2-sha1"
	// SchemePBKDF2SHA224 selects PBKDF2 with HMAC-SHA224.
	SchemePBKDF2SHA224 Scheme = "pbkdf2-sha224"
	// SchemePBKDF2SHA256 selects PBKDF2 with HMAC-SHA256.
	SchemePBKDF2SHA256 Scheme = "pbkdf2-sha256"
	// SchemePBKDF2SHA384 selects PBKDF2 with HMAC-SHA384.
	SchemePBKDF2SHA384 Scheme = "pbkdf2-sha384"
	// SchemePBKDF2SHA512 selects PBKDF2 with HMAC-SHA512.
	SchemePBKDF2SHA512 Scheme = "pbkdf2-sha512"

	// SchemeScrypt selects scrypt.
	SchemeScrypt Scheme = "scrypt"

	// SchemeDrupal7 selects the Drupal 7 "$S$" iterated SHA-512 scheme.
	SchemeDrupal7 Scheme = "drupal7"

	// SchemePhpass selects the phpass portable "$P$" / "$H$" iterated MD5
	// scheme used by WordPress and phpBB.
	SchemePhpass Scheme = "phpass"

	// SchemeMD5Crypt selects the "$1$" MD5-crypt scheme.
	SchemeMD5Crypt Scheme = "md5-crypt"
	// SchemeSHA256Crypt selects the "$5$" SHA-256-crypt scheme.
	SchemeSHA256Crypt Scheme = "sha256-crypt"
	// SchemeSHA512Crypt selects the "$6$" SHA-512-crypt scheme.
	SchemeSHA512Crypt Scheme = "sha512-crypt"

	// SchemeArgon2i selects Argon2i.
	SchemeArgon2i Scheme = "argon2i"
	// SchemeArgon2id selects Argon2id (recommended for new systems).
	SchemeArgon2id Scheme = "argon2id"
)

// Hasher is the interface satisfied by every scheme implementation.
//
// All implementations must be safe for concurrent use by multiple goroutines.
type Hasher interface {
	// Make hashes a plaintext password and returns the encoded hash string.
	// A fresh salt is generated for every call, so two calls with the same
	// password produce different outputs.
	Make(password string) (string, error)

	// Check verifies that password matches the previously encoded hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or
	// (false, err) if the hash is structurally invalid.
	//
	// Comparison is performed in constant time.
	Check(password, hash string) (bool, error)

	// NeedsRehash returns true when the hash was produced with parameters
	// that differ from the hasher's current configuration.
	NeedsRehash(hash string) (bool, error)

	// Info extracts metadata from an encoded hash string without verifying it.
	Info(hash string) (HashInfo, error)

	// Scheme returns the Scheme produced by this hasher.
	Scheme() Scheme
}

// Validator is implemented by hashers that can check the cost parameters
// embedded in a hash string against configured bounds.  A stored hash with
// an absurd work factor can then be rejected before it is verified.
type Validator interface {
	// Validate returns ErrInvalidParameters when the parameters of hash fall
	// outside the configured bounds, or ErrMalformedHash when hash cannot be
	// parsed.
	Validate(hash string) error
}

// HashInfo carries metadata parsed from an encoded hash string.
type HashInfo struct {
	// Scheme is the scheme that produced the hash.
	Scheme Scheme

	// Params holds scheme-specific parameters extracted from the hash string.
	//
	// For bcrypt:
	//   "cost"  → int
	//   "ident" → string ("2a", "2b" or "2y")
	//
	// For PBKDF2:
	//   "rounds"   → int
	//   "key_len"  → int
	//   "salt_len" → int
	//
	// For scrypt:
	//   "ln"       → int (log2 of N)
	//   "r"        → int
	//   "p"        → int
	//   "key_len"  → int
	//   "salt_len" → int
	//
	// For Drupal 7:
	//   "iterations"     → uint64
	//   "log_iterations" → int
	//   "salt"           → string
	//
	// For phpass:
	//   "iterations"     → uint64
	//   "log_iterations" → int
	//   "ident"          → string ("P" or "H")
	//   "salt"           → string
	//
	// For MD5-crypt, SHA-256-crypt and SHA-512-crypt:
	//   "rounds" → int
	//   "salt"   → string
	//
	// For Argon2i and Argon2id:
	//   "version" → int
	//   "memory"  → uint32 (KiB)
	//   "time"    → uint32
	//   "threads" → uint8
	//   "key_len" → uint32
	Params map[string]any
}

// schemePrefixes lists the leading tag of every supported format.
// Longer tags precede the tags they extend.
var schemePrefixes = []struct {
	prefix string
	scheme Scheme
}{
	{"$argon2id$", SchemeArgon2id},
	{"$argon2i$", SchemeArgon2i},
	{"$2a$", SchemeBcrypt2a},
	{"$2b$", SchemeBcrypt2b},
	{"$2y$", SchemeBcrypt2y},
	{"$pbkdf2-sha1$", SchemePBKDF2SHA1},
	{"$pbkdf2-sha224$", SchemePBKDF2SHA224},
	{"$pbkdf2-sha256$", SchemePBKDF2SHA256},
	{"$pbkdf2-sha384$", SchemePBKDF2SHA384},
	{"$pbkdf2-sha512$", SchemePBKDF2SHA512},
	{"$pbkdf2$", SchemePBKDF2SHA1},
	{"$scrypt$", SchemeScrypt},
	{"$S$", SchemeDrupal7},
	{"$P$", SchemePhpass},
	{"$H$", SchemePhpass},
	{"$1$", SchemeMD5Crypt},
	{"$5$", SchemeSHA256Crypt},
	{"$6$", SchemeSHA512Crypt},
}

// DetectScheme inspects a hash string and returns the [Scheme] that produced
// it.  It is based on the leading tag only and does not parse the remainder.
//
// The second return value is false when the tag is not recognised.
func DetectScheme(hash string) (Scheme, bool) {
	for _, p := range schemePrefixes {
		if strings.HasPrefix(hash, p.prefix) {
			return p.scheme, true
		}
	}
	return "", false
}

// isScheme reports whether hash carries one of the given schemes' tags.
func isScheme(hash string, schemes ...Scheme) bool {
	s, ok := DetectScheme(hash)
	if !ok {
		return false
	}
	for _, want := range schemes {
		if s == want {
			return true
		}
	}
	return false
}
