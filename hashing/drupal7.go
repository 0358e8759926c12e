package hashing

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/hasbyte1/go-passcompat/crypt3"
)

// Drupal 7 hash layout:
//
//	$S$ + iteration symbol + 8-char salt + 43-char digest text
const (
	// Drupal7Prefix is the tag every Drupal 7 hash starts with.
	Drupal7Prefix = "$S$"

	// Drupal7SaltLen is the salt length in characters.
	Drupal7SaltLen = 8

	// Drupal7DigestTextLen is the number of crypt3 characters of the SHA-512
	// digest kept in the hash.  The remaining 43 characters are dropped.
	Drupal7DigestTextLen = 43

	// Drupal7HashLen is the total length of a Drupal 7 hash.
	Drupal7HashLen = len(Drupal7Prefix) + 1 + Drupal7SaltLen + Drupal7DigestTextLen
)

const (
	// DefaultDrupal7LogIterations is Drupal 7's DRUPAL_HASH_COUNT: 2^15
	// rounds, encoded as 'D'.
	DefaultDrupal7LogIterations = 15

	// DefaultDrupal7MinLogIterations and DefaultDrupal7MaxLogIterations are
	// Drupal 7's DRUPAL_MIN_HASH_COUNT and DRUPAL_MAX_HASH_COUNT.  They bound
	// [Drupal7Hasher.Validate], not verification itself.
	DefaultDrupal7MinLogIterations = 7
	DefaultDrupal7MaxLogIterations = 30

	// drupal7SaltPad fills salts shorter than Drupal7SaltLen.
	drupal7SaltPad = '0'

	// drupal7SaltBytes random bytes encode to exactly Drupal7SaltLen symbols.
	drupal7SaltBytes = 6
)

// ──────────────────────────────────────────────────────────────────────────────
// Hash engine
// ──────────────────────────────────────────────────────────────────────────────

// CanonicalDrupal7Salt truncates salt to [Drupal7SaltLen] characters, or pads
// it on the right with '0' when it is shorter.  The conversion is lossy and
// never fails; [checkDrupal7Salt] rejects results outside the alphabet.
func CanonicalDrupal7Salt(salt string) string {
	if len(salt) >= Drupal7SaltLen {
		return salt[:Drupal7SaltLen]
	}
	return salt + strings.Repeat(string(rune(drupal7SaltPad)), Drupal7SaltLen-len(salt))
}

// checkDrupal7Salt returns ErrInvalidParameters unless every byte of the
// canonical salt is a crypt3 symbol.
func checkDrupal7Salt(salt string) error {
	if i := crypt3.IndexInvalid(salt); i >= 0 {
		return fmt.Errorf("%w: drupal7 salt byte %q at offset %d is not a crypt3 symbol",
			ErrInvalidParameters, salt[i], i)
	}
	return nil
}

// Drupal7Digest runs the Drupal 7 hash chain and returns the raw 64-byte
// SHA-512 digest:
//
//	d = SHA-512(salt || password)
//	repeat 2^value(iterationChar) times: d = SHA-512(d || password)
//
// salt is canonicalised with [CanonicalDrupal7Salt] first.  An iteration
// character outside the crypt3 alphabet returns
// crypt3.ErrInvalidIterationSymbol.
func Drupal7Digest(password, salt string, iterationChar byte) ([]byte, error) {
	rounds, err := crypt3.IterationCount(iterationChar)
	if err != nil {
		return nil, err
	}
	return Drupal7DigestRounds(password, CanonicalDrupal7Salt(salt), rounds), nil
}

// Drupal7DigestRounds runs the Drupal 7 hash chain with an explicit round
// count.  salt is used as given.  With zero rounds the result is
// SHA-512(salt || password).
//
// The loop is bounded only by rounds; callers that accept counts from
// untrusted input should bound them first.
func Drupal7DigestRounds(password, salt string, rounds uint64) []byte {
	return iteratedDigest(sha512.New(), password, salt, rounds)
}

// iteratedDigest computes d = H(salt || password), then rounds times
// d = H(d || password).  Drupal 7 and phpass share the chain and differ only
// in H.
func iteratedDigest(h hash.Hash, password, salt string, rounds uint64) []byte {
	pw := []byte(password)

	h.Write([]byte(salt))
	h.Write(pw)
	digest := h.Sum(make([]byte, 0, h.Size()))

	for ; rounds > 0; rounds-- {
		h.Reset()
		h.Write(digest)
		h.Write(pw)
		digest = h.Sum(digest[:0])
	}
	return digest
}

// ──────────────────────────────────────────────────────────────────────────────
// Framing
// ──────────────────────────────────────────────────────────────────────────────

// Drupal7Hash is the parsed form of a Drupal 7 hash string.
type Drupal7Hash struct {
	// IterationChar encodes the round count as a crypt3 symbol.
	IterationChar byte
	// Salt is the 8-character salt.
	Salt string
	// Digest is the crypt3-encoded, truncated SHA-512 digest.
	Digest string
}

// String reassembles the hash string.  For any value returned by
// [ParseDrupal7] it returns the exact input.
func (h Drupal7Hash) String() string {
	var b strings.Builder
	b.Grow(len(Drupal7Prefix) + 1 + len(h.Salt) + len(h.Digest))
	b.WriteString(Drupal7Prefix)
	b.WriteByte(h.IterationChar)
	b.WriteString(h.Salt)
	b.WriteString(h.Digest)
	return b.String()
}

// Iterations returns the number of rounds encoded by IterationChar.
func (h Drupal7Hash) Iterations() (uint64, error) {
	return crypt3.IterationCount(h.IterationChar)
}

// AssembleDrupal7 encodes digest with the crypt3 alphabet, keeps the first
// [Drupal7DigestTextLen] characters and returns
//
//	"$S$" + iterationChar + salt + text
//
// salt is canonicalised with [CanonicalDrupal7Salt].  ErrInvalidParameters is
// returned when iterationChar or a byte of the canonical salt is not a crypt3
// symbol.
func AssembleDrupal7(iterationChar byte, salt string, digest []byte) (string, error) {
	if _, ok := crypt3.Index(iterationChar); !ok {
		return "", fmt.Errorf("%w: drupal7 iteration character %q is not a crypt3 symbol",
			ErrInvalidParameters, iterationChar)
	}
	salt = CanonicalDrupal7Salt(salt)
	if err := checkDrupal7Salt(salt); err != nil {
		return "", err
	}
	text := crypt3.AppendEncode(make([]byte, 0, crypt3.EncodedLen(len(digest))), digest)
	if len(text) > Drupal7DigestTextLen {
		text = text[:Drupal7DigestTextLen]
	}
	return Drupal7Hash{
		IterationChar: iterationChar,
		Salt:          salt,
		Digest:        string(text),
	}.String(), nil
}

// ParseDrupal7 splits a Drupal 7 hash string into its fields.
//
// ErrMalformedHash is returned unless encoded starts with "$S$" and is
// followed by an iteration character, 8 salt characters and a non-empty
// digest, with the salt and digest drawn from the crypt3 alphabet.  The
// iteration character itself is checked when the hash is verified.
func ParseDrupal7(encoded string) (Drupal7Hash, error) {
	if !strings.HasPrefix(encoded, Drupal7Prefix) {
		return Drupal7Hash{}, fmt.Errorf("%w: missing %q prefix", ErrMalformedHash, Drupal7Prefix)
	}
	rest := encoded[len(Drupal7Prefix):]
	if len(rest) < 1+Drupal7SaltLen+1 {
		return Drupal7Hash{}, fmt.Errorf("%w: drupal7 hash needs an iteration character, %d salt characters and a digest, got %d characters",
			ErrMalformedHash, Drupal7SaltLen, len(rest))
	}
	if i := crypt3.IndexInvalid(rest[1:]); i >= 0 {
		return Drupal7Hash{}, fmt.Errorf("%w: invalid drupal7 character %q at offset %d",
			ErrMalformedHash, rest[1+i], len(Drupal7Prefix)+1+i)
	}
	return Drupal7Hash{
		IterationChar: rest[0],
		Salt:          rest[1 : 1+Drupal7SaltLen],
		Digest:        rest[1+Drupal7SaltLen:],
	}, nil
}

// VerifyDrupal7 reports whether password matches the Drupal 7 hash encoded.
//
// The hash is recomputed from the parsed salt and iteration character,
// reassembled, and compared to encoded in constant time.  A wrong password
// returns (false, nil).  ErrMalformedHash is returned when encoded cannot be
// parsed or its iteration character is not a crypt3 symbol.
func VerifyDrupal7(password, encoded string) (bool, error) {
	p, err := ParseDrupal7(encoded)
	if err != nil {
		return false, err
	}
	digest, err := Drupal7Digest(password, p.Salt, p.IterationChar)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	computed, err := AssembleDrupal7(p.IterationChar, p.Salt, digest)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(encoded)) == 1, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Drupal7Hasher
// ──────────────────────────────────────────────────────────────────────────────

// Drupal7Options configures a [Drupal7Hasher].
type Drupal7Options struct {
	// LogIterations is the base-2 logarithm of the round count used by Make.
	// Valid range: [0, 63].  Default: [DefaultDrupal7LogIterations] (15).
	LogIterations int

	// MinLogIterations and MaxLogIterations bound the round count accepted
	// by [Drupal7Hasher.Validate].  When both are zero the Drupal defaults
	// apply.  Otherwise a zero MinLogIterations admits a single round.
	MinLogIterations int
	MaxLogIterations int

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader
}

// DefaultDrupal7Options returns Drupal7Options matching Drupal 7 itself.
func DefaultDrupal7Options() Drupal7Options {
	return Drupal7Options{
		LogIterations:    DefaultDrupal7LogIterations,
		MinLogIterations: DefaultDrupal7MinLogIterations,
		MaxLogIterations: DefaultDrupal7MaxLogIterations,
	}
}

func validateDrupal7Options(opts Drupal7Options) (Drupal7Options, error) {
	if opts.MinLogIterations == 0 && opts.MaxLogIterations == 0 {
		opts.MinLogIterations = DefaultDrupal7MinLogIterations
		opts.MaxLogIterations = DefaultDrupal7MaxLogIterations
	}
	if opts.LogIterations < 0 || opts.LogIterations > crypt3.MaxLogIterations {
		return opts, fmt.Errorf("%w: drupal7 log_iterations %d must be in [0, %d]",
			ErrInvalidParameters, opts.LogIterations, crypt3.MaxLogIterations)
	}
	if opts.MinLogIterations < 0 || opts.MaxLogIterations > crypt3.MaxLogIterations ||
		opts.MinLogIterations > opts.MaxLogIterations {
		return opts, fmt.Errorf("%w: drupal7 validation bounds [%d, %d] must lie within [0, %d]",
			ErrInvalidParameters, opts.MinLogIterations, opts.MaxLogIterations, crypt3.MaxLogIterations)
	}
	return opts, nil
}

// Drupal7Hasher hashes passwords with the Drupal 7 "$S$" scheme.
//
// Drupal 7 is a legacy scheme.  Keep it registered to verify imported hashes
// and let the [Registry] upgrade them to a modern default.
//
// # Thread safety
//
// Drupal7Hasher is immutable after construction and safe for concurrent use.
type Drupal7Hasher struct {
	opts     Drupal7Options
	iterChar byte
}

// NewDrupal7Hasher constructs a Drupal7Hasher with the provided options.
// Returns [ErrInvalidParameters] if LogIterations is not representable or the
// validation bounds are inconsistent.
func NewDrupal7Hasher(opts Drupal7Options) (*Drupal7Hasher, error) {
	opts, err := validateDrupal7Options(opts)
	if err != nil {
		return nil, err
	}
	c, err := crypt3.LogIterationSymbol(opts.LogIterations)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return &Drupal7Hasher{opts: opts, iterChar: c}, nil
}

// Scheme returns [SchemeDrupal7].
func (h *Drupal7Hasher) Scheme() Scheme { return SchemeDrupal7 }

// Options returns the hasher configuration.
func (h *Drupal7Hasher) Options() Drupal7Options { return h.opts }

// Make hashes password with a fresh 8-character salt.
func (h *Drupal7Hasher) Make(password string) (string, error) {
	raw, err := randomSalt(h.opts.Rand, drupal7SaltBytes)
	if err != nil {
		return "", err
	}
	return h.MakeWithSalt(password, crypt3.Encode(raw))
}

// MakeWithSalt hashes password with the given salt, canonicalised with
// [CanonicalDrupal7Salt].  Use it to reproduce a hash from known inputs.
//
// Returns [ErrInvalidParameters] if the canonical salt contains a byte outside
// the crypt3 alphabet.
func (h *Drupal7Hasher) MakeWithSalt(password, salt string) (string, error) {
	salt = CanonicalDrupal7Salt(salt)
	if err := checkDrupal7Salt(salt); err != nil {
		return "", err
	}
	digest, err := Drupal7Digest(password, salt, h.iterChar)
	if err != nil {
		return "", err
	}
	return AssembleDrupal7(h.iterChar, salt, digest)
}

// Check verifies password against a Drupal 7 hash.  See [VerifyDrupal7].
func (h *Drupal7Hasher) Check(password, hash string) (bool, error) {
	if !isScheme(hash, SchemeDrupal7) {
		return false, fmt.Errorf("%w: hash does not appear to be drupal7", ErrSchemeMismatch)
	}
	return VerifyDrupal7(password, hash)
}

// NeedsRehash returns true if the round count encoded in hash differs from
// the hasher's configured LogIterations.
func (h *Drupal7Hasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.IterationChar != h.iterChar, nil
}

// Validate checks that the round count encoded in hash lies within
// [MinLogIterations, MaxLogIterations].
func (h *Drupal7Hasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	log2, _ := crypt3.LogIterations(p.IterationChar)
	if log2 < h.opts.MinLogIterations || log2 > h.opts.MaxLogIterations {
		return fmt.Errorf("%w: drupal7 iterations 2^%d outside [2^%d, 2^%d]",
			ErrInvalidParameters, log2, h.opts.MinLogIterations, h.opts.MaxLogIterations)
	}
	return nil
}

// Info extracts the round count and salt from a Drupal 7 hash.
//
// Returned [HashInfo].Params:
//   - "iterations"     → uint64
//   - "log_iterations" → int
//   - "salt"           → string
func (h *Drupal7Hasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	log2, _ := crypt3.LogIterations(p.IterationChar)
	return HashInfo{
		Scheme: SchemeDrupal7,
		Params: map[string]any{
			"iterations":     uint64(1) << uint(log2),
			"log_iterations": log2,
			"salt":           p.Salt,
		},
	}, nil
}

// parse checks the scheme tag, the framing and the iteration character.
func (h *Drupal7Hasher) parse(hash string) (Drupal7Hash, error) {
	if !isScheme(hash, SchemeDrupal7) {
		return Drupal7Hash{}, fmt.Errorf("%w: hash does not appear to be drupal7", ErrSchemeMismatch)
	}
	p, err := ParseDrupal7(hash)
	if err != nil {
		return Drupal7Hash{}, err
	}
	if _, err := crypt3.LogIterations(p.IterationChar); err != nil {
		return Drupal7Hash{}, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	return p, nil
}
