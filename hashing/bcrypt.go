package hashing

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hasbyte1/go-passcompat/crypt3"
)

const (
	// DefaultBcryptCost is the recommended work factor for bcrypt.
	// At cost 12, hashing takes approximately 250 ms on a modern server CPU.
	DefaultBcryptCost = 12

	// DefaultBcryptIdent is the ident written by [BcryptHasher.Make] unless
	// configured otherwise.  It matches passlib and OpenBSD.
	DefaultBcryptIdent = 'b'
)

// bcrypt modular crypt layout:
//
//	$2b$12$<22-char salt><31-char digest>
const (
	bcryptSaltTextLen   = 22
	bcryptDigestTextLen = 31
	bcryptHashLen       = 7 + bcryptSaltTextLen + bcryptDigestTextLen
)

// bcryptIdents maps every accepted ident to its Scheme.
var bcryptIdents = map[byte]Scheme{
	'a': SchemeBcrypt2a,
	'b': SchemeBcrypt2b,
	'y': SchemeBcrypt2y,
}

// BcryptHash is the parsed form of a bcrypt hash string.
type BcryptHash struct {
	// Ident is the minor version: 'a', 'b' or 'y'.
	Ident byte
	// Cost is the base-2 logarithm of the key expansion rounds.
	Cost int
	// Salt is the 22-character encoded salt.
	Salt string
	// Digest is the 31-character encoded digest.
	Digest string
}

// String reassembles the hash string.
func (h BcryptHash) String() string {
	return fmt.Sprintf("$2%c$%02d$%s%s", h.Ident, h.Cost, h.Salt, h.Digest)
}

// Scheme returns the Scheme matching Ident.
func (h BcryptHash) Scheme() Scheme { return bcryptIdents[h.Ident] }

// ParseBcrypt splits a bcrypt hash string into its fields.
//
// ErrMalformedHash is returned unless encoded is exactly 60 characters of the
// form "$2<ident>$<2-digit cost>$<53 base64 characters>" with ident one of
// a, b or y.
func ParseBcrypt(encoded string) (BcryptHash, error) {
	if len(encoded) != bcryptHashLen {
		return BcryptHash{}, fmt.Errorf("%w: bcrypt hash must be %d characters, got %d",
			ErrMalformedHash, bcryptHashLen, len(encoded))
	}
	if !strings.HasPrefix(encoded, "$2") || encoded[3] != '$' || encoded[6] != '$' {
		return BcryptHash{}, fmt.Errorf("%w: bcrypt hash must start with $2<ident>$<cost>$", ErrMalformedHash)
	}
	ident := encoded[2]
	if _, ok := bcryptIdents[ident]; !ok {
		return BcryptHash{}, fmt.Errorf("%w: unsupported bcrypt ident %q", ErrMalformedHash, ident)
	}
	d1, d2 := encoded[4], encoded[5]
	if d1 < '0' || d1 > '9' || d2 < '0' || d2 > '9' {
		return BcryptHash{}, fmt.Errorf("%w: bcrypt cost %q is not two digits", ErrMalformedHash, encoded[4:6])
	}
	// bcrypt's base64 uses the crypt3 symbols in a different order, so
	// membership can be checked against the crypt3 alphabet.
	for i := 7; i < len(encoded); i++ {
		if _, ok := crypt3.Index(encoded[i]); !ok {
			return BcryptHash{}, fmt.Errorf("%w: invalid bcrypt character %q at offset %d",
				ErrMalformedHash, encoded[i], i)
		}
	}
	return BcryptHash{
		Ident:  ident,
		Cost:   int(d1-'0')*10 + int(d2-'0'),
		Salt:   encoded[7 : 7+bcryptSaltTextLen],
		Digest: encoded[7+bcryptSaltTextLen:],
	}, nil
}

// BcryptOptions configures a [BcryptHasher].
type BcryptOptions struct {
	// Cost is the bcrypt work factor (logarithmic).
	// Valid range: [bcrypt.MinCost (4), bcrypt.MaxCost (31)].
	// Default: [DefaultBcryptCost] (12).
	Cost int

	// Ident selects the minor version written by Make: 'a', 'b' or 'y'.
	// The digest is identical for all three; only the tag differs.
	// Default: [DefaultBcryptIdent] ('b').
	Ident byte

	// MinCost and MaxCost bound the cost accepted by
	// [BcryptHasher.Validate].  Zero selects bcrypt.MinCost / bcrypt.MaxCost.
	MinCost int
	MaxCost int

	// Primitives overrides the bcrypt implementation.
	Primitives Primitives
}

// DefaultBcryptOptions returns BcryptOptions with [DefaultBcryptCost] and
// [DefaultBcryptIdent].
func DefaultBcryptOptions() BcryptOptions {
	return BcryptOptions{Cost: DefaultBcryptCost, Ident: DefaultBcryptIdent}
}

func validateBcryptOptions(opts BcryptOptions) (BcryptOptions, error) {
	if opts.Ident == 0 {
		opts.Ident = DefaultBcryptIdent
	}
	if opts.MinCost == 0 {
		opts.MinCost = bcrypt.MinCost
	}
	if opts.MaxCost == 0 {
		opts.MaxCost = bcrypt.MaxCost
	}
	if opts.Cost < bcrypt.MinCost || opts.Cost > bcrypt.MaxCost {
		return opts, fmt.Errorf("%w: bcrypt cost %d must be in [%d, %d]",
			ErrInvalidParameters, opts.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, ok := bcryptIdents[opts.Ident]; !ok {
		return opts, fmt.Errorf("%w: bcrypt ident %q must be one of a, b, y",
			ErrInvalidParameters, opts.Ident)
	}
	if opts.MinCost > opts.MaxCost {
		return opts, fmt.Errorf("%w: bcrypt validation bounds [%d, %d] are inverted",
			ErrInvalidParameters, opts.MinCost, opts.MaxCost)
	}
	opts.Primitives = opts.Primitives.withDefaults()
	return opts, nil
}

// BcryptHasher hashes passwords using the bcrypt algorithm.
//
// Bcrypt internally generates and stores a 128-bit (16-byte) random salt,
// so callers never need to manage salts explicitly.  Check accepts all three
// idents regardless of the configured one.
//
// # Thread safety
//
// BcryptHasher is immutable after construction and safe for concurrent use.
type BcryptHasher struct {
	opts BcryptOptions
}

// NewBcryptHasher constructs a BcryptHasher with the provided options.
// Returns [ErrInvalidParameters] if Cost is outside [bcrypt.MinCost,
// bcrypt.MaxCost] or Ident is not supported.
func NewBcryptHasher(opts BcryptOptions) (*BcryptHasher, error) {
	opts, err := validateBcryptOptions(opts)
	if err != nil {
		return nil, err
	}
	return &BcryptHasher{opts: opts}, nil
}

// Scheme returns the bcrypt scheme matching the configured ident.
func (h *BcryptHasher) Scheme() Scheme { return bcryptIdents[h.opts.Ident] }

// Cost returns the configured bcrypt work factor.
func (h *BcryptHasher) Cost() int { return h.opts.Cost }

// Make hashes password with bcrypt and returns the modular crypt string
// (e.g., "$2b$12$...").  A fresh 128-bit random salt is generated internally.
//
// bcrypt rejects passwords longer than 72 bytes.
func (h *BcryptHasher) Make(password string) (string, error) {
	raw, err := h.opts.Primitives.Bcrypt([]byte(password), h.opts.Cost)
	if err != nil {
		return "", fmt.Errorf("hashing: bcrypt: failed to hash password: %w", err)
	}
	p, err := ParseBcrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("hashing: bcrypt: primitive returned %w", err)
	}
	p.Ident = h.opts.Ident
	return p.String(), nil
}

// Check verifies that password matches the bcrypt-encoded hash.
// Returns (false, nil) on mismatch; never returns ErrMismatchedHashAndPassword.
func (h *BcryptHasher) Check(password, hash string) (bool, error) {
	if _, err := h.parse(hash); err != nil {
		return false, err
	}
	err := h.opts.Primitives.BcryptCompare([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hashing: bcrypt: %w", err)
	}
	return true, nil
}

// NeedsRehash returns true if the work factor or ident encoded in hash
// differs from the hasher's configuration.
func (h *BcryptHasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.Cost != h.opts.Cost || p.Ident != h.opts.Ident, nil
}

// Validate checks that the cost encoded in hash lies within
// [MinCost, MaxCost].
func (h *BcryptHasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	if p.Cost < h.opts.MinCost || p.Cost > h.opts.MaxCost {
		return fmt.Errorf("%w: bcrypt cost %d outside [%d, %d]",
			ErrInvalidParameters, p.Cost, h.opts.MinCost, h.opts.MaxCost)
	}
	return nil
}

// Info extracts the work factor and ident from a bcrypt hash string.
//
// Returned [HashInfo].Params:
//   - "cost"  → int
//   - "ident" → string
func (h *BcryptHasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: p.Scheme(),
		Params: map[string]any{
			"cost":  p.Cost,
			"ident": "2" + string(rune(p.Ident)),
		},
	}, nil
}

// parse checks the scheme tag and the framing of hash.
func (h *BcryptHasher) parse(hash string) (BcryptHash, error) {
	if !isScheme(hash, SchemeBcrypt2a, SchemeBcrypt2b, SchemeBcrypt2y) {
		return BcryptHash{}, fmt.Errorf("%w: hash does not appear to be bcrypt", ErrSchemeMismatch)
	}
	return ParseBcrypt(hash)
}
