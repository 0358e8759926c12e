package hashing

import (
	"crypto/md5"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"

	"github.com/hasbyte1/go-passcompat/crypt3"
)

// phpass portable hash layout:
//
//	$P$ + iteration symbol + 8-char salt + 22-char digest text
const (
	// PhpassHashLen is the total length of a phpass portable hash.
	PhpassHashLen = 3 + 1 + phpassSaltLen + phpassDigestTextLen

	phpassSaltLen       = 8
	phpassDigestTextLen = 22 // crypt3 encoding of a 16-byte MD5 digest

	// phpassSaltBytes random bytes encode to exactly phpassSaltLen symbols.
	phpassSaltBytes = 6
)

const (
	// DefaultPhpassLogIterations is the round count written by WordPress:
	// 2^13, encoded as 'B'.
	DefaultPhpassLogIterations = 13

	// DefaultPhpassIdent is the ident written by [PhpassHasher.Make] unless
	// configured otherwise.
	DefaultPhpassIdent = 'P'

	// phpassMinLogIterations and phpassMaxLogIterations are the limits of the
	// phpass library itself.  Hashes outside them are never verified.
	phpassMinLogIterations = 7
	phpassMaxLogIterations = 30
)

// PhpassHash is the parsed form of a phpass portable hash string.
type PhpassHash struct {
	// Ident is 'P' (WordPress, phpass) or 'H' (phpBB 3).
	Ident byte
	// IterationChar encodes the round count as a crypt3 symbol.
	IterationChar byte
	// Salt is the 8-character salt.
	Salt string
	// Digest is the 22-character crypt3-encoded MD5 digest.
	Digest string
}

// String reassembles the hash string.
func (h PhpassHash) String() string {
	var b strings.Builder
	b.Grow(PhpassHashLen)
	b.WriteByte('$')
	b.WriteByte(h.Ident)
	b.WriteByte('$')
	b.WriteByte(h.IterationChar)
	b.WriteString(h.Salt)
	b.WriteString(h.Digest)
	return b.String()
}

// ParsePhpass splits a phpass portable hash string into its fields.
//
// ErrMalformedHash is returned unless encoded is exactly [PhpassHashLen]
// characters, starts with "$P$" or "$H$", and continues with crypt3 symbols
// only.  The round count is checked by [PhpassHasher].
func ParsePhpass(encoded string) (PhpassHash, error) {
	if len(encoded) != PhpassHashLen {
		return PhpassHash{}, fmt.Errorf("%w: phpass hash must be %d characters, got %d",
			ErrMalformedHash, PhpassHashLen, len(encoded))
	}
	if !strings.HasPrefix(encoded, "$P$") && !strings.HasPrefix(encoded, "$H$") {
		return PhpassHash{}, fmt.Errorf("%w: phpass hash must start with $P$ or $H$", ErrMalformedHash)
	}
	if i := crypt3.IndexInvalid(encoded[3:]); i >= 0 {
		return PhpassHash{}, fmt.Errorf("%w: invalid phpass character %q at offset %d",
			ErrMalformedHash, encoded[3+i], 3+i)
	}
	return PhpassHash{
		Ident:         encoded[1],
		IterationChar: encoded[3],
		Salt:          encoded[4 : 4+phpassSaltLen],
		Digest:        encoded[4+phpassSaltLen:],
	}, nil
}

// phpassDigest runs the phpass chain: MD5 in place of the SHA-512 used by
// Drupal 7.
func phpassDigest(password, salt string, rounds uint64) []byte {
	return iteratedDigest(md5.New(), password, salt, rounds)
}

// PhpassOptions configures a [PhpassHasher].
type PhpassOptions struct {
	// LogIterations is the base-2 logarithm of the round count used by Make.
	// Valid range: [7, 30].  Default: [DefaultPhpassLogIterations] (13).
	LogIterations int

	// Ident selects the tag written by Make: 'P' or 'H'.
	// Default: [DefaultPhpassIdent] ('P').
	Ident byte

	// MinLogIterations and MaxLogIterations bound the round count accepted
	// by [PhpassHasher.Validate].  Zero selects 7 and 30.
	MinLogIterations int
	MaxLogIterations int

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader
}

// DefaultPhpassOptions returns PhpassOptions matching WordPress.
func DefaultPhpassOptions() PhpassOptions {
	return PhpassOptions{
		LogIterations: DefaultPhpassLogIterations,
		Ident:         DefaultPhpassIdent,
	}
}

func validatePhpassOptions(opts PhpassOptions) (PhpassOptions, error) {
	if opts.Ident == 0 {
		opts.Ident = DefaultPhpassIdent
	}
	if opts.MinLogIterations == 0 {
		opts.MinLogIterations = phpassMinLogIterations
	}
	if opts.MaxLogIterations == 0 {
		opts.MaxLogIterations = phpassMaxLogIterations
	}
	if opts.Ident != 'P' && opts.Ident != 'H' {
		return opts, fmt.Errorf("%w: phpass ident %q must be P or H", ErrInvalidParameters, opts.Ident)
	}
	if opts.LogIterations < phpassMinLogIterations || opts.LogIterations > phpassMaxLogIterations {
		return opts, fmt.Errorf("%w: phpass log_iterations %d must be in [%d, %d]",
			ErrInvalidParameters, opts.LogIterations, phpassMinLogIterations, phpassMaxLogIterations)
	}
	if opts.MinLogIterations < phpassMinLogIterations || opts.MaxLogIterations > phpassMaxLogIterations ||
		opts.MinLogIterations > opts.MaxLogIterations {
		return opts, fmt.Errorf("%w: phpass validation bounds [%d, %d] must lie within [%d, %d]",
			ErrInvalidParameters, opts.MinLogIterations, opts.MaxLogIterations,
			phpassMinLogIterations, phpassMaxLogIterations)
	}
	return opts, nil
}

// PhpassHasher hashes passwords with the phpass portable scheme found in
// WordPress and phpBB databases.
//
// phpass is MD5 based.  Keep it registered to verify imported hashes and let
// the [Registry] upgrade them to a modern default.
//
// # Thread safety
//
// PhpassHasher is immutable after construction and safe for concurrent use.
type PhpassHasher struct {
	opts     PhpassOptions
	iterChar byte
}

// NewPhpassHasher constructs a PhpassHasher with the provided options.
func NewPhpassHasher(opts PhpassOptions) (*PhpassHasher, error) {
	opts, err := validatePhpassOptions(opts)
	if err != nil {
		return nil, err
	}
	c, err := crypt3.LogIterationSymbol(opts.LogIterations)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return &PhpassHasher{opts: opts, iterChar: c}, nil
}

// Scheme returns [SchemePhpass].
func (h *PhpassHasher) Scheme() Scheme { return SchemePhpass }

// Options returns the hasher configuration.
func (h *PhpassHasher) Options() PhpassOptions { return h.opts }

// Make hashes password with a fresh 8-character salt.
func (h *PhpassHasher) Make(password string) (string, error) {
	raw, err := randomSalt(h.opts.Rand, phpassSaltBytes)
	if err != nil {
		return "", err
	}
	salt := crypt3.Encode(raw)
	return PhpassHash{
		Ident:         h.opts.Ident,
		IterationChar: h.iterChar,
		Salt:          salt,
		Digest:        crypt3.Encode(phpassDigest(password, salt, uint64(1)<<uint(h.opts.LogIterations))),
	}.String(), nil
}

// Check verifies password against a phpass hash.
//
// Returns [ErrInvalidParameters] when the round count lies outside the
// [2^7, 2^30] range phpass itself accepts.
func (h *PhpassHasher) Check(password, hash string) (bool, error) {
	p, log2, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	if log2 < phpassMinLogIterations || log2 > phpassMaxLogIterations {
		return false, fmt.Errorf("%w: phpass iterations 2^%d outside [2^%d, 2^%d]",
			ErrInvalidParameters, log2, phpassMinLogIterations, phpassMaxLogIterations)
	}
	computed := p
	computed.Digest = crypt3.Encode(phpassDigest(password, p.Salt, uint64(1)<<uint(log2)))
	return subtle.ConstantTimeCompare([]byte(computed.String()), []byte(hash)) == 1, nil
}

// NeedsRehash returns true if the round count or ident in hash differs from
// the hasher's configuration.
func (h *PhpassHasher) NeedsRehash(hash string) (bool, error) {
	p, _, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.IterationChar != h.iterChar || p.Ident != h.opts.Ident, nil
}

// Validate checks that the round count encoded in hash lies within
// [MinLogIterations, MaxLogIterations].
func (h *PhpassHasher) Validate(hash string) error {
	_, log2, err := h.parse(hash)
	if err != nil {
		return err
	}
	if log2 < h.opts.MinLogIterations || log2 > h.opts.MaxLogIterations {
		return fmt.Errorf("%w: phpass iterations 2^%d outside [2^%d, 2^%d]",
			ErrInvalidParameters, log2, h.opts.MinLogIterations, h.opts.MaxLogIterations)
	}
	return nil
}

// Info extracts the round count, ident and salt from a phpass hash.
func (h *PhpassHasher) Info(hash string) (HashInfo, error) {
	p, log2, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: SchemePhpass,
		Params: map[string]any{
			"iterations":     uint64(1) << uint(log2),
			"log_iterations": log2,
			"ident":          string(p.Ident),
			"salt":           p.Salt,
		},
	}, nil
}

func (h *PhpassHasher) parse(hash string) (PhpassHash, int, error) {
	if !isScheme(hash, SchemePhpass) {
		return PhpassHash{}, 0, fmt.Errorf("%w: hash does not appear to be phpass", ErrSchemeMismatch)
	}
	p, err := ParsePhpass(hash)
	if err != nil {
		return PhpassHash{}, 0, err
	}
	log2, err := crypt3.LogIterations(p.IterationChar)
	if err != nil {
		return PhpassHash{}, 0, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	return p, log2, nil
}
