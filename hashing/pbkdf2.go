package hashing

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"
)

// PBKDF2 tags as written by passlib.  SHA-1 hashes carry the bare "pbkdf2"
// tag; "pbkdf2-sha1" is accepted on input as an alias.
const (
	pbkdf2TagSHA1      = "pbkdf2"
	pbkdf2TagSHA1Alias = "pbkdf2-sha1"
	pbkdf2TagSHA224    = "pbkdf2-sha224"
	pbkdf2TagSHA256    = "pbkdf2-sha256"
	pbkdf2TagSHA384    = "pbkdf2-sha384"
	pbkdf2TagSHA512    = "pbkdf2-sha512"
)

const (
	// DefaultPBKDF2Rounds is the iteration count used unless configured
	// otherwise.
	DefaultPBKDF2Rounds = 290000

	// DefaultPBKDF2MinRounds bounds [PBKDF2Hasher.Validate] unless configured
	// otherwise.
	DefaultPBKDF2MinRounds = 1

	// DefaultPBKDF2MaxRounds bounds [PBKDF2Hasher.Validate] unless configured
	// otherwise.
	DefaultPBKDF2MaxRounds = 10_000_000
)

// pbkdf2Encoding is passlib's "adapted base64": the standard alphabet with
// '.' in place of '+', without padding.
var pbkdf2Encoding = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").
	WithPadding(base64.NoPadding).Strict()

type pbkdf2Variant struct {
	tag  string
	hf   func() hash.Hash
	size int
}

var pbkdf2Variants = map[Scheme]pbkdf2Variant{
	SchemePBKDF2SHA1:   {pbkdf2TagSHA1, sha1.New, sha1.Size},
	SchemePBKDF2SHA224: {pbkdf2TagSHA224, sha256.New224, sha256.Size224},
	SchemePBKDF2SHA256: {pbkdf2TagSHA256, sha256.New, sha256.Size},
	SchemePBKDF2SHA384: {pbkdf2TagSHA384, sha512.New384, sha512.Size384},
	SchemePBKDF2SHA512: {pbkdf2TagSHA512, sha512.New, sha512.Size},
}

func pbkdf2SchemeForTag(tag string) (Scheme, bool) {
	switch tag {
	case pbkdf2TagSHA1, pbkdf2TagSHA1Alias:
		return SchemePBKDF2SHA1, true
	case pbkdf2TagSHA224:
		return SchemePBKDF2SHA224, true
	case pbkdf2TagSHA256:
		return SchemePBKDF2SHA256, true
	case pbkdf2TagSHA384:
		return SchemePBKDF2SHA384, true
	case pbkdf2TagSHA512:
		return SchemePBKDF2SHA512, true
	default:
		return "", false
	}
}

// decodePBKDF2Base64 accepts adapted base64 as well as standard base64, with
// or without padding.
func decodePBKDF2Base64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", ".")
	return pbkdf2Encoding.DecodeString(s)
}

// PBKDF2Hash is the parsed form of a passlib PBKDF2 hash string:
//
//	$pbkdf2-sha256$<rounds>$<salt>$<key>
type PBKDF2Hash struct {
	// Tag is the identifier as it appeared in the string, e.g. "pbkdf2" or
	// "pbkdf2-sha256".
	Tag    string
	Rounds int
	Salt   []byte
	Key    []byte
}

// Scheme returns the Scheme matching Tag.
func (h PBKDF2Hash) Scheme() Scheme {
	s, _ := pbkdf2SchemeForTag(h.Tag)
	return s
}

// String reassembles the hash string with salt and key in adapted base64.
func (h PBKDF2Hash) String() string {
	return "$" + h.Tag +
		"$" + strconv.Itoa(h.Rounds) +
		"$" + pbkdf2Encoding.EncodeToString(h.Salt) +
		"$" + pbkdf2Encoding.EncodeToString(h.Key)
}

// ParsePBKDF2 splits a PBKDF2 hash string into its fields.
//
// ErrMalformedHash is returned when the tag is unknown, the rounds are not a
// positive decimal number, or salt or key are not valid base64.
func ParsePBKDF2(encoded string) (PBKDF2Hash, error) {
	parts, err := splitMCF(encoded, 4)
	if err != nil {
		return PBKDF2Hash{}, err
	}
	if _, ok := pbkdf2SchemeForTag(parts[0]); !ok {
		return PBKDF2Hash{}, fmt.Errorf("%w: unknown pbkdf2 identifier %q", ErrMalformedHash, parts[0])
	}
	rounds, err := parseUint(parts[1])
	if err != nil || rounds == 0 || rounds > uint64(maxInt) {
		return PBKDF2Hash{}, fmt.Errorf("%w: invalid pbkdf2 rounds %q", ErrMalformedHash, parts[1])
	}
	salt, err := decodePBKDF2Base64(parts[2])
	if err != nil {
		return PBKDF2Hash{}, fmt.Errorf("%w: invalid pbkdf2 salt: %v", ErrMalformedHash, err)
	}
	key, err := decodePBKDF2Base64(parts[3])
	if err != nil {
		return PBKDF2Hash{}, fmt.Errorf("%w: invalid pbkdf2 key: %v", ErrMalformedHash, err)
	}
	return PBKDF2Hash{
		Tag:    parts[0],
		Rounds: int(rounds),
		Salt:   salt,
		Key:    key,
	}, nil
}

const maxInt = int(^uint(0) >> 1)

// PBKDF2Options configures a [PBKDF2Hasher].
type PBKDF2Options struct {
	// Rounds is the PBKDF2 iteration count.
	// Minimum: 1.  Default: [DefaultPBKDF2Rounds].
	Rounds int

	// KeyLen is the derived key length in bytes.
	// Minimum: 1.  Default: the digest size of the HMAC hash.
	KeyLen int

	// SaltLen is the random salt length in bytes.
	// Minimum: 8.  Default: [DefaultSaltLen] (16).
	SaltLen int

	// MinRounds and MaxRounds bound the rounds accepted by
	// [PBKDF2Hasher.Validate].  Zero selects [DefaultPBKDF2MinRounds] and
	// [DefaultPBKDF2MaxRounds].
	MinRounds int
	MaxRounds int

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader

	// Primitives overrides the PBKDF2 implementation.
	Primitives Primitives
}

// DefaultPBKDF2Options returns PBKDF2Options for scheme with passlib's key
// length (the digest size) and salt length.  KeyLen is zero for schemes that
// are not PBKDF2 and the options are then rejected by [NewPBKDF2Hasher].
func DefaultPBKDF2Options(scheme Scheme) PBKDF2Options {
	return PBKDF2Options{
		Rounds:    DefaultPBKDF2Rounds,
		KeyLen:    pbkdf2Variants[scheme].size,
		SaltLen:   DefaultSaltLen,
		MinRounds: DefaultPBKDF2MinRounds,
		MaxRounds: DefaultPBKDF2MaxRounds,
	}
}

func validatePBKDF2Options(opts PBKDF2Options) (PBKDF2Options, error) {
	if opts.MinRounds == 0 {
		opts.MinRounds = DefaultPBKDF2MinRounds
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultPBKDF2MaxRounds
	}
	if opts.Rounds < 1 {
		return opts, fmt.Errorf("%w: pbkdf2 rounds must be ≥ 1, got %d", ErrInvalidParameters, opts.Rounds)
	}
	if opts.KeyLen < 1 {
		return opts, fmt.Errorf("%w: pbkdf2 key_len must be ≥ 1, got %d", ErrInvalidParameters, opts.KeyLen)
	}
	if opts.SaltLen < 8 {
		return opts, fmt.Errorf("%w: pbkdf2 salt_len must be ≥ 8, got %d", ErrInvalidParameters, opts.SaltLen)
	}
	if opts.MinRounds < 1 {
		return opts, fmt.Errorf("%w: pbkdf2 min_rounds must be ≥ 1, got %d", ErrInvalidParameters, opts.MinRounds)
	}
	if opts.MaxRounds < opts.MinRounds {
		return opts, fmt.Errorf("%w: pbkdf2 max_rounds %d below min_rounds %d",
			ErrInvalidParameters, opts.MaxRounds, opts.MinRounds)
	}
	opts.Primitives = opts.Primitives.withDefaults()
	return opts, nil
}

// PBKDF2Hasher hashes passwords with PBKDF2 in passlib's modular crypt format.
//
// One hasher serves one HMAC digest.  Check only accepts hashes of that
// digest; register one hasher per digest in a [Registry] to verify them all.
//
// # Thread safety
//
// PBKDF2Hasher is immutable after construction and safe for concurrent use.
type PBKDF2Hasher struct {
	scheme  Scheme
	variant pbkdf2Variant
	opts    PBKDF2Options
}

// NewPBKDF2Hasher constructs a PBKDF2Hasher for one of the five PBKDF2
// schemes, [SchemePBKDF2SHA1] through [SchemePBKDF2SHA512].
// Returns [ErrInvalidParameters] for any other scheme or out-of-range options.
func NewPBKDF2Hasher(scheme Scheme, opts PBKDF2Options) (*PBKDF2Hasher, error) {
	v, ok := pbkdf2Variants[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a pbkdf2 scheme", ErrInvalidParameters, scheme)
	}
	opts, err := validatePBKDF2Options(opts)
	if err != nil {
		return nil, err
	}
	return &PBKDF2Hasher{scheme: scheme, variant: v, opts: opts}, nil
}

// Scheme returns the PBKDF2 scheme this hasher was built for.
func (h *PBKDF2Hasher) Scheme() Scheme { return h.scheme }

// Options returns the hasher configuration.
func (h *PBKDF2Hasher) Options() PBKDF2Options { return h.opts }

// Make hashes password with a fresh random salt.
func (h *PBKDF2Hasher) Make(password string) (string, error) {
	salt, err := randomSalt(h.opts.Rand, h.opts.SaltLen)
	if err != nil {
		return "", err
	}
	key := h.opts.Primitives.PBKDF2([]byte(password), salt, h.opts.Rounds, h.opts.KeyLen, h.variant.hf)
	return PBKDF2Hash{
		Tag:    h.variant.tag,
		Rounds: h.opts.Rounds,
		Salt:   salt,
		Key:    key,
	}.String(), nil
}

// Check verifies password against a PBKDF2 hash of this hasher's digest.
// Rounds, salt and key length are taken from the hash itself.
func (h *PBKDF2Hasher) Check(password, hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	key := h.opts.Primitives.PBKDF2([]byte(password), p.Salt, p.Rounds, len(p.Key), h.variant.hf)
	return subtle.ConstantTimeCompare(key, p.Key) == 1, nil
}

// NeedsRehash returns true if rounds, key length or salt length in hash
// differ from the hasher's configuration.
func (h *PBKDF2Hasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.Rounds != h.opts.Rounds ||
		len(p.Key) != h.opts.KeyLen ||
		len(p.Salt) != h.opts.SaltLen, nil
}

// Validate checks that the rounds in hash lie within [MinRounds, MaxRounds].
func (h *PBKDF2Hasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	if p.Rounds < h.opts.MinRounds || p.Rounds > h.opts.MaxRounds {
		return fmt.Errorf("%w: pbkdf2 rounds %d outside [%d, %d]",
			ErrInvalidParameters, p.Rounds, h.opts.MinRounds, h.opts.MaxRounds)
	}
	return nil
}

// Info extracts the PBKDF2 parameters from hash.
//
// Returned [HashInfo].Params:
//   - "rounds"   → int
//   - "key_len"  → int
//   - "salt_len" → int
func (h *PBKDF2Hasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: h.scheme,
		Params: map[string]any{
			"rounds":   p.Rounds,
			"key_len":  len(p.Key),
			"salt_len": len(p.Salt),
		},
	}, nil
}

// parse checks the scheme tag and the framing of hash.
func (h *PBKDF2Hasher) parse(hash string) (PBKDF2Hash, error) {
	if !isScheme(hash, h.scheme) {
		return PBKDF2Hash{}, fmt.Errorf("%w: hash does not appear to be %s", ErrSchemeMismatch, h.scheme)
	}
	return ParsePBKDF2(hash)
}
