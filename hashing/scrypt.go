package hashing

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
)

const scryptTag = "scrypt"

// Defaults for scrypt hashing, matching passlib.
const (
	DefaultScryptLN     = 16
	DefaultScryptR      = 8
	DefaultScryptP      = 1
	DefaultScryptKeyLen = 32
)

// Defaults for [ScryptHasher.Validate] bounds.
const (
	DefaultScryptMinLN = 14
	DefaultScryptMaxLN = 20
	DefaultScryptMinR  = 8
	DefaultScryptMaxR  = 32
	DefaultScryptMinP  = 1
	DefaultScryptMaxP  = 16
)

// scryptMaxRP is the exclusive upper limit of r*p imposed by scrypt.
const scryptMaxRP = 1 << 30

// ScryptHash is the parsed form of a passlib scrypt hash string:
//
//	$scrypt$ln=16,r=8,p=1$<salt>$<key>
//
// Salt and key use standard base64 without padding.
type ScryptHash struct {
	LN   int // log2 of N, the CPU/memory cost parameter
	R    int
	P    int
	Salt []byte
	Key  []byte
}

// String reassembles the hash string.
func (h ScryptHash) String() string {
	return fmt.Sprintf("$%s$ln=%d,r=%d,p=%d$%s$%s",
		scryptTag, h.LN, h.R, h.P,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key),
	)
}

// ParseScrypt splits a scrypt hash string into its fields.
//
// ErrMalformedHash is returned when the parameter segment is not exactly
// "ln=…,r=…,p=…" or salt or key are not valid base64.
func ParseScrypt(encoded string) (ScryptHash, error) {
	parts, err := splitMCF(encoded, 4)
	if err != nil {
		return ScryptHash{}, err
	}
	if parts[0] != scryptTag {
		return ScryptHash{}, fmt.Errorf("%w: expected %q identifier, got %q", ErrMalformedHash, scryptTag, parts[0])
	}

	kvs, err := parseParams(parts[1])
	if err != nil {
		return ScryptHash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	ln, ok1 := kvs["ln"]
	r, ok2 := kvs["r"]
	p, ok3 := kvs["p"]
	if !ok1 || !ok2 || !ok3 || len(kvs) != 3 {
		return ScryptHash{}, fmt.Errorf("%w: expected ln, r and p in parameter segment %q", ErrMalformedHash, parts[1])
	}
	if ln > 62 || r > scryptMaxRP || p > scryptMaxRP {
		return ScryptHash{}, fmt.Errorf("%w: scrypt parameters out of range in %q", ErrMalformedHash, parts[1])
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return ScryptHash{}, fmt.Errorf("%w: invalid scrypt salt: %v", ErrMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[3])
	if err != nil {
		return ScryptHash{}, fmt.Errorf("%w: invalid scrypt key: %v", ErrMalformedHash, err)
	}

	return ScryptHash{
		LN:   int(ln),
		R:    int(r),
		P:    int(p),
		Salt: salt,
		Key:  key,
	}, nil
}

// ScryptOptions configures a [ScryptHasher].
type ScryptOptions struct {
	// LN is log2 of N, the CPU/memory cost.  Valid range: [1, 62].
	// Default: [DefaultScryptLN] (16).
	LN int

	// R is the block size and P the parallelism.  Both must be ≥ 1 and
	// R*P must be below 2^30.
	R int
	P int

	// KeyLen is the derived key length in bytes.
	// Minimum: 1.  Default: [DefaultScryptKeyLen] (32).
	KeyLen int

	// SaltLen is the random salt length in bytes.
	// Minimum: 8.  Default: [DefaultSaltLen] (16).
	SaltLen int

	// Bounds accepted by [ScryptHasher.Validate].  Zero selects the
	// DefaultScryptMin… / DefaultScryptMax… constants.
	MinLN, MaxLN int
	MinR, MaxR   int
	MinP, MaxP   int

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader

	// Primitives overrides the scrypt implementation.
	Primitives Primitives
}

// DefaultScryptOptions returns ScryptOptions with passlib's defaults.
func DefaultScryptOptions() ScryptOptions {
	return ScryptOptions{
		LN:      DefaultScryptLN,
		R:       DefaultScryptR,
		P:       DefaultScryptP,
		KeyLen:  DefaultScryptKeyLen,
		SaltLen: DefaultSaltLen,
		MinLN:   DefaultScryptMinLN,
		MaxLN:   DefaultScryptMaxLN,
		MinR:    DefaultScryptMinR,
		MaxR:    DefaultScryptMaxR,
		MinP:    DefaultScryptMinP,
		MaxP:    DefaultScryptMaxP,
	}
}

func defaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func validateScryptOptions(opts ScryptOptions) (ScryptOptions, error) {
	defaultInt(&opts.MinLN, DefaultScryptMinLN)
	defaultInt(&opts.MaxLN, DefaultScryptMaxLN)
	defaultInt(&opts.MinR, DefaultScryptMinR)
	defaultInt(&opts.MaxR, DefaultScryptMaxR)
	defaultInt(&opts.MinP, DefaultScryptMinP)
	defaultInt(&opts.MaxP, DefaultScryptMaxP)

	if opts.LN < 1 || opts.LN > 62 {
		return opts, fmt.Errorf("%w: scrypt ln must be in [1, 62], got %d", ErrInvalidParameters, opts.LN)
	}
	if opts.R < 1 || opts.P < 1 {
		return opts, fmt.Errorf("%w: scrypt r and p must be ≥ 1, got r=%d p=%d", ErrInvalidParameters, opts.R, opts.P)
	}
	if uint64(opts.R)*uint64(opts.P) >= scryptMaxRP {
		return opts, fmt.Errorf("%w: scrypt r*p must be < 2^30, got %d", ErrInvalidParameters, opts.R*opts.P)
	}
	if opts.KeyLen < 1 {
		return opts, fmt.Errorf("%w: scrypt key_len must be ≥ 1, got %d", ErrInvalidParameters, opts.KeyLen)
	}
	if opts.SaltLen < 8 {
		return opts, fmt.Errorf("%w: scrypt salt_len must be ≥ 8, got %d", ErrInvalidParameters, opts.SaltLen)
	}
	if opts.MinLN > opts.MaxLN || opts.MinR > opts.MaxR || opts.MinP > opts.MaxP {
		return opts, fmt.Errorf("%w: scrypt validation bounds are inverted", ErrInvalidParameters)
	}
	opts.Primitives = opts.Primitives.withDefaults()
	return opts, nil
}

// ScryptHasher hashes passwords with scrypt in passlib's modular crypt format.
//
// # Thread safety
//
// ScryptHasher is immutable after construction and safe for concurrent use.
type ScryptHasher struct {
	opts ScryptOptions
}

// NewScryptHasher constructs a ScryptHasher with the given options.
// Use [DefaultScryptOptions] for recommended defaults.
func NewScryptHasher(opts ScryptOptions) (*ScryptHasher, error) {
	opts, err := validateScryptOptions(opts)
	if err != nil {
		return nil, err
	}
	return &ScryptHasher{opts: opts}, nil
}

// Scheme returns [SchemeScrypt].
func (h *ScryptHasher) Scheme() Scheme { return SchemeScrypt }

// Options returns the hasher configuration.
func (h *ScryptHasher) Options() ScryptOptions { return h.opts }

// Make hashes password with a fresh random salt.
func (h *ScryptHasher) Make(password string) (string, error) {
	salt, err := randomSalt(h.opts.Rand, h.opts.SaltLen)
	if err != nil {
		return "", err
	}
	key, err := h.opts.Primitives.Scrypt([]byte(password), salt, 1<<h.opts.LN, h.opts.R, h.opts.P, h.opts.KeyLen)
	if err != nil {
		return "", fmt.Errorf("hashing: scrypt: failed to hash password: %w", err)
	}
	return ScryptHash{
		LN:   h.opts.LN,
		R:    h.opts.R,
		P:    h.opts.P,
		Salt: salt,
		Key:  key,
	}.String(), nil
}

// Check verifies password against a scrypt hash.  The cost parameters are
// read from the hash itself; call [ScryptHasher.Validate] first to refuse
// hashes with excessive cost.
func (h *ScryptHasher) Check(password, hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	key, err := h.opts.Primitives.Scrypt([]byte(password), p.Salt, 1<<p.LN, p.R, p.P, len(p.Key))
	if err != nil {
		return false, fmt.Errorf("%w: scrypt: %v", ErrInvalidParameters, err)
	}
	return subtle.ConstantTimeCompare(key, p.Key) == 1, nil
}

// NeedsRehash returns true if any parameter stored in hash differs from the
// hasher's current configuration.
func (h *ScryptHasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.LN != h.opts.LN ||
		p.R != h.opts.R ||
		p.P != h.opts.P ||
		len(p.Key) != h.opts.KeyLen ||
		len(p.Salt) != h.opts.SaltLen, nil
}

// Validate checks ln, r and p in hash against the configured bounds.
func (h *ScryptHasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	if p.LN < h.opts.MinLN || p.LN > h.opts.MaxLN {
		return fmt.Errorf("%w: scrypt ln %d outside [%d, %d]", ErrInvalidParameters, p.LN, h.opts.MinLN, h.opts.MaxLN)
	}
	if p.R < h.opts.MinR || p.R > h.opts.MaxR {
		return fmt.Errorf("%w: scrypt r %d outside [%d, %d]", ErrInvalidParameters, p.R, h.opts.MinR, h.opts.MaxR)
	}
	if p.P < h.opts.MinP || p.P > h.opts.MaxP {
		return fmt.Errorf("%w: scrypt p %d outside [%d, %d]", ErrInvalidParameters, p.P, h.opts.MinP, h.opts.MaxP)
	}
	if uint64(p.R)*uint64(p.P) >= scryptMaxRP {
		return fmt.Errorf("%w: scrypt r*p must be < 2^30", ErrInvalidParameters)
	}
	return nil
}

// Info extracts the scrypt parameters from hash.
//
// Returned [HashInfo].Params:
//   - "ln"       → int
//   - "r"        → int
//   - "p"        → int
//   - "key_len"  → int
//   - "salt_len" → int
func (h *ScryptHasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: SchemeScrypt,
		Params: map[string]any{
			"ln":       p.LN,
			"r":        p.R,
			"p":        p.P,
			"key_len":  len(p.Key),
			"salt_len": len(p.Salt),
		},
	}, nil
}

// parse checks the scheme tag and the framing of hash.
func (h *ScryptHasher) parse(hash string) (ScryptHash, error) {
	if !isScheme(hash, SchemeScrypt) {
		return ScryptHash{}, fmt.Errorf("%w: hash does not appear to be scrypt", ErrSchemeMismatch)
	}
	return ParseScrypt(hash)
}
