package hashing

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/hasbyte1/go-passcompat/crypt3"
)

const (
	// DefaultUnixCryptRounds is the SHA-crypt round count used when a hash
	// carries no "rounds=" field.
	DefaultUnixCryptRounds = 5000

	// UnixCryptMinRounds and UnixCryptMaxRounds are the round counts the
	// SHA-crypt format can express.
	UnixCryptMinRounds = 1000
	UnixCryptMaxRounds = 999_999_999

	// DefaultUnixCryptMaxRounds bounds [UnixCryptHasher.Validate] unless
	// configured otherwise.
	DefaultUnixCryptMaxRounds = 1_000_000

	// md5CryptRounds is the fixed round count of MD5-crypt.
	md5CryptRounds = 1000
)

type unixCryptVariant struct {
	prefix      string
	crypter     func() crypt.Crypter
	checksumLen int
	maxSaltLen  int
	hasRounds   bool
}

var unixCryptVariants = map[Scheme]unixCryptVariant{
	SchemeMD5Crypt:    {"$1$", md5_crypt.New, 22, 8, false},
	SchemeSHA256Crypt: {"$5$", sha256_crypt.New, 43, 16, true},
	SchemeSHA512Crypt: {"$6$", sha512_crypt.New, 86, 16, true},
}

// UnixCryptHash is the parsed form of an MD5-crypt or SHA-crypt hash string:
//
//	$1$<salt>$<checksum>
//	$6$[rounds=<n>$]<salt>$<checksum>
type UnixCryptHash struct {
	Scheme Scheme
	// Rounds is the explicit "rounds=" value, or zero when the field is
	// absent.
	Rounds   int
	Salt     string
	Checksum string
}

// EffectiveRounds returns the round count the hash was computed with.
func (h UnixCryptHash) EffectiveRounds() int {
	switch {
	case h.Scheme == SchemeMD5Crypt:
		return md5CryptRounds
	case h.Rounds == 0:
		return DefaultUnixCryptRounds
	default:
		return h.Rounds
	}
}

// String reassembles the hash string.
func (h UnixCryptHash) String() string {
	return unixCryptSetting(h.Scheme, h.Rounds, h.Salt) + "$" + h.Checksum
}

func unixCryptSetting(s Scheme, rounds int, salt string) string {
	var b strings.Builder
	b.WriteString(unixCryptVariants[s].prefix)
	if rounds != 0 {
		b.WriteString("rounds=")
		b.WriteString(strconv.Itoa(rounds))
		b.WriteByte('$')
	}
	b.WriteString(salt)
	return b.String()
}

// ParseUnixCrypt splits an MD5-crypt ("$1$"), SHA-256-crypt ("$5$") or
// SHA-512-crypt ("$6$") hash string into its fields.
//
// ErrMalformedHash is returned for an unknown prefix, a salt that is empty or
// longer than the scheme allows, a "rounds=" value outside
// [UnixCryptMinRounds, UnixCryptMaxRounds] or on MD5-crypt, and a checksum of
// the wrong length or outside the crypt3 alphabet.
func ParseUnixCrypt(encoded string) (UnixCryptHash, error) {
	var (
		scheme Scheme
		v      unixCryptVariant
	)
	for s, cand := range unixCryptVariants {
		if strings.HasPrefix(encoded, cand.prefix) {
			scheme, v = s, cand
			break
		}
	}
	if scheme == "" {
		return UnixCryptHash{}, fmt.Errorf("%w: missing $1$, $5$ or $6$ prefix", ErrMalformedHash)
	}

	fields := strings.Split(encoded[len(v.prefix):], "$")
	rounds := 0
	if v.hasRounds && strings.HasPrefix(fields[0], "rounds=") {
		n, err := parseKV(fields[0], "rounds")
		if err != nil || n < UnixCryptMinRounds || n > UnixCryptMaxRounds {
			return UnixCryptHash{}, fmt.Errorf("%w: invalid %s rounds %q", ErrMalformedHash, scheme, fields[0])
		}
		rounds = int(n)
		fields = fields[1:]
	}
	if len(fields) != 2 {
		return UnixCryptHash{}, fmt.Errorf("%w: %s hash needs a salt and a checksum", ErrMalformedHash, scheme)
	}
	salt, sum := fields[0], fields[1]
	if salt == "" || len(salt) > v.maxSaltLen {
		return UnixCryptHash{}, fmt.Errorf("%w: %s salt must be 1 to %d characters, got %d",
			ErrMalformedHash, scheme, v.maxSaltLen, len(salt))
	}
	if len(sum) != v.checksumLen {
		return UnixCryptHash{}, fmt.Errorf("%w: %s checksum must be %d characters, got %d",
			ErrMalformedHash, scheme, v.checksumLen, len(sum))
	}
	if i := crypt3.IndexInvalid(sum); i >= 0 {
		return UnixCryptHash{}, fmt.Errorf("%w: invalid %s checksum character %q", ErrMalformedHash, scheme, sum[i])
	}
	return UnixCryptHash{Scheme: scheme, Rounds: rounds, Salt: salt, Checksum: sum}, nil
}

// UnixCryptOptions configures a [UnixCryptHasher].
type UnixCryptOptions struct {
	// Rounds is the round count written by Make.  SHA-crypt accepts
	// [UnixCryptMinRounds] to [UnixCryptMaxRounds]; MD5-crypt only 1000.
	// Default: [DefaultUnixCryptRounds] (5000) or 1000 for MD5-crypt.
	Rounds int

	// SaltLen is the salt length in characters: 1 to 8 for MD5-crypt, 1 to
	// 16 for SHA-crypt.  Default: the maximum.
	SaltLen int

	// MinRounds and MaxRounds bound the rounds accepted by
	// [UnixCryptHasher.Validate].  Zero selects [UnixCryptMinRounds] and
	// [DefaultUnixCryptMaxRounds].
	MinRounds int
	MaxRounds int

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader
}

// DefaultUnixCryptOptions returns UnixCryptOptions for scheme with the glibc
// defaults.
func DefaultUnixCryptOptions(scheme Scheme) UnixCryptOptions {
	opts := UnixCryptOptions{
		Rounds:    DefaultUnixCryptRounds,
		SaltLen:   unixCryptVariants[scheme].maxSaltLen,
		MinRounds: UnixCryptMinRounds,
		MaxRounds: DefaultUnixCryptMaxRounds,
	}
	if scheme == SchemeMD5Crypt {
		opts.Rounds = md5CryptRounds
	}
	return opts
}

func validateUnixCryptOptions(scheme Scheme, v unixCryptVariant, opts UnixCryptOptions) (UnixCryptOptions, error) {
	if opts.Rounds == 0 {
		opts.Rounds = DefaultUnixCryptRounds
		if !v.hasRounds {
			opts.Rounds = md5CryptRounds
		}
	}
	if opts.SaltLen == 0 {
		opts.SaltLen = v.maxSaltLen
	}
	if opts.MinRounds == 0 {
		opts.MinRounds = UnixCryptMinRounds
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultUnixCryptMaxRounds
	}
	if !v.hasRounds && opts.Rounds != md5CryptRounds {
		return opts, fmt.Errorf("%w: %s rounds are fixed at %d, got %d",
			ErrInvalidParameters, scheme, md5CryptRounds, opts.Rounds)
	}
	if opts.Rounds < UnixCryptMinRounds || opts.Rounds > UnixCryptMaxRounds {
		return opts, fmt.Errorf("%w: %s rounds %d must be in [%d, %d]",
			ErrInvalidParameters, scheme, opts.Rounds, UnixCryptMinRounds, UnixCryptMaxRounds)
	}
	if opts.SaltLen < 1 || opts.SaltLen > v.maxSaltLen {
		return opts, fmt.Errorf("%w: %s salt_len %d must be in [1, %d]",
			ErrInvalidParameters, scheme, opts.SaltLen, v.maxSaltLen)
	}
	if opts.MinRounds < 0 || opts.MinRounds > opts.MaxRounds {
		return opts, fmt.Errorf("%w: %s validation bounds [%d, %d] are inconsistent",
			ErrInvalidParameters, scheme, opts.MinRounds, opts.MaxRounds)
	}
	return opts, nil
}

// UnixCryptHasher hashes passwords with the glibc crypt(3) schemes
// MD5-crypt, SHA-256-crypt and SHA-512-crypt, as found in /etc/shadow and
// in many LDAP and application databases.
//
// The digests are computed by github.com/GehirnInc/crypt.  One hasher serves
// one scheme; register one per scheme in a [Registry].
//
// # Thread safety
//
// UnixCryptHasher is immutable after construction and safe for concurrent use.
type UnixCryptHasher struct {
	scheme  Scheme
	variant unixCryptVariant
	opts    UnixCryptOptions
}

// NewUnixCryptHasher constructs a UnixCryptHasher for [SchemeMD5Crypt],
// [SchemeSHA256Crypt] or [SchemeSHA512Crypt].
// Returns [ErrInvalidParameters] for any other scheme or out-of-range options.
func NewUnixCryptHasher(scheme Scheme, opts UnixCryptOptions) (*UnixCryptHasher, error) {
	v, ok := unixCryptVariants[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a crypt(3) scheme", ErrInvalidParameters, scheme)
	}
	opts, err := validateUnixCryptOptions(scheme, v, opts)
	if err != nil {
		return nil, err
	}
	return &UnixCryptHasher{scheme: scheme, variant: v, opts: opts}, nil
}

// Scheme returns the scheme this hasher was built for.
func (h *UnixCryptHasher) Scheme() Scheme { return h.scheme }

// Options returns the hasher configuration.
func (h *UnixCryptHasher) Options() UnixCryptOptions { return h.opts }

// Make hashes password with a fresh random salt.  The "rounds=" field is
// written only when Rounds differs from [DefaultUnixCryptRounds].
func (h *UnixCryptHasher) Make(password string) (string, error) {
	raw, err := randomSalt(h.opts.Rand, (h.opts.SaltLen*6+7)/8)
	if err != nil {
		return "", err
	}
	salt := crypt3.Encode(raw)[:h.opts.SaltLen]

	rounds := 0
	if h.variant.hasRounds && h.opts.Rounds != DefaultUnixCryptRounds {
		rounds = h.opts.Rounds
	}
	out, err := h.variant.crypter().Generate([]byte(password), []byte(unixCryptSetting(h.scheme, rounds, salt)))
	if err != nil {
		return "", fmt.Errorf("hashing: %s failed: %w", h.scheme, err)
	}
	return out, nil
}

// Check verifies password against a hash of this hasher's scheme.
func (h *UnixCryptHasher) Check(password, hash string) (bool, error) {
	if _, err := h.parse(hash); err != nil {
		return false, err
	}
	err := h.variant.crypter().Verify(hash, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, crypt.ErrKeyMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
}

// NeedsRehash returns true if the effective rounds in hash differ from the
// configured Rounds.
func (h *UnixCryptHasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.EffectiveRounds() != h.opts.Rounds, nil
}

// Validate checks that the effective rounds in hash lie within
// [MinRounds, MaxRounds].
func (h *UnixCryptHasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	if r := p.EffectiveRounds(); r < h.opts.MinRounds || r > h.opts.MaxRounds {
		return fmt.Errorf("%w: %s rounds %d outside [%d, %d]",
			ErrInvalidParameters, h.scheme, r, h.opts.MinRounds, h.opts.MaxRounds)
	}
	return nil
}

// Info extracts the rounds and salt from hash.
func (h *UnixCryptHasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: h.scheme,
		Params: map[string]any{
			"rounds": p.EffectiveRounds(),
			"salt":   p.Salt,
		},
	}, nil
}

func (h *UnixCryptHasher) parse(hash string) (UnixCryptHash, error) {
	if !isScheme(hash, h.scheme) {
		return UnixCryptHash{}, fmt.Errorf("%w: hash does not appear to be %s", ErrSchemeMismatch, h.scheme)
	}
	return ParseUnixCrypt(hash)
}
