package hashing

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/argon2"
)

// ──────────────────────────────────────────────────────────────────────────────
// Options
// ──────────────────────────────────────────────────────────────────────────────

const (
	// DefaultArgon2Memory is the default memory cost in KiB (64 MiB).
	DefaultArgon2Memory uint32 = 64 * 1024

	// DefaultArgon2Time is the default number of iterations.
	DefaultArgon2Time uint32 = 3

	// DefaultArgon2Threads is the default degree of parallelism.
	DefaultArgon2Threads uint8 = 2

	// DefaultArgon2KeyLen is the default output key length in bytes.
	DefaultArgon2KeyLen uint32 = 32

	// DefaultArgon2MaxMemory, DefaultArgon2MaxTime and DefaultArgon2MaxThreads
	// bound the parameters accepted by [Argon2Hasher.Validate].
	DefaultArgon2MaxMemory  uint32 = 1024 * 1024 // 1 GiB
	DefaultArgon2MaxTime    uint32 = 32
	DefaultArgon2MaxThreads uint8  = 32

	// argon2Version is the Argon2 specification version encoded in hashes.
	argon2Version = argon2.Version // 0x13 = 19
)

// Argon2Options configures an [Argon2Hasher].
//
// All parameters are encoded into the output hash string (PHC format), so
// changing them only affects newly produced hashes.
type Argon2Options struct {
	// Memory is the memory cost in KiB.
	// Minimum: 8 * Threads.  Default: [DefaultArgon2Memory] (64 MiB).
	Memory uint32

	// Time is the number of passes over memory (iterations).
	// Minimum: 1.  Default: [DefaultArgon2Time] (3).
	Time uint32

	// Threads is the degree of parallelism.
	// Minimum: 1.  Default: [DefaultArgon2Threads] (2).
	Threads uint8

	// KeyLen is the length of the derived key in bytes.
	// Minimum: 4.  Default: [DefaultArgon2KeyLen] (32).
	KeyLen uint32

	// SaltLen is the length of the random salt in bytes.
	// Minimum: 8.  Default: [DefaultSaltLen] (16).
	SaltLen uint32

	// MaxMemory, MaxTime and MaxThreads bound the parameters of stored
	// hashes accepted by [Argon2Hasher.Validate].  Zero selects
	// [DefaultArgon2MaxMemory], [DefaultArgon2MaxTime] and
	// [DefaultArgon2MaxThreads].
	MaxMemory  uint32
	MaxTime    uint32
	MaxThreads uint8

	// Rand is the salt source.  Nil selects crypto/rand.
	Rand io.Reader
}

// DefaultArgon2Options returns Argon2Options with the recommended defaults.
func DefaultArgon2Options() Argon2Options {
	return Argon2Options{
		Memory:  DefaultArgon2Memory,
		Time:    DefaultArgon2Time,
		Threads: DefaultArgon2Threads,
		KeyLen:  DefaultArgon2KeyLen,
		SaltLen: DefaultSaltLen,
	}
}

func validateArgon2Options(opts Argon2Options) (Argon2Options, error) {
	if opts.MaxMemory == 0 {
		opts.MaxMemory = DefaultArgon2MaxMemory
	}
	if opts.MaxTime == 0 {
		opts.MaxTime = DefaultArgon2MaxTime
	}
	if opts.MaxThreads == 0 {
		opts.MaxThreads = DefaultArgon2MaxThreads
	}
	if opts.Time < 1 {
		return opts, fmt.Errorf("%w: argon2 time must be ≥ 1, got %d", ErrInvalidParameters, opts.Time)
	}
	if opts.Threads < 1 {
		return opts, fmt.Errorf("%w: argon2 threads must be ≥ 1, got %d", ErrInvalidParameters, opts.Threads)
	}
	if opts.Memory < 8*uint32(opts.Threads) {
		return opts, fmt.Errorf("%w: argon2 memory (%d KiB) must be ≥ 8×threads (%d KiB)",
			ErrInvalidParameters, opts.Memory, 8*uint32(opts.Threads))
	}
	if opts.KeyLen < 4 {
		return opts, fmt.Errorf("%w: argon2 key_len must be ≥ 4, got %d", ErrInvalidParameters, opts.KeyLen)
	}
	if opts.SaltLen < 8 {
		return opts, fmt.Errorf("%w: argon2 salt_len must be ≥ 8, got %d", ErrInvalidParameters, opts.SaltLen)
	}
	if opts.Memory > opts.MaxMemory || opts.Time > opts.MaxTime || opts.Threads > opts.MaxThreads {
		return opts, fmt.Errorf("%w: argon2 m=%d,t=%d,p=%d exceeds the validation bounds m=%d,t=%d,p=%d",
			ErrInvalidParameters, opts.Memory, opts.Time, opts.Threads, opts.MaxMemory, opts.MaxTime, opts.MaxThreads)
	}
	return opts, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PHC string format
// ──────────────────────────────────────────────────────────────────────────────

// Argon2Hash is the parsed form of an Argon2 PHC hash string:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Salt and key use standard base64 without padding.
type Argon2Hash struct {
	Variant Scheme
	Version uint32
	Memory  uint32
	Time    uint32
	Threads uint8
	Salt    []byte
	Key     []byte
}

// String reassembles the hash string.
func (h Argon2Hash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		string(h.Variant),
		h.Version,
		h.Memory,
		h.Time,
		h.Threads,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key),
	)
}

// ParseArgon2 splits an Argon2i or Argon2id PHC hash string into its fields.
func ParseArgon2(encoded string) (Argon2Hash, error) {
	parts, err := splitMCF(encoded, 5)
	if err != nil {
		return Argon2Hash{}, err
	}

	var variant Scheme
	switch parts[0] {
	case string(SchemeArgon2i):
		variant = SchemeArgon2i
	case string(SchemeArgon2id):
		variant = SchemeArgon2id
	default:
		return Argon2Hash{}, fmt.Errorf("%w: unknown argon2 variant %q", ErrMalformedHash, parts[0])
	}

	version, err := parseKV(parts[1], "v")
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	kvs, err := parseParams(parts[2])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	memory, ok1 := kvs["m"]
	time, ok2 := kvs["t"]
	threads, ok3 := kvs["p"]
	if !ok1 || !ok2 || !ok3 || len(kvs) != 3 {
		return Argon2Hash{}, fmt.Errorf("%w: expected m, t and p in parameter segment %q", ErrMalformedHash, parts[2])
	}
	if version > math.MaxUint32 || memory > math.MaxUint32 || time > math.MaxUint32 || threads > math.MaxUint8 {
		return Argon2Hash{}, fmt.Errorf("%w: argon2 parameters out of range in %q", ErrMalformedHash, parts[2])
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[3])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: invalid argon2 salt: %v", ErrMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, fmt.Errorf("%w: invalid argon2 key: %v", ErrMalformedHash, err)
	}

	return Argon2Hash{
		Variant: variant,
		Version: uint32(version),
		Memory:  uint32(memory),
		Time:    uint32(time),
		Threads: uint8(threads),
		Salt:    salt,
		Key:     key,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Argon2Hasher
// ──────────────────────────────────────────────────────────────────────────────

// Argon2Hasher hashes passwords using Argon2i or Argon2id.
//
// Argon2id is the recommended choice for new systems (RFC 9106).  Argon2i
// uses data-independent memory access only; keep it to verify existing
// hashes.
//
// Output format: PHC string ($argon2id$v=19$m=…,t=…,p=…$<salt>$<hash>),
// compatible with passlib and the argon2 reference implementation.
//
// # Thread safety
//
// Argon2Hasher is immutable after construction and safe for concurrent use.
type Argon2Hasher struct {
	variant Scheme
	opts    Argon2Options
}

// NewArgon2iHasher constructs an Argon2i hasher with the given options.
// Use [DefaultArgon2Options] for recommended defaults.
func NewArgon2iHasher(opts Argon2Options) (*Argon2Hasher, error) {
	return newArgon2Hasher(SchemeArgon2i, opts)
}

// NewArgon2idHasher constructs an Argon2id hasher with the given options.
// Use [DefaultArgon2Options] for recommended defaults.
func NewArgon2idHasher(opts Argon2Options) (*Argon2Hasher, error) {
	return newArgon2Hasher(SchemeArgon2id, opts)
}

func newArgon2Hasher(variant Scheme, opts Argon2Options) (*Argon2Hasher, error) {
	opts, err := validateArgon2Options(opts)
	if err != nil {
		return nil, err
	}
	return &Argon2Hasher{variant: variant, opts: opts}, nil
}

// Scheme returns [SchemeArgon2i] or [SchemeArgon2id].
func (h *Argon2Hasher) Scheme() Scheme { return h.variant }

// Options returns the current Argon2 parameter set.
func (h *Argon2Hasher) Options() Argon2Options { return h.opts }

func (h *Argon2Hasher) key(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	if h.variant == SchemeArgon2i {
		return argon2.Key(password, salt, time, memory, threads, keyLen)
	}
	return argon2.IDKey(password, salt, time, memory, threads, keyLen)
}

// Make hashes password and returns a PHC-formatted string.
// A fresh random salt of the configured length is generated for each call.
func (h *Argon2Hasher) Make(password string) (string, error) {
	salt, err := randomSalt(h.opts.Rand, int(h.opts.SaltLen))
	if err != nil {
		return "", err
	}
	return Argon2Hash{
		Variant: h.variant,
		Version: argon2Version,
		Memory:  h.opts.Memory,
		Time:    h.opts.Time,
		Threads: h.opts.Threads,
		Salt:    salt,
		Key:     h.key([]byte(password), salt, h.opts.Time, h.opts.Memory, h.opts.Threads, h.opts.KeyLen),
	}.String(), nil
}

// Check verifies that password matches the PHC hash.
// The parameters (memory, time, threads) are read from the hash string itself,
// so verification works correctly even when the hasher's options have changed.
func (h *Argon2Hasher) Check(password, hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	if err := checkArgon2Hash(p); err != nil {
		return false, err
	}
	computed := h.key([]byte(password), p.Salt, p.Time, p.Memory, p.Threads, uint32(len(p.Key)))
	return subtle.ConstantTimeCompare(computed, p.Key) == 1, nil
}

// Validate checks that the memory, time and threads stored in hash do not
// exceed MaxMemory, MaxTime and MaxThreads.
func (h *Argon2Hasher) Validate(hash string) error {
	p, err := h.parse(hash)
	if err != nil {
		return err
	}
	if err := checkArgon2Hash(p); err != nil {
		return err
	}
	if p.Memory > h.opts.MaxMemory || p.Time > h.opts.MaxTime || p.Threads > h.opts.MaxThreads {
		return fmt.Errorf("%w: argon2 m=%d,t=%d,p=%d outside bounds m≤%d,t≤%d,p≤%d",
			ErrInvalidParameters, p.Memory, p.Time, p.Threads, h.opts.MaxMemory, h.opts.MaxTime, h.opts.MaxThreads)
	}
	return nil
}

// NeedsRehash returns true if any parameter stored in hash differs from the
// hasher's current configuration.
func (h *Argon2Hasher) NeedsRehash(hash string) (bool, error) {
	p, err := h.parse(hash)
	if err != nil {
		return false, err
	}
	return p.Version != argon2Version ||
		p.Memory != h.opts.Memory ||
		p.Time != h.opts.Time ||
		p.Threads != h.opts.Threads ||
		uint32(len(p.Key)) != h.opts.KeyLen, nil
}

// Info parses the PHC string and returns the encoded parameters.
//
// Returned [HashInfo].Params:
//   - "version" → int
//   - "memory"  → uint32 (KiB)
//   - "time"    → uint32
//   - "threads" → uint8
//   - "key_len" → uint32
func (h *Argon2Hasher) Info(hash string) (HashInfo, error) {
	p, err := h.parse(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Scheme: p.Variant,
		Params: map[string]any{
			"version": int(p.Version),
			"memory":  p.Memory,
			"time":    p.Time,
			"threads": p.Threads,
			"key_len": uint32(len(p.Key)),
		},
	}, nil
}

// checkArgon2Hash rejects parameters x/crypto/argon2 cannot run with.
func checkArgon2Hash(p Argon2Hash) error {
	if p.Version != argon2Version {
		return fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidParameters, p.Version)
	}
	if p.Threads < 1 || p.Time < 1 || len(p.Key) < 4 {
		return fmt.Errorf("%w: argon2 parameters in hash are below the minimum", ErrInvalidParameters)
	}
	return nil
}

// parse checks the variant and the framing of hash.
func (h *Argon2Hasher) parse(hash string) (Argon2Hash, error) {
	if !isScheme(hash, h.variant) {
		return Argon2Hash{}, fmt.Errorf("%w: hash does not appear to be %s", ErrSchemeMismatch, h.variant)
	}
	return ParseArgon2(hash)
}
