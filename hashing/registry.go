package hashing

import (
	"fmt"
	"sort"
)

// Registry dispatches hashing operations to one [Hasher] per [Scheme].
//
// New hashes are produced by the default scheme.  Existing hashes are routed
// by their leading tag (see [DetectScheme]), so hashes from several schemes
// can coexist, e.g. while migrating a Drupal 7 user table to Argon2id.
//
// # Thread safety
//
// The scheme mapping is fixed by [NewRegistry] and never modified afterwards.
// All methods are safe for concurrent use without locking.
type Registry struct {
	hashers map[Scheme]Hasher
	def     Scheme
}

// NewRegistry creates a Registry serving the given hashers, keyed by their
// [Hasher.Scheme].  def names the scheme used by [Registry.Make] and must be
// among them.
//
// Returns [ErrNilHasher] for a nil hasher, [ErrDuplicateScheme] when two
// hashers report the same scheme, and [ErrUnknownScheme] when def is not
// registered.
func NewRegistry(def Scheme, hashers ...Hasher) (*Registry, error) {
	m := make(map[Scheme]Hasher, len(hashers))
	for i, h := range hashers {
		if h == nil {
			return nil, fmt.Errorf("%w: argument %d", ErrNilHasher, i)
		}
		s := h.Scheme()
		if _, dup := m[s]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateScheme, s)
		}
		m[s] = h
	}
	if _, ok := m[def]; !ok {
		return nil, fmt.Errorf("%w: default scheme %q has not been registered", ErrUnknownScheme, def)
	}
	return &Registry{hashers: m, def: def}, nil
}

// NewDefaultRegistry creates a Registry with every built-in scheme registered
// using its recommended default options.  The default scheme is
// [SchemeArgon2id].
//
// This is the recommended starting point for most applications.
//
//	r, err := hashing.NewDefaultRegistry()
//	hash, _ := r.Make("secret")
func NewDefaultRegistry() (*Registry, error) {
	var hashers []Hasher

	for _, ident := range []byte{'a', 'b', 'y'} {
		opts := DefaultBcryptOptions()
		opts.Ident = ident
		h, err := NewBcryptHasher(opts)
		if err != nil {
			return nil, fmt.Errorf("hashing: failed to create default bcrypt hasher: %w", err)
		}
		hashers = append(hashers, h)
	}

	for _, s := range []Scheme{
		SchemePBKDF2SHA1, SchemePBKDF2SHA224, SchemePBKDF2SHA256, SchemePBKDF2SHA384, SchemePBKDF2SHA512,
	} {
		h, err := NewPBKDF2Hasher(s, DefaultPBKDF2Options(s))
		if err != nil {
			return nil, fmt.Errorf("hashing: failed to create default %s hasher: %w", s, err)
		}
		hashers = append(hashers, h)
	}

	scryptH, err := NewScryptHasher(DefaultScryptOptions())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default scrypt hasher: %w", err)
	}
	drupalH, err := NewDrupal7Hasher(DefaultDrupal7Options())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default drupal7 hasher: %w", err)
	}
	phpassH, err := NewPhpassHasher(DefaultPhpassOptions())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default phpass hasher: %w", err)
	}
	for _, s := range []Scheme{SchemeMD5Crypt, SchemeSHA256Crypt, SchemeSHA512Crypt} {
		h, err := NewUnixCryptHasher(s, DefaultUnixCryptOptions(s))
		if err != nil {
			return nil, fmt.Errorf("hashing: failed to create default %s hasher: %w", s, err)
		}
		hashers = append(hashers, h)
	}
	argon2iH, err := NewArgon2iHasher(DefaultArgon2Options())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default argon2i hasher: %w", err)
	}
	argon2idH, err := NewArgon2idHasher(DefaultArgon2Options())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default argon2id hasher: %w", err)
	}
	hashers = append(hashers, scryptH, drupalH, phpassH, argon2iH, argon2idH)

	return NewRegistry(SchemeArgon2id, hashers...)
}

// Hasher returns the [Hasher] registered for s, or [ErrUnknownScheme].
func (r *Registry) Hasher(s Scheme) (Hasher, error) {
	h, ok := r.hashers[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
	return h, nil
}

// Has reports whether a hasher is registered for s.
func (r *Registry) Has(s Scheme) bool {
	_, ok := r.hashers[s]
	return ok
}

// Default returns the scheme used by [Registry.Make].
func (r *Registry) Default() Scheme { return r.def }

// Schemes returns the registered schemes in lexical order.
func (r *Registry) Schemes() []Scheme {
	out := make([]Scheme, 0, len(r.hashers))
	for s := range r.hashers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Make hashes password using the default scheme.
func (r *Registry) Make(password string) (string, error) {
	return r.hashers[r.def].Make(password)
}

// Check verifies password against hash using the hasher of the scheme
// detected from hash.
//
// Returns [ErrUnknownScheme] if the tag is unrecognised or its scheme is not
// registered.
func (r *Registry) Check(password, hash string) (bool, error) {
	h, err := r.resolve(hash)
	if err != nil {
		return false, err
	}
	return h.Check(password, hash)
}

// NeedsRehash reports whether hash should be re-hashed.
//
// It returns true when:
//  1. The hash was produced by a different scheme than the default, OR
//  2. The hash was produced by the default scheme but with parameters that
//     differ from its configuration (e.g., a lower bcrypt cost).
func (r *Registry) NeedsRehash(hash string) (bool, error) {
	h, err := r.resolve(hash)
	if err != nil {
		return false, err
	}
	if h.Scheme() != r.def {
		return true, nil
	}
	return h.NeedsRehash(hash)
}

// Info extracts metadata from hash using the detected scheme's hasher.
func (r *Registry) Info(hash string) (HashInfo, error) {
	h, err := r.resolve(hash)
	if err != nil {
		return HashInfo{}, err
	}
	return h.Info(hash)
}

// Validate checks the parameters embedded in hash against the bounds of the
// detected scheme's hasher.  Hashers that do not implement [Validator] only
// have the framing of hash checked.
func (r *Registry) Validate(hash string) error {
	h, err := r.resolve(hash)
	if err != nil {
		return err
	}
	if v, ok := h.(Validator); ok {
		return v.Validate(hash)
	}
	_, err = h.Info(hash)
	return err
}

// Verify checks password against hash and reports whether the stored hash
// should be replaced.
//
// The parameters of hash are checked with [Registry.Validate] before any key
// derivation runs.  Every built-in hasher bounds its cost parameters there; a
// custom [Hasher] that does not implement [Validator] only has its framing
// checked.
// ErrPasswordMismatch is returned when password does not match.  When it
// matches and [Registry.NeedsRehash] is true, updated holds a fresh hash of
// password made with the default scheme; store it in place of hash.
// Otherwise updated is empty.
func (r *Registry) Verify(password, hash string) (updated string, err error) {
	return r.verifyAndUpdate(hash, password, password)
}

// VerifyAndUpdate checks oldPassword against hash and, when it matches,
// always returns a hash of newPassword made with the default scheme.
//
// Returns [ErrPasswordNoChange] if newPassword equals oldPassword.
func (r *Registry) VerifyAndUpdate(hash, oldPassword, newPassword string) (updated string, err error) {
	if oldPassword == newPassword {
		return "", ErrPasswordNoChange
	}
	return r.verifyAndUpdate(hash, oldPassword, newPassword)
}

func (r *Registry) verifyAndUpdate(hash, oldPassword, newPassword string) (string, error) {
	if err := r.Validate(hash); err != nil {
		return "", err
	}
	ok, err := r.Check(oldPassword, hash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrPasswordMismatch
	}
	if oldPassword == newPassword {
		stale, err := r.NeedsRehash(hash)
		if err != nil || !stale {
			return "", err
		}
	}
	return r.Make(newPassword)
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────────────────────────────────

func (r *Registry) resolve(hash string) (Hasher, error) {
	s, ok := DetectScheme(hash)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognised hash prefix", ErrUnknownScheme)
	}
	return r.Hasher(s)
}
