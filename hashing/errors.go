package hashing

import "errors"

// Sentinel errors returned by hashing operations.
//
// Use [errors.Is] for comparisons:
//
//	ok, err := hasher.Check(password, hash)
//	if errors.Is(err, hashing.ErrMalformedHash) {
//	    // hash string is malformed
//	}
var (
	// ErrMalformedHash is returned when a hash string cannot be parsed because
	// it has missing fields, wrong field widths, or invalid encoding.
	ErrMalformedHash = errors.New("hashing: malformed hash string")

	// ErrInvalidParameters is returned when a constructor or hash string
	// carries a cost, rounds, or length value outside the scheme's legal or
	// configured range.
	ErrInvalidParameters = errors.New("hashing: invalid parameters")

	// ErrUnknownScheme is returned when no registered scheme matches a hash
	// string or a requested scheme name.
	ErrUnknownScheme = errors.New("hashing: unknown scheme")

	// ErrSchemeMismatch is returned by a [Hasher] when the hash string was
	// produced by a different scheme than the one it implements.
	ErrSchemeMismatch = errors.New("hashing: hash was produced by a different scheme")

	// ErrNilHasher is returned by [NewRegistry] when a nil [Hasher] is
	// supplied.
	ErrNilHasher = errors.New("hashing: hasher must not be nil")

	// ErrDuplicateScheme is returned by [NewRegistry] when two hashers
	// report the same [Scheme].
	ErrDuplicateScheme = errors.New("hashing: scheme registered twice")

	// ErrPasswordMismatch is returned by [Registry.Verify] when the password
	// does not match the stored hash.
	ErrPasswordMismatch = errors.New("hashing: password does not match hash")

	// ErrPasswordNoChange is returned by [Registry.VerifyAndUpdate] when the
	// new password equals the old one.
	ErrPasswordNoChange = errors.New("hashing: new password same as old password")
)
