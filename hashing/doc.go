// Package hashing produces and verifies password hashes in the modular crypt
// formats used by other software stacks, byte-for-byte compatible with the
// reference implementations (passlib, Drupal 7, PHP crypt).
//
// # Architecture
//
// The central abstraction is the [Hasher] interface.  One hasher exists per
// scheme family and every hasher reports the [Scheme] it produces:
//
//   - [BcryptHasher]: bcrypt with the $2a$, $2b$ or $2y$ ident
//   - [PBKDF2Hasher]: PBKDF2 over HMAC-SHA1, SHA-224, SHA-256, SHA-384 or
//     SHA-512 (passlib format)
//   - [ScryptHasher]: scrypt (passlib format)
//   - [Drupal7Hasher]: Drupal 7 "$S$" iterated SHA-512
//   - [PhpassHasher]: WordPress and phpBB "$P$" / "$H$" iterated MD5
//   - [UnixCryptHasher]: glibc MD5-crypt "$1$", SHA-256-crypt "$5$" and
//     SHA-512-crypt "$6$"
//   - [Argon2Hasher]: Argon2i / Argon2id (PHC string format)
//
// Every format also has a value type ([Drupal7Hash], [PhpassHash],
// [UnixCryptHash], [BcryptHash], [PBKDF2Hash], [ScryptHash], [Argon2Hash])
// obtained from the matching Parse
// function.  Its String method reassembles the exact text that was parsed,
// for every hash produced by this package.
//
// bcrypt, PBKDF2 and scrypt delegate the key derivation to the functions in
// [Primitives], which default to golang.org/x/crypto.  The crypt(3) schemes
// are computed by github.com/GehirnInc/crypt.  Drupal 7 and phpass are
// computed here, using [crypto/sha512] and [crypto/md5] with the crypt3
// alphabet from github.com/hasbyte1/go-passcompat/crypt3.
//
// The [Registry] maps schemes to hashers.  It detects the scheme of a stored
// hash from its prefix (see [DetectScheme]) and dispatches to the right
// hasher, which makes verifying hashes imported from several systems a
// single call:
//
//	r, err := hashing.NewDefaultRegistry()
//	if err != nil { log.Fatal(err) }
//
//	ok, err := r.Check("password", "$S$ErandomsaOpYrAZqwxGynirQbWYCb3ejW4BwGH81LJcOzbzeVd02")
//
// # Migration
//
// [Registry.Verify] checks a password and, when the stored hash came from a
// scheme other than the default or with outdated parameters, returns a fresh
// hash to persist:
//
//	updated, err := r.Verify(password, stored)
//	if err == nil && updated != "" {
//	    persist(userID, updated)
//	}
//
// # Errors
//
// A wrong password is reported as (false, nil), never as an error.  Hashes
// that cannot be parsed return [ErrMalformedHash]; hashes with no matching
// scheme return [ErrUnknownScheme]; out-of-range parameters return
// [ErrInvalidParameters].
//
// # Concurrency
//
// Hashers and registries are immutable after construction and safe for
// concurrent use without locking.
package hashing
