// Package crypt3 implements the 64-symbol alphabet used by crypt(3)-style
// password hashes and the power-of-two iteration counts encoded with it.
//
// # Alphabet
//
// The alphabet is
//
//	./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz
//
// and a symbol's value is its index in that string.  Note that this is NOT the
// RFC 4648 base64 ordering: '.' is 0, '/' is 1 and the digits come next.
// PassLib calls the encoding "hash64"; Drupal 7, phpass and the MD5/SHA crypt
// family all use it.
//
// Bytes are packed little-endian: the first input byte supplies the lowest
// bits of the first symbol, so [Encode] of n bytes yields ceil(8n/6) symbols
// and the last symbol carries zero padding bits when 8n is not a multiple of 6.
//
// # Iteration counts
//
// Schemes such as Drupal 7 and phpass store their work factor as a single
// alphabet symbol whose value is the base-2 logarithm of the round count.
// [IterationCount] and [IterationSymbol] convert between the two.
//
// All functions are pure and safe for concurrent use.
package crypt3
