package crypt3

import "errors"

// Sentinel errors returned by the codec.
//
// Use [errors.Is] for comparisons:
//
//	raw, err := crypt3.Decode(s)
//	if errors.Is(err, crypt3.ErrInvalidSymbol) {
//	    // s contains a character outside the alphabet
//	}
var (
	// ErrInvalidSymbol is returned by [Decode] when the input contains a
	// character that is not part of the alphabet.
	ErrInvalidSymbol = errors.New("crypt3: invalid symbol")

	// ErrInvalidIterationSymbol is returned by [IterationCount] when the
	// iteration character is not part of the alphabet.
	ErrInvalidIterationSymbol = errors.New("crypt3: invalid iteration symbol")

	// ErrIterationsNotRepresentable is returned by [IterationSymbol] and
	// [LogIterationSymbol] when the count is not a power of two between 2^0
	// and 2^63.
	ErrIterationsNotRepresentable = errors.New("crypt3: iteration count not representable")
)
