package crypt3

import (
	"fmt"
	"math/bits"
)

// MaxLogIterations is the largest base-2 logarithm an iteration symbol can
// carry.
const MaxLogIterations = len(Alphabet) - 1

// IterationCount returns the number of rounds encoded by the iteration
// symbol c, which is 2 raised to the symbol's value.
//
//	n, _ := crypt3.IterationCount('D') // 32768
//	n, _ = crypt3.IterationCount('E')  // 65536
func IterationCount(c byte) (uint64, error) {
	i, ok := Index(c)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIterationSymbol, c)
	}
	return 1 << uint(i), nil
}

// LogIterations returns the value of the iteration symbol c, i.e. the base-2
// logarithm of its round count.
func LogIterations(c byte) (int, error) {
	i, ok := Index(c)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIterationSymbol, c)
	}
	return i, nil
}

// IterationSymbol returns the symbol that encodes n rounds.
// n must be an exact power of two.
func IterationSymbol(n uint64) (byte, error) {
	if n == 0 || n&(n-1) != 0 {
		return 0, fmt.Errorf("%w: %d is not a power of two", ErrIterationsNotRepresentable, n)
	}
	return Alphabet[bits.TrailingZeros64(n)], nil
}

// LogIterationSymbol returns the symbol that encodes 2^log2 rounds.
func LogIterationSymbol(log2 int) (byte, error) {
	if log2 < 0 || log2 > MaxLogIterations {
		return 0, fmt.Errorf("%w: 2^%d is outside [2^0, 2^%d]",
			ErrIterationsNotRepresentable, log2, MaxLogIterations)
	}
	return Alphabet[log2], nil
}
