package crypt3

import "fmt"

// Alphabet is the crypt(3) symbol set, ordered by symbol value.
const Alphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Zero is the symbol with value 0.
const Zero = '.'

const invalidIndex = 0xFF

// decodeMap maps a character to its 6-bit value, or invalidIndex.
var decodeMap [256]byte

func init() {
	for i := range decodeMap {
		decodeMap[i] = invalidIndex
	}
	for i := 0; i < len(Alphabet); i++ {
		decodeMap[Alphabet[i]] = byte(i)
	}
}

// Index returns the 6-bit value of symbol c.
// The second return value is false when c is not part of the [Alphabet].
func Index(c byte) (int, bool) {
	v := decodeMap[c]
	if v == invalidIndex {
		return 0, false
	}
	return int(v), true
}

// IndexInvalid returns the offset of the first byte of s that is not part of
// the [Alphabet], or -1 if every byte is a symbol.
func IndexInvalid(s string) int {
	for i := 0; i < len(s); i++ {
		if decodeMap[s[i]] == invalidIndex {
			return i
		}
	}
	return -1
}

// Symbol returns the alphabet symbol for the low 6 bits of v.
func Symbol(v int) byte {
	return Alphabet[v&0x3f]
}

// EncodedLen returns the number of symbols [Encode] produces for n bytes.
func EncodedLen(n int) int {
	return (n*8 + 5) / 6
}

// DecodedLen returns the number of bytes [Decode] produces for n symbols.
func DecodedLen(n int) int {
	return n * 6 / 8
}

// Encode packs src into alphabet symbols, least significant bits first.
//
// An empty src yields an empty string.
func Encode(src []byte) string {
	return string(AppendEncode(make([]byte, 0, EncodedLen(len(src))), src))
}

// AppendEncode appends the encoding of src to dst and returns the extended
// buffer.
func AppendEncode(dst, src []byte) []byte {
	var (
		acc  uint
		bits uint
	)
	for _, b := range src {
		acc |= uint(b) << bits
		for bits += 8; bits > 6; bits -= 6 {
			dst = append(dst, Alphabet[acc&0x3f])
			acc >>= 6
		}
	}
	if bits > 0 {
		dst = append(dst, Alphabet[acc&0x3f])
	}
	return dst
}

// Decode is the inverse of [Encode].  Trailing bits that do not complete a
// byte are discarded, so Decode(Encode(b)) returns exactly b.
//
// ErrInvalidSymbol is returned, wrapped with the offending character and its
// position, if s contains a character outside the [Alphabet].
func Decode(s string) ([]byte, error) {
	dst := make([]byte, 0, DecodedLen(len(s)))

	var (
		acc  uint
		bits uint
	)
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v == invalidIndex {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidSymbol, s[i], i)
		}
		acc |= uint(v) << bits
		for bits += 6; bits >= 8; bits -= 8 {
			dst = append(dst, byte(acc))
			acc >>= 8
		}
	}
	return dst, nil
}
