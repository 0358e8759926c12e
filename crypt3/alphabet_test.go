package crypt3_test

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/hasbyte1/go-passcompat/crypt3"
)

var encodeVectors = []struct {
	in   []byte
	want string
}{
	{nil, ""},
	{[]byte{}, ""},
	{[]byte{0}, ".."},
	{[]byte{255}, "z1"},
	{[]byte{255, 255}, "zzD"},
	{[]byte{255, 255, 255}, "zzzz"},
	{[]byte{0, 1, 2, 3, 4, 5, 6, 7}, ".2U.1EE/4Q."},
	{[]byte("hello world"), "cJ4Pgx46rxaQgF4"},
}

func TestEncode(t *testing.T) {
	for _, tt := range encodeVectors {
		if got := crypt3.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppendEncode(t *testing.T) {
	dst := []byte("prefix:")
	got := crypt3.AppendEncode(dst, []byte("hello world"))
	if want := "prefix:cJ4Pgx46rxaQgF4"; string(got) != want {
		t.Errorf("AppendEncode = %q, want %q", got, want)
	}
}

func TestEncodedLen(t *testing.T) {
	for n := 0; n <= 70; n++ {
		src := make([]byte, n)
		if got, want := len(crypt3.Encode(src)), crypt3.EncodedLen(n); got != want {
			t.Errorf("n=%d: len(Encode) = %d, EncodedLen = %d", n, got, want)
		}
	}
	if got := crypt3.EncodedLen(64); got != 86 {
		t.Errorf("EncodedLen(64) = %d, want 86", got)
	}
}

func TestDecode(t *testing.T) {
	for _, tt := range encodeVectors {
		got, err := crypt3.Decode(tt.want)
		if err != nil {
			t.Fatalf("Decode(%q): %v", tt.want, err)
		}
		if !bytes.Equal(got, tt.in) {
			t.Errorf("Decode(%q) = %v, want %v", tt.want, got, tt.in)
		}
	}
}

func TestDecode_InvalidSymbol(t *testing.T) {
	for _, s := range []string{"+", "ab-c", "abc=", "zz z", "\x00", "é"} {
		_, err := crypt3.Decode(s)
		if !errors.Is(err, crypt3.ErrInvalidSymbol) {
			t.Errorf("Decode(%q): expected ErrInvalidSymbol, got %v", s, err)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		src := make([]byte, n)
		rng.Read(src)
		enc := crypt3.Encode(src)
		if strings.Trim(enc, crypt3.Alphabet) != "" {
			t.Fatalf("Encode produced symbols outside the alphabet: %q", enc)
		}
		dec, err := crypt3.Decode(enc)
		if err != nil {
			t.Fatalf("n=%d: Decode: %v", n, err)
		}
		if !bytes.Equal(dec, src) {
			t.Fatalf("n=%d: round trip mismatch\n got %x\nwant %x", n, dec, src)
		}
	}
}

func TestIndexInvalid(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", -1},
		{"randomsa", -1},
		{crypt3.Alphabet, -1},
		{"ab$c", 2},
		{"abcdefg\xc3", 7},
		{"+abc", 0},
		{"abc\x00", 3},
	}
	for _, tt := range tests {
		if got := crypt3.IndexInvalid(tt.in); got != tt.want {
			t.Errorf("IndexInvalid(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIndexSymbol(t *testing.T) {
	for v := 0; v < len(crypt3.Alphabet); v++ {
		c := crypt3.Symbol(v)
		i, ok := crypt3.Index(c)
		if !ok || i != v {
			t.Errorf("Index(Symbol(%d)) = %d, %v", v, i, ok)
		}
	}
	if c := crypt3.Symbol(0); c != crypt3.Zero {
		t.Errorf("Symbol(0) = %q, want %q", c, crypt3.Zero)
	}
	for _, c := range []byte{'+', '=', '$', '-', '_', 0, 0x80} {
		if _, ok := crypt3.Index(c); ok {
			t.Errorf("Index(%q) reported a valid symbol", c)
		}
	}
}
