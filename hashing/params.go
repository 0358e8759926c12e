package hashing

import (
	"fmt"
	"strconv"
	"strings"
)

// splitMCF splits a "$"-delimited modular crypt string into its fields,
// dropping the empty field before the leading "$".  want is the expected
// field count.
func splitMCF(encoded string, want int) ([]string, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != want+1 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected %d \"$\"-delimited fields, got %d",
			ErrMalformedHash, want, len(parts)-1)
	}
	for i, p := range parts[1:] {
		if p == "" {
			return nil, fmt.Errorf("%w: field %d is empty", ErrMalformedHash, i+1)
		}
	}
	return parts[1:], nil
}

// parseKV parses a "key=value" string and returns the uint64 value.
func parseKV(s, key string) (uint64, error) {
	prefix := key + "="
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("expected %q prefix in %q", prefix, s)
	}
	return parseUint(s[len(prefix):])
}

// parseParams splits "m=65536,t=3,p=2" into a map.
func parseParams(s string) (map[string]uint64, error) {
	out := make(map[string]uint64)
	for _, kv := range strings.Split(s, ",") {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed param %q", kv)
		}
		v, err := parseUint(kv[eq+1:])
		if err != nil {
			return nil, fmt.Errorf("non-numeric value in %q: %v", kv, err)
		}
		if _, dup := out[kv[:eq]]; dup {
			return nil, fmt.Errorf("duplicate param %q", kv[:eq])
		}
		out[kv[:eq]] = v
	}
	return out, nil
}

// parseUint parses a decimal number without leading zeros, so that
// reformatting the value reproduces s.
func parseUint(s string) (uint64, error) {
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("leading zero in %q", s)
	}
	return strconv.ParseUint(s, 10, 64)
}
