package cachestore

import (
	"strings"

	"github.com/rohmanhakim/threadwatch/pkg/hashutil"
)

const (
	// DefaultMaxKeyLength bounds keys sent to remote backends.
	DefaultMaxKeyLength = 200
	hashedKeyPrefix     = "h:"
	hashedKeyLength     = len(hashedKeyPrefix) + hashutil.Blake3HexLength
)

// EncodeKey makes key safe for a remote backend. Keys that are short and
// purely alphanumeric pass through; anything else becomes "h:" followed by
// the BLAKE3 hex digest of the key. Encoded keys are left unchanged, so
// EncodeKey(EncodeKey(k)) == EncodeKey(k).
func EncodeKey(key string, maxLength int) string {
	if maxLength < hashedKeyLength {
		maxLength = hashedKeyLength
	}
	if isEncoded(key) {
		return key
	}
	if len(key) <= maxLength && isAlphanumeric(key) {
		return key
	}
	return hashedKeyPrefix + hashutil.Blake3String(key)
}

func isEncoded(key string) bool {
	return len(key) == hashedKeyLength &&
		strings.HasPrefix(key, hashedKeyPrefix) &&
		hashutil.IsLowerHex(key[len(hashedKeyPrefix):])
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'z'
		isUpper := c >= 'A' && c <= 'Z'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}
