package hashutil

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Blake3HexLength is the length of a hex-encoded 256-bit BLAKE3 digest.
const Blake3HexLength = 64

// Blake3String is the BLAKE3 hex digest of s.
func Blake3String(s string) string {
	return hashBytesBlake3([]byte(s))
}

// IsLowerHex reports whether s is non-empty and made only of [0-9a-f].
func IsLowerHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
