// Package checksum computes content digests used for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// ShortLen is the number of hex characters shown by Short.
const ShortLen = 8

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// File returns the hex-encoded SHA-256 digest of the file at path.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return Sum(data), nil
}

// Short truncates a digest for display. It is not collision safe.
func Short(hash string) string {
	if len(hash) <= ShortLen {
		return hash
	}
	return hash[:ShortLen]
}
