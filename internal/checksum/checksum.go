// Package checksum fingerprints encoded note documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. The engine stores the
// digest of the last document confirmed on the remote as the note's
// fingerprint.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the leading 12 hex characters of Sum, for log lines.
func Short(data []byte) string {
	s := Sum(data)
	return s[:12]
}
