// Package pipeline coordinates the summarization flow for a shared
// file: cache lookup, collapsing of concurrent work, extraction,
// summarization and cache write-back.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the cache identity of a shared file. It hashes
// the Slack file id so the identity exists before any bytes are
// downloaded, which lets concurrent deliveries of the same file
// collapse onto one unit of work.
func Fingerprint(fileID string) string {
	sum := sha256.Sum256([]byte(fileID))
	return hex.EncodeToString(sum[:])
}
