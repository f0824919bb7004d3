package book

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// CrossPlatformID derives the stable identity hash used to correlate the
// same book across platforms. It is a pure function of the normalized
// title, authors, and ISBN.
func CrossPlatformID(title string, authors []string, isbn string) string {
	parts := make([]string, 0, len(authors)+2)
	parts = append(parts, normalizeKeyPart(title))
	for _, a := range authors {
		parts = append(parts, normalizeKeyPart(a))
	}
	parts = append(parts, normalizeKeyPart(isbn))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

// Fingerprint hashes the record's core fields for change detection.
// Two records with the same normalized core fields always produce the
// same fingerprint.
func Fingerprint(r *Record) string {
	core := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%s|%.1f",
		normalizeKeyPart(r.Title),
		strings.Join(r.Authors, ","),
		r.ISBN,
		r.Status,
		r.Progress.Percentage,
		r.Progress.CurrentPage,
		r.Progress.TotalPages,
		r.Progress.LastPosition,
		r.Rating,
	)
	sum := sha256.Sum256([]byte(core))
	return hex.EncodeToString(sum[:])[:32]
}

// RecomputeHashes refreshes CrossPlatformID and DataFingerprint from the
// current core fields. These two fields are never assigned directly
// anywhere else.
func (r *Record) RecomputeHashes() {
	r.CrossPlatformID = CrossPlatformID(r.Title, r.Authors, r.ISBN)
	r.DataFingerprint = Fingerprint(r)
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
