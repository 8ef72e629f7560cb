// Package registry derives canonical document identifiers, detects
// duplicate uploads, and persists the Document/Job ledger.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidDocID is returned when a caller-supplied doc_id fails the
// identifier regex enforced at every asset/document boundary.
var ErrInvalidDocID = errors.New("registry: invalid doc_id")

// docIDReadRe tolerates the legacy 8-64 char range on read paths; canonical
// writes always produce a full 64-char hex id. See spec §6 and §9's open
// question on the regex width.
var docIDReadRe = regexp.MustCompile(`^[a-f0-9]{8,64}$`)

// ValidateDocID enforces the read-path identifier regex and rejects any
// value that would escape an asset root via path traversal, mirroring the
// Clean+prefix-check idiom used for project/session IDs elsewhere in this
// codebase.
func ValidateDocID(docID string) (string, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" || strings.Contains(docID, "..") || strings.ContainsAny(docID, `/\`) {
		return "", ErrInvalidDocID
	}
	if filepath.Clean(docID) != docID {
		return "", ErrInvalidDocID
	}
	if !docIDReadRe.MatchString(docID) {
		return "", ErrInvalidDocID
	}
	return docID, nil
}

// DeriveDocID computes the canonical 64-hex-char doc_id for an upload.
// It is the SHA-256 of the given checksum string alone (the filename is not
// part of it), so identical uploads always produce identical ids (spec §4.12, §9).
//
// When the full content is available, checksum should be its SHA-256 hex
// digest; callers that only have a streaming upload (content not yet fully
// buffered) may fall back to hashing "filename+upload timestamp", which
// trades determinism-across-retries for availability — see FallbackDocID.
func DeriveDocID(checksum string) string {
	sum := sha256.Sum256([]byte(checksum))
	return hex.EncodeToString(sum[:])
}

// FallbackDocID derives a doc_id from filename and upload time when content
// cannot be hashed ahead of enqueue. Distinct from DeriveDocID's checksum
// path so two different uploads of the same filename at different times
// never collide.
func FallbackDocID(filename string, uploadTS time.Time) string {
	return DeriveDocID(fmt.Sprintf("%s+%d", filename, uploadTS.UnixNano()))
}

// Checksum returns the SHA-256 hex digest of content, used both to derive a
// canonical doc_id and to populate Document.Checksum for duplicate
// detection independent of doc_id width tolerance.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
