// Package hashing fingerprints structured records into stable content hashes.
// The same logical payload always produces the same hash regardless of key
// order, which makes the hashes usable both as dedupe keys and as
// classification-cache keys.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonical returns the canonical JSON encoding of v: object keys sorted
// lexicographically, no insignificant whitespace, no HTML escaping.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	// Encoder appends a trailing newline that is not part of the encoding.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sum returns the lowercase hex SHA-256 digest of the canonical encoding of
// payload. Any JSON-representable payload hashes successfully; a cyclic or
// otherwise unencodable value is a caller bug and surfaces as an error.
func Sum(payload map[string]any) (string, error) {
	canonical, err := Canonical(payload)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}
