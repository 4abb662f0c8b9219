package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// OutcomeHash computes the SHA-256 digest of the canonical form of an
// outcome payload. Canonicalization is a JSON round-trip: object keys
// come out sorted and insignificant whitespace is dropped, so two
// payloads that differ only in formatting hash identically. A nil or
// empty payload hashes as JSON null.
func OutcomeHash(outcome json.RawMessage) (string, error) {
	canonical, err := canonicalize(outcome)
	if err != nil {
		return "", fmt.Errorf("canonicalize outcome: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
