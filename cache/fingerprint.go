package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"goa.design/streampipe/agent"
	"goa.design/streampipe/message"
)

// fingerprintRequest is the canonical shape hashed into a cache key: the
// shared message.Registry codec encodes messages (so identical conversation
// content always serializes identically), and opts is marshaled as-is since
// agent.Options is already a plain, deterministically-ordered data shape
// (map keys sort alphabetically under encoding/json).
type fingerprintRequest struct {
	Messages []json.RawMessage `json:"messages"`
	Options  *agent.Options    `json:"options"`
}

// Fingerprint computes the cache key for (messages, opts): base64 of the
// SHA-256 digest of their canonical JSON encoding, per spec §4.9.
func Fingerprint(messages []message.Message, opts *agent.Options) (string, error) {
	encoded, err := message.EncodeAll(messages)
	if err != nil {
		return "", fmt.Errorf("cache: fingerprint messages: %w", err)
	}
	raw := make([]json.RawMessage, len(encoded))
	for i, e := range encoded {
		raw[i] = e
	}
	canonical, err := json.Marshal(fingerprintRequest{Messages: raw, Options: opts})
	if err != nil {
		return "", fmt.Errorf("cache: fingerprint options: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
