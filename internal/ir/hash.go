package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDistinct = "docwire/distinct/v1"
	DomainDocument = "docwire/document/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash identifies a wire value by content: structurally equal values
// (same keys in any order, same list order) hash equal.
// Used as the dedup key by distinct.
//
// Canonical JSON prints the float 1.0 as 1, so the hash also covers the
// kind of every number in the tree: 1 and 1.0 hash apart.
func ContentHash(wire any) (string, error) {
	canonical, err := MarshalCanonical(wire)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	canonical = append(canonical, 0x00)
	canonical = appendNumberKinds(canonical, wire)
	return hashWithDomain(DomainDistinct, canonical), nil
}

// appendNumberKinds appends 'i' or 'f' for each number in v, visiting
// object members in sorted key order.
func appendNumberKinds(dst []byte, v any) []byte {
	switch val := v.(type) {
	case int, int64:
		return append(dst, 'i')
	case float32, float64:
		return append(dst, 'f')
	case json.Number:
		if strings.ContainsAny(string(val), ".eE") {
			return append(dst, 'f')
		}
		return append(dst, 'i')
	case []float64:
		for range val {
			dst = append(dst, 'f')
		}
	case []any:
		for _, item := range val {
			dst = appendNumberKinds(dst, item)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			dst = appendNumberKinds(dst, val[k])
		}
	}
	return dst
}

// DocumentHash identifies a stored wire document. The local store keeps it
// next to each row so replace operations can detect no-op writes.
func DocumentHash(doc map[string]any) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("DocumentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(wire any) string {
	h, err := ContentHash(wire)
	if err != nil {
		panic(err)
	}
	return h
}
