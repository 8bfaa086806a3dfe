// Package ir defines the domain value union shared by the codec, the key-path
// extractor and the cursor.
//
// Value is sealed: only the variants in value.go implement it, so a type
// switch over a Value is exhaustive. Documents are plain Go maps; use
// MarshalCanonical for any byte form that feeds a hash.
//
// Key design constraints:
//   - Null is explicit (Null{}), never a nil Value
//   - Canonical JSON is RFC 8785 (UTF-16 key order, NFC strings)
//   - Content hashes are SHA-256 with a versioned domain prefix
package ir
