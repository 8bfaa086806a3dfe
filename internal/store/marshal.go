package store

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/roach88/docwire/internal/ir"
)

// marshalBody converts a wire document to canonical JSON TEXT and its
// content hash.
func marshalBody(body map[string]any) (string, string, error) {
	data, err := ir.MarshalCanonical(body)
	if err != nil {
		return "", "", fmt.Errorf("marshal body: %w", err)
	}
	hash, err := ir.DocumentHash(body)
	if err != nil {
		return "", "", fmt.Errorf("hash body: %w", err)
	}
	return string(data), hash, nil
}

// IDKey returns the canonical JSON of an _id value, the form ids are
// compared in.
func IDKey(id any) (string, error) {
	data, err := ir.MarshalCanonical(id)
	if err != nil {
		return "", fmt.Errorf("marshal _id: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses canonical JSON TEXT back to a wire document.
// Numbers stay json.Number so integers above 2^53 keep their precision.
func unmarshalBody(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("unmarshal body: %w", err)
	}
	return body, nil
}
