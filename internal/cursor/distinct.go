package cursor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/keypath"
)

// Distinct returns the distinct values found at key across all documents
// matched by the cursor's filter, in order of first appearance.
//
// It runs on a fresh clone projected to the safe prefix of key (the first
// segment only for tables), so the receiver's position and state are
// untouched. Values are compared by content hash, which keeps integers and
// integral floats apart.
func (c *Cursor) Distinct(ctx context.Context, key string) ([]ir.Value, error) {
	segments, err := keypath.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("distinct %q: %w", key, err)
	}
	project := keypath.SafeProjectionKey
	if c.codec.Mode == doccodec.ModeTable {
		project = keypath.ShallowProjectionKey
	}
	safeKey, err := project(segments)
	if err != nil {
		return nil, fmt.Errorf("distinct %q: %w", key, err)
	}

	d, err := c.Clone()
	if err != nil {
		return nil, err
	}
	d.projection = map[string]any{safeKey: true}
	d.mapper = nil
	d.includeSimilarity = false
	d.includeSortVector = false

	hashOpts := doccodec.Options{Mode: c.codec.Mode}
	seen := make(map[string]struct{})
	var out []ir.Value
	for doc, err := range d.All(ctx) {
		if err != nil {
			return nil, err
		}
		for v := range keypath.Extract(doc, segments) {
			h, err := contentHash(v, hashOpts)
			if err != nil {
				return nil, fmt.Errorf("distinct %q: %w", key, err)
			}
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, v)
		}
	}
	slog.Debug("distinct complete",
		"collection", c.collection,
		"key", key,
		"projection", safeKey,
		"values", len(out),
		"documents", d.Consumed())
	return out, nil
}

// contentHash hashes the wire form of v, so values that serialize alike
// are equal.
func contentHash(v ir.Value, opts doccodec.Options) (string, error) {
	wire, err := doccodec.Preprocess(v, opts)
	if err != nil {
		return "", err
	}
	return ir.ContentHash(wire)
}
