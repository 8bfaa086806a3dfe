// Package keypath parses dotted field paths and extracts the values they
// reach inside a document, unrolling lists along the way.
package keypath

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/roach88/docwire/internal/ir"
)

var (
	ErrEmptyPath        = errors.New("field path cannot be empty")
	ErrEmptySegment     = errors.New("field path segments cannot be empty")
	ErrUnprojectableKey = errors.New("field path cannot be empty or start with a list index")
)

// Parse splits a dotted path into segments. Inside a segment "&." is a
// literal dot and "&&" a literal ampersand; any other use of "&" is an error.
func Parse(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	var (
		segments []string
		cur      strings.Builder
	)
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			segments = append(segments, cur.String())
			cur.Reset()
		case '&':
			if i+1 >= len(path) || (path[i+1] != '.' && path[i+1] != '&') {
				return nil, fmt.Errorf("invalid escape at offset %d in field path %q", i, path)
			}
			cur.WriteByte(path[i+1])
			i++
		default:
			cur.WriteByte(c)
		}
	}
	segments = append(segments, cur.String())
	if err := Validate(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// Escape joins segments into a dotted path, escaping "&" and ".".
func Escape(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		s = strings.ReplaceAll(s, "&", "&&")
		escaped[i] = strings.ReplaceAll(s, ".", "&.")
	}
	return strings.Join(escaped, ".")
}

// Validate rejects an empty path or a path with an empty segment.
func Validate(segments []string) error {
	if len(segments) == 0 {
		return ErrEmptyPath
	}
	for _, s := range segments {
		if s == "" {
			return ErrEmptySegment
		}
	}
	return nil
}

// IsIndexCandidate reports whether seg is a non-negative integer written in
// canonical decimal form: "0" and "12", but not "02", "-1" or "+1".
func IsIndexCandidate(seg string) bool {
	_, ok := indexOf(seg)
	return ok
}

func indexOf(seg string) (int, bool) {
	if seg == "" || (len(seg) > 1 && seg[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Extract lazily yields the values reachable from doc along segments. A
// mapping is indexed by the literal segment. A list or set is indexed when
// the segment is an index candidate and is otherwise unrolled: the same
// remaining path applies to each element. At the end of the path a list or
// set yields its elements. Missing keys and out-of-range indexes yield
// nothing. Callers are expected to Validate segments first.
func Extract(doc ir.Value, segments []string) iter.Seq[ir.Value] {
	return func(yield func(ir.Value) bool) {
		walk(doc, segments, yield)
	}
}

// ExtractAll collects Extract after validating segments.
func ExtractAll(doc ir.Value, segments []string) ([]ir.Value, error) {
	if err := Validate(segments); err != nil {
		return nil, err
	}
	var out []ir.Value
	for v := range Extract(doc, segments) {
		out = append(out, v)
	}
	return out, nil
}

// walk returns false once yield asks to stop.
func walk(v ir.Value, segments []string, yield func(ir.Value) bool) bool {
	if len(segments) == 0 {
		if items, ok := elements(v); ok {
			for _, item := range items {
				if !yield(item) {
					return false
				}
			}
			return true
		}
		return yield(v)
	}

	seg, rest := segments[0], segments[1:]
	switch val := v.(type) {
	case ir.Document:
		if next, ok := val[seg]; ok {
			return walk(next, rest, yield)
		}
		return true
	case ir.Map:
		if next, ok := val.Get(ir.Text(seg)); ok {
			return walk(next, rest, yield)
		}
		return true
	}

	items, ok := elements(v)
	if !ok {
		return true
	}
	if idx, ok := indexOf(seg); ok {
		if idx < len(items) {
			return walk(items[idx], rest, yield)
		}
		return true
	}
	for _, item := range items {
		if !walk(item, segments, yield) {
			return false
		}
	}
	return true
}

func elements(v ir.Value) ([]ir.Value, bool) {
	switch val := v.(type) {
	case ir.List:
		return val, true
	case ir.Set:
		return val, true
	}
	return nil, false
}

// SafeProjectionKey returns the escaped prefix of segments that stops
// before the first index candidate. Past that point a projection could drop
// fields that auto-unrolling would otherwise reach, so the caller projects
// the prefix and extracts the rest locally.
func SafeProjectionKey(segments []string) (string, error) {
	if err := Validate(segments); err != nil {
		return "", err
	}
	var prefix []string
	for _, s := range segments {
		if IsIndexCandidate(s) {
			break
		}
		prefix = append(prefix, s)
	}
	if len(prefix) == 0 {
		return "", ErrUnprojectableKey
	}
	return Escape(prefix...), nil
}

// ShallowProjectionKey returns only the first segment of segments, escaped.
// Table columns cannot be projected any deeper, so the rest is extracted
// locally.
func ShallowProjectionKey(segments []string) (string, error) {
	if err := Validate(segments); err != nil {
		return "", err
	}
	if IsIndexCandidate(segments[0]) {
		return "", ErrUnprojectableKey
	}
	return Escape(segments[0]), nil
}
