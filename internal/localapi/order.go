package localapi

import (
	"cmp"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/keypath"
	"github.com/roach88/docwire/internal/scalar"
	"github.com/roach88/docwire/internal/store"
)

// entry is one stored document with its decoded form.
type entry struct {
	rec        store.Record
	doc        ir.Document
	similarity *float64
}

// sortSpec is a parsed sort clause: either field keys or a query vector.
type sortSpec struct {
	fields []sortField
	vector scalar.Vector
}

type sortField struct {
	segments []string
	desc     bool
}

// parseSort reads a wire sort clause. Field keys apply in alphabetical
// order. A "$vector" key must be alone and orders by similarity.
func parseSort(raw map[string]any) (sortSpec, error) {
	var spec sortSpec
	if len(raw) == 0 {
		return spec, nil
	}
	if vecRaw, ok := raw[doccodec.KeyVector]; ok {
		if len(raw) != 1 {
			return spec, apiErrorf(codeInvalidSort, "%s sort cannot be combined with other keys", doccodec.KeyVector)
		}
		v, err := doccodec.Postprocess(map[string]any{doccodec.KeyVector: vecRaw}, doccodec.Options{})
		if err != nil {
			return spec, apiErrorf(codeInvalidSort, "sort vector: %v", err)
		}
		vec, ok := v.(ir.Document)[doccodec.KeyVector].(ir.Vector)
		if !ok || len(vec) == 0 {
			return spec, apiErrorf(codeInvalidSort, "sort vector must be a non-empty array of numbers")
		}
		spec.vector = scalar.Vector(vec)
		return spec, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		segments, err := keypath.Parse(k)
		if err != nil {
			return spec, apiErrorf(codeInvalidSort, "sort path %q: %v", k, err)
		}
		dir, err := intOf(raw[k])
		if err != nil || (dir != 1 && dir != -1) {
			return spec, apiErrorf(codeInvalidSort, "sort direction of %q must be 1 or -1", k)
		}
		spec.fields = append(spec.fields, sortField{segments: segments, desc: dir == -1})
	}
	return spec, nil
}

// apply orders entries in place. Without a sort clause insertion order is
// kept. A vector sort drops documents that have no comparable vector.
func (s sortSpec) apply(entries []*entry) []*entry {
	if s.vector != nil {
		kept := entries[:0]
		for _, e := range entries {
			vec, ok := e.doc[doccodec.KeyVector].(ir.Vector)
			if !ok || len(vec) != len(s.vector) {
				continue
			}
			sim := similarity(s.vector, scalar.Vector(vec))
			e.similarity = &sim
			kept = append(kept, e)
		}
		slices.SortStableFunc(kept, func(a, b *entry) int {
			return cmp.Compare(*b.similarity, *a.similarity)
		})
		return kept
	}
	if len(s.fields) == 0 {
		return entries
	}
	slices.SortStableFunc(entries, func(a, b *entry) int {
		for _, f := range s.fields {
			c := compareValues(firstValue(a.doc, f.segments), firstValue(b.doc, f.segments))
			if f.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return entries
}

// similarity is cosine similarity rescaled to [0, 1].
func similarity(a, b scalar.Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return (1 + dot/(math.Sqrt(na)*math.Sqrt(nb))) / 2
}

func firstValue(doc ir.Document, segments []string) ir.Value {
	for v := range keypath.Extract(doc, segments) {
		return v
	}
	return nil
}

// typeRank orders values of different kinds: missing and null first, then
// numbers, text, booleans, timestamps and everything else.
func typeRank(v ir.Value) int {
	switch v.(type) {
	case nil, ir.Null:
		return 0
	case ir.Int, ir.Float:
		return 1
	case ir.Text:
		return 2
	case ir.Bool:
		return 3
	case ir.Timestamp:
		return 4
	}
	return 5
}

func compareValues(a, b ir.Value) int {
	if c := cmp.Compare(typeRank(a), typeRank(b)); c != 0 {
		return c
	}
	switch x := a.(type) {
	case ir.Int, ir.Float:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmp.Compare(fa, fb)
	case ir.Text:
		return strings.Compare(string(x), string(b.(ir.Text)))
	case ir.Bool:
		y := b.(ir.Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		}
		return 1
	case ir.Timestamp:
		return cmp.Compare(int64(x), int64(b.(ir.Timestamp)))
	}
	return 0
}

// projection is a parsed projection clause.
type projection struct {
	include bool
	paths   [][]string
	dropID  bool
	all     bool
}

func parseProjection(raw map[string]any) (projection, error) {
	p := projection{all: len(raw) == 0}
	if p.all {
		return p, nil
	}
	mode := 0
	for k, v := range raw {
		on, err := truthy(v)
		if err != nil {
			return p, apiErrorf(codeInvalidProject, "projection of %q: %v", k, err)
		}
		switch k {
		case "_id":
			p.dropID = !on
			continue
		case "*":
			if !on {
				return p, apiErrorf(codeInvalidProject, `"*": 0 is not supported`)
			}
			p.all = true
			continue
		}
		segments, err := keypath.Parse(k)
		if err != nil {
			return p, apiErrorf(codeInvalidProject, "projection path %q: %v", k, err)
		}
		want := -1
		if on {
			want = 1
		}
		if mode != 0 && mode != want {
			return p, apiErrorf(codeInvalidProject, "projection mixes inclusions and exclusions")
		}
		mode = want
		p.paths = append(p.paths, segments)
	}
	p.include = mode == 1
	if mode == 0 {
		p.all = true
	}
	return p, nil
}

func truthy(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, err := intOf(v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// apply returns the projected copy of a wire document.
func (p projection) apply(doc map[string]any) (map[string]any, error) {
	var out map[string]any
	switch {
	case p.include && !p.all:
		picked := map[string]any{}
		for _, segs := range p.paths {
			if v, ok := lookup(doc, segs); ok {
				setPath(picked, segs, v)
			}
		}
		if id, ok := doc["_id"]; ok {
			picked["_id"] = id
		}
		if err := deepcopy.Copy(&out, &picked); err != nil {
			return nil, err
		}
	default:
		if err := deepcopy.Copy(&out, &doc); err != nil {
			return nil, err
		}
		if !p.all {
			for _, segs := range p.paths {
				unsetPath(out, segs)
			}
		}
	}
	if p.dropID {
		delete(out, "_id")
	}
	return out, nil
}
