package localapi

import (
	"slices"
	"sort"
	"strings"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/keypath"
)

// predicate reports whether a decoded document matches.
type predicate func(doc ir.Document) bool

func matchAll(ir.Document) bool { return true }

// compileFilter turns a wire filter into a predicate. Top-level entries are
// combined with AND.
func compileFilter(filter map[string]any) (predicate, error) {
	if len(filter) == 0 {
		return matchAll, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]predicate, 0, len(keys))
	for _, k := range keys {
		p, err := compileEntry(k, filter[k])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return func(doc ir.Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}, nil
}

func compileEntry(key string, operand any) (predicate, error) {
	switch key {
	case "$and", "$or":
		return compileLogical(key, operand)
	}
	if strings.HasPrefix(key, "$") {
		return nil, apiErrorf(codeInvalidFilter, "unsupported filter operator %q", key)
	}

	segments, err := keypath.Parse(key)
	if err != nil {
		return nil, apiErrorf(codeInvalidFilter, "filter path %q: %v", key, err)
	}
	if err := keypath.Validate(segments); err != nil {
		return nil, apiErrorf(codeInvalidFilter, "filter path %q: %v", key, err)
	}

	ops, ok := operatorMap(operand)
	if !ok {
		want, err := literal(operand)
		if err != nil {
			return nil, err
		}
		return func(doc ir.Document) bool {
			return anyEqual(doc, segments, want)
		}, nil
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	conds := make([]predicate, 0, len(ops))
	for _, name := range names {
		c, err := compileCondition(segments, name, ops[name])
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return func(doc ir.Document) bool {
		for _, c := range conds {
			if !c(doc) {
				return false
			}
		}
		return true
	}, nil
}

func compileLogical(op string, operand any) (predicate, error) {
	items, ok := operand.([]any)
	if !ok || len(items) == 0 {
		return nil, apiErrorf(codeInvalidFilter, "%s needs a non-empty array", op)
	}
	preds := make([]predicate, len(items))
	for i, item := range items {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, apiErrorf(codeInvalidFilter, "%s[%d] is not an object", op, i)
		}
		p, err := compileFilter(sub)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	if op == "$and" {
		return func(doc ir.Document) bool {
			for _, p := range preds {
				if !p(doc) {
					return false
				}
			}
			return true
		}, nil
	}
	return func(doc ir.Document) bool {
		for _, p := range preds {
			if p(doc) {
				return true
			}
		}
		return false
	}, nil
}

func compileCondition(segments []string, op string, operand any) (predicate, error) {
	switch op {
	case "$eq", "$ne":
		want, err := literal(operand)
		if err != nil {
			return nil, err
		}
		if op == "$eq" {
			return func(doc ir.Document) bool { return anyEqual(doc, segments, want) }, nil
		}
		return func(doc ir.Document) bool { return !anyEqual(doc, segments, want) }, nil

	case "$in", "$nin":
		items, ok := operand.([]any)
		if !ok {
			return nil, apiErrorf(codeInvalidFilter, "%s needs an array", op)
		}
		wants := make([]ir.Value, len(items))
		for i, item := range items {
			v, err := literal(item)
			if err != nil {
				return nil, err
			}
			wants[i] = v
		}
		in := func(doc ir.Document) bool {
			for _, w := range wants {
				if anyEqual(doc, segments, w) {
					return true
				}
			}
			return false
		}
		if op == "$in" {
			return in, nil
		}
		return func(doc ir.Document) bool { return !in(doc) }, nil

	case "$exists":
		want, ok := operand.(bool)
		if !ok {
			return nil, apiErrorf(codeInvalidFilter, "$exists needs a boolean")
		}
		return func(doc ir.Document) bool {
			found := false
			for range keypath.Extract(doc, segments) {
				found = true
				break
			}
			return found == want
		}, nil
	}
	return nil, apiErrorf(codeInvalidFilter, "unsupported filter operator %q", op)
}

// operatorMap returns operand as an operator object: a map whose keys all
// start with "$" and that is not a reserved scalar wrapper.
func operatorMap(operand any) (map[string]any, bool) {
	m, ok := operand.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	if len(m) == 1 {
		for k := range m {
			if slices.Contains(reservedKeys, k) {
				return nil, false
			}
		}
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

var reservedKeys = []string{
	doccodec.KeyDate,
	doccodec.KeyUUID,
	doccodec.KeyObjectID,
	doccodec.KeyBinary,
}

func literal(wire any) (ir.Value, error) {
	v, err := doccodec.Postprocess(wire, doccodec.Options{})
	if err != nil {
		return nil, apiErrorf(codeInvalidFilter, "filter value: %v", err)
	}
	return v, nil
}

// anyEqual reports whether some value reachable along segments equals want.
func anyEqual(doc ir.Document, segments []string, want ir.Value) bool {
	for got := range keypath.Extract(doc, segments) {
		if valuesEqual(got, want) {
			return true
		}
	}
	return false
}

// valuesEqual is ir.Equal with integers and floats compared by value.
func valuesEqual(a, b ir.Value) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
		return false
	}
	if _, isNull := a.(ir.Null); isNull || a == nil {
		_, bNull := b.(ir.Null)
		return bNull || b == nil
	}
	return ir.Equal(a, b)
}

func number(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	}
	return 0, false
}
