package localapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tiendc/go-deepcopy"

	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/keypath"
)

// updateOps is a parsed update clause, operator to path to operand.
type updateOps map[string]map[string]any

var supportedUpdates = map[string]bool{
	"$set":         true,
	"$unset":       true,
	"$inc":         true,
	"$push":        true,
	"$setOnInsert": true,
}

func parseUpdate(raw map[string]any) (updateOps, error) {
	if len(raw) == 0 {
		return nil, apiErrorf(codeInvalidUpdate, "update clause is empty")
	}
	ops := updateOps{}
	for op, v := range raw {
		if !supportedUpdates[op] {
			return nil, apiErrorf(codeInvalidUpdate, "unsupported update operator %q", op)
		}
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, apiErrorf(codeInvalidUpdate, "%s needs an object", op)
		}
		for path := range fields {
			if path == "_id" || strings.HasPrefix(path, "_id.") {
				return nil, apiErrorf(codeInvalidUpdate, "%s cannot modify _id", op)
			}
			if _, err := keypath.Parse(path); err != nil {
				return nil, apiErrorf(codeInvalidUpdate, "%s path %q: %v", op, path, err)
			}
		}
		ops[op] = fields
	}
	return ops, nil
}

// apply mutates doc. $setOnInsert only runs when inserting.
func (u updateOps) apply(doc map[string]any, inserting bool) error {
	order := []string{"$setOnInsert", "$set", "$unset", "$inc", "$push"}
	for _, op := range order {
		fields, ok := u[op]
		if !ok || (op == "$setOnInsert" && !inserting) {
			continue
		}
		paths := make([]string, 0, len(fields))
		for p := range fields {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			segs, _ := keypath.Parse(p)
			operand := fields[p]
			switch op {
			case "$set", "$setOnInsert":
				setPath(doc, segs, operand)
			case "$unset":
				unsetPath(doc, segs)
			case "$inc":
				cur, found := lookup(doc, segs)
				if !found {
					cur = int64(0)
				}
				sum, err := addNumbers(cur, operand)
				if err != nil {
					return apiErrorf(codeInvalidUpdate, "$inc %q: %v", p, err)
				}
				setPath(doc, segs, sum)
			case "$push":
				cur, found := lookup(doc, segs)
				if !found {
					setPath(doc, segs, []any{operand})
					continue
				}
				list, ok := cur.([]any)
				if !ok {
					return apiErrorf(codeInvalidUpdate, "$push %q: target is not an array", p)
				}
				setPath(doc, segs, append(list, operand))
			}
		}
	}
	return nil
}

// addNumbers adds two wire numbers, keeping integers exact.
func addNumbers(a, b any) (any, error) {
	va, err := ir.From(a)
	if err != nil {
		return nil, err
	}
	vb, err := ir.From(b)
	if err != nil {
		return nil, err
	}
	ia, aInt := va.(ir.Int)
	ib, bInt := vb.(ir.Int)
	if aInt && bInt {
		return int64(ia) + int64(ib), nil
	}
	fa, ok := number(va)
	if !ok {
		return nil, fmt.Errorf("%s is not a number", ir.TypeName(va))
	}
	fb, ok := number(vb)
	if !ok {
		return nil, fmt.Errorf("%s is not a number", ir.TypeName(vb))
	}
	return fa + fb, nil
}

// lookup follows segments through nested objects only.
func lookup(doc map[string]any, segs []string) (any, bool) {
	var cur any = doc
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes v at segs, creating or replacing intermediate objects.
func setPath(doc map[string]any, segs []string, v any) {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[s] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

func unsetPath(doc map[string]any, segs []string) {
	cur := doc
	for _, s := range segs[:len(segs)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// seedFromFilter builds the document an upsert starts from: the top-level
// equality conditions of filter, deep-copied.
func seedFromFilter(filter map[string]any) (map[string]any, error) {
	seed := map[string]any{}
	for k, v := range filter {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if _, isOp := operatorMap(v); isOp {
			if m := v.(map[string]any); len(m) == 1 && m["$eq"] != nil {
				v = m["$eq"]
			} else {
				continue
			}
		}
		segs, err := keypath.Parse(k)
		if err != nil {
			continue
		}
		setPath(seed, segs, v)
	}
	var doc map[string]any
	if err := deepcopy.Copy(&doc, &seed); err != nil {
		return nil, err
	}
	return doc, nil
}
