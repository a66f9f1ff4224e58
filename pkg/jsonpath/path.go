package jsonpath

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Query is a compiled dotted-path predicate, reusable across many documents.
type Query struct {
	path   string
	exists *gojq.Code
	value  *gojq.Code
}

// Compile parses a dotted path ("a.b.c") into a reusable Query. An empty path
// is rejected -- restrictions always target some field.
func Compile(path string) (*Query, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonpath: empty path")
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("jsonpath: empty segment in path %q", path)
		}
	}

	parent := "."
	if len(segments) > 1 {
		parent = "." + strings.Join(segments[:len(segments)-1], ".")
	}
	last := segments[len(segments)-1]

	// has(...) on a non-object (e.g. the parent is missing/null/a scalar)
	// raises an error in jq semantics; the trailing "?" converts that error
	// into "no output", which Exists treats as "does not exist".
	existsFilter := fmt.Sprintf("(%s | has(%s))?", parent, strconvQuote(last))
	existsQuery, err := gojq.Parse(existsFilter)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: compiling existence filter for %q: %w", path, err)
	}
	existsCode, err := gojq.Compile(existsQuery)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: compiling existence filter for %q: %w", path, err)
	}

	valueFilter := "." + strings.Join(segments, ".")
	valueQuery, err := gojq.Parse(valueFilter)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: compiling value filter for %q: %w", path, err)
	}
	valueCode, err := gojq.Compile(valueQuery)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: compiling value filter for %q: %w", path, err)
	}

	return &Query{path: path, exists: existsCode, value: valueCode}, nil
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Exists reports whether Path is present within doc (the result of
// json.Unmarshal into an `any`).
func (q *Query) Exists(doc any) bool {
	iter := q.exists.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if _, isErr := v.(error); isErr {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Value returns the value at Path, and whether Path resolved to any result
// at all (as opposed to the filter erroring out entirely).
func (q *Query) Value(doc any) (any, bool) {
	iter := q.value.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if _, isErr := v.(error); isErr {
		return nil, false
	}
	return v, true
}

// MatchesValue reports whether the canonical JSON encoding of the value at
// Path equals want.
func (q *Query) MatchesValue(doc any, want []byte) bool {
	v, ok := q.Value(doc)
	if !ok {
		return false
	}
	got, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return jsonEqual(got, want)
}

// jsonEqual compares two JSON encodings for semantic equality by
// round-tripping through decode, so that e.g. {"a":1,"b":2} and
// {"b":2,"a":1} compare equal, and numeric formatting differences don't
// produce false mismatches.
func jsonEqual(a, b []byte) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return string(a) == string(b)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return string(a) == string(b)
	}
	return deepEqualJSON(av, bv)
}

func deepEqualJSON(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqualJSON(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
