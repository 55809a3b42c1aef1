// Package jsonpath implements the small JSONPath subset understood by suite
// expectations: root field access ($.user.id), field-qualified array indexing
// (items[0].name), and root-level array indexing ($[0].field). Anything
// outside that subset is rejected rather than silently ignored.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// segment is one resolved piece of a path: an optional field name followed by
// an optional array index. A root-level index like $[0] has an empty field.
type segment struct {
	field    string
	index    int
	hasIndex bool
}

// Lookup resolves path against a JSON document and returns the matched value.
//
// The walk is segment by segment so a failure names the exact field or index
// that did not resolve, not just the whole path.
func Lookup(json, path string) (gjson.Result, error) {
	if !gjson.Valid(json) {
		return gjson.Result{}, fmt.Errorf("document is not valid JSON")
	}

	segments, err := parse(path)
	if err != nil {
		return gjson.Result{}, err
	}

	current := gjson.Parse(json)
	for _, seg := range segments {
		if seg.field != "" {
			next := current.Get(seg.field)
			if !next.Exists() {
				return gjson.Result{}, fmt.Errorf("field '%s' not found in JSON", seg.field)
			}
			current = next
		}
		if seg.hasIndex {
			next := current.Get(strconv.Itoa(seg.index))
			if !next.Exists() {
				return gjson.Result{}, fmt.Errorf("array index %d not found", seg.index)
			}
			current = next
		}
	}

	return current, nil
}

// parse splits a path into segments, rejecting syntax outside the supported
// subset (wildcards, filters, quoted keys, recursive descent).
func parse(path string) ([]segment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty JSONPath expression")
	}

	rest := strings.TrimPrefix(path, "$")
	var segments []segment

	// Root-level array index: $[0] or $[0].field
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, fmt.Errorf("unsupported JSONPath syntax: %s", path)
		}
		index, err := strconv.Atoi(rest[1:end])
		if err != nil || index < 0 {
			return nil, fmt.Errorf("invalid array index '%s' in path %s", rest[1:end], path)
		}
		segments = append(segments, segment{index: index, hasIndex: true})
		rest = rest[end+1:]
	}

	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		if len(segments) == 0 {
			return nil, fmt.Errorf("unsupported JSONPath syntax: %s", path)
		}
		return segments, nil
	}

	for _, part := range strings.Split(rest, ".") {
		if part == "" {
			continue
		}

		seg := segment{}
		if open := strings.Index(part, "["); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("unsupported JSONPath syntax: %s", path)
			}
			indexStr := part[open+1 : len(part)-1]
			index, err := strconv.Atoi(indexStr)
			if err != nil || index < 0 {
				return nil, fmt.Errorf("invalid array index '%s' in path %s", indexStr, path)
			}
			seg.index = index
			seg.hasIndex = true
			part = part[:open]
		}

		if part != "" && !isFieldName(part) {
			return nil, fmt.Errorf("unsupported JSONPath syntax: %s", path)
		}
		seg.field = part

		if seg.field == "" && !seg.hasIndex {
			return nil, fmt.Errorf("unsupported JSONPath syntax: %s", path)
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

// isFieldName reports whether s is a plain word-character field name.
func isFieldName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
