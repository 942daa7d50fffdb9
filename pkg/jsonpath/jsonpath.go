// Package jsonpath evaluates a small JSONPath subset against response bodies.
package jsonpath

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Extract extracts a value from a JSON document using a JSONPath expression.
// Null values are returned as "null".
func Extract(body []byte, path string) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(body, convertToGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// Mismatch describes one path whose value differs from the expectation.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string
	Err      error
}

func (m Mismatch) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: %v", m.Path, m.Err)
	}
	return fmt.Sprintf("%s: expected %q, got %q", m.Path, m.Expected, m.Actual)
}

// Equals compares each path in expected against body and returns the
// mismatches, sorted by path. An empty result means every path matched.
func Equals(body []byte, expected map[string]string) []Mismatch {
	paths := make([]string, 0, len(expected))
	for p := range expected {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []Mismatch
	for _, p := range paths {
		want := expected[p]
		got, err := Extract(body, p)
		if err != nil {
			out = append(out, Mismatch{Path: p, Expected: want, Err: err})
			continue
		}
		if got != want {
			out = append(out, Mismatch{Path: p, Expected: want, Actual: got})
		}
	}
	return out
}

// convertToGjsonPath converts a JSONPath expression to gjson syntax.
//
//	$.results[0].name -> results.0.name
//	$['name']         -> name
func convertToGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	path = strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "", "[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(path, ".")
}
