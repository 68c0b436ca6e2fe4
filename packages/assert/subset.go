package assert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// normalize round-trips a value through JSON so Go values and parsed bodies
// compare with the same types: numbers become float64, structs become maps.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// typeName names a normalized JSON value for diff messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// diff deep-compares two normalized values and describes the first
// structural difference. Extra keys in actual are a difference.
func diff(path string, expected, actual any) (string, bool) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Sprintf("at %s: expected object, got %s (%v)", path, typeName(actual), actual), false
		}
		for _, k := range sortedMapKeys(exp) {
			sub := path + "." + k
			av, present := act[k]
			if !present {
				return fmt.Sprintf("at %s: missing key %q", path, k), false
			}
			if msg, ok := diff(sub, exp[k], av); !ok {
				return msg, false
			}
		}
		for _, k := range sortedMapKeys(act) {
			if _, present := exp[k]; !present {
				return fmt.Sprintf("at %s: unexpected key %q (value %v)", path, k, act[k]), false
			}
		}
		return "", true
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return fmt.Sprintf("at %s: expected array, got %s (%v)", path, typeName(actual), actual), false
		}
		if len(exp) != len(act) {
			return fmt.Sprintf("at %s: expected array of length %d, got %d", path, len(exp), len(act)), false
		}
		for i := range exp {
			if msg, ok := diff(fmt.Sprintf("%s[%d]", path, i), exp[i], act[i]); !ok {
				return msg, false
			}
		}
		return "", true
	default:
		if reflect.DeepEqual(expected, actual) {
			return "", true
		}
		return fmt.Sprintf("at %s: expected %v, got %v", path, expected, actual), false
	}
}

// subsetDiff checks that every key and element present in expected matches
// actual; extras in actual are ignored. Arrays use in-order best-fit: each
// expected element is matched against the first remaining actual element it
// fits, so specified elements must keep their relative order but extra
// actual elements anywhere do not fail the match.
func subsetDiff(path string, expected, actual any) (string, bool) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Sprintf("at %s: expected object, got %s (%v)", path, typeName(actual), actual), false
		}
		for _, k := range sortedMapKeys(exp) {
			av, present := act[k]
			if !present {
				return fmt.Sprintf("at %s: missing key %q", path, k), false
			}
			if msg, ok := subsetDiff(path+"."+k, exp[k], av); !ok {
				return msg, false
			}
		}
		return "", true
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return fmt.Sprintf("at %s: expected array, got %s (%v)", path, typeName(actual), actual), false
		}
		next := 0
		for i, ev := range exp {
			matched := -1
			for j := next; j < len(act); j++ {
				if _, ok := subsetDiff(fmt.Sprintf("%s[%d]", path, i), ev, act[j]); ok {
					matched = j
					break
				}
			}
			if matched == -1 {
				return fmt.Sprintf("at %s: no element matches %s[%d] (%v)", path, path, i, ev), false
			}
			next = matched + 1
		}
		return "", true
	default:
		if reflect.DeepEqual(expected, actual) {
			return "", true
		}
		return fmt.Sprintf("at %s: expected %v, got %v", path, expected, actual), false
	}
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
