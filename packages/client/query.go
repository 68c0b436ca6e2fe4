package client

import (
	"fmt"
	"net/url"
	"sort"
)

// appendQuery flattens a value into bracket-notation query parameters:
// nested maps become user[name]=..., slices become tags[0]=..., tags[1]=...
// Map keys are visited in sorted order so rendering is deterministic.
func appendQuery(values url.Values, key string, v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			appendQuery(values, key+"["+k+"]", val[k])
		}
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendQuery(values, key+"["+k+"]", val[k])
		}
	case []any:
		for i, item := range val {
			appendQuery(values, fmt.Sprintf("%s[%d]", key, i), item)
		}
	case []string:
		for i, item := range val {
			appendQuery(values, fmt.Sprintf("%s[%d]", key, i), item)
		}
	default:
		values.Add(key, fmt.Sprintf("%v", val))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
