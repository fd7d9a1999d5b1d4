package normalize

import "strings"

// lookup resolves a dotted path like "data.id" against a decoded JSON map.
// The second return is false when any segment is missing.
func lookup(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}

	segments := strings.Split(path, ".")
	current := any(m)
	for _, segment := range segments {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// firstString walks an ordered list of dotted paths and returns the first
// non-empty string value found.
func firstString(m map[string]any, paths []string) string {
	for _, path := range paths {
		if v, ok := lookup(m, path); ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) int {
	if f, ok := asFloat(v); ok {
		return int(f)
	}
	return 0
}

func stringField(m map[string]any, key string) string {
	return asString(m[key])
}

func floatField(m map[string]any, key string) *float64 {
	if f, ok := asFloat(m[key]); ok {
		return &f
	}
	return nil
}

func intField(m map[string]any, key string) int {
	return asInt(m[key])
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}
