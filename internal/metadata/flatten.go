package metadata

import (
	"fmt"
	"strconv"
)

// Flatten converts nested metadata into a single-level mapping for processors
// that only accept scalar metadata values. Nested map and slice values are
// placed under dot-joined path keys (slice elements use their index as a
// segment); top-level scalars keep their original key.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch typed := value.(type) {
		case map[string]any:
			walk(out, key, typed)
		case []any:
			walkSlice(out, key, typed)
		default:
			out[key] = value
		}
	}
	return out
}

// Stringify renders every value of a flat mapping as a string, the form the
// processor's form-encoded API expects.
func Stringify(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch typed := value.(type) {
		case string:
			out[key] = typed
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(typed)
		}
	}
	return out
}

func walk(out map[string]any, prefix string, data map[string]any) {
	for key, value := range data {
		path := prefix + "." + key
		switch typed := value.(type) {
		case map[string]any:
			walk(out, path, typed)
		case []any:
			walkSlice(out, path, typed)
		default:
			out[path] = value
		}
	}
}

func walkSlice(out map[string]any, prefix string, data []any) {
	for i, value := range data {
		path := prefix + "." + strconv.Itoa(i)
		switch typed := value.(type) {
		case map[string]any:
			walk(out, path, typed)
		case []any:
			walkSlice(out, path, typed)
		default:
			out[path] = value
		}
	}
}
