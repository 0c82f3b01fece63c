package textutil

import "strings"

// NormalizeStringMap returns a copy of values with surrounding whitespace
// stripped from keys and values. Entries whose key trims to nothing are
// dropped, and an empty result collapses to nil so callers can treat the
// metadata field as absent.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
