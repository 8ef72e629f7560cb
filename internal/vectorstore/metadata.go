package vectorstore

import (
	"fmt"
	"sort"
	"strings"
)

// metadataStringCap truncates any single flattened metadata value; the
// reference system documents this as "overlong strings truncated to a
// documented cap" without naming the number, so this module fixes it at a
// generous but bounded size.
const metadataStringCap = 8192

// SanitizeMetadata flattens an arbitrary, possibly nested metadata map into
// the flat string-keyed, string-valued record the vector-store payload
// boundary accepts (spec §4.2, §9 "runtime reflection on metadata dicts").
// Nested maps are joined with ".", lists are stringified, nulls are dropped.
func SanitizeMetadata(in map[string]any) map[string]string {
	out := make(map[string]string)
	flatten("", in, out)
	return out
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			flatten(key, val, out)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				if item == nil {
					continue
				}
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			sort.Strings(parts)
			out[key] = truncate(strings.Join(parts, ","))
		default:
			out[key] = truncate(fmt.Sprintf("%v", val))
		}
	}
}

func truncate(s string) string {
	if len(s) <= metadataStringCap {
		return s
	}
	return s[:metadataStringCap]
}
