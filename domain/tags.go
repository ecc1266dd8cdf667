package domain

import (
	"sort"
	"strings"
)

// NormalizeTags is the single canonical tag representation: trimmed,
// deduplicated, sorted names. Both row transformers and the write path
// funnel through it so no caller ever observes a backend-specific tag
// shape.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
