package model

import "strings"

// HashTags renders tags as "#tag" labels: blanks are dropped, inner spaces
// become underscores, and duplicates are removed case-insensitively keeping
// the first spelling. The stored slice is not modified.
func HashTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		s := strings.TrimSpace(tag)
		if s == "" {
			continue
		}
		s = strings.ReplaceAll(s, " ", "_")
		if !strings.HasPrefix(s, "#") {
			s = "#" + s
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
