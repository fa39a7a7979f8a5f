package prepare

import (
	"strings"
)

// serviceInterests are interests owned by the specialized dining and
// lodging tasks. They are removed from every payload's interest list.
var serviceInterests = map[string]bool{
	"restaurant":    true,
	"restaurants":   true,
	"food":          true,
	"dining":        true,
	"gastronomy":    true,
	"hotel":         true,
	"hotels":        true,
	"lodging":       true,
	"accommodation": true,
}

// IsServiceInterest reports whether an interest belongs to a service category.
func IsServiceInterest(interest string) bool {
	return serviceInterests[strings.ToLower(strings.TrimSpace(interest))]
}

// FilterInterests drops service categories, blanks and duplicates while
// keeping the original order.
func FilterInterests(interests []string) []string {
	seen := make(map[string]bool, len(interests))
	out := make([]string, 0, len(interests))
	for _, in := range interests {
		in = strings.TrimSpace(in)
		key := strings.ToLower(in)
		if in == "" || seen[key] || IsServiceInterest(in) {
			continue
		}
		seen[key] = true
		out = append(out, in)
	}
	return out
}

// whitelist copies only the named fields that hold a value.
func whitelist(fields map[string]any, names []string) map[string]any {
	if len(names) == 0 || len(fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(names))
	for _, n := range names {
		if v, ok := fields[n]; ok {
			out[n] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
