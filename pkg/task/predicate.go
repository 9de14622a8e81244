package task

import "strings"

// Predicate inspects lowercased task text.
type Predicate func(lower string) bool

// AllOf matches when every keyword occurs as a substring.
func AllOf(keywords ...string) Predicate {
	kws := lowerAll(keywords)
	return func(lower string) bool {
		for _, kw := range kws {
			if !strings.Contains(lower, kw) {
				return false
			}
		}
		return len(kws) > 0
	}
}

// AnyOf matches when at least one keyword occurs as a substring.
func AnyOf(keywords ...string) Predicate {
	kws := lowerAll(keywords)
	return func(lower string) bool {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

// Both matches when p and q both match.
func Both(p, q Predicate) Predicate {
	return func(lower string) bool {
		return p(lower) && q(lower)
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		out = append(out, strings.ToLower(s))
	}
	return out
}
