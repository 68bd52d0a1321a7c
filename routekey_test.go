package nextride

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRouteKey(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"4", "4"},
		{"04", "4"},
		{"004", "4"},
		{"504 King", "504king"},
		{"4A", "4a"},
		{"Blue-22", "blue22"},
		{"0", "0"},
		{"00", "0"},
		{"", ""},
		{"--", ""},
	} {
		assert.Equal(t, tc.want, normalizeRouteKey(tc.in), "input %q", tc.in)
	}
}

func TestRouteKeyMatches(t *testing.T) {
	for _, tc := range []struct {
		filter    string
		shortName string
		want      bool
	}{
		{"4", "4", true},
		{"004", "4", true},
		{"4", "04", true},
		{"4", "4A", true},
		{"4A", "4", true},
		{"504", "504A", true},
		{"5", "4", false},
		{"504", "505", false},

		// Prefix matching in either direction is deliberately
		// loose for short codes.
		{"1", "12", true},
	} {
		assert.Equal(t, tc.want, routeKeyMatches(tc.filter, tc.shortName),
			"filter %q vs %q", tc.filter, tc.shortName)
	}
}

func TestRouteLess(t *testing.T) {
	routes := []string{"Blue", "504A", "12", "4"}
	sort.Slice(routes, func(i, j int) bool { return routeLess(routes[i], routes[j]) })
	assert.Equal(t, []string{"4", "12", "504A", "Blue"}, routes)
}
