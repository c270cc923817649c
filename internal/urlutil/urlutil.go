// Package urlutil provides site-relative URL math for cross-reference
// resolution: splitting fragments, computing relative paths between pages,
// and picking the closest candidate URL for an identifier.
package urlutil

import (
	"log/slog"
	"net/url"
	"strings"
)

// SplitFragment splits a URL into its path part and fragment (without '#').
func SplitFragment(u string) (path, fragment string) {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i], u[i+1:]
	}
	return u, ""
}

// IsExternal reports whether the URL has a scheme or host, i.e. points
// outside the generated site.
func IsExternal(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" || u.Host != ""
}

// RelativeURL computes the relative path from page URL a to target URL b.
// Common leading segments are stripped, then one ".." is emitted per
// remaining segment of a (minus its trailing empty segment), followed by
// b's remaining segments and fragment. A target on the same page yields
// just the fragment, or "" when it has none.
func RelativeURL(a, b string) string {
	bPath, fragment := SplitFragment(b)
	partsA := strings.Split(a, "/")
	partsB := strings.Split(bPath, "/")

	for len(partsA) > 0 && len(partsB) > 0 && partsA[0] == partsB[0] {
		partsA = partsA[1:]
		partsB = partsB[1:]
	}

	// When a and b share the full page path, only a's trailing empty
	// segment (or nothing) remains; there is nothing to climb.
	levels := max(len(partsA)-1, 0)
	parts := make([]string, 0, levels+len(partsB))
	for range levels {
		parts = append(parts, "..")
	}
	parts = append(parts, partsB...)
	rel := strings.Join(parts, "/")
	if fragment == "" {
		return rel
	}
	return rel + "#" + fragment
}

// ClosestURL picks the candidate URL closest to the origin page.
//
// Starting from the origin's own directory and climbing one segment at a
// time, the first level at which at least one candidate lives under the
// current base wins. Among candidates at that level, the one with the fewest
// path segments wins; remaining ties go to the earliest candidate. The
// second return value is false when no candidate shares an ancestor with the
// origin, in which case the first candidate is returned as-is.
func ClosestURL(from string, candidates []string) (string, bool) {
	origin := segments(from)

	for base := origin; len(base) > 0; base = base[:len(base)-1] {
		var relative []string
		for _, c := range candidates {
			path, _ := SplitFragment(c)
			if hasPrefix(segments(path), base) {
				relative = append(relative, c)
			}
		}
		if len(relative) == 0 {
			continue
		}
		winner := relative[0]
		if len(relative) > 1 {
			for _, c := range relative[1:] {
				if depth(c) < depth(winner) {
					winner = c
				}
			}
		}
		slog.Debug("Closest URL found", "winner", winner, "from", from, "candidates", candidates)
		return winner, true
	}
	return candidates[0], false
}

// segments splits a URL path into its non-empty leading segments
// ("a/b/" and "a/b" both yield ["a", "b"]).
func segments(path string) []string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

func hasPrefix(parts, base []string) bool {
	if len(parts) < len(base) {
		return false
	}
	for i, s := range base {
		if parts[i] != s {
			return false
		}
	}
	return true
}

func depth(candidate string) int {
	path, _ := SplitFragment(candidate)
	return strings.Count(path, "/")
}
