// Package permission implements the runtime's permission arbiter: rule
// evaluation, pending-request bookkeeping, and cross-session unblocking
// (spec §4.3).
package permission

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPattern reports whether glob pattern matches candidate. It layers
// the spec's trailing-space wildcard rule ("cmd *" matches both "cmd" and
// "cmd -la") on top of doublestar's general `*`/`?`/`**` glob semantics,
// generalizing the teacher's bash-specific wildcard.go (which only ever
// compared space-split subcommand tokens against a lookup map) into a
// single matcher usable for every permission name, not just "bash".
func MatchPattern(pattern, candidate string) bool {
	if pattern == candidate {
		return true
	}
	if trimmed, ok := trailingSpaceWildcard(pattern); ok {
		if candidate == trimmed || strings.HasPrefix(candidate, trimmed+" ") {
			return true
		}
	}
	matched, err := doublestar.Match(pattern, candidate)
	return err == nil && matched
}

// trailingSpaceWildcard reports whether pattern ends in the literal
// sequence " *", returning the pattern with that suffix stripped.
func trailingSpaceWildcard(pattern string) (string, bool) {
	const suffix = " *"
	if strings.HasSuffix(pattern, suffix) {
		return strings.TrimSuffix(pattern, suffix), true
	}
	return "", false
}
