package matchspec

import "path/filepath"

// MatchesBuild reports whether a solvable's build string satisfies this
// match-spec's build pattern, which may contain shell-style globs
// (e.g. "py39h*"). An empty pattern matches any build string.
func (m MatchSpec) MatchesBuild(build string) bool {
	if m.Build == "" {
		return true
	}
	ok, err := filepath.Match(m.Build, build)
	if err != nil {
		// A malformed glob matches nothing rather than panicking the solver.
		return false
	}
	return ok
}
