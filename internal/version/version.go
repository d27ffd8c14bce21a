// Package version implements the conda-style version comparator specified
// by the pool's data model: an epoch, a dotted/dashed sequence of segments,
// and an optional local version, each segment a sequence of (numeral,
// literal) atoms compared with conda's special literal ordering.
//
// The comparator is hand-written rather than delegated to
// github.com/Masterminds/semver: semver's grammar (MAJOR.MINOR.PATH-pre+build)
// cannot express conda's epoch, arbitrary segment count, or the
// "*" < "dev" < "_" < anything < "" < "post" literal ordering. No package
// in this module imports semver; matchspec's `~=` check is hand-written too.
package version

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// atom is one (numeral, literal) pair within a segment.
type atom struct {
	numeral uint64
	literal string
}

var zeroAtom = atom{}

// special literal ranks, consulted before falling back to lexicographic
// string order for literals that aren't one of the four special cases.
const (
	rankStar = iota
	rankDev
	rankUnderscore
	rankOther
	rankEmpty
	rankPost
)

func literalRank(lit string) int {
	switch strings.ToLower(lit) {
	case "*":
		return rankStar
	case "dev":
		return rankDev
	case "_":
		return rankUnderscore
	case "":
		return rankEmpty
	case "post":
		return rankPost
	default:
		return rankOther
	}
}

// compareLiteral implements the special ordering:
// "*" < "dev" < "_" < any-other-literal < "" < "post", case-insensitive.
func compareLiteral(a, b string) int {
	ra, rb := literalRank(a), literalRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if ra != rankOther {
		return 0
	}
	al, bl := strings.ToLower(a), strings.ToLower(b)
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	default:
		return 0
	}
}

func compareAtom(a, b atom) int {
	switch {
	case a.numeral < b.numeral:
		return -1
	case a.numeral > b.numeral:
		return 1
	}
	return compareLiteral(a.literal, b.literal)
}

// segment is a sequence of atoms, e.g. "1a2" -> [{1,""} {0,"a"} {2,""}].
type segment []atom

func compareSegment(a, b segment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv atom
		if i < len(a) {
			av = a[i]
		} else {
			av = zeroAtom
		}
		if i < len(b) {
			bv = b[i]
		} else {
			bv = zeroAtom
		}
		if c := compareAtom(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// parts is the dot/dash/underscore-delimited sequence of segments making up
// a version string or a local version.
type parts []segment

func compareParts(a, b parts) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv segment
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if c := compareSegment(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// Version is the comparable triple (epoch, version parts, local parts)
// described in spec.md §3.
type Version struct {
	Epoch   uint64
	release parts
	local   parts
	raw     string
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Epoch < o.Epoch:
		return -1
	case v.Epoch > o.Epoch:
		return 1
	}
	if c := compareParts(v.release, o.release); c != 0 {
		return c
	}
	return compareParts(v.local, o.local)
}

func (v Version) Less(o Version) bool    { return v.Compare(o) < 0 }
func (v Version) Equal(o Version) bool   { return v.Compare(o) == 0 }
func (v Version) Greater(o Version) bool { return v.Compare(o) > 0 }

// String returns the canonical textual form this Version was parsed from.
func (v Version) String() string { return v.raw }

// splitSegments breaks a version-part string into segments the way conda
// does: a new segment begins at each run of separators (".", "-", "_"), and
// within a segment, digit/non-digit transitions produce new atoms.
func splitSegments(s string) parts {
	if s == "" {
		return nil
	}
	var out parts
	var cur []string
	flush := func() {
		if cur != nil {
			out = append(out, tokensToSegment(cur))
			cur = nil
		}
	}
	var buf strings.Builder
	var lastDigit, haveLast bool
	pushTok := func() {
		if buf.Len() > 0 {
			cur = append(cur, buf.String())
			buf.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '.', '-', '_':
			pushTok()
			flush()
			haveLast = false
			continue
		}
		isDigit := r >= '0' && r <= '9'
		if haveLast && isDigit != lastDigit {
			pushTok()
		}
		buf.WriteRune(r)
		lastDigit = isDigit
		haveLast = true
	}
	pushTok()
	flush()
	return out
}

func tokensToSegment(toks []string) segment {
	seg := make(segment, 0, len(toks))
	for _, t := range toks {
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			seg = append(seg, atom{numeral: n})
		} else {
			seg = append(seg, atom{literal: t})
		}
	}
	return seg
}

// Parse parses a canonically-formatted conda version string:
// [epoch!]version[+local]. An absent epoch defaults to 0.
func Parse(s string) (Version, error) {
	raw := s
	if strings.TrimSpace(s) == "" {
		return Version{}, errors.New("version: empty string")
	}

	epoch := uint64(0)
	if i := strings.IndexByte(s, '!'); i >= 0 {
		e, err := strconv.ParseUint(s[:i], 10, 64)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version: invalid epoch in %q", raw)
		}
		epoch = e
		s = s[i+1:]
	}

	var localStr string
	if i := strings.IndexByte(s, '+'); i >= 0 {
		localStr = s[i+1:]
		s = s[:i]
	}

	if s == "" {
		return Version{}, errors.Errorf("version: empty release component in %q", raw)
	}

	return Version{
		Epoch:   epoch,
		release: splitSegments(s),
		local:   splitSegments(localStr),
		raw:     raw,
	}, nil
}

// MustParse parses s and panics on error; intended for tests and literal
// construction of known-good version strings.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
