// Package matchspec parses the match-spec grammar from spec.md §6:
//
//	matchspec   := [channel "::"] [subdir "/"] name [version] [build] [brackets]
//	version     := op? version_literal ("|" | "," version_pred)*
//	op          := "<" | "<=" | "==" | "=" | "!=" | ">" | ">=" | "~="
//	build       := build_literal_with_globs
//	brackets    := "[" key "=" value ("," key "=" value)* "]"
//
// Equality is defined on the canonical form: brackets sorted, operators
// normalized, names lowercased. Version predicates are compiled into a
// boolean expression tree (OR of AND-groups, i.e. DNF) the way the
// teacher's Constraint tree (constraints.go) composes semverConstraint,
// anyConstraint and noneConstraint values.
package matchspec

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/mamba-org/solvecore/internal/version"
)

// Op is a version relational operator, including conda's compatible-release
// operator.
type Op int

const (
	OpLess Op = iota
	OpLessEq
	OpEq
	OpNotEq
	OpGreaterEq
	OpGreater
	OpCompatible // ~=
)

func (o Op) String() string {
	switch o {
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpEq:
		return "="
	case OpNotEq:
		return "!="
	case OpGreaterEq:
		return ">="
	case OpGreater:
		return ">"
	case OpCompatible:
		return "~="
	default:
		return "?"
	}
}

// Predicate is one atomic leaf of the version boolean expression: "op version".
type Predicate struct {
	Op  Op
	Ver version.Version
}

func (p Predicate) Matches(v version.Version) bool {
	c := v.Compare(p.Ver)
	switch p.Op {
	case OpLess:
		return c < 0
	case OpLessEq:
		return c <= 0
	case OpEq:
		return c == 0
	case OpNotEq:
		return c != 0
	case OpGreaterEq:
		return c >= 0
	case OpGreater:
		return c > 0
	case OpCompatible:
		// ~=X.Y means >=X.Y, ==X.* (same leading segments as p.Ver sans last).
		return c >= 0 && sameMajor(v, p.Ver)
	default:
		return false
	}
}

func sameMajor(v, base version.Version) bool {
	// Compatible-release truncates the comparison to all but the last
	// release segment of base; approximated here by requiring equality once
	// the trailing component is stripped via string prefix, matching the
	// conda/pip convention for "~=".
	bs := base.String()
	idx := strings.LastIndexAny(bs, ".")
	if idx < 0 {
		return v.Compare(base) >= 0
	}
	prefix := bs[:idx+1]
	return strings.HasPrefix(v.String(), prefix)
}

func (p Predicate) String() string { return p.Op.String() + p.Ver.String() }

// andGroup is a conjunction of predicates ("1.0,<2.0").
type andGroup []Predicate

func (g andGroup) Matches(v version.Version) bool {
	for _, p := range g {
		if !p.Matches(v) {
			return false
		}
	}
	return true
}

func (g andGroup) String() string {
	parts := make([]string, len(g))
	for i, p := range g {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// VersionExpr is a DNF boolean expression over version predicates
// ("a,b|c,d" == (a AND b) OR (c AND d)).
type VersionExpr struct {
	groups []andGroup
}

// Matches reports whether v satisfies the expression. An empty expression
// matches everything.
func (e VersionExpr) Matches(v version.Version) bool {
	if len(e.groups) == 0 {
		return true
	}
	for _, g := range e.groups {
		if g.Matches(v) {
			return true
		}
	}
	return false
}

func (e VersionExpr) String() string {
	parts := make([]string, len(e.groups))
	for i, g := range e.groups {
		parts[i] = g.String()
	}
	return strings.Join(parts, "|")
}

func (e VersionExpr) Empty() bool { return len(e.groups) == 0 }

// MatchSpec is a parsed requirement, per spec.md §3.
type MatchSpec struct {
	Channel     string
	Subdir      string
	Name        string
	Version     VersionExpr
	Build       string // may contain globs, e.g. "py39h*"
	BuildNumber *Predicate
	Namespace   string
	URL         string
	Brackets    map[string]string
}

// Parse compiles the textual match-spec grammar into a MatchSpec.
func Parse(text string) (MatchSpec, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return MatchSpec{}, errors.New("matchspec: empty spec")
	}

	ms := MatchSpec{}

	if strings.HasPrefix(s, "url::") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://") {
		ms.URL = strings.TrimPrefix(s, "url::")
		ms.Name = path.Base(ms.URL)
		return ms, nil
	}

	var brackets string
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return MatchSpec{}, errors.Errorf("matchspec: unterminated bracket in %q", text)
		}
		brackets = s[i+1 : len(s)-1]
		s = s[:i]
	}

	if i := strings.Index(s, "::"); i >= 0 {
		ms.Channel = s[:i]
		s = s[i+2:]
	}

	if i := strings.IndexByte(s, '/'); i >= 0 && !strings.ContainsAny(s[:i], "<>=! ") {
		ms.Subdir = s[:i]
		s = s[i+1:]
	}

	name, rest := splitNameFromRest(s)
	ms.Name = strings.ToLower(name)

	verText, build := splitVersionBuild(rest)
	if verText != "" {
		expr, err := parseVersionExpr(verText)
		if err != nil {
			return MatchSpec{}, errors.Wrapf(err, "matchspec: %q", text)
		}
		ms.Version = expr
	}
	ms.Build = build

	if brackets != "" {
		m, err := parseBrackets(brackets)
		if err != nil {
			return MatchSpec{}, errors.Wrapf(err, "matchspec: %q", text)
		}
		ms.Brackets = m
		if v, ok := m["version"]; ok && ms.Version.Empty() {
			expr, err := parseVersionExpr(v)
			if err != nil {
				return MatchSpec{}, err
			}
			ms.Version = expr
		}
		if v, ok := m["build"]; ok && ms.Build == "" {
			ms.Build = v
		}
		if v, ok := m["channel"]; ok && ms.Channel == "" {
			ms.Channel = v
		}
		if v, ok := m["subdir"]; ok && ms.Subdir == "" {
			ms.Subdir = v
		}
		if v, ok := m["build_number"]; ok {
			p, err := parsePredicate(v)
			if err != nil {
				return MatchSpec{}, err
			}
			ms.BuildNumber = &p
		}
	}

	if ms.Name == "" {
		return MatchSpec{}, errors.Errorf("matchspec: no package name in %q", text)
	}

	return ms, nil
}

func splitNameFromRest(s string) (name, rest string) {
	for i, r := range s {
		if r == ' ' || r == '<' || r == '>' || r == '=' || r == '!' {
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}

// splitVersionBuild splits "1.2.3 py39h1" or "1.2.3=py39h1" into a version
// expression and an optional build-string pattern.
func splitVersionBuild(rest string) (verText, build string) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", ""
	}
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return rest[:i], strings.TrimSpace(rest[i+1:])
	}
	// "==1.2.3=py39h1" style: the build string follows the last "=" group
	// only when the version expression itself contains no bare "=" build
	// separator ambiguity; conservatively split on the last "=" when there
	// is no operator immediately following it.
	if i := strings.LastIndexByte(rest, '='); i > 0 && i+1 < len(rest) && !isOpByte(rest[i+1]) {
		prev := rest[:i]
		if !strings.HasSuffix(prev, "=") && !strings.HasSuffix(prev, "!") && !strings.HasSuffix(prev, "<") && !strings.HasSuffix(prev, ">") {
			return prev, rest[i+1:]
		}
	}
	return rest, ""
}

func isOpByte(b byte) bool {
	return b == '<' || b == '>' || b == '=' || b == '!'
}

func parseVersionExpr(s string) (VersionExpr, error) {
	var expr VersionExpr
	for _, orPart := range strings.Split(s, "|") {
		var g andGroup
		for _, andPart := range strings.Split(orPart, ",") {
			p, err := parsePredicate(andPart)
			if err != nil {
				return VersionExpr{}, err
			}
			g = append(g, p)
		}
		expr.groups = append(expr.groups, g)
	}
	return expr, nil
}

var ops = []struct {
	text string
	op   Op
}{
	{"<=", OpLessEq},
	{">=", OpGreaterEq},
	{"==", OpEq},
	{"!=", OpNotEq},
	{"~=", OpCompatible},
	{"<", OpLess},
	{">", OpGreater},
	{"=", OpEq},
}

func parsePredicate(s string) (Predicate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Predicate{}, errors.New("matchspec: empty version predicate")
	}
	for _, o := range ops {
		if strings.HasPrefix(s, o.text) {
			v, err := version.Parse(strings.TrimSpace(s[len(o.text):]))
			if err != nil {
				return Predicate{}, err
			}
			return Predicate{Op: o.op, Ver: v}, nil
		}
	}
	// bare version literal defaults to "="
	v, err := version.Parse(s)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Op: OpEq, Ver: v}, nil
}

func parseBrackets(s string) (map[string]string, error) {
	m := make(map[string]string)
	for _, kv := range splitCommaOutsideQuotes(s) {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			return nil, errors.Errorf("matchspec: malformed bracket entry %q", kv)
		}
		key := strings.ToLower(strings.TrimSpace(kv[:i]))
		val := strings.Trim(strings.TrimSpace(kv[i+1:]), `'"`)
		switch key {
		case "version", "build", "build_number", "md5", "sha256", "url", "channel", "subdir":
		default:
			return nil, errors.Errorf("matchspec: unknown bracket key %q", key)
		}
		m[key] = val
	}
	return m, nil
}

// splitCommaOutsideQuotes splits on commas that are not inside a '...' or
// "..." quoted value, so version='>=1.20,<2' stays one entry.
func splitCommaOutsideQuotes(s string) []string {
	var out []string
	var quote byte
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && quote == 0 && (s[i] == '\'' || s[i] == '"') {
			quote = s[i]
		} else if i < len(s) && s[i] == quote {
			quote = 0
		} else if i == len(s) || (s[i] == ',' && quote == 0) {
			if p := strings.TrimSpace(s[start:i]); p != "" {
				out = append(out, p)
			}
			start = i + 1
		}
	}
	return out
}

// Canonical returns the canonical textual form used for MatchSpec equality:
// name lowercased, brackets sorted, operators normalized.
func (m MatchSpec) Canonical() string {
	var b strings.Builder
	if m.Channel != "" {
		fmt.Fprintf(&b, "%s::", m.Channel)
	}
	if m.Subdir != "" {
		fmt.Fprintf(&b, "%s/", m.Subdir)
	}
	b.WriteString(m.Name)
	if !m.Version.Empty() {
		b.WriteByte(' ')
		b.WriteString(m.Version.String())
	}
	if m.Build != "" {
		b.WriteByte(' ')
		b.WriteString(m.Build)
	}
	if len(m.Brackets) > 0 {
		keys := make([]string, 0, len(m.Brackets))
		for k := range m.Brackets {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('[')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s=%s", k, m.Brackets[k])
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Equal implements MatchSpec equality by canonical textual form, per spec.md §3.
func (m MatchSpec) Equal(o MatchSpec) bool { return m.Canonical() == o.Canonical() }
