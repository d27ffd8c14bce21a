package solver

import (
	"fmt"
	"strings"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/problems"
)

// ProblemRule is one reported cause of unsatisfiability, per the
// problem_rules() contract in spec.md §4.C.
type ProblemRule struct {
	Kind ProblemKind
	Name pool.StringID
}

// UnsolvableError is returned by Solve when no decision satisfies every
// job. ProblemRules exposes the raw rules for explain()/problem_rules();
// Error renders a concise one-line summary; Explain builds the merged
// problems graph per §4.C.
type UnsolvableError struct {
	p     *pool.Pool
	Rules []ProblemRule
	edges []problems.RawEdge
}

func (e *UnsolvableError) Error() string {
	if len(e.Rules) == 0 {
		return "solver: unsatisfiable"
	}
	parts := make([]string, 0, len(e.Rules))
	seen := make(map[string]bool, len(e.Rules))
	for _, r := range e.Rules {
		s := fmt.Sprintf("%s(%s)", r.Kind, e.p.String(r.Name))
		if !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}
	return "solver: unsatisfiable: " + strings.Join(parts, "; ")
}

// ProblemRules returns the rules that caused this failure.
func (e *UnsolvableError) ProblemRules() []ProblemRule { return e.Rules }

// Explain builds the merged problems graph (spec.md §4.C's explain()) from
// the dependency and conflict edges the search recorded. ExplainText renders
// it as a string.
func (e *UnsolvableError) Explain() *problems.Graph {
	names := make([]pool.StringID, 0, len(e.Rules))
	for _, r := range e.Rules {
		names = append(names, r.Name)
	}
	return problems.Build(names, e.edges)
}

// ExplainText renders the merged graph as a tree-style summary, the
// default formatting spec.md §7 asks for on an Unsatisfiable result.
func (e *UnsolvableError) ExplainText() string {
	return problems.Explain(e.p, e.Explain())
}
