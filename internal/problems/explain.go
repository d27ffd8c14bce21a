package problems

import (
	"fmt"
	"strings"

	"github.com/mamba-org/solvecore/internal/pool"
)

// textVisitor renders a tree-style explanation, the default formatting
// spec.md §7 asks for on an Unsatisfiable result. It is a Visitor, so
// callers may plug in an alternative (e.g. a JSON-emitting one) without
// touching the graph or traversal code.
type textVisitor struct {
	p      *pool.Pool
	indent int
	lines  []string
}

func newTextVisitor(p *pool.Pool) *textVisitor { return &textVisitor{p: p} }

func (t *textVisitor) label(n NodeID, g *Graph) string {
	names := make([]string, 0, 4)
	for _, name := range g.Nodes[n].Names {
		names = append(names, t.p.String(name))
	}
	return strings.Join(names, " | ")
}

func (t *textVisitor) StartNode(g *Graph, n NodeID) {
	t.lines = append(t.lines, strings.Repeat("  ", t.indent)+"- "+t.label(n, g))
	t.indent++
}
func (t *textVisitor) FinishNode(g *Graph, n NodeID) { t.indent-- }

func (t *textVisitor) StartEdge(g *Graph, e Edge)  {}
func (t *textVisitor) FinishEdge(g *Graph, e Edge) {}

func (t *textVisitor) TreeEdge(g *Graph, e Edge) {
	name, rel, ver := t.p.Dependency(e.Dep)
	_ = rel
	t.lines = append(t.lines, strings.Repeat("  ", t.indent)+fmt.Sprintf("requires %s %s", t.p.String(name), t.p.String(ver)))
}

func (t *textVisitor) BackEdge(g *Graph, e Edge) {
	t.lines = append(t.lines, strings.Repeat("  ", t.indent)+"conflicts with "+t.label(e.To, g))
}

func (t *textVisitor) ForwardOrCrossEdge(g *Graph, e Edge) {
	t.lines = append(t.lines, strings.Repeat("  ", t.indent)+"also requires "+t.label(e.To, g))
}

// Explain renders g as a tree-style string, starting a fresh DFS from
// every node that has no incoming edge (a "root cause" in the graph).
func Explain(p *pool.Pool, g *Graph) string {
	hasIncoming := make(map[NodeID]bool, len(g.Nodes))
	for _, e := range g.Edges {
		hasIncoming[e.To] = true
	}
	tv := newTextVisitor(p)
	visited := make(map[NodeID]bool, len(g.Nodes))
	walkFrom := func(n NodeID) {
		if visited[n] {
			return
		}
		Walk(g, n, tv)
		// Mark every node this walk reached, not just its start node.
		for stack := []NodeID{n}; len(stack) > 0; {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			for _, e := range g.Edges {
				if e.From == cur {
					stack = append(stack, e.To)
				}
			}
		}
	}
	for _, n := range g.Nodes {
		if !hasIncoming[n.ID] {
			walkFrom(n.ID)
		}
	}
	// Any node left unvisited belongs to a pure cycle with no root; walk it too.
	for _, n := range g.Nodes {
		walkFrom(n.ID)
	}
	return strings.Join(tv.lines, "\n")
}
