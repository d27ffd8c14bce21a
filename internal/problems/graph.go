package problems

import (
	"sort"
	"strconv"

	"github.com/mamba-org/solvecore/internal/pool"
)

// RawEdge is one dependency- or conflict-induced edge between two names, as
// recorded by the solver while it searches, before merging.
type RawEdge struct {
	From pool.StringID
	To   pool.StringID
	Dep  pool.DepID
}

// NodeID identifies a merged group node.
type NodeID int

// Node is a group of names sharing an identical conflict neighborhood —
// the merged equivalent of mamba's MGroupNode.
type Node struct {
	ID    NodeID
	Names []pool.StringID
}

// Edge is a dependency edge between two merged nodes.
type Edge struct {
	From NodeID
	To   NodeID
	Dep  pool.DepID
}

// Graph is the merged problems graph returned by explain() (spec.md §4.C).
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Build groups names sharing an identical outgoing+incoming neighbor
// signature into single nodes via a union-find pass (mirroring
// MProblemsGraphMerger::create_unions / create_merged_nodes), then
// re-expresses edges between the resulting groups.
func Build(names []pool.StringID, edges []RawEdge) *Graph {
	uf := NewUnionFind[pool.StringID]()
	for _, n := range names {
		uf.Add(n)
	}
	for _, e := range edges {
		uf.Add(e.From)
		uf.Add(e.To)
	}

	sig := neighborSignatures(edges)
	byRootSig := make(map[string]pool.StringID)
	// Deterministic iteration: sort names so the first name claims its
	// signature bucket's union-find root.
	sorted := append([]pool.StringID(nil), namesOf(uf)...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, n := range sorted {
		s := sig[n]
		if s == "" {
			// No recorded neighbors: nothing to compare, stays its own node.
			continue
		}
		if rep, ok := byRootSig[s]; ok {
			uf.Connect(rep, n)
		} else {
			byRootSig[s] = n
		}
	}

	groups := uf.Unions()
	roots := make([]pool.StringID, 0, len(groups))
	for r := range groups {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	nodeOf := make(map[pool.StringID]NodeID, len(uf.parent))
	nodes := make([]Node, 0, len(roots))
	for i, r := range roots {
		members := append([]pool.StringID(nil), groups[r]...)
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		id := NodeID(i)
		nodes = append(nodes, Node{ID: id, Names: members})
		for _, m := range members {
			nodeOf[m] = id
		}
	}

	seen := make(map[Edge]bool)
	var out []Edge
	for _, e := range edges {
		ge := Edge{From: nodeOf[e.From], To: nodeOf[e.To], Dep: e.Dep}
		if !seen[ge] {
			seen[ge] = true
			out = append(out, ge)
		}
	}

	return &Graph{Nodes: nodes, Edges: out}
}

func namesOf(u *UnionFind[pool.StringID]) []pool.StringID {
	out := make([]pool.StringID, 0, len(u.parent))
	for n := range u.parent {
		out = append(out, n)
	}
	return out
}

// neighborSignatures computes, for every name present in edges, a string
// uniquely identifying its set of outgoing and incoming neighbors — two
// names with the same signature are merged into one node.
func neighborSignatures(edges []RawEdge) map[pool.StringID]string {
	out := make(map[pool.StringID][]string)
	for _, e := range edges {
		out[e.From] = append(out[e.From], "o"+itoa(e.To))
		out[e.To] = append(out[e.To], "i"+itoa(e.From))
	}
	sig := make(map[pool.StringID]string, len(out))
	for n, parts := range out {
		sort.Strings(parts)
		s := ""
		for _, p := range parts {
			s += p + ","
		}
		sig[n] = s
	}
	return sig
}

func itoa(id pool.StringID) string { return strconv.FormatUint(uint64(id), 10) }
