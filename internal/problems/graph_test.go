package problems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
)

func TestUnionFindMergesConnectedNodes(t *testing.T) {
	uf := NewUnionFind[int]()
	for _, n := range []int{1, 2, 3, 4} {
		uf.Add(n)
	}
	uf.Connect(1, 2)
	uf.Connect(3, 4)
	assert.Equal(t, uf.Root(1), uf.Root(2))
	assert.NotEqual(t, uf.Root(1), uf.Root(3))

	groups := uf.Unions()
	assert.Len(t, groups, 2)
}

func TestBuildMergesIdenticalNeighborhoods(t *testing.T) {
	p := pool.New(pool.Options{})
	a := p.InternString("a")
	b := p.InternString("b")
	c := p.InternString("c")
	dep := p.InternDependency(c, pool.RelNone, pool.NoString)

	// a and b both depend only on c: identical outgoing neighborhoods, so
	// they should merge into one node.
	g := Build([]pool.StringID{a, b, c}, []RawEdge{
		{From: a, To: c, Dep: dep},
		{From: b, To: c, Dep: dep},
	})

	require.Len(t, g.Nodes, 2)
	var mergedNode *Node
	for i := range g.Nodes {
		if len(g.Nodes[i].Names) == 2 {
			mergedNode = &g.Nodes[i]
		}
	}
	require.NotNil(t, mergedNode)
	assert.ElementsMatch(t, []pool.StringID{a, b}, mergedNode.Names)
}

func TestWalkVisitsEveryReachableNode(t *testing.T) {
	p := pool.New(pool.Options{})
	a := p.InternString("a")
	b := p.InternString("b")
	c := p.InternString("c")
	dep := p.InternDependency(c, pool.RelNone, pool.NoString)

	g := Build([]pool.StringID{a, b, c}, []RawEdge{
		{From: a, To: b, Dep: dep},
		{From: b, To: c, Dep: dep},
	})

	visited := make(map[NodeID]bool)
	v := &recordingVisitor{visited: visited}
	Walk(g, g.Nodes[0].ID, v)
	assert.True(t, visited[g.Nodes[0].ID])
	// a -> b -> c: starting from a's node reaches all three nodes.
	assert.Len(t, visited, len(g.Nodes))
}

type recordingVisitor struct{ visited map[NodeID]bool }

func (r *recordingVisitor) StartNode(g *Graph, n NodeID)       { r.visited[n] = true }
func (r *recordingVisitor) FinishNode(g *Graph, n NodeID)      {}
func (r *recordingVisitor) StartEdge(g *Graph, e Edge)         {}
func (r *recordingVisitor) FinishEdge(g *Graph, e Edge)        {}
func (r *recordingVisitor) TreeEdge(g *Graph, e Edge)          {}
func (r *recordingVisitor) BackEdge(g *Graph, e Edge)          {}
func (r *recordingVisitor) ForwardOrCrossEdge(g *Graph, e Edge) {}
