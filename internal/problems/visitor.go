package problems

// Visitor receives callbacks during an iterative depth-first traversal of
// a Graph, mirroring the coroutine-like callback visitor the source uses
// for its graph DFS (spec.md §9's Design Notes): StartNode/FinishNode
// bracket a node's visit, TreeEdge/BackEdge/ForwardOrCrossEdge classify an
// edge the way a classic DFS edge classification would, and
// StartEdge/FinishEdge bracket edge traversal regardless of its class.
type Visitor interface {
	StartNode(g *Graph, n NodeID)
	FinishNode(g *Graph, n NodeID)
	StartEdge(g *Graph, e Edge)
	FinishEdge(g *Graph, e Edge)
	TreeEdge(g *Graph, e Edge)
	BackEdge(g *Graph, e Edge)
	ForwardOrCrossEdge(g *Graph, e Edge)
}

type dfsColor int

const (
	white dfsColor = iota
	gray
	black
)

type dfsFrame struct {
	node        NodeID
	edgeIdx     int
	viaEdge     Edge // the tree edge that pushed this frame, if any
	haveViaEdge bool
}

// adjacency builds an outgoing-edge index once per traversal.
func (g *Graph) adjacency() map[NodeID][]Edge {
	adj := make(map[NodeID][]Edge, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e)
	}
	return adj
}

// Walk runs an iterative, explicit-stack DFS from start, invoking v at
// each node/edge boundary. It is stack-based rather than recursive so
// traversal depth is bounded by graph size, not call-stack size, per
// spec.md §9's note on adversarial inputs.
func Walk(g *Graph, start NodeID, v Visitor) {
	color := make(map[NodeID]dfsColor, len(g.Nodes))
	for _, n := range g.Nodes {
		color[n.ID] = white
	}
	adj := g.adjacency()

	var stack []dfsFrame
	push := func(n NodeID, via Edge, haveVia bool) {
		color[n] = gray
		v.StartNode(g, n)
		stack = append(stack, dfsFrame{node: n, viaEdge: via, haveViaEdge: haveVia})
	}
	push(start, Edge{}, false)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := adj[top.node]
		if top.edgeIdx >= len(edges) {
			v.FinishNode(g, top.node)
			color[top.node] = black
			finished := *top
			stack = stack[:len(stack)-1]
			if finished.haveViaEdge {
				v.FinishEdge(g, finished.viaEdge)
			}
			continue
		}
		e := edges[top.edgeIdx]
		top.edgeIdx++

		v.StartEdge(g, e)
		switch color[e.To] {
		case white:
			v.TreeEdge(g, e)
			push(e.To, e, true)
		case gray:
			v.BackEdge(g, e)
			v.FinishEdge(g, e)
		case black:
			v.ForwardOrCrossEdge(g, e)
			v.FinishEdge(g, e)
		}
	}
}
