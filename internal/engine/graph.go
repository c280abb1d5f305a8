package engine

// closureGraph maintains the "beats" relation over item indices as a
// transitively closed DAG. Edges are stored twice (forward and reverse
// adjacency) so that ancestor and descendant traversals are both O(edges).
//
// The invariant maintained by addWithClosure is that after every call the
// edge set equals the transitive closure of all edges ever accepted. Callers
// must reject cycle-creating edges before insertion (see Session.RecordChoice).
type closureGraph struct {
	fwd       map[int]map[int]struct{} // winner -> set of losers
	rev       map[int]map[int]struct{} // loser -> set of winners
	winCounts []int                    // winCounts[i] == len(fwd[i])
	edgeCount int
}

func newClosureGraph(itemCount int) *closureGraph {
	return &closureGraph{
		fwd:       make(map[int]map[int]struct{}),
		rev:       make(map[int]map[int]struct{}),
		winCounts: make([]int, itemCount),
	}
}

// Wins reports whether u is known, directly or transitively, to beat v.
// Because the graph is kept closed, this is a single set lookup.
func (g *closureGraph) Wins(u, v int) bool {
	losers, ok := g.fwd[u]
	if !ok {
		return false
	}
	_, ok = losers[v]
	return ok
}

// WinCount returns the number of items the given item is known to beat.
// Out-of-range indices return 0.
func (g *closureGraph) WinCount(i int) int {
	if i < 0 || i >= len(g.winCounts) {
		return 0
	}
	return g.winCounts[i]
}

// EdgeCount returns the total number of relations in the closure.
func (g *closureGraph) EdgeCount() int {
	return g.edgeCount
}

// addWithClosure inserts the edge winner->loser and every edge implied by
// transitivity: a->b for all a in Ancestors(winner) and b in Descendants(loser).
// The graph must already be transitively closed and the new edge must not
// create a cycle. onNewEdge is invoked once per edge actually inserted.
//
// Correctness relies on the pre-existing closure: no pair outside
// Ancestors x Descendants can become newly reachable from a single insertion.
func (g *closureGraph) addWithClosure(winner, loser int, onNewEdge func(a, b int)) {
	ancestors := g.collectInclusive(winner, g.rev)
	descendants := g.collectInclusive(loser, g.fwd)

	for _, a := range ancestors {
		for _, b := range descendants {
			if a == b {
				continue
			}
			if g.Wins(a, b) {
				continue
			}
			g.insert(a, b)
			if onNewEdge != nil {
				onNewEdge(a, b)
			}
		}
	}
}

// insert adds a single edge without closure propagation.
func (g *closureGraph) insert(a, b int) {
	if g.fwd[a] == nil {
		g.fwd[a] = make(map[int]struct{})
	}
	if g.rev[b] == nil {
		g.rev[b] = make(map[int]struct{})
	}
	g.fwd[a][b] = struct{}{}
	g.rev[b][a] = struct{}{}
	if a >= 0 && a < len(g.winCounts) {
		g.winCounts[a]++
	}
	g.edgeCount++
}

// collectInclusive returns x plus every node reachable from x over adj,
// via breadth-first traversal.
func (g *closureGraph) collectInclusive(x int, adj map[int]map[int]struct{}) []int {
	seen := map[int]struct{}{x: {}}
	result := []int{x}
	queue := []int{x}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range adj[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			result = append(result, next)
			queue = append(queue, next)
		}
	}
	return result
}

// reset clears all relations, returning the graph to its initial state.
func (g *closureGraph) reset() {
	g.fwd = make(map[int]map[int]struct{})
	g.rev = make(map[int]map[int]struct{})
	for i := range g.winCounts {
		g.winCounts[i] = 0
	}
	g.edgeCount = 0
}
