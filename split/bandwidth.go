package split

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// CuthillMcKee returns the reverse Cuthill–McKee ordering of g. Each
// connected component starts from a vertex of minimum degree and is walked
// breadth first, visiting neighbours by increasing degree; ties break on
// node ID so the ordering is deterministic.
func CuthillMcKee(g graph.Undirected) []graph.Node {
	nodes := graph.NodesOf(g.Nodes())
	degree := make(map[int64]int, len(nodes))
	for _, n := range nodes {
		degree[n.ID()] = g.From(n.ID()).Len()
	}
	less := func(a, b graph.Node) bool {
		if degree[a.ID()] != degree[b.ID()] {
			return degree[a.ID()] < degree[b.ID()]
		}
		return a.ID() < b.ID()
	}
	sort.Slice(nodes, func(i, j int) bool { return less(nodes[i], nodes[j]) })

	visited := make(map[int64]bool, len(nodes))
	order := make([]graph.Node, 0, len(nodes))
	for _, start := range nodes {
		if visited[start.ID()] {
			continue
		}
		visited[start.ID()] = true
		queue := []graph.Node{start}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			order = append(order, n)
			next := graph.NodesOf(g.From(n.ID()))
			sort.Slice(next, func(i, j int) bool { return less(next[i], next[j]) })
			for _, m := range next {
				if !visited[m.ID()] {
					visited[m.ID()] = true
					queue = append(queue, m)
				}
			}
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Bandwidth is the largest index distance between coupled vertices after
// reverse Cuthill–McKee reordering
func Bandwidth(g graph.Undirected) int {
	order := CuthillMcKee(g)
	pos := make(map[int64]int, len(order))
	for i, n := range order {
		pos[n.ID()] = i
	}
	bw := 0
	for _, n := range order {
		to := g.From(n.ID())
		for to.Next() {
			d := pos[n.ID()] - pos[to.Node().ID()]
			if d < 0 {
				d = -d
			}
			if d > bw {
				bw = d
			}
		}
	}
	return bw
}
