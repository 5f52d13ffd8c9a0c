package graph

import (
	"fmt"
	"slices"
	"strings"
)

// callGraph maps a graph id to the ids it calls.
type callGraph map[int][]int

// CallCycle is a set of graphs that call each other.
type CallCycle struct {
	// Path is a cycle traversal, starting and ending at the same graph.
	Path []int
}

func (c CallCycle) String() string {
	parts := make([]string, len(c.Path))
	for i, id := range c.Path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " -> ")
}

// findCallCycles returns every strongly connected component of the call
// graph that forms a cycle: components with more than one graph, or a
// single graph calling itself.
func findCallCycles(cg callGraph, order []int) []CallCycle {
	var cycles []CallCycle
	for _, scc := range tarjanSCC(cg, order) {
		if len(scc) > 1 || slices.Contains(cg[scc[0]], scc[0]) {
			cycles = append(cycles, CallCycle{Path: cyclePath(scc, cg)})
		}
	}
	return cycles
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so the result is deterministic.
func tarjanSCC(cg callGraph, order []int) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range cg[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, v := range order {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}

// cyclePath follows call edges inside one component from its smallest id
// until it returns there.
func cyclePath(scc []int, cg callGraph) []int {
	start := scc[0]
	path := []int{start}
	visited := map[int]bool{start: true}
	cur := start
	for {
		next := -1
		for _, w := range cg[cur] {
			if w == start {
				return append(path, start)
			}
			if slices.Contains(scc, w) && !visited[w] && next < 0 {
				next = w
			}
		}
		if next < 0 {
			return path
		}
		visited[next] = true
		path = append(path, next)
		cur = next
	}
}

// topoOrder orders graph ids so every callee precedes its callers. The call
// graph must be acyclic.
func topoOrder(cg callGraph, order []int) []int {
	var out []int
	done := make(map[int]bool)
	var visit func(int)
	visit = func(v int) {
		if done[v] {
			return
		}
		done[v] = true
		for _, w := range cg[v] {
			visit(w)
		}
		out = append(out, v)
	}
	for _, v := range order {
		visit(v)
	}
	return out
}
