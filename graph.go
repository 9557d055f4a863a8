package modhost

// depGraph is the module dependency graph as an explicit adjacency
// structure over arena-style indices. Cycle detection is a plain graph
// traversal; no pointer-following or recursion-depth tricks.
type depGraph struct {
	codes []string
	index map[string]int
	// deps[i] lists the indices module i requires.
	deps [][]int
	// dependents[i] lists the indices that require module i.
	dependents [][]int
}

func newDepGraph(codes []string) *depGraph {
	g := &depGraph{
		codes:      codes,
		index:      make(map[string]int, len(codes)),
		deps:       make([][]int, len(codes)),
		dependents: make([][]int, len(codes)),
	}
	for i, c := range codes {
		g.index[c] = i
	}
	return g
}

// addDependency records that from requires to. Both codes must be known.
func (g *depGraph) addDependency(from, to string) {
	f, t := g.index[from], g.index[to]
	g.deps[f] = append(g.deps[f], t)
	g.dependents[t] = append(g.dependents[t], f)
}

func (g *depGraph) has(code string) bool {
	_, ok := g.index[code]
	return ok
}

// order runs Kahn's algorithm and returns the initialization order plus
// the leftover nodes that could not be ordered (members of, or
// dependent on, a dependency cycle). Ties resolve by declaration index
// so the order is deterministic.
func (g *depGraph) order() (ordered []string, leftover []string) {
	n := len(g.codes)
	indegree := make([]int, n)
	for i := range g.deps {
		indegree[i] = len(g.deps[i])
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	placed := make([]bool, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		placed[i] = true
		ordered = append(ordered, g.codes[i])
		for _, dep := range g.dependents[i] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	for i := 0; i < n; i++ {
		if !placed[i] {
			leftover = append(leftover, g.codes[i])
		}
	}
	return ordered, leftover
}

// onCycle reports, for each leftover node, whether it lies on a cycle
// (reachable from itself along requires edges within the leftover set).
// Leftover nodes not on a cycle merely depend on one.
func (g *depGraph) onCycle(leftover []string) map[string]bool {
	inSet := make(map[int]bool, len(leftover))
	for _, code := range leftover {
		inSet[g.index[code]] = true
	}
	result := make(map[string]bool, len(leftover))
	for _, code := range leftover {
		start := g.index[code]
		result[code] = g.reachesSelf(start, inSet)
	}
	return result
}

func (g *depGraph) reachesSelf(start int, inSet map[int]bool) bool {
	seen := make(map[int]bool)
	stack := append([]int(nil), g.deps[start]...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !inSet[i] || seen[i] {
			continue
		}
		if i == start {
			return true
		}
		seen[i] = true
		stack = append(stack, g.deps[i]...)
	}
	return false
}
