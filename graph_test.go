package modhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepGraphOrderRespectsDependencies(t *testing.T) {
	g := newDepGraph([]string{"app/web", "app/core", "app/auth"})
	g.addDependency("app/web", "app/auth")
	g.addDependency("app/auth", "app/core")

	ordered, leftover := g.order()
	require.Empty(t, leftover)
	assert.Equal(t, []string{"app/core", "app/auth", "app/web"}, ordered)
}

func TestDepGraphOrderIsDeterministic(t *testing.T) {
	g := newDepGraph([]string{"v/c", "v/a", "v/b"})

	// No edges: independent modules keep declaration order.
	ordered, leftover := g.order()
	require.Empty(t, leftover)
	assert.Equal(t, []string{"v/c", "v/a", "v/b"}, ordered)
}

func TestDepGraphCycleLeftover(t *testing.T) {
	g := newDepGraph([]string{"v/a", "v/b", "v/c", "v/d"})
	g.addDependency("v/a", "v/b")
	g.addDependency("v/b", "v/a")
	g.addDependency("v/c", "v/a")

	ordered, leftover := g.order()
	assert.Equal(t, []string{"v/d"}, ordered)
	assert.ElementsMatch(t, []string{"v/a", "v/b", "v/c"}, leftover)

	cyc := g.onCycle(leftover)
	assert.True(t, cyc["v/a"])
	assert.True(t, cyc["v/b"])
	// c is not on the cycle, it only depends on one.
	assert.False(t, cyc["v/c"])
}

func TestDepGraphThreeNodeCycle(t *testing.T) {
	g := newDepGraph([]string{"v/a", "v/b", "v/c"})
	g.addDependency("v/a", "v/b")
	g.addDependency("v/b", "v/c")
	g.addDependency("v/c", "v/a")

	ordered, leftover := g.order()
	assert.Empty(t, ordered)
	require.Len(t, leftover, 3)
	for code, on := range g.onCycle(leftover) {
		assert.True(t, on, code)
	}
}
