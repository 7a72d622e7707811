package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDAG(t *testing.T) {
	g := newDAG()
	require.NotNil(t, g)
	assert.Empty(t, g.nodes)
	assert.Empty(t, g.order)
}

func TestAddNode(t *testing.T) {
	g := newDAG()

	g.addNode("a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.Equal(t, 0, nodeA.index)

	g.addNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.addNode("b")
	assert.Len(t, g.nodes, 2)
	assert.Equal(t, []string{"a", "b"}, g.order)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := newDAG()
		g.addNode("a")
		g.addNode("b")

		require.NoError(t, g.addEdge("a", "b")) // b depends on a
		require.NoError(t, g.addEdge("a", "b")) // repeated edges collapse

		assert.Equal(t, []string{"b"}, ids(g.nodes["a"].dependents))
		assert.Equal(t, []string{"a"}, ids(g.nodes["b"].deps))
	})

	t.Run("neighbours stay in declaration order", func(t *testing.T) {
		g := newDAG()
		for _, id := range []string{"root", "x", "y", "z"} {
			g.addNode(id)
		}
		require.NoError(t, g.addEdge("root", "z"))
		require.NoError(t, g.addEdge("root", "x"))
		require.NoError(t, g.addEdge("root", "y"))

		assert.Equal(t, []string{"x", "y", "z"}, ids(g.nodes["root"].dependents))
	})

	t.Run("error cases", func(t *testing.T) {
		g := newDAG()
		g.addNode("a")
		g.addNode("b")

		err := g.addEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.addEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.addEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})
}

func TestDetectCycle(t *testing.T) {
	build := func(t *testing.T, nodes []string, edges [][2]string) *dag {
		t.Helper()
		g := newDAG()
		for _, n := range nodes {
			g.addNode(n)
		}
		for _, e := range edges {
			require.NoError(t, g.addEdge(e[0], e[1]))
		}
		return g
	}

	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.Nil(t, newDAG().detectCycle())
	})

	t.Run("graph with nodes but no edges has no cycles", func(t *testing.T) {
		g := build(t, []string{"a", "b", "c"}, nil)
		assert.Nil(t, g.detectCycle())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := build(t, []string{"a", "b", "c", "d"}, [][2]string{
			{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"},
		})
		assert.Nil(t, g.detectCycle())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}})
		assert.Equal(t, []string{"a", "b"}, g.detectCycle())
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := build(t, []string{"a", "b", "c", "d"}, [][2]string{
			{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"},
		})
		assert.Equal(t, []string{"a", "b", "c", "d"}, g.detectCycle())
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := build(t, []string{"a", "b", "x", "y", "z"}, [][2]string{
			{"a", "b"}, {"x", "y"}, {"y", "z"}, {"z", "y"},
		})
		assert.Equal(t, []string{"y", "z"}, g.detectCycle())
	})
}

func TestTopoOrder(t *testing.T) {
	g := newDAG()
	for _, n := range []string{"d", "c", "b", "a"} {
		g.addNode(n)
	}
	require.NoError(t, g.addEdge("a", "d"))
	require.NoError(t, g.addEdge("b", "c"))

	assert.Equal(t, []string{"b", "c", "a", "d"}, g.topoOrder())
}
