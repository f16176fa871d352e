package physics

import (
	"math"
	"testing"

	"github.com/TFMV/echoview/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func threeNodeGraph() ([]*models.Node, []*models.Edge) {
	nodes := []*models.Node{
		{ID: "node1", X: 100, Y: 100},
		{ID: "node2", X: 200, Y: 200},
		{ID: "node3", X: 300, Y: 150},
	}
	edges := []*models.Edge{
		{ID: "edge1", Source: "node1", Target: "node2"},
		{ID: "edge2", Source: "node2", Target: "node3"},
	}
	return nodes, edges
}

func distance(a, b *models.Node) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestStepMovesAllFreeNodes(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes, edges := threeNodeGraph()

	before := make([]models.Node, len(nodes))
	for i, n := range nodes {
		before[i] = *n
	}

	k.Step(nodes, edges)

	for i, n := range nodes {
		assert.NotEqual(t, before[i].X, n.X, "x of %s should change", n.ID)
		assert.NotEqual(t, before[i].Y, n.Y, "y of %s should change", n.ID)
	}
}

func TestStepSyncsEdgeEndpoints(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes, edges := threeNodeGraph()

	k.Step(nodes, edges)

	byID := map[string]*models.Node{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, e := range edges {
		assert.Equal(t, byID[e.Source].X, e.SourceX)
		assert.Equal(t, byID[e.Source].Y, e.SourceY)
		assert.Equal(t, byID[e.Target].X, e.TargetX)
		assert.Equal(t, byID[e.Target].Y, e.TargetY)
	}
}

func TestStepLeavesDraggedNodeAlone(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes, edges := threeNodeGraph()
	nodes[0].IsDragging = true

	n2, n3 := *nodes[1], *nodes[2]
	k.Step(nodes, edges)

	assert.Equal(t, 100.0, nodes[0].X)
	assert.Equal(t, 100.0, nodes[0].Y)
	assert.Zero(t, nodes[0].VX)
	assert.Zero(t, nodes[0].VY)

	assert.False(t, n2.X == nodes[1].X && n2.Y == nodes[1].Y, "node2 should move")
	assert.False(t, n3.X == nodes[2].X && n3.Y == nodes[2].Y, "node3 should move")

	// The dragged node still anchors its edge
	assert.Equal(t, 100.0, edges[0].SourceX)
	assert.Equal(t, 100.0, edges[0].SourceY)
}

func TestStepZeroesDraggedVelocity(t *testing.T) {
	k := NewKernel(DefaultParams())
	n := &models.Node{ID: "a", X: 300, Y: 300, VX: 12, VY: -4, IsDragging: true}

	k.Step([]*models.Node{n}, nil)

	assert.Zero(t, n.VX)
	assert.Zero(t, n.VY)
	assert.Equal(t, 300.0, n.X)
}

func TestStepClampsIntoBounds(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes := []*models.Node{
		{ID: "far-left", X: -1000, Y: 300},
		{ID: "far-right", X: 5000, Y: 300},
		{ID: "far-up", X: 400, Y: -800},
		{ID: "far-down", X: 400, Y: 9000},
		{ID: "fast", X: 400, Y: 300, VX: 1e6, VY: -1e6},
	}

	for i := 0; i < 20; i++ {
		k.Step(nodes, nil)
		for _, n := range nodes {
			require.GreaterOrEqual(t, n.X, 50.0, n.ID)
			require.LessOrEqual(t, n.X, 750.0, n.ID)
			require.GreaterOrEqual(t, n.Y, 50.0, n.ID)
			require.LessOrEqual(t, n.Y, 550.0, n.ID)
		}
	}
}

func TestStepEmptyInputs(t *testing.T) {
	k := NewKernel(DefaultParams())

	assert.NotPanics(t, func() { k.Step(nil, nil) })
	assert.NotPanics(t, func() { k.Step([]*models.Node{}, []*models.Edge{}) })

	// Edges without nodes keep their cached coordinates
	e := &models.Edge{ID: "e", Source: "x", Target: "y", SourceX: 1, SourceY: 2, TargetX: 3, TargetY: 4}
	k.Step(nil, []*models.Edge{e})
	assert.Equal(t, models.Edge{ID: "e", Source: "x", Target: "y", SourceX: 1, SourceY: 2, TargetX: 3, TargetY: 4}, *e)

	// Nodes without edges still move
	n := &models.Node{ID: "n", X: 100, Y: 100}
	k.Step([]*models.Node{n}, []*models.Edge{})
	assert.NotEqual(t, 100.0, n.X)
}

func TestStepDanglingEdgeKeepsStaleEndpoint(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes := []*models.Node{{ID: "a", X: 200, Y: 200}}
	e := &models.Edge{ID: "e", Source: "a", Target: "ghost", TargetX: 42, TargetY: 24}

	require.NotPanics(t, func() { k.Step(nodes, []*models.Edge{e}) })

	assert.Equal(t, nodes[0].X, e.SourceX)
	assert.Equal(t, nodes[0].Y, e.SourceY)
	assert.Equal(t, 42.0, e.TargetX)
	assert.Equal(t, 24.0, e.TargetY)
}

func TestStepSeparatesCoincidentNodes(t *testing.T) {
	k := NewKernel(DefaultParams())
	a := &models.Node{ID: "a", X: 400, Y: 300}
	b := &models.Node{ID: "b", X: 400, Y: 300}
	nodes := []*models.Node{a, b}

	prev := distance(a, b)
	for i := 0; i < 3; i++ {
		k.Step(nodes, nil)
		d := distance(a, b)
		require.False(t, math.IsNaN(d) || math.IsInf(d, 0))
		assert.Greater(t, d, prev, "step %d should push the pair apart", i)
		prev = d
	}

	for i := 0; i < 500; i++ {
		k.Step(nodes, nil)
	}
	d := distance(a, b)
	assert.InDelta(t, 100.0, d, 20.0, "pair should settle at a stable separation")
}

func TestStepAllNodesCoincident(t *testing.T) {
	k := NewKernel(DefaultParams())
	var nodes []*models.Node
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		nodes = append(nodes, &models.Node{ID: id, X: 400, Y: 300})
	}

	for i := 0; i < 10; i++ {
		k.Step(nodes, nil)
	}

	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			assert.Greater(t, distance(nodes[i], nodes[j]), 1.0, "%s-%s", nodes[i].ID, nodes[j].ID)
		}
	}
}

func TestStepSpringPullsTowardRestLength(t *testing.T) {
	k := NewKernel(DefaultParams())
	a := &models.Node{ID: "a", X: 100, Y: 300}
	b := &models.Node{ID: "b", X: 700, Y: 300}
	nodes := []*models.Node{a, b}
	edges := []*models.Edge{{ID: "ab", Source: "a", Target: "b"}}

	prev := distance(a, b)
	for i := 0; i < 4; i++ {
		k.Step(nodes, edges)
		d := distance(a, b)
		assert.Less(t, d, prev, "step %d should shorten the edge", i)
		prev = d
	}

	for i := 0; i < 400; i++ {
		k.Step(nodes, edges)
	}
	assert.InDelta(t, 100.0, distance(a, b), 10.0)
}

func TestStepSingleNodeSettlesAtCenter(t *testing.T) {
	k := NewKernel(DefaultParams())
	n := &models.Node{ID: "solo", X: 60, Y: 60}

	for i := 0; i < 500; i++ {
		k.Step([]*models.Node{n}, nil)
	}

	assert.InDelta(t, 400.0, n.X, 1.0)
	assert.InDelta(t, 300.0, n.Y, 1.0)
	assert.Less(t, k.Energy([]*models.Node{n}), 1e-3)
}

func TestStepIsDeterministic(t *testing.T) {
	run := func() []models.Node {
		k := NewKernel(DefaultParams())
		nodes, edges := threeNodeGraph()
		for i := 0; i < 25; i++ {
			k.Step(nodes, edges)
		}
		out := make([]models.Node, len(nodes))
		for i, n := range nodes {
			out[i] = *n
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestEnergyIgnoresDraggedNodes(t *testing.T) {
	k := NewKernel(DefaultParams())
	nodes := []*models.Node{
		{ID: "a", VX: 3, VY: 4},
		{ID: "b", VX: 100, VY: 100, IsDragging: true},
	}
	assert.InDelta(t, 12.5, k.Energy(nodes), 1e-9)
	assert.Zero(t, k.Energy(nil))
}

func TestPlacerNearNeighbor(t *testing.T) {
	p := NewPlacer(DefaultParams(), 7)
	anchor := r2.Vec{X: 400, Y: 300}

	x, y := p.Place([]r2.Vec{anchor})

	assert.InDelta(t, 100.0, math.Hypot(x-anchor.X, y-anchor.Y), 1e-6)
}

func TestPlacerIsReproducible(t *testing.T) {
	a := NewPlacer(DefaultParams(), 42)
	b := NewPlacer(DefaultParams(), 42)

	for i := 0; i < 10; i++ {
		ax, ay := a.Place(nil)
		bx, by := b.Place(nil)
		assert.Equal(t, ax, bx)
		assert.Equal(t, ay, by)
	}

	a.Reset()
	b2 := NewPlacer(DefaultParams(), 42)
	ax, ay := a.Place(nil)
	bx, by := b2.Place(nil)
	assert.Equal(t, bx, ax)
	assert.Equal(t, by, ay)
}

func TestPlacerStaysInBounds(t *testing.T) {
	p := NewPlacer(DefaultParams(), 1)
	for i := 0; i < 500; i++ {
		x, y := p.Place(nil)
		require.GreaterOrEqual(t, x, 50.0)
		require.LessOrEqual(t, x, 750.0)
		require.GreaterOrEqual(t, y, 50.0)
		require.LessOrEqual(t, y, 550.0)
	}
}
