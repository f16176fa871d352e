// Package physics implements the force-directed layout kernel: one deterministic
// simulation step over a node/edge set, with no I/O and no randomness.
package physics

import (
	"math"

	"github.com/TFMV/echoview/models"
	"gonum.org/v1/gonum/spatial/r2"
)

// goldenAngle spreads deterministic directions evenly around the circle
const goldenAngle = 2.399963229728653

// Params holds the tunable constants of the simulation
type Params struct {
	Width           float64 `koanf:"width"`            // Viewport width in world units
	Height          float64 `koanf:"height"`           // Viewport height in world units
	Margin          float64 `koanf:"margin"`           // Inward clamp margin from each edge
	Gravity         float64 `koanf:"gravity"`          // Pull toward the center per unit of displacement
	Repulsion       float64 `koanf:"repulsion"`        // Pairwise repulsion strength
	SpringLength    float64 `koanf:"spring_length"`    // Edge rest length
	SpringStiffness float64 `koanf:"spring_stiffness"` // Hooke constant
	Damping         float64 `koanf:"damping"`          // Velocity multiplier per tick, < 1
	MinDistance     float64 `koanf:"min_distance"`     // Distance floor for repulsion
	MaxSpeed        float64 `koanf:"max_speed"`        // Velocity cap per tick, 0 disables
}

// DefaultParams returns parameters tuned for an 800x600 viewport
func DefaultParams() Params {
	return Params{
		Width:           800,
		Height:          600,
		Margin:          50,
		Gravity:         0.01,
		Repulsion:       5000,
		SpringLength:    100,
		SpringStiffness: 0.05,
		Damping:         0.85,
		MinDistance:     1,
		MaxSpeed:        50,
	}
}

// Bounds returns the clamp rectangle
func (p Params) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: p.Margin, Y: p.Margin},
		Max: r2.Vec{X: p.Width - p.Margin, Y: p.Height - p.Margin},
	}
}

// Center returns the gravity target
func (p Params) Center() r2.Vec {
	return r2.Vec{X: p.Width / 2, Y: p.Height / 2}
}

// Kernel computes simulation steps for a fixed set of parameters
type Kernel struct {
	params Params
	bounds r2.Box
}

// NewKernel creates a kernel. Zero-valued params fall back to DefaultParams.
func NewKernel(params Params) *Kernel {
	if params == (Params{}) {
		params = DefaultParams()
	}
	return &Kernel{params: params, bounds: params.Bounds()}
}

// Params returns the kernel parameters
func (k *Kernel) Params() Params {
	return k.params
}

// Step advances nodes and edges by one tick, in place. All forces are accumulated
// before any node is moved. Dragging nodes are never moved by the kernel and have
// their velocity held at zero. Edges referencing absent nodes keep their cached
// coordinates for that endpoint.
func (k *Kernel) Step(nodes []*models.Node, edges []*models.Edge) {
	p := k.params
	index := make(map[string]int, len(nodes))
	pos := make([]r2.Vec, len(nodes))
	forces := make([]r2.Vec, len(nodes))

	center := p.Center()
	for i, n := range nodes {
		index[n.ID] = i
		pos[i] = r2.Vec{X: n.X, Y: n.Y}
		if !n.IsDragging {
			forces[i] = r2.Scale(p.Gravity, r2.Sub(center, pos[i]))
		}
	}

	// Repulsion between every unordered pair
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			dir, dist := separation(pos[i], pos[j], i, j)
			dist = math.Max(dist, p.MinDistance)
			f := r2.Scale(p.Repulsion/(dist*dist), dir)
			forces[i] = r2.Add(forces[i], f)
			forces[j] = r2.Sub(forces[j], f)
		}
	}

	// Springs pull or push edge endpoints toward the rest length
	for _, e := range edges {
		i, okS := index[e.Source]
		j, okT := index[e.Target]
		if !okS || !okT || i == j {
			continue
		}
		dir, dist := separation(pos[j], pos[i], j, i)
		f := r2.Scale(p.SpringStiffness*(dist-p.SpringLength), dir)
		forces[i] = r2.Add(forces[i], f)
		forces[j] = r2.Sub(forces[j], f)
	}

	for i, n := range nodes {
		if n.IsDragging {
			n.VX, n.VY = 0, 0
			continue
		}

		v := r2.Scale(p.Damping, r2.Add(r2.Vec{X: n.VX, Y: n.VY}, forces[i]))
		if speed := r2.Norm(v); p.MaxSpeed > 0 && speed > p.MaxSpeed {
			v = r2.Scale(p.MaxSpeed/speed, v)
		}

		next := k.clamp(r2.Add(pos[i], v))
		n.X, n.Y = next.X, next.Y
		n.VX, n.VY = v.X, v.Y
	}

	SyncEdges(nodes, edges)
}

// Energy returns the mean kinetic energy of the free nodes
func (k *Kernel) Energy(nodes []*models.Node) float64 {
	var total float64
	var count int
	for _, n := range nodes {
		if n.IsDragging {
			continue
		}
		total += 0.5 * (n.VX*n.VX + n.VY*n.VY)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Clamp returns v constrained to the kernel bounds
func (k *Kernel) Clamp(x, y float64) (float64, float64) {
	c := k.clamp(r2.Vec{X: x, Y: y})
	return c.X, c.Y
}

func (k *Kernel) clamp(v r2.Vec) r2.Vec {
	return r2.Vec{
		X: math.Max(k.bounds.Min.X, math.Min(k.bounds.Max.X, v.X)),
		Y: math.Max(k.bounds.Min.Y, math.Min(k.bounds.Max.Y, v.Y)),
	}
}

// SyncEdges copies endpoint node positions into each edge's cached coordinates.
// Endpoints that are not in nodes are left untouched.
func SyncEdges(nodes []*models.Node, edges []*models.Edge) {
	if len(edges) == 0 {
		return
	}
	byID := make(map[string]*models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, e := range edges {
		if src, ok := byID[e.Source]; ok {
			e.SourceX, e.SourceY = src.X, src.Y
		}
		if dst, ok := byID[e.Target]; ok {
			e.TargetX, e.TargetY = dst.X, dst.Y
		}
	}
}

// separation returns the unit vector from b to a and the distance between them.
// Coincident points get a fixed direction derived from their indices so that
// repeated steps pull them apart instead of dividing by zero.
func separation(a, b r2.Vec, i, j int) (r2.Vec, float64) {
	d := r2.Sub(a, b)
	dist := r2.Norm(d)
	if dist == 0 {
		angle := float64(i+j) * goldenAngle
		if i > j {
			angle += math.Pi
		}
		return r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}, 0
	}
	return r2.Scale(1/dist, d), dist
}
