package physics

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"
)

// Placer chooses initial positions for nodes entering a live simulation. A node
// with an already placed neighbour lands one rest length away from it; others are
// laid out on a golden-angle spiral around the center. Angular jitter comes from
// seeded simplex noise, so placement is reproducible for a given seed.
type Placer struct {
	params Params
	noise  opensimplex.Noise
	seed   int64
	count  int
}

// NewPlacer creates a placer for the given parameters and noise seed
func NewPlacer(params Params, seed int64) *Placer {
	if params == (Params{}) {
		params = DefaultParams()
	}
	return &Placer{
		params: params,
		noise:  opensimplex.New(seed),
		seed:   seed,
	}
}

// Place returns the initial position of the next node. neighbors holds the
// positions of already placed nodes connected to it, possibly none.
func (p *Placer) Place(neighbors []r2.Vec) (x, y float64) {
	n := float64(p.count)
	p.count++

	jitter := p.noise.Eval2(n*0.61, 0.5) * math.Pi / 4
	angle := n*goldenAngle + jitter

	var at r2.Vec
	if len(neighbors) > 0 {
		anchor := centroid(neighbors)
		at = r2.Add(anchor, r2.Scale(p.params.SpringLength, r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}))
	} else {
		spacing := p.params.SpringLength * 0.5
		radius := spacing * math.Sqrt(n)
		at = r2.Add(p.params.Center(), r2.Scale(radius, r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}))
	}

	b := p.params.Bounds()
	return math.Max(b.Min.X, math.Min(b.Max.X, at.X)), math.Max(b.Min.Y, math.Min(b.Max.Y, at.Y))
}

// Reset restarts the spiral and the noise sequence
func (p *Placer) Reset() {
	p.count = 0
	p.noise = opensimplex.New(p.seed)
}

func centroid(points []r2.Vec) r2.Vec {
	var sum r2.Vec
	for _, pt := range points {
		sum = r2.Add(sum, pt)
	}
	return r2.Scale(1/float64(len(points)), sum)
}
