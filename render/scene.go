package render

import (
	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/models"
)

// Circle is a node marker in screen space
type Circle struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	R        float64 `json:"r"`
	Dragging bool    `json:"dragging,omitempty"`
	Hovered  bool    `json:"hovered,omitempty"`
	Selected bool    `json:"selected,omitempty"`
	Neighbor bool    `json:"neighbor,omitempty"` // Shares an edge with the selected node
}

// Line is an edge segment in screen space
type Line struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
	Selected bool    `json:"selected,omitempty"`
}

// Scene is a frame projected through a viewport, ready to draw
type Scene struct {
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Seq        uint64   `json:"seq"`
	Generation uint64   `json:"generation"`
	Settled    bool     `json:"settled"`
	Lines      []Line   `json:"lines"`
	Circles    []Circle `json:"circles"`
}

// Highlight marks the entities a surface draws in an accent color
type Highlight struct {
	Hovered  string
	Selected interaction.Selection
}

// Adapter turns frames into drawing primitives
type Adapter struct {
	NodeRadius float64 // World-space radius, scaled with zoom
	Highlight  Highlight
}

// NewAdapter creates an adapter with the default node radius
func NewAdapter() Adapter {
	return Adapter{NodeRadius: 8}
}

// Primitives maps nodes to circles and edges to lines between their cached
// endpoints, both transformed by the viewport. Node coordinates are untouched.
func (a Adapter) Primitives(frame models.Frame, view interaction.Viewport) Scene {
	radius := a.NodeRadius
	if radius <= 0 {
		radius = NewAdapter().NodeRadius
	}

	scene := Scene{
		Width:      view.Width,
		Height:     view.Height,
		Seq:        frame.Seq,
		Generation: frame.Generation,
		Settled:    frame.Settled,
		Lines:      make([]Line, 0, len(frame.Edges)),
		Circles:    make([]Circle, 0, len(frame.Nodes)),
	}

	sel := a.Highlight.Selected
	neighbors := make(map[string]bool)
	if sel.Kind == interaction.SelectNode {
		for _, id := range frame.ConnectedNodes(sel.ID) {
			neighbors[id] = true
		}
	}

	for _, e := range frame.Edges {
		x1, y1 := view.WorldToScreen(e.SourceX, e.SourceY)
		x2, y2 := view.WorldToScreen(e.TargetX, e.TargetY)
		scene.Lines = append(scene.Lines, Line{
			ID:       e.ID,
			Label:    e.Label,
			X1:       x1,
			Y1:       y1,
			X2:       x2,
			Y2:       y2,
			Selected: sel.Kind == interaction.SelectEdge && sel.ID == e.ID,
		})
	}

	for _, n := range frame.Nodes {
		x, y := view.WorldToScreen(n.X, n.Y)
		scene.Circles = append(scene.Circles, Circle{
			ID:       n.ID,
			Label:    n.Label,
			X:        x,
			Y:        y,
			R:        radius * view.Scale,
			Dragging: n.IsDragging,
			Hovered:  n.ID == a.Highlight.Hovered,
			Selected: sel.Kind == interaction.SelectNode && sel.ID == n.ID,
			Neighbor: neighbors[n.ID],
		})
	}
	return scene
}
