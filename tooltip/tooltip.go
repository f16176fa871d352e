// Package tooltip positions overlay boxes next to the pointer without letting
// them leave the viewport.
package tooltip

import "math"

// Point is a screen position
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Positioner computes tooltip placement for a fixed viewport size
type Positioner struct {
	ViewportWidth  float64
	ViewportHeight float64
	OffsetX        float64 // Gap between cursor and tooltip, horizontally
	OffsetY        float64 // Gap between cursor and tooltip, vertically
	Margin         float64 // Room kept to the viewport edges
}

// New returns a positioner with the default offsets
func New(width, height float64) Positioner {
	return Positioner{
		ViewportWidth:  width,
		ViewportHeight: height,
		OffsetX:        12,
		OffsetY:        12,
		Margin:         8,
	}
}

// ComputePosition returns the top-left corner for a w×h tooltip anchored at the
// cursor. The tooltip goes below and to the right of the cursor, flips to the
// other side on an axis where it would overflow, and is finally clamped to keep
// Margin from the viewport edges. When the tooltip plus both margins does not
// fit, the clamp drops the margin; a tooltip larger than the viewport is pinned
// at 0 on that axis.
func (p Positioner) ComputePosition(cursorX, cursorY, w, h float64) Point {
	return Point{
		X: place(cursorX, w, p.OffsetX, p.Margin, p.ViewportWidth),
		Y: place(cursorY, h, p.OffsetY, p.Margin, p.ViewportHeight),
	}
}

func place(cursor, size, offset, margin, extent float64) float64 {
	pos := cursor + offset
	if pos+size+margin > extent {
		pos = cursor - offset - size
	}
	if lo, hi := margin, extent-size-margin; lo <= hi {
		return math.Max(lo, math.Min(pos, hi))
	}
	return math.Max(0, math.Min(pos, extent-size))
}
