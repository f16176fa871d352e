package interaction

import "math"

// Viewport is the render transform between world coordinates (where the physics
// runs) and screen coordinates. screen = world*Scale + Offset. Changing it never
// moves a node.
type Viewport struct {
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	Scale    float64 `json:"scale"`
	MinScale float64 `json:"minScale"`
	MaxScale float64 `json:"maxScale"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// NewViewport returns an identity viewport of the given screen size
func NewViewport(width, height, minScale, maxScale float64) Viewport {
	if minScale <= 0 {
		minScale = 0.2
	}
	if maxScale < minScale {
		maxScale = 5
	}
	return Viewport{
		Scale:    1,
		MinScale: minScale,
		MaxScale: maxScale,
		Width:    width,
		Height:   height,
	}
}

// ScreenToWorld maps a screen point into world coordinates
func (v Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	return (sx - v.OffsetX) / v.Scale, (sy - v.OffsetY) / v.Scale
}

// WorldToScreen maps a world point onto the screen
func (v Viewport) WorldToScreen(x, y float64) (float64, float64) {
	return x*v.Scale + v.OffsetX, y*v.Scale + v.OffsetY
}

// ZoomAt multiplies the scale by factor, clamped to [MinScale, MaxScale], keeping
// the world point under (sx, sy) fixed on screen
func (v *Viewport) ZoomAt(sx, sy, factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	wx, wy := v.ScreenToWorld(sx, sy)
	v.Scale = v.clampScale(v.Scale * factor)
	v.OffsetX = sx - wx*v.Scale
	v.OffsetY = sy - wy*v.Scale
}

// Pan translates the view by a screen delta
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}

// Fit scales and centers the view so that the world rectangle plus padding (in
// screen pixels) fills the screen
func (v *Viewport) Fit(minX, minY, maxX, maxY, padding float64) {
	w := math.Max(maxX-minX, 1)
	h := math.Max(maxY-minY, 1)
	availW := math.Max(v.Width-2*padding, 1)
	availH := math.Max(v.Height-2*padding, 1)
	v.CenterOn((minX+maxX)/2, (minY+maxY)/2, math.Min(availW/w, availH/h))
}

// CenterOn puts the world point (x, y) in the middle of the screen at the given
// scale
func (v *Viewport) CenterOn(x, y, scale float64) {
	v.Scale = v.clampScale(scale)
	v.OffsetX = v.Width/2 - x*v.Scale
	v.OffsetY = v.Height/2 - y*v.Scale
}

// Reset returns to the identity transform
func (v *Viewport) Reset() {
	v.OffsetX, v.OffsetY, v.Scale = 0, 0, 1
}

func (v Viewport) clampScale(s float64) float64 {
	return math.Max(v.MinScale, math.Min(v.MaxScale, s))
}
