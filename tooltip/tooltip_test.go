package tooltip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePosition(t *testing.T) {
	p := New(800, 600)

	tests := []struct {
		name             string
		cursorX, cursorY float64
		w, h             float64
		want             Point
	}{
		{"center", 400, 300, 100, 50, Point{412, 312}},
		{"top left corner", 0, 0, 100, 50, Point{12, 12}},
		{"top right corner flips left", 795, 5, 100, 50, Point{683, 17}},
		{"bottom left corner flips up", 5, 595, 100, 50, Point{17, 533}},
		{"bottom right corner flips both", 790, 590, 100, 50, Point{678, 528}},
		{"exactly fits with margin", 680, 300, 100, 50, Point{692, 312}},
		{"one pixel past margin flips", 681, 300, 100, 50, Point{569, 312}},
		{"cursor before origin keeps the margin", -100, -100, 100, 50, Point{8, 8}},
		{"cursor past far corner keeps the margin", 2000, 2000, 100, 50, Point{692, 542}},
		{"no room for margins drops them", 400, 300, 790, 590, Point{10, 10}},
		{"tooltip larger than viewport", 400, 300, 900, 700, Point{0, 0}},
		{"zero sized tooltip", 400, 300, 0, 0, Point{412, 312}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ComputePosition(tt.cursorX, tt.cursorY, tt.w, tt.h)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePositionAlwaysInside(t *testing.T) {
	p := New(320, 200)
	for cx := -50.0; cx <= 370; cx += 7 {
		for cy := -50.0; cy <= 250; cy += 7 {
			got := p.ComputePosition(cx, cy, 60, 30)
			assert.GreaterOrEqual(t, got.X, 0.0)
			assert.GreaterOrEqual(t, got.Y, 0.0)
			assert.LessOrEqual(t, got.X+60, 320.0)
			assert.LessOrEqual(t, got.Y+30, 200.0)

			// With room to spare the margin is kept on every side
			assert.GreaterOrEqual(t, got.X, p.Margin)
			assert.GreaterOrEqual(t, got.Y, p.Margin)
			assert.LessOrEqual(t, got.X+60, 320.0-p.Margin)
			assert.LessOrEqual(t, got.Y+30, 200.0-p.Margin)
		}
	}
}
