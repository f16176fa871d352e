package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/TFMV/echoview/models"
)

const (
	nodeRune     = 'O'
	dragRune     = '@'
	selectedRune = '*'
	hoverRune    = '#'
	neighborRune = 'o'
	edgeRune     = '·'
)

// ASCIIEncoder outputs a character grid for terminals
type ASCIIEncoder struct {
	opts Options
}

// NewASCIIEncoder creates an ASCII encoder; surfaces that map pointer input
// onto cells use its Grid
func NewASCIIEncoder(opts Options) *ASCIIEncoder {
	return &ASCIIEncoder{opts: opts}
}

// Name returns the format name
func (e *ASCIIEncoder) Name() string {
	return "ascii"
}

// ContentType returns the plain text MIME type
func (e *ASCIIEncoder) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Encode writes the grid, one line per row
func (e *ASCIIEncoder) Encode(w io.Writer, _ models.Frame, scene Scene) error {
	_, err := io.WriteString(w, strings.Join(e.Lines(scene), "\n")+"\n")
	return err
}

// Grid maps screen coordinates onto character cells
type Grid struct {
	Cols   int
	Rows   int
	Width  float64
	Height float64
	inset  int
}

// Grid returns the cell layout used for a scene of the given size
func (e *ASCIIEncoder) Grid(width, height float64) Grid {
	cols, rows := e.opts.Cols, e.opts.Rows
	if cols <= 0 {
		cols = max(int(width/10), 40)
	}
	if rows <= 0 {
		// Cells are about twice as tall as wide
		rows = max(int(height/20), 20)
	}
	g := Grid{Cols: cols, Rows: rows, Width: width, Height: height}
	if e.opts.Border && cols > 2 && rows > 2 {
		g.inset = 1
	}
	return g
}

func (g Grid) inner() (int, int) {
	return g.Cols - 2*g.inset, g.Rows - 2*g.inset
}

// Cell returns the cell holding a screen point; ok is false outside the grid
func (g Grid) Cell(sx, sy float64) (col, row int, ok bool) {
	if g.Width <= 0 || g.Height <= 0 || sx < 0 || sy < 0 || sx >= g.Width || sy >= g.Height {
		return 0, 0, false
	}
	iw, ih := g.inner()
	col = int(sx*float64(iw)/g.Width) + g.inset
	row = int(sy*float64(ih)/g.Height) + g.inset
	return col, row, true
}

// Point returns the screen coordinates at the center of a cell
func (g Grid) Point(col, row int) (sx, sy float64) {
	iw, ih := g.inner()
	if iw <= 0 || ih <= 0 {
		return 0, 0
	}
	sx = (float64(col-g.inset) + 0.5) * g.Width / float64(iw)
	sy = (float64(row-g.inset) + 0.5) * g.Height / float64(ih)
	return sx, sy
}

// Lines renders the scene into grid rows
func (e *ASCIIEncoder) Lines(scene Scene) []string {
	g := e.Grid(scene.Width, scene.Height)

	grid := make([][]rune, g.Rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", g.Cols))
	}
	if g.inset > 0 {
		drawBorder(grid, fmt.Sprintf(" echoview  nodes %d  edges %d ", len(scene.Circles), len(scene.Lines)))
	}
	if scene.Width <= 0 || scene.Height <= 0 {
		return joinRows(grid)
	}

	for _, l := range scene.Lines {
		x1, y1, x2, y2, ok := clipSegment(l.X1, l.Y1, l.X2, l.Y2, scene.Width, scene.Height)
		if !ok {
			continue
		}
		c1, r1 := g.clampedCell(x1, y1)
		c2, r2 := g.clampedCell(x2, y2)
		drawLine(grid, c1, r1, c2, r2, g.inset)
	}

	for _, c := range scene.Circles {
		col, row, ok := g.Cell(c.X, c.Y)
		if !ok {
			continue
		}
		grid[row][col] = circleRune(c)

		if e.opts.ShowLabels && c.Label != "" && row+1 < g.Rows-g.inset {
			for i, r := range []rune(c.Label) {
				x := col + i
				if x >= g.Cols-g.inset {
					break
				}
				if !isNodeRune(grid[row+1][x]) {
					grid[row+1][x] = r
				}
			}
		}
	}

	return joinRows(grid)
}

func joinRows(grid [][]rune) []string {
	out := make([]string, len(grid))
	for i, row := range grid {
		out[i] = string(row)
	}
	return out
}

// clampedCell maps a point already clipped to the scene, folding the far edge
// into the last cell
func (g Grid) clampedCell(sx, sy float64) (int, int) {
	iw, ih := g.inner()
	col := clamp(int(sx*float64(iw)/g.Width), 0, iw-1) + g.inset
	row := clamp(int(sy*float64(ih)/g.Height), 0, ih-1) + g.inset
	return col, row
}

func circleRune(c Circle) rune {
	switch {
	case c.Dragging:
		return dragRune
	case c.Selected:
		return selectedRune
	case c.Hovered:
		return hoverRune
	case c.Neighbor:
		return neighborRune
	default:
		return nodeRune
	}
}

func isNodeRune(r rune) bool {
	switch r {
	case nodeRune, dragRune, selectedRune, hoverRune, neighborRune:
		return true
	}
	return false
}

func drawBorder(grid [][]rune, title string) {
	height, width := len(grid), len(grid[0])
	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0] = '+'
	grid[0][width-1] = '+'
	grid[height-1][0] = '+'
	grid[height-1][width-1] = '+'

	if len(title)+4 < width {
		for i, c := range title {
			grid[0][i+2] = c
		}
	}
}

// drawLine plots a segment with Bresenham's algorithm, leaving node markers
// and the border intact
func drawLine(grid [][]rune, x1, y1, x2, y2, inset int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if x1 >= inset && x1 < len(grid[0])-inset && y1 >= inset && y1 < len(grid)-inset {
			if !isNodeRune(grid[y1][x1]) {
				grid[y1][x1] = edgeRune
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			if x1 == x2 {
				break
			}
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			if y1 == y2 {
				break
			}
			err += dx
			y1 += sy
		}
	}
}

// clipSegment clips a segment to [0,w]x[0,h] (Liang-Barsky)
func clipSegment(x1, y1, x2, y2, w, h float64) (float64, float64, float64, float64, bool) {
	dx, dy := x2-x1, y2-y1
	t0, t1 := 0.0, 1.0

	edges := [4][2]float64{
		{-dx, x1},
		{dx, w - x1},
		{-dy, y1},
		{dy, h - y1},
	}
	for _, pq := range edges {
		p, q := pq[0], pq[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}
	return x1 + t0*dx, y1 + t0*dy, x1 + t1*dx, y1 + t1*dy, true
}
