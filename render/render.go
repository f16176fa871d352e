// Package render turns simulation frames into drawable scenes and encodes them
// as SVG, terminal text, JSON or Graphviz DOT.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/TFMV/echoview/models"
)

// ErrUnsupportedFormat is returned by GetEncoder for unknown format names
var ErrUnsupportedFormat = errors.New("unsupported render format")

// Options defines rendering configuration options
type Options struct {
	Background     string  // Background color
	NodeColor      string  // Resting node fill
	EdgeColor      string  // Edge stroke
	AccentColor    string  // Selected entities
	HoverColor     string  // Node under the pointer
	DragColor      string  // Node being dragged
	EdgeWidth      float64 // Edge stroke width
	FontSize       float64 // Font size for labels
	ShowLabels     bool    // Show node labels
	ShowEdgeLabels bool    // Show edge labels
	Cols           int     // ASCII grid width, derived from the scene when 0
	Rows           int     // ASCII grid height, derived from the scene when 0
	Border         bool    // ASCII frame around the grid
}

// DefaultOptions creates a default set of output options
func DefaultOptions() Options {
	return Options{
		Background:  "#f8f8f8",
		NodeColor:   "#4285F4",
		EdgeColor:   "#666666",
		AccentColor: "#FBBC05",
		HoverColor:  "#34A853",
		DragColor:   "#EA4335",
		EdgeWidth:   1.0,
		FontSize:    10.0,
		ShowLabels:  true,
		Border:      true,
	}
}

// Encoder writes a scene in one output format. JSON export also carries the
// frame the scene was projected from.
type Encoder interface {
	Encode(w io.Writer, frame models.Frame, scene Scene) error

	// Name returns the format name accepted by GetEncoder
	Name() string

	// ContentType is the MIME type served over HTTP
	ContentType() string
}

// Formats lists the names accepted by GetEncoder
func Formats() []string {
	return []string{"svg", "ascii", "json", "dot"}
}

// GetEncoder returns the encoder for a format name
func GetEncoder(format string, opts Options) (Encoder, error) {
	switch strings.ToLower(format) {
	case "svg":
		return &SVGEncoder{opts: opts}, nil
	case "ascii", "text":
		return &ASCIIEncoder{opts: opts}, nil
	case "json":
		return &JSONEncoder{}, nil
	case "dot":
		return &DOTEncoder{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// circleColor picks a node fill from its interaction flags
func (o Options) circleColor(c Circle) string {
	switch {
	case c.Dragging:
		return o.DragColor
	case c.Selected:
		return o.AccentColor
	case c.Hovered:
		return o.HoverColor
	default:
		return o.NodeColor
	}
}

func (o Options) lineColor(l Line) string {
	if l.Selected {
		return o.AccentColor
	}
	return o.EdgeColor
}

// clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
