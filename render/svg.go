package render

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/TFMV/echoview/models"
)

// SVGEncoder outputs SVG format
type SVGEncoder struct {
	opts Options
}

// Name returns the format name
func (e *SVGEncoder) Name() string {
	return "svg"
}

// ContentType returns the SVG MIME type
func (e *SVGEncoder) ContentType() string {
	return "image/svg+xml"
}

// Encode writes the scene as a standalone SVG document
func (e *SVGEncoder) Encode(w io.Writer, _ models.Frame, scene Scene) error {
	o := e.opts
	buf := bufio.NewWriter(w)

	fmt.Fprintf(buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, scene.Width, scene.Height, scene.Width, scene.Height, o.Background)

	buf.WriteString("<g class=\"edges\">\n")
	for _, l := range scene.Lines {
		width := o.EdgeWidth
		if l.Selected {
			width *= 2
		}
		fmt.Fprintf(buf, `<line data-id="%s" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%g"/>
`, html.EscapeString(l.ID), l.X1, l.Y1, l.X2, l.Y2, o.lineColor(l), width)

		if o.ShowEdgeLabels && l.Label != "" {
			fmt.Fprintf(buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="%s" text-anchor="middle">%s</text>
`, (l.X1+l.X2)/2, (l.Y1+l.Y2)/2, o.FontSize, o.EdgeColor, html.EscapeString(l.Label))
		}
	}
	buf.WriteString("</g>\n")

	buf.WriteString("<g class=\"nodes\">\n")
	for _, c := range scene.Circles {
		stroke, strokeWidth := "rgba(0,0,0,0.3)", 0.5
		if c.Neighbor {
			stroke, strokeWidth = o.AccentColor, 2
		}
		fmt.Fprintf(buf, `<circle data-id="%s" cx="%.2f" cy="%.2f" r="%.2f" fill="%s" stroke="%s" stroke-width="%g"/>
`, html.EscapeString(c.ID), c.X, c.Y, c.R, o.circleColor(c), stroke, strokeWidth)

		if o.ShowLabels && c.Label != "" {
			// Label sits below the marker
			fmt.Fprintf(buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="#333333" text-anchor="middle">%s</text>
`, c.X, c.Y+c.R+o.FontSize+2, o.FontSize, html.EscapeString(c.Label))
		}
	}
	buf.WriteString("</g>\n")

	buf.WriteString(`</svg>`)
	return buf.Flush()
}
