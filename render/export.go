package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/TFMV/echoview/models"
)

// JSONEncoder exports the frame together with its projected scene
type JSONEncoder struct{}

// Name returns the format name
func (e *JSONEncoder) Name() string {
	return "json"
}

// ContentType returns the JSON MIME type
func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

// Export is the document written by JSONEncoder
type Export struct {
	Frame models.Frame `json:"frame"`
	Scene Scene        `json:"scene"`
}

// Encode writes the export as indented JSON
func (e *JSONEncoder) Encode(w io.Writer, frame models.Frame, scene Scene) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{Frame: frame, Scene: scene})
}

// DOTEncoder outputs Graphviz DOT with pinned positions
type DOTEncoder struct {
	opts Options
}

// Name returns the format name
func (e *DOTEncoder) Name() string {
	return "dot"
}

// ContentType returns the Graphviz MIME type
func (e *DOTEncoder) ContentType() string {
	return "text/vnd.graphviz"
}

// Encode writes a digraph whose node positions are the frame's world
// coordinates, in inches
func (e *DOTEncoder) Encode(w io.Writer, frame models.Frame, _ Scene) error {
	o := e.opts
	buf := bufio.NewWriter(w)

	buf.WriteString("digraph G {\n")
	fmt.Fprintf(buf, "  graph [bgcolor=%s];\n", strconv.Quote(o.Background))
	fmt.Fprintf(buf, "  node [shape=circle, fontname=\"Arial\", fontsize=%g, color=%s];\n",
		o.FontSize, strconv.Quote(o.NodeColor))
	fmt.Fprintf(buf, "  edge [fontname=\"Arial\", fontsize=%g, color=%s];\n",
		o.FontSize*0.8, strconv.Quote(o.EdgeColor))

	for _, n := range frame.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		fmt.Fprintf(buf, "  %s [label=%s, pos=\"%.2f,%.2f!\"];\n",
			strconv.Quote(n.ID), strconv.Quote(label), n.X/72.0, n.Y/72.0)
	}

	for _, ed := range frame.Edges {
		attrs := ""
		if ed.Label != "" {
			attrs += "label=" + strconv.Quote(ed.Label)
		}
		if ed.Cost > 0 {
			if attrs != "" {
				attrs += ", "
			}
			attrs += "weight=" + strconv.Itoa(ed.Cost)
		}
		if attrs != "" {
			attrs = " [" + attrs + "]"
		}
		fmt.Fprintf(buf, "  %s -> %s%s;\n", strconv.Quote(ed.Source), strconv.Quote(ed.Target), attrs)
	}

	buf.WriteString("}\n")
	return buf.Flush()
}
