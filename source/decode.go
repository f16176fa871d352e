package source

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TFMV/echoview/models"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for graph files of an unknown format
var ErrUnsupportedFormat = errors.New("unsupported format")

// Supported graph file formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatLog  = "log"
)

// FormatFromPath guesses the format from a file extension
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	case ".log", ".txt":
		return FormatLog, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// fileNode accepts both the record shape (GUID/Name) and the short shape
// (id/label) of a node
type fileNode struct {
	GUID   string            `json:"GUID" yaml:"guid"`
	ID     string            `json:"id" yaml:"id"`
	Name   string            `json:"Name" yaml:"name"`
	Label  string            `json:"label" yaml:"label"`
	Labels []string          `json:"Labels" yaml:"labels"`
	Tags   map[string]string `json:"Tags" yaml:"tags"`
	Data   any               `json:"Data" yaml:"data"`
}

// fileEdge accepts both From/To records and source/target pairs
type fileEdge struct {
	GUID   string            `json:"GUID" yaml:"guid"`
	ID     string            `json:"id" yaml:"id"`
	Name   string            `json:"Name" yaml:"name"`
	Label  string            `json:"label" yaml:"label"`
	From   string            `json:"From" yaml:"from"`
	To     string            `json:"To" yaml:"to"`
	Source string            `json:"source" yaml:"source"`
	Target string            `json:"target" yaml:"target"`
	Cost   int               `json:"Cost" yaml:"cost"`
	Weight float64           `json:"weight" yaml:"weight"`
	Labels []string          `json:"Labels" yaml:"labels"`
	Tags   map[string]string `json:"Tags" yaml:"tags"`
}

type fileDoc struct {
	GUID  string     `json:"GUID" yaml:"guid"`
	Name  string     `json:"Name" yaml:"name"`
	Nodes []fileNode `json:"Nodes" yaml:"nodes"`
	Edges []fileEdge `json:"Edges" yaml:"edges"`
}

// Decode parses a graph document. name is used as GUID and name when the
// document carries neither. Node and edge identifiers are kept as written so
// that reloading the same file yields the same entities.
func Decode(data []byte, format, name string) (*models.Graph, error) {
	switch format {
	case FormatJSON:
		var doc fileDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing JSON: %w", err)
		}
		return doc.graph(name)
	case FormatYAML:
		var doc fileDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
		return doc.graph(name)
	case FormatCSV:
		return decodeCSV(data, name)
	case FormatLog:
		return decodeLog(data, name), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (d fileDoc) graph(name string) (*models.Graph, error) {
	g := &models.Graph{
		GUID: firstNonEmpty(d.GUID, name),
		Name: firstNonEmpty(d.Name, name),
	}

	seen := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		id := firstNonEmpty(n.GUID, n.ID)
		if id == "" {
			return nil, fmt.Errorf("node %d has no id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate node id %q", id)
		}
		seen[id] = true
		g.Nodes = append(g.Nodes, models.NodeRecord{
			GUID:      id,
			GraphGUID: g.GUID,
			Name:      firstNonEmpty(n.Name, n.Label),
			Labels:    n.Labels,
			Tags:      n.Tags,
			Data:      n.Data,
		})
	}

	for i, e := range d.Edges {
		from := firstNonEmpty(e.From, e.Source)
		to := firstNonEmpty(e.To, e.Target)
		if from == "" || to == "" {
			return nil, fmt.Errorf("edge %d is missing an endpoint", i)
		}
		cost := e.Cost
		if cost == 0 && e.Weight != 0 {
			cost = int(math.Round(e.Weight))
		}
		g.Edges = append(g.Edges, models.EdgeRecord{
			GUID:      firstNonEmpty(e.GUID, e.ID, edgeID(from, to, i)),
			GraphGUID: g.GUID,
			Name:      firstNonEmpty(e.Name, e.Label),
			From:      from,
			To:        to,
			Cost:      cost,
			Labels:    e.Labels,
			Tags:      e.Tags,
		})
	}
	return g, nil
}

// decodeCSV reads an edge list. Nodes are created for every endpoint seen.
func decodeCSV(data []byte, name string) (*models.Graph, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	sourceIdx, targetIdx, weightIdx, labelIdx := -1, -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "source", "from", "src":
			sourceIdx = i
		case "target", "to", "dst":
			targetIdx = i
		case "weight", "value", "strength", "cost":
			weightIdx = i
		case "label", "name", "title":
			labelIdx = i
		}
	}
	if sourceIdx == -1 || targetIdx == -1 {
		return nil, fmt.Errorf("CSV must contain source and target columns")
	}

	b := newEdgeListBuilder(name)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV row: %w", err)
		}

		cost := 1
		if weightIdx >= 0 && weightIdx < len(row) {
			if w, err := strconv.ParseFloat(strings.TrimSpace(row[weightIdx]), 64); err == nil {
				cost = int(math.Round(w))
			}
		}
		label := ""
		if labelIdx >= 0 && labelIdx < len(row) {
			label = row[labelIdx]
		}
		b.link(strings.TrimSpace(row[sourceIdx]), strings.TrimSpace(row[targetIdx]), label, cost)
	}
	return b.graph, nil
}

// logPatterns are the relationship separators recognised in log lines
var logPatterns = []struct {
	separator     string
	bidirectional bool
}{
	{" -> ", false},
	{" => ", false},
	{" connected to ", true},
	{" connects to ", false},
	{" links to ", false},
	{" linked to ", true},
	{" - ", true},
}

// decodeLog reads one relationship per line, e.g. "A -> B" or "X linked to Y".
// Lines matching no pattern are skipped. Bidirectional phrasings get one edge
// per direction.
func decodeLog(data []byte, name string) *models.Graph {
	b := newEdgeListBuilder(name)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, p := range logPatterns {
			parts := strings.Split(line, p.separator)
			if len(parts) != 2 {
				continue
			}
			from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			b.link(from, to, "", 1)
			if p.bidirectional {
				b.link(to, from, "", 1)
			}
			break
		}
	}
	return b.graph
}

type edgeListBuilder struct {
	graph *models.Graph
	nodes map[string]bool
}

func newEdgeListBuilder(name string) *edgeListBuilder {
	return &edgeListBuilder{
		graph: &models.Graph{GUID: name, Name: name},
		nodes: make(map[string]bool),
	}
}

func (b *edgeListBuilder) link(from, to, label string, cost int) {
	if from == "" || to == "" {
		return
	}
	for _, id := range []string{from, to} {
		if !b.nodes[id] {
			b.nodes[id] = true
			b.graph.Nodes = append(b.graph.Nodes, models.NodeRecord{GUID: id, GraphGUID: b.graph.GUID, Name: id})
		}
	}
	b.graph.Edges = append(b.graph.Edges, models.EdgeRecord{
		GUID:      edgeID(from, to, len(b.graph.Edges)),
		GraphGUID: b.graph.GUID,
		Name:      label,
		From:      from,
		To:        to,
		Cost:      cost,
	})
}

func edgeID(from, to string, i int) string {
	return fmt.Sprintf("%s->%s#%d", from, to, i)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
