package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewNodeRecord creates a node record with a fresh GUID
func NewNodeRecord(graphGUID, name string, labels ...string) NodeRecord {
	return NodeRecord{
		GUID:       uuid.New().String(),
		GraphGUID:  graphGUID,
		Name:       name,
		Labels:     labels,
		CreatedUtc: time.Now().UTC(),
	}
}

// NewEdgeRecord creates an edge record with a fresh GUID
func NewEdgeRecord(graphGUID, from, to string, cost int) EdgeRecord {
	return EdgeRecord{
		GUID:       uuid.New().String(),
		GraphGUID:  graphGUID,
		From:       from,
		To:         to,
		Cost:       cost,
		CreatedUtc: time.Now().UTC(),
	}
}

// ToNode maps a service record to a simulation node. Position is left at the
// origin; the driver assigns one on merge.
func (r NodeRecord) ToNode() Node {
	label := r.Name
	if label == "" {
		label = r.GUID
	}
	return Node{ID: r.GUID, Label: label}
}

// ToEdge maps a service record to a simulation edge
func (r EdgeRecord) ToEdge() Edge {
	return Edge{
		ID:     r.GUID,
		Source: r.From,
		Target: r.To,
		Label:  r.Name,
		Cost:   r.Cost,
	}
}

// NodesFromRecords maps a batch of node records
func NodesFromRecords(records []NodeRecord) []Node {
	nodes := make([]Node, 0, len(records))
	for _, r := range records {
		nodes = append(nodes, r.ToNode())
	}
	return nodes
}

// EdgesFromRecords maps a batch of edge records
func EdgesFromRecords(records []EdgeRecord) []Edge {
	edges := make([]Edge, 0, len(records))
	for _, r := range records {
		edges = append(edges, r.ToEdge())
	}
	return edges
}

// NewGraph creates an empty graph with a unique GUID
func NewGraph(name string) *Graph {
	return &Graph{
		GUID:  uuid.New().String(),
		Name:  name,
		Nodes: []NodeRecord{},
		Edges: []EdgeRecord{},
	}
}

// AddNode adds a node record to the graph, stamping the graph GUID
func (g *Graph) AddNode(n NodeRecord) {
	n.GraphGUID = g.GUID
	g.Nodes = append(g.Nodes, n)
}

// AddEdge adds an edge record after checking that both endpoints exist
func (g *Graph) AddEdge(e EdgeRecord) error {
	sourceExists, targetExists := false, false
	for _, n := range g.Nodes {
		if n.GUID == e.From {
			sourceExists = true
		}
		if n.GUID == e.To {
			targetExists = true
		}
	}

	if !sourceExists {
		return fmt.Errorf("source node with GUID %s does not exist in the graph", e.From)
	}
	if !targetExists {
		return fmt.Errorf("target node with GUID %s does not exist in the graph", e.To)
	}

	e.GraphGUID = g.GUID
	g.Edges = append(g.Edges, e)
	return nil
}
