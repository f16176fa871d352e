// Package models provides the data structures shared by the echoview simulation,
// loader and render surfaces.
package models

import (
	"time"
)

// Node is a simulated point representing one graph-database vertex
type Node struct {
	ID         string  `json:"id"`
	Label      string  `json:"label,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	IsDragging bool    `json:"isDragging,omitempty"`
}

// Edge is a simulated connector between two nodes. The endpoint coordinates are
// cached copies of the referenced nodes' positions, refreshed every tick.
type Edge struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Label   string  `json:"label,omitempty"`
	Cost    int     `json:"cost,omitempty"`
	SourceX float64 `json:"sourceX"`
	SourceY float64 `json:"sourceY"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

// NodeRecord is a node as returned by the backing graph service
type NodeRecord struct {
	GUID       string            `json:"GUID" yaml:"guid"`
	GraphGUID  string            `json:"GraphGUID,omitempty" yaml:"graphGuid,omitempty"`
	Name       string            `json:"Name" yaml:"name"`
	Labels     []string          `json:"Labels,omitempty" yaml:"labels,omitempty"`
	Tags       map[string]string `json:"Tags,omitempty" yaml:"tags,omitempty"`
	Data       any               `json:"Data,omitempty" yaml:"data,omitempty"`
	CreatedUtc time.Time         `json:"CreatedUtc,omitempty" yaml:"createdUtc,omitempty"`
}

// EdgeRecord is an edge as returned by the backing graph service
type EdgeRecord struct {
	GUID       string            `json:"GUID" yaml:"guid"`
	GraphGUID  string            `json:"GraphGUID,omitempty" yaml:"graphGuid,omitempty"`
	Name       string            `json:"Name,omitempty" yaml:"name,omitempty"`
	From       string            `json:"From" yaml:"from"`
	To         string            `json:"To" yaml:"to"`
	Cost       int               `json:"Cost,omitempty" yaml:"cost,omitempty"`
	Labels     []string          `json:"Labels,omitempty" yaml:"labels,omitempty"`
	Tags       map[string]string `json:"Tags,omitempty" yaml:"tags,omitempty"`
	CreatedUtc time.Time         `json:"CreatedUtc,omitempty" yaml:"createdUtc,omitempty"`
}

// Graph is a complete, non-live collection of records. It backs file sources and
// the offline render command.
type Graph struct {
	GUID  string       `json:"GUID" yaml:"guid"`
	Name  string       `json:"Name" yaml:"name"`
	Nodes []NodeRecord `json:"Nodes" yaml:"nodes"`
	Edges []EdgeRecord `json:"Edges" yaml:"edges"`
}

// GraphSummary identifies a graph offered by a backing service
type GraphSummary struct {
	GUID string `json:"GUID" yaml:"guid"`
	Name string `json:"Name" yaml:"name"`
}

// Frame is a value copy of the simulation state taken after a tick. Readers own
// their Frame; mutating it never affects the simulation.
type Frame struct {
	Seq        uint64    `json:"seq"`
	Generation uint64    `json:"generation"`
	Nodes      []Node    `json:"nodes"`
	Edges      []Edge    `json:"edges"`
	Energy     float64   `json:"energy"`
	Settled    bool      `json:"settled"`
	Time       time.Time `json:"time"`
}
