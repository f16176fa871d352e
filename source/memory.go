package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/TFMV/echoview/models"
)

const demoSize = 60

// Kind names the entity type of a list request
type Kind string

const (
	KindNodes Kind = "nodes"
	KindEdges Kind = "edges"
)

// Hook runs before every list request of a Memory source. A non-nil error is
// returned to the caller instead of the page.
type Hook func(ctx context.Context, kind Kind, graphGUID string, skip int) error

// Memory serves graphs held in memory. It backs the demo source and tests.
type Memory struct {
	mu     sync.RWMutex
	graphs map[string]*models.Graph
	hook   Hook
}

// NewMemory creates a memory source holding the given graphs
func NewMemory(graphs ...*models.Graph) *Memory {
	m := &Memory{graphs: make(map[string]*models.Graph)}
	for _, g := range graphs {
		m.Put(g)
	}
	return m
}

// Put adds or replaces a graph
func (m *Memory) Put(g *models.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[g.GUID] = g
}

// SetHook installs a hook called before each list request
func (m *Memory) SetHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

// ListGraphs returns the held graphs ordered by name
func (m *Memory) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.GraphSummary, 0, len(m.graphs))
	for _, g := range m.graphs {
		out = append(out, models.GraphSummary{GUID: g.GUID, Name: g.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].GUID < out[j].GUID
	})
	return out, nil
}

// ListNodes returns one page of a graph's nodes
func (m *Memory) ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error) {
	g, err := m.lookup(ctx, KindNodes, graphGUID, skip)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(g.Nodes, skip, max), nil
}

// ListEdges returns one page of a graph's edges
func (m *Memory) ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error) {
	g, err := m.lookup(ctx, KindEdges, graphGUID, skip)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(g.Edges, skip, max), nil
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func (m *Memory) lookup(ctx context.Context, kind Kind, graphGUID string, skip int) (*models.Graph, error) {
	m.mu.RLock()
	hook := m.hook
	g, ok := m.graphs[graphGUID]
	m.mu.RUnlock()

	if hook != nil {
		if err := hook(ctx, kind, graphGUID, skip); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, graphGUID)
	}
	return g, nil
}

// DemoGraph builds a deterministic demo graph of n nodes: a ternary tree with a
// few cross links so the layout has cycles to resolve.
func DemoGraph(n int) *models.Graph {
	g := models.NewGraph("demo")
	for i := 0; i < n; i++ {
		g.AddNode(models.NewNodeRecord(g.GUID, fmt.Sprintf("node-%02d", i), "demo"))
	}
	for i := 1; i < n; i++ {
		parent := (i - 1) / 3
		g.Edges = append(g.Edges, models.NewEdgeRecord(g.GUID, g.Nodes[parent].GUID, g.Nodes[i].GUID, 1))
		if i%7 == 0 && i >= 5 {
			g.Edges = append(g.Edges, models.NewEdgeRecord(g.GUID, g.Nodes[i-5].GUID, g.Nodes[i].GUID, 2))
		}
	}
	return g
}
