// Package source adapts backing graph services to the paged node/edge listing
// the loader consumes. Every adapter returns records in a stable order so that
// skip/max paging never repeats or drops an entity.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/TFMV/echoview/config"
	"github.com/TFMV/echoview/models"
)

// ErrGraphNotFound is returned when a source has no graph with the requested GUID
var ErrGraphNotFound = errors.New("graph not found")

// Backend is a backing graph service
type Backend interface {
	ListGraphs(ctx context.Context) ([]models.GraphSummary, error)
	ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error)
	ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error)
	Close() error
}

// Open creates the backend selected by cfg.Kind
func Open(ctx context.Context, cfg config.SourceConfig) (Backend, error) {
	switch cfg.Kind {
	case config.SourceREST:
		return NewREST(RESTConfig{
			BaseURL: cfg.URL,
			Tenant:  cfg.Tenant,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
		})
	case config.SourceSQLite:
		return OpenSQLite(cfg.Path)
	case config.SourceNeo4j:
		return OpenNeo4j(ctx, Neo4jConfig{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
	case config.SourceFile:
		f, err := OpenFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Watch {
			if err := f.Watch(ctx); err != nil {
				f.Close()
				return nil, err
			}
		}
		return f, nil
	case config.SourceDemo:
		return NewMemory(DemoGraph(demoSize)), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// page returns items[skip:skip+max], clamped to the slice
func page[T any](items []T, skip, max int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) || max <= 0 {
		return []T{}
	}
	end := min(skip+max, len(items))
	out := make([]T, end-skip)
	copy(out, items[skip:end])
	return out
}
