package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors produce for one save
const reloadDelay = 100 * time.Millisecond

// File serves the single graph held in a JSON, YAML, CSV or log file
type File struct {
	path   string
	format string

	mu    sync.RWMutex
	graph *models.Graph

	watcher   *fsnotify.Watcher
	changes   chan string
	closeOnce sync.Once
	done      chan struct{}
}

// OpenFile reads and decodes a graph file
func OpenFile(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f := &File{
		path:    path,
		format:  format,
		changes: make(chan string, 1),
		done:    make(chan struct{}),
	}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the file. On error the previous graph is kept.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(f.path), filepath.Ext(f.path))
	g, err := Decode(data, f.format, name)
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.graph = g
	f.mu.Unlock()
	return nil
}

// Graph returns the currently loaded graph
func (f *File) Graph() *models.Graph {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.graph
}

// Changes delivers the graph GUID after each successful reload triggered by
// Watch. Bursts are coalesced; a slow reader sees at least the last change.
func (f *File) Changes() <-chan string {
	return f.changes
}

// Watch reloads the graph whenever the file is written, until ctx is done or
// the source is closed. The parent directory is watched so that editors that
// replace the file on save are followed.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	f.watcher = w

	logging.Info("watching graph file", "path", f.path)
	go f.processEvents(ctx, w)
	return nil
}

func (f *File) processEvents(ctx context.Context, w *fsnotify.Watcher) {
	target := filepath.Clean(f.path)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDelay)
			}

		case <-timer.C:
			if err := f.Reload(); err != nil {
				logging.Warn("graph file reload failed", "path", f.path, "error", err)
				continue
			}
			guid := f.Graph().GUID
			logging.Info("graph file reloaded", "path", f.path, "graph", guid)
			select {
			case f.changes <- guid:
			default:
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// ListGraphs returns the file's graph
func (f *File) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	g := f.Graph()
	return []models.GraphSummary{{GUID: g.GUID, Name: g.Name}}, nil
}

// ListNodes returns one page of the file's nodes
func (f *File) ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error) {
	g, err := f.lookup(ctx, graphGUID)
	if err != nil {
		return nil, err
	}
	return page(g.Nodes, skip, max), nil
}

// ListEdges returns one page of the file's edges
func (f *File) ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error) {
	g, err := f.lookup(ctx, graphGUID)
	if err != nil {
		return nil, err
	}
	return page(g.Edges, skip, max), nil
}

// Close stops watching
func (f *File) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		if f.watcher != nil {
			err = f.watcher.Close()
		}
	})
	return err
}

func (f *File) lookup(ctx context.Context, graphGUID string) (*models.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := f.Graph()
	if g.GUID != graphGUID {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, graphGUID)
	}
	return g, nil
}
