// Package loader fetches a graph from a backing service in bounded, rate
// limited batches and merges each batch into the live simulation as it
// arrives.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNoGraph is returned by Retry before any graph was requested
var ErrNoGraph = errors.New("no graph selected")

// errSuperseded stops the paging of a session replaced by a newer one
var errSuperseded = errors.New("load superseded")

// Source lists a graph's entities page by page
type Source interface {
	ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error)
	ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error)
}

// Sink receives merged batches; the simulation driver implements it
type Sink interface {
	MergeNodes(nodes []models.Node) int
	MergeEdges(edges []models.Edge) int
	Reset() uint64
}

// State is the phase of a load session
type State string

const (
	Idle     State = "idle"
	Loading  State = "loading"
	Loaded   State = "loaded"
	Failed   State = "failed"
	Canceled State = "canceled"
)

// Status describes the current load session
type Status struct {
	Session     string    `json:"session"`
	GraphGUID   string    `json:"graph"`
	State       State     `json:"state"`
	NodesLoaded int       `json:"nodesLoaded"`
	EdgesLoaded int       `json:"edgesLoaded"`
	Truncated   bool      `json:"truncated,omitempty"`
	Err         error     `json:"-"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusSink is notified of every status change. It is called with the loader
// lock held, so it must not call back into the loader.
type StatusSink interface {
	PublishStatus(status Status)
}

// StatusSinkFunc adapts a function to StatusSink
type StatusSinkFunc func(Status)

// PublishStatus calls f(status)
func (f StatusSinkFunc) PublishStatus(status Status) { f(status) }

// Options bounds a load
type Options struct {
	BatchSize         int     // Entities per request
	MaxNodes          int     // Total node cap, 0 for none
	MaxEdges          int     // Total edge cap, 0 for none
	RequestsPerSecond float64 // Request pacing across sessions, 0 for none
	Burst             int
}

// DefaultOptions returns the standard batch and rate bounds
func DefaultOptions() Options {
	return Options{
		BatchSize:         100,
		MaxNodes:          1000,
		MaxEdges:          2000,
		RequestsPerSecond: 10,
		Burst:             2,
	}
}

// Loader runs at most one load session at a time. Starting a session cancels
// the previous one; anything it still returns is discarded.
type Loader struct {
	source  Source
	sink    Sink
	opts    Options
	limiter *rate.Limiter

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	sinks  []StatusSink
}

// New creates a loader merging into sink
func New(source Source, sink Sink, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := max(opts.Burst, 1)

	return &Loader{
		source:  source,
		sink:    sink,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		status:  Status{State: Idle},
	}
}

// OnStatus registers a status sink
func (l *Loader) OnStatus(s StatusSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Status returns the current session status
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Load fetches graphGUID and blocks until the session ends. It returns the
// session's error, or nil when it completed or was superseded.
func (l *Loader) Load(ctx context.Context, graphGUID string) error {
	ctx, session := l.begin(ctx, graphGUID, false)
	return l.run(ctx, session, graphGUID)
}

// Start begins loading graphGUID in the background and returns the session id
func (l *Loader) Start(ctx context.Context, graphGUID string) string {
	ctx, session := l.begin(ctx, graphGUID, false)
	go l.run(ctx, session, graphGUID)
	return session
}

// Refresh reloads the current graph from scratch, dropping everything merged
// so far. Used when the source content changed under the same graph.
func (l *Loader) Refresh(ctx context.Context) (string, error) {
	graph := l.Status().GraphGUID
	if graph == "" {
		return "", ErrNoGraph
	}
	ctx, session := l.begin(ctx, graph, true)
	go l.run(ctx, session, graph)
	return session, nil
}

// Retry loads the current graph again. Entities merged by the failed session
// stay; merging is idempotent so only the missing ones are added.
func (l *Loader) Retry(ctx context.Context) error {
	graph := l.Status().GraphGUID
	if graph == "" {
		return ErrNoGraph
	}
	return l.Load(ctx, graph)
}

// Cancel stops the running session, if any
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *Loader) begin(ctx context.Context, graphGUID string, forceReset bool) (context.Context, string) {
	ctx, cancel := context.WithCancel(ctx)
	session := uuid.New().String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel

	previous := l.status.GraphGUID
	if forceReset || previous != graphGUID {
		generation := l.sink.Reset()
		logging.Debug("simulation reset for graph switch", "from", previous, "to", graphGUID, "generation", generation)
	}

	now := time.Now()
	l.status = Status{
		Session:   session,
		GraphGUID: graphGUID,
		State:     Loading,
		StartedAt: now,
		UpdatedAt: now,
	}
	l.publishLocked()

	logging.Info("graph load started", "graph", graphGUID, "session", session)
	return ctx, session
}

func (l *Loader) run(ctx context.Context, session, graphGUID string) error {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.pageNodes(gctx, session, graphGUID) })
	g.Go(func() error { return l.pageEdges(gctx, session, graphGUID) })
	err := g.Wait()

	return l.finish(ctx, session, err, time.Since(start))
}

func (l *Loader) pageNodes(ctx context.Context, session, graphGUID string) error {
	return paginate(ctx, l, session, l.opts.MaxNodes,
		func(skip, max int) ([]models.NodeRecord, error) {
			return l.source.ListNodes(ctx, graphGUID, skip, max)
		},
		func(records []models.NodeRecord) bool {
			return l.merge(session, func(s *Status) {
				l.sink.MergeNodes(models.NodesFromRecords(records))
				s.NodesLoaded += len(records)
			})
		}, "nodes")
}

func (l *Loader) pageEdges(ctx context.Context, session, graphGUID string) error {
	return paginate(ctx, l, session, l.opts.MaxEdges,
		func(skip, max int) ([]models.EdgeRecord, error) {
			return l.source.ListEdges(ctx, graphGUID, skip, max)
		},
		func(records []models.EdgeRecord) bool {
			return l.merge(session, func(s *Status) {
				l.sink.MergeEdges(models.EdgesFromRecords(records))
				s.EdgesLoaded += len(records)
			})
		}, "edges")
}

// paginate requests pages until a short page, the cap, or an error. Records
// past the cap are never merged.
func paginate[T any](ctx context.Context, l *Loader, session string, limit int,
	list func(skip, max int) ([]T, error), merge func([]T) bool, kind string) error {

	for skip := 0; ; {
		size := l.opts.BatchSize
		if limit > 0 {
			if skip >= limit {
				// A graph of exactly limit records is complete; look one past
				// the cap before reporting a cut
				if err := l.limiter.Wait(ctx); err != nil {
					return err
				}
				more, err := list(skip, 1)
				if err != nil {
					return fmt.Errorf("list %s at offset %d: %w", kind, skip, err)
				}
				if len(more) > 0 {
					l.markTruncated(session)
				}
				return nil
			}
			size = min(size, limit-skip)
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		records, err := list(skip, size)
		if err != nil {
			return fmt.Errorf("list %s at offset %d: %w", kind, skip, err)
		}
		if len(records) > 0 && !merge(records) {
			return errSuperseded
		}
		skip += len(records)
		if len(records) < size {
			return nil
		}
	}
}

// merge applies fn under the loader lock if session is still current
func (l *Loader) merge(session string, fn func(*Status)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status.Session != session {
		logging.Debug("discarding stale batch", "session", session)
		return false
	}
	fn(&l.status)
	l.status.UpdatedAt = time.Now()
	l.publishLocked()
	return true
}

func (l *Loader) markTruncated(session string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status.Session == session {
		l.status.Truncated = true
	}
}

func (l *Loader) finish(ctx context.Context, session string, err error, elapsed time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status.Session != session {
		logging.Debug("superseded load finished", "session", session)
		return nil
	}
	l.cancel = nil

	s := &l.status
	switch {
	case err == nil:
		s.State = Loaded
		logging.Info("graph loaded",
			"graph", s.GraphGUID,
			"nodes", s.NodesLoaded,
			"edges", s.EdgesLoaded,
			"truncated", s.Truncated,
			"durationMs", elapsed.Milliseconds())
	case ctx.Err() != nil:
		s.State = Canceled
		err = ctx.Err()
		logging.Info("graph load canceled", "graph", s.GraphGUID)
	default:
		s.State = Failed
		s.Err = err
		s.Error = err.Error()
		logging.Warn("graph load failed",
			"graph", s.GraphGUID,
			"nodes", s.NodesLoaded,
			"edges", s.EdgesLoaded,
			"error", err)
	}
	s.UpdatedAt = time.Now()
	l.publishLocked()
	return err
}

func (l *Loader) publishLocked() {
	for _, s := range l.sinks {
		s.PublishStatus(l.status)
	}
}
