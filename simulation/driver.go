// Package simulation owns the live node/edge set of a viewing session and drives
// the physics kernel on a frame schedule. The Driver is the only writer of the
// canonical arrays; loaders and interaction controllers submit requests to it.
package simulation

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrUnknownNode is returned for requests naming a node that is not loaded
	ErrUnknownNode = errors.New("unknown node")
	// ErrNotDragging is returned when moving or releasing a node that is not held
	ErrNotDragging = errors.New("node is not being dragged")
	// ErrRunning is returned by Start when the loop is already running
	ErrRunning = errors.New("simulation already running")
)

// FrameSink receives a value copy of the simulation after each published tick
type FrameSink interface {
	PublishFrame(frame models.Frame)
}

// FrameSinkFunc adapts a function to FrameSink
type FrameSinkFunc func(frame models.Frame)

// PublishFrame calls f(frame)
func (f FrameSinkFunc) PublishFrame(frame models.Frame) { f(frame) }

// Option configures a Driver
type Option func(*Driver)

// WithFPS sets the tick rate of the Start loop
func WithFPS(fps int) Option {
	return func(d *Driver) {
		if fps > 0 {
			d.fps = fps
		}
	}
}

// WithSettleThreshold sets the mean kinetic energy under which the layout counts
// as settled. Settled drivers keep ticking but only publish frames on change.
func WithSettleThreshold(energy float64) Option {
	return func(d *Driver) {
		d.settleThreshold = energy
	}
}

// Driver runs the simulation for one session
type Driver struct {
	kernel *physics.Kernel
	placer *physics.Placer

	mu         sync.Mutex
	nodes      []*models.Node
	edges      []*models.Edge
	nodeIndex  map[string]*models.Node
	edgeIndex  map[string]*models.Edge
	adjacency  map[string][]string
	seq        uint64
	generation uint64
	energy     float64
	settled    bool
	dirty      bool

	fps             int
	settleThreshold float64

	sinkMu sync.RWMutex
	sinks  map[int]FrameSink
	nextID int

	// pubMu serializes delivery so sinks see (generation, seq) in order
	pubMu   sync.Mutex
	lastGen uint64
	lastSeq uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a driver around a kernel and a placer
func New(kernel *physics.Kernel, placer *physics.Placer, opts ...Option) *Driver {
	d := &Driver{
		kernel:          kernel,
		placer:          placer,
		nodeIndex:       make(map[string]*models.Node),
		edgeIndex:       make(map[string]*models.Edge),
		adjacency:       make(map[string][]string),
		fps:             60,
		settleThreshold: 0.01,
		sinks:           make(map[int]FrameSink),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the tick loop until ctx is cancelled or Stop is called. Ticks never
// overlap: a tick that overruns its frame makes the ticker drop the missed ones.
// A loop that ended with its context can be started again without Stop.
func (d *Driver) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		select {
		case <-d.done:
			d.cancel()
			d.cancel, d.done = nil, nil
		default:
			return ErrRunning
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel, d.done = cancel, done

	go d.run(ctx, done)
	logging.Debug("simulation started", "fps", d.fps)
	return nil
}

func (d *Driver) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(d.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			d.Tick()
		}
	}
}

// Stop cancels the tick loop and waits for it to exit. No tick runs after Stop
// returns. Stopping a driver that is not running is a no-op.
func (d *Driver) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel, d.done = nil, nil
	logging.Debug("simulation stopped")
}

// Running reports whether the tick loop is active
func (d *Driver) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.done == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// Tick advances the simulation by one kernel step and publishes the resulting
// frame, unless the layout is settled and nothing changed since the last frame.
func (d *Driver) Tick() {
	d.mu.Lock()
	d.kernel.Step(d.nodes, d.edges)
	d.seq++

	wasSettled := d.settled
	d.energy = d.kernel.Energy(d.nodes)
	d.settled = d.energy < d.settleThreshold && !d.anyDraggingLocked()

	publish := d.dirty || !d.settled || !wasSettled
	d.dirty = false
	var frame models.Frame
	if publish {
		frame = d.frameLocked()
	}
	d.mu.Unlock()

	if publish {
		d.publish(frame)
	}
}

// Settle ticks synchronously until the layout settles, maxTicks is reached or
// ctx is done. It returns the number of ticks run. It must not be combined with
// a running Start loop.
func (d *Driver) Settle(ctx context.Context, maxTicks int) (int, error) {
	for i := 0; i < maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		d.Tick()
		if d.Settled() {
			return i + 1, nil
		}
	}
	return maxTicks, nil
}

// Settled reports whether the last tick left the layout at rest
func (d *Driver) Settled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// MergeNodes adds nodes whose IDs are not yet present and returns how many were
// added. New nodes without a position are placed next to an already loaded
// neighbour when one is known, and start at rest. Existing nodes are untouched.
func (d *Driver) MergeNodes(nodes []models.Node) int {
	d.mu.Lock()
	added := 0
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if _, exists := d.nodeIndex[n.ID]; exists {
			continue
		}

		node := n
		if node.X == 0 && node.Y == 0 {
			node.X, node.Y = d.placer.Place(d.neighborPositionsLocked(node.ID))
		} else {
			node.X, node.Y = d.kernel.Clamp(node.X, node.Y)
		}
		node.VX, node.VY = 0, 0
		node.IsDragging = false

		d.nodes = append(d.nodes, &node)
		d.nodeIndex[node.ID] = &node
		added++
	}
	if added > 0 {
		physics.SyncEdges(d.nodes, d.edges)
		d.dirty = true
		d.settled = false
	}
	d.mu.Unlock()

	if added > 0 {
		logging.Debug("merged nodes", "added", added, "offered", len(nodes))
	}
	return added
}

// MergeEdges adds edges whose IDs are not yet present and returns how many were
// added. Edges may name nodes that have not arrived yet.
func (d *Driver) MergeEdges(edges []models.Edge) int {
	d.mu.Lock()
	added := 0
	for _, e := range edges {
		if e.ID == "" {
			continue
		}
		if _, exists := d.edgeIndex[e.ID]; exists {
			continue
		}

		edge := e
		d.edges = append(d.edges, &edge)
		d.edgeIndex[edge.ID] = &edge
		d.adjacency[edge.Source] = append(d.adjacency[edge.Source], edge.Target)
		d.adjacency[edge.Target] = append(d.adjacency[edge.Target], edge.Source)
		added++
	}
	if added > 0 {
		physics.SyncEdges(d.nodes, d.edges)
		d.dirty = true
		d.settled = false
	}
	d.mu.Unlock()

	if added > 0 {
		logging.Debug("merged edges", "added", added, "offered", len(edges))
	}
	return added
}

// Reset drops every node and edge, for a graph switch or teardown. It returns the
// new generation number.
func (d *Driver) Reset() uint64 {
	d.mu.Lock()
	d.nodes = nil
	d.edges = nil
	d.nodeIndex = make(map[string]*models.Node)
	d.edgeIndex = make(map[string]*models.Edge)
	d.adjacency = make(map[string][]string)
	d.placer.Reset()
	d.generation++
	d.energy = 0
	d.settled = false
	d.dirty = false
	frame := d.frameLocked()
	d.mu.Unlock()

	d.publish(frame)
	return frame.Generation
}

// Generation identifies the current entity set; it changes on every Reset
func (d *Driver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// BeginDrag hands control of a node's position to the caller until EndDrag
func (d *Driver) BeginDrag(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodeIndex[id]
	if !ok {
		return ErrUnknownNode
	}
	n.IsDragging = true
	n.VX, n.VY = 0, 0
	d.dirty = true
	return nil
}

// DragTo moves a held node. The position is clamped to the simulation bounds.
func (d *Driver) DragTo(id string, x, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodeIndex[id]
	if !ok {
		return ErrUnknownNode
	}
	if !n.IsDragging {
		return ErrNotDragging
	}
	n.X, n.Y = d.kernel.Clamp(x, y)
	n.VX, n.VY = 0, 0
	physics.SyncEdges([]*models.Node{n}, d.edges)
	d.dirty = true
	d.settled = false
	return nil
}

// EndDrag releases a held node. It restarts from rest so the forces take over
// on the next tick without a jump.
func (d *Driver) EndDrag(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodeIndex[id]
	if !ok {
		return ErrUnknownNode
	}
	if !n.IsDragging {
		return ErrNotDragging
	}
	n.IsDragging = false
	n.VX, n.VY = 0, 0
	d.dirty = true
	d.settled = false
	return nil
}

// Snapshot returns a value copy of the current state
func (d *Driver) Snapshot() models.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameLocked()
}

// Counts returns the number of loaded nodes and edges
func (d *Driver) Counts() (nodes, edges int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes), len(d.edges)
}

// NodeAt returns the node closest to (x, y) within radius, in world units
func (d *Driver) NodeAt(x, y, radius float64) (models.Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var best *models.Node
	bestDist := radius
	for i := len(d.nodes) - 1; i >= 0; i-- {
		n := d.nodes[i]
		if dist := math.Hypot(n.X-x, n.Y-y); dist <= bestDist {
			best, bestDist = n, dist
		}
	}
	if best == nil {
		return models.Node{}, false
	}
	return *best, true
}

// EdgeAt returns the edge whose drawn segment passes closest to (x, y) within
// tolerance, in world units
func (d *Driver) EdgeAt(x, y, tolerance float64) (models.Edge, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := r2.Vec{X: x, Y: y}
	var best *models.Edge
	bestDist := tolerance
	for _, e := range d.edges {
		a := r2.Vec{X: e.SourceX, Y: e.SourceY}
		b := r2.Vec{X: e.TargetX, Y: e.TargetY}
		if dist := segmentDistance(p, a, b); dist <= bestDist {
			best, bestDist = e, dist
		}
	}
	if best == nil {
		return models.Edge{}, false
	}
	return *best, true
}

// Subscribe registers a frame sink and returns a function that removes it
func (d *Driver) Subscribe(sink FrameSink) (unsubscribe func()) {
	d.sinkMu.Lock()
	id := d.nextID
	d.nextID++
	d.sinks[id] = sink
	d.sinkMu.Unlock()

	return func() {
		d.sinkMu.Lock()
		delete(d.sinks, id)
		d.sinkMu.Unlock()
	}
}

// publish delivers a frame to every sink. Frames are built under mu but sent
// after it is released, so a tick racing a Reset can arrive late; a frame older
// than the last one delivered is dropped.
func (d *Driver) publish(frame models.Frame) {
	d.pubMu.Lock()
	defer d.pubMu.Unlock()
	if frame.Generation < d.lastGen || (frame.Generation == d.lastGen && frame.Seq < d.lastSeq) {
		logging.Debug("dropped stale frame", "generation", frame.Generation, "seq", frame.Seq)
		return
	}
	d.lastGen, d.lastSeq = frame.Generation, frame.Seq

	d.sinkMu.RLock()
	defer d.sinkMu.RUnlock()
	for _, s := range d.sinks {
		s.PublishFrame(frame)
	}
}

func (d *Driver) frameLocked() models.Frame {
	frame := models.Frame{
		Seq:        d.seq,
		Generation: d.generation,
		Nodes:      make([]models.Node, len(d.nodes)),
		Edges:      make([]models.Edge, len(d.edges)),
		Energy:     d.energy,
		Settled:    d.settled,
		Time:       time.Now(),
	}
	for i, n := range d.nodes {
		frame.Nodes[i] = *n
	}
	for i, e := range d.edges {
		frame.Edges[i] = *e
	}
	return frame
}

func (d *Driver) anyDraggingLocked() bool {
	for _, n := range d.nodes {
		if n.IsDragging {
			return true
		}
	}
	return false
}

func (d *Driver) neighborPositionsLocked(id string) []r2.Vec {
	var out []r2.Vec
	for _, other := range d.adjacency[id] {
		if n, ok := d.nodeIndex[other]; ok && other != id {
			out = append(out, r2.Vec{X: n.X, Y: n.Y})
		}
	}
	return out
}

// segmentDistance returns the distance from p to the segment ab
func segmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	lenSq := r2.Dot(ab, ab)
	if lenSq == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, a), ab)/lenSq))
	closest := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(p, closest))
}
