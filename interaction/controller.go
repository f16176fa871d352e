// Package interaction translates pointer, wheel and pinch gestures into
// viewport changes, drag requests and selections. Gestures arrive in screen
// coordinates and are converted to world coordinates before they reach the
// simulation.
package interaction

import (
	"errors"
	"math"
	"sync"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/simulation"
)

// Target is the part of the simulation driver the controller drives
type Target interface {
	NodeAt(x, y, radius float64) (models.Node, bool)
	EdgeAt(x, y, tolerance float64) (models.Edge, bool)
	BeginDrag(id string) error
	DragTo(id string, x, y float64) error
	EndDrag(id string) error
	Snapshot() models.Frame
}

// State is the gesture state of a controller
type State int

const (
	Idle State = iota
	Dragging
	Panning
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Panning:
		return "panning"
	default:
		return "idle"
	}
}

// SelectionKind says what a click landed on
type SelectionKind string

const (
	SelectNode SelectionKind = "node"
	SelectEdge SelectionKind = "edge"
)

// Selection is emitted when the user clicks a node or an edge
type Selection struct {
	Kind SelectionKind `json:"kind"`
	ID   string        `json:"id"`
}

// Options tunes hit testing, all in screen pixels
type Options struct {
	ClickThreshold float64 // Pointer travel under which a press is a click
	NodeRadius     float64 // Hit radius around a node center
	EdgeTolerance  float64 // Hit distance from an edge segment
	WheelStep      float64 // Zoom factor per wheel notch
}

// DefaultOptions returns the standard hit-testing tolerances
func DefaultOptions() Options {
	return Options{
		ClickThreshold: 3,
		NodeRadius:     8,
		EdgeTolerance:  4,
		WheelStep:      1.1,
	}
}

// Controller is a synchronous state machine over pointer events. It is safe for
// concurrent use; selection callbacks run on the caller's goroutine after the
// controller lock is released.
type Controller struct {
	target Target
	opts   Options

	mu      sync.Mutex
	view    Viewport
	state   State
	dragID  string
	grabDX  float64
	grabDY  float64
	downX   float64
	downY   float64
	lastX   float64
	lastY   float64
	moved   bool
	hovered string
	sel     Selection

	onSelect []func(Selection)
}

// NewController creates a controller in the Idle state
func NewController(target Target, view Viewport, opts Options) *Controller {
	def := DefaultOptions()
	if opts.ClickThreshold <= 0 {
		opts.ClickThreshold = def.ClickThreshold
	}
	if opts.NodeRadius <= 0 {
		opts.NodeRadius = def.NodeRadius
	}
	if opts.EdgeTolerance <= 0 {
		opts.EdgeTolerance = def.EdgeTolerance
	}
	if opts.WheelStep <= 1 {
		opts.WheelStep = def.WheelStep
	}
	return &Controller{target: target, view: view, opts: opts}
}

// OnSelect registers a callback for clicks on nodes and edges
func (c *Controller) OnSelect(fn func(Selection)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSelect = append(c.onSelect, fn)
}

// State returns the current gesture state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Viewport returns a copy of the current render transform
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Resize updates the screen size used by Fit and Focus
func (c *Controller) Resize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Width, c.view.Height = width, height
}

// Hovered returns the id of the node under the pointer while idle, or ""
func (c *Controller) Hovered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Selected returns the last clicked node or edge; the zero value when none
func (c *Controller) Selected() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// PointerDown starts a drag when the press lands on a node, and a pan otherwise
func (c *Controller) PointerDown(sx, sy float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Dragging {
		c.endDragLocked()
	}

	c.downX, c.downY = sx, sy
	c.lastX, c.lastY = sx, sy
	c.moved = false

	wx, wy := c.view.ScreenToWorld(sx, sy)
	node, ok := c.target.NodeAt(wx, wy, c.opts.NodeRadius/c.view.Scale)
	if !ok {
		c.state = Panning
		return nil
	}

	if err := c.target.BeginDrag(node.ID); err != nil {
		c.state = Idle
		return err
	}
	c.state = Dragging
	c.dragID = node.ID
	c.grabDX, c.grabDY = wx-node.X, wy-node.Y
	c.hovered = node.ID
	logging.Debug("drag started", "node", node.ID)
	return nil
}

// PointerMove moves the dragged node, pans the view, or tracks hover
func (c *Controller) PointerMove(sx, sy float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.moved && math.Hypot(sx-c.downX, sy-c.downY) >= c.opts.ClickThreshold {
		c.moved = true
	}

	switch c.state {
	case Dragging:
		if !c.moved {
			return nil
		}
		wx, wy := c.view.ScreenToWorld(sx, sy)
		if err := c.target.DragTo(c.dragID, wx-c.grabDX, wy-c.grabDY); err != nil {
			if errors.Is(err, simulation.ErrUnknownNode) {
				c.resetLocked()
			}
			return err
		}
	case Panning:
		c.view.Pan(sx-c.lastX, sy-c.lastY)
	default:
		wx, wy := c.view.ScreenToWorld(sx, sy)
		if node, ok := c.target.NodeAt(wx, wy, c.opts.NodeRadius/c.view.Scale); ok {
			c.hovered = node.ID
		} else {
			c.hovered = ""
		}
	}

	c.lastX, c.lastY = sx, sy
	return nil
}

// PointerUp ends the gesture. A press that travelled less than the click
// threshold is a click and selects the node or edge under it.
func (c *Controller) PointerUp(sx, sy float64) error {
	c.mu.Lock()

	if !c.moved && math.Hypot(sx-c.downX, sy-c.downY) >= c.opts.ClickThreshold {
		c.moved = true
	}

	var sel *Selection
	var err error
	switch c.state {
	case Dragging:
		if !c.moved {
			sel = &Selection{Kind: SelectNode, ID: c.dragID}
		}
		err = c.endDragLocked()
	case Panning:
		if !c.moved {
			wx, wy := c.view.ScreenToWorld(sx, sy)
			if edge, ok := c.target.EdgeAt(wx, wy, c.opts.EdgeTolerance/c.view.Scale); ok {
				sel = &Selection{Kind: SelectEdge, ID: edge.ID}
			}
		}
	}
	c.state = Idle
	if sel != nil {
		c.sel = *sel
	}
	callbacks := c.onSelect
	c.mu.Unlock()

	if sel != nil {
		logging.Debug("selected", "kind", sel.Kind, "id", sel.ID)
		for _, fn := range callbacks {
			fn(*sel)
		}
	}
	return err
}

// PointerCancel abandons the gesture without selecting anything
func (c *Controller) PointerCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Dragging {
		c.endDragLocked()
	}
	c.state = Idle
}

// Wheel zooms around the cursor. Negative deltaY zooms in.
func (c *Controller) Wheel(sx, sy, deltaY float64) {
	if deltaY == 0 {
		return
	}
	factor := c.opts.WheelStep
	if deltaY > 0 {
		factor = 1 / factor
	}
	c.Pinch(sx, sy, factor)
}

// Pinch zooms by factor around the gesture center
func (c *Controller) Pinch(cx, cy, factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.ZoomAt(cx, cy, factor)
}

// Fit frames every node with padding screen pixels around them
func (c *Controller) Fit(padding float64) {
	minX, minY, maxX, maxY, ok := c.target.Snapshot().Extent()
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Fit(minX, minY, maxX, maxY, padding)
}

// Focus centers the view on a node at the given scale
func (c *Controller) Focus(id string, scale float64) error {
	frame := c.target.Snapshot()
	node, ok := frame.FindNode(id)
	if !ok {
		return simulation.ErrUnknownNode
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.CenterOn(node.X, node.Y, scale)
	return nil
}

// ResetView returns to the identity transform
func (c *Controller) ResetView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Reset()
}

func (c *Controller) endDragLocked() error {
	id := c.dragID
	c.resetLocked()
	err := c.target.EndDrag(id)
	if errors.Is(err, simulation.ErrUnknownNode) {
		// Graph was reset under the gesture
		return nil
	}
	return err
}

func (c *Controller) resetLocked() {
	c.state = Idle
	c.dragID = ""
	c.grabDX, c.grabDY = 0, 0
}
