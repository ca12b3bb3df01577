// Package gesture translates low-level pointer and touch events on a live
// display surface into validated placement-store mutations. It owns the
// select/drag/resize/delete state machine and all gesture thresholds.
package gesture

import (
	"time"

	"github.com/jonboulle/clockwork"

	"inksign/placement"
)

// Phase is the controller's manipulation state.
type Phase int

const (
	// PhaseIdle means no placement is selected.
	PhaseIdle Phase = iota
	// PhaseSelected means one placement is selected and quiescent.
	PhaseSelected
	// PhaseDragging means the selected placement follows the pointer.
	PhaseDragging
	// PhaseResizing means the selected placement's size follows the pointer.
	PhaseResizing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelected:
		return "selected"
	case PhaseDragging:
		return "dragging"
	case PhaseResizing:
		return "resizing"
	default:
		return "unknown"
	}
}

// Point is a pointer position in device-independent pixels, relative to
// the display surface's top-left corner.
type Point struct {
	X float64
	Y float64
}

// Bounds is the display surface's current pixel size.
type Bounds struct {
	W float64
	H float64
}

// SurfaceMetrics reports the display surface's current bounding box. The
// controller consults it on every event: the surface size changes with
// zoom, viewport and device pixel ratio, and stale cached dimensions are
// the classic source of placement drift.
type SurfaceMetrics interface {
	Bounds() Bounds
}

// SignatureSource supplies the current signature template payload, if any.
type SignatureSource interface {
	Current() ([]byte, bool)
}

// Confirmer resolves delete confirmations.
type Confirmer interface {
	ConfirmDelete(id string) bool
}

// Config holds the gesture thresholds.
type Config struct {
	// DragThreshold is the minimum pointer travel, in device-independent
	// pixels from the gesture's start point, before a manipulation mode is
	// committed. Below it, a press is a tap.
	DragThreshold float64

	// HandleHitZone is the size in device-independent pixels of the resize
	// handle region at the selected placement's bottom-right corner.
	HandleHitZone float64

	// LongPress is how long a motionless press must last to count as a
	// delete gesture.
	LongPress time.Duration

	// MinRectW and MinRectH floor the placement size during resize, in
	// percent of page surface.
	MinRectW float64
	MinRectH float64

	// DefaultRectW and DefaultRectH size newly placed signatures, in
	// percent of page surface.
	DefaultRectW float64
	DefaultRectH float64
}

// DefaultConfig returns the standard gesture tuning.
func DefaultConfig() Config {
	return Config{
		DragThreshold: 4,
		HandleHitZone: 16,
		LongPress:     600 * time.Millisecond,
		MinRectW:      5,
		MinRectH:      3,
		DefaultRectW:  20,
		DefaultRectH:  8,
	}
}

// Controller runs one placement-manipulation session over a page surface.
// It is single-owner state driven by the session's event loop; it has no
// internal locking.
type Controller struct {
	store   *placement.Store
	surface SurfaceMetrics
	sigs    SignatureSource
	confirm Confirmer
	clock   clockwork.Clock
	cfg     Config

	pageIndex int
	phase     Phase
	selected  string

	pointerDown bool
	moved       bool
	resizeMode  bool
	pinching    bool
	pressed     time.Time
	startPoint  Point
	startRect   placement.NormalizedRect
	pressedOn   string
}

// New creates a controller for one page surface.
func New(store *placement.Store, surface SurfaceMetrics, sigs SignatureSource, confirm Confirmer, clock clockwork.Clock, pageIndex int, cfg Config) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		store:     store,
		surface:   surface,
		sigs:      sigs,
		confirm:   confirm,
		clock:     clock,
		cfg:       cfg,
		pageIndex: pageIndex,
		phase:     PhaseIdle,
	}
}

// Phase returns the current manipulation state.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Selected returns the id of the selected placement, or "".
func (c *Controller) Selected() string {
	return c.selected
}

// toPercent converts a surface-relative pixel point to page percentages,
// re-reading the surface bounds at call time.
func (c *Controller) toPercent(pt Point) (x, y float64, ok bool) {
	b := c.surface.Bounds()
	if b.W <= 0 || b.H <= 0 {
		return 0, 0, false
	}
	return pt.X / b.W * 100, pt.Y / b.H * 100, true
}

// hitTest returns the topmost placement on this page containing the point.
func (c *Controller) hitTest(px, py float64) (placement.Placement, bool) {
	list := c.store.List()
	for i := len(list) - 1; i >= 0; i-- {
		p := list[i]
		if p.PageIndex != c.pageIndex {
			continue
		}
		r := p.Rect
		if px >= r.X && px <= r.X+r.W && py >= r.Y && py <= r.Y+r.H {
			return p, true
		}
	}
	return placement.Placement{}, false
}

// inHandleZone reports whether the pixel point falls in the resize-handle
// region at the placement's bottom-right corner.
func (c *Controller) inHandleZone(pt Point, r placement.NormalizedRect) bool {
	b := c.surface.Bounds()
	if b.W <= 0 || b.H <= 0 {
		return false
	}
	cornerX := (r.X + r.W) / 100 * b.W
	cornerY := (r.Y + r.H) / 100 * b.H
	return pt.X >= cornerX-c.cfg.HandleHitZone && pt.X <= cornerX+c.cfg.HandleHitZone &&
		pt.Y >= cornerY-c.cfg.HandleHitZone && pt.Y <= cornerY+c.cfg.HandleHitZone
}

// PointerDown begins a press. Selection changes immediately; whether the
// press becomes a drag, a resize, a tap or a long-press is decided by
// later events.
func (c *Controller) PointerDown(pt Point) {
	if c.pinching {
		return
	}
	px, py, ok := c.toPercent(pt)
	if !ok {
		return
	}

	c.pointerDown = true
	c.moved = false
	c.pressed = c.clock.Now()
	c.startPoint = pt
	c.pressedOn = ""

	hit, found := c.hitTest(px, py)
	if !found {
		// Handle zone extends slightly outside the selected rect.
		if c.selected != "" {
			if sel, ok := c.store.Get(c.selected); ok && c.inHandleZone(pt, sel.Rect) {
				c.resizeMode = true
				c.startRect = sel.Rect
				c.pressedOn = sel.ID
				return
			}
		}
		return
	}

	c.pressedOn = hit.ID
	if hit.ID != c.selected {
		c.selected = hit.ID
		c.phase = PhaseSelected
	}
	c.startRect = hit.Rect
	c.resizeMode = c.inHandleZone(pt, hit.Rect)
}

// PointerMove streams pointer motion. Below the drag threshold (measured
// against the gesture's start point, not the previous sample) nothing
// mutates; above it the controller commits to dragging or resizing and
// issues one candidate update per move.
func (c *Controller) PointerMove(pt Point) {
	if !c.pointerDown || c.pinching || c.pressedOn == "" {
		return
	}

	dx := pt.X - c.startPoint.X
	dy := pt.Y - c.startPoint.Y
	if !c.moved {
		if dx*dx+dy*dy < c.cfg.DragThreshold*c.cfg.DragThreshold {
			return
		}
		c.moved = true
		c.selected = c.pressedOn
		if c.resizeMode {
			c.phase = PhaseResizing
		} else {
			c.phase = PhaseDragging
		}
	}

	b := c.surface.Bounds()
	if b.W <= 0 || b.H <= 0 {
		return
	}
	dxPct := dx / b.W * 100
	dyPct := dy / b.H * 100

	var candidate placement.NormalizedRect
	if c.phase == PhaseResizing {
		// Top-left anchor: only width and height move.
		candidate = placement.NormalizedRect{
			X: c.startRect.X,
			Y: c.startRect.Y,
			W: c.startRect.W + dxPct,
			H: c.startRect.H + dyPct,
		}
		candidate = clampResize(candidate, c.cfg.MinRectW, c.cfg.MinRectH)
	} else {
		candidate = placement.NormalizedRect{
			X: c.startRect.X + dxPct,
			Y: c.startRect.Y + dyPct,
			W: c.startRect.W,
			H: c.startRect.H,
		}.Clamp(c.startRect.W, c.startRect.H)
	}

	// The store is the last line of defense; a rejected candidate simply
	// leaves the previous rect in place.
	_ = c.store.Update(c.selected, candidate)
}

// clampResize keeps a top-left-anchored resize inside the page and above
// the minimum visible size.
func clampResize(r placement.NormalizedRect, minW, minH float64) placement.NormalizedRect {
	if r.W < minW {
		r.W = minW
	}
	if r.H < minH {
		r.H = minH
	}
	if r.X+r.W > 100 {
		r.W = 100 - r.X
	}
	if r.Y+r.H > 100 {
		r.H = 100 - r.Y
	}
	return r
}

// PointerUp ends a press. A moved gesture settles back to Selected; a tap
// selects or places, and a motionless long press deletes.
func (c *Controller) PointerUp(pt Point) {
	if !c.pointerDown {
		return
	}
	c.pointerDown = false

	if c.pinching {
		return
	}

	if c.moved {
		c.moved = false
		c.phase = PhaseSelected
		return
	}

	held := c.clock.Since(c.pressed)
	if c.pressedOn != "" && held >= c.cfg.LongPress {
		c.selected = c.pressedOn
		c.phase = PhaseSelected
		c.Delete()
		return
	}

	if c.pressedOn != "" {
		// Tap on a placement: plain selection, already applied on down.
		return
	}

	// Tap on empty surface: place the current signature, or deselect.
	px, py, ok := c.toPercent(pt)
	if !ok {
		return
	}
	payload, have := c.sigs.Current()
	if !have {
		c.selected = ""
		c.phase = PhaseIdle
		return
	}
	rect := placement.CenteredAt(px, py, c.cfg.DefaultRectW, c.cfg.DefaultRectH)
	if _, err := c.store.Add(c.pageIndex, rect, payload); err != nil {
		// Rejected placements surface through the store error; the
		// controller stays in its previous state.
		return
	}
	c.selected = ""
	c.phase = PhaseIdle
}

// PinchStart begins a two-point gesture. Any in-flight single-point drag
// or resize for the same placement is cancelled: the two inputs are
// mutually exclusive within a session.
func (c *Controller) PinchStart() {
	c.pinching = true
	c.pointerDown = false
	c.moved = false
	if c.selected != "" {
		if sel, ok := c.store.Get(c.selected); ok {
			c.startRect = sel.Rect
			c.phase = PhaseSelected
		}
	}
}

// PinchMove scales the selected placement about its top-left anchor by the
// cumulative factor since PinchStart.
func (c *Controller) PinchMove(factor float64) {
	if !c.pinching || c.selected == "" || factor <= 0 {
		return
	}
	candidate := placement.NormalizedRect{
		X: c.startRect.X,
		Y: c.startRect.Y,
		W: c.startRect.W * factor,
		H: c.startRect.H * factor,
	}
	candidate = clampResize(candidate, c.cfg.MinRectW, c.cfg.MinRectH)
	_ = c.store.Update(c.selected, candidate)
}

// PinchEnd finishes a two-point gesture.
func (c *Controller) PinchEnd() {
	c.pinching = false
}

// Delete runs the delete flow for the selected placement: confirmation,
// then removal. A declined confirmation changes nothing.
func (c *Controller) Delete() {
	if c.selected == "" {
		return
	}
	if c.confirm != nil && !c.confirm.ConfirmDelete(c.selected) {
		return
	}
	c.store.Remove(c.selected)
	c.selected = ""
	c.phase = PhaseIdle
}

// Select programmatically selects a placement, deselecting any other.
func (c *Controller) Select(id string) {
	if _, ok := c.store.Get(id); !ok {
		return
	}
	c.selected = id
	c.phase = PhaseSelected
}

// Cancel invalidates the in-flight manipulation session and deselects.
// Called when the document is switched or the session cleared.
func (c *Controller) Cancel() {
	c.pointerDown = false
	c.moved = false
	c.pinching = false
	c.resizeMode = false
	c.pressedOn = ""
	c.selected = ""
	c.phase = PhaseIdle
}
