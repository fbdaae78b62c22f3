package canvas

import "github.com/ha1tch/erd-toolkit/pkg/erdfile"

// State is the current pointer gesture.
type State int

const (
	Idle State = iota
	PanningCanvas
	DraggingEntity
)

func (s State) String() string {
	switch s {
	case PanningCanvas:
		return "panning"
	case DraggingEntity:
		return "dragging"
	}
	return "idle"
}

// surface is what the controller drives. Session implements it.
type surface interface {
	view() *Viewport
	hitTest(world erdfile.Point) (string, bool)
	moveEntity(id string, dx, dy float64)
	commit()
	locked() bool
}

// Controller turns pointer and wheel events into viewport changes and
// entity moves. Only one gesture is active at a time.
type Controller struct {
	s           surface
	state       State
	dragID      string
	last        erdfile.Point
	sensitivity float64
	moved       bool
}

func newController(s surface, sensitivity float64) *Controller {
	if sensitivity <= 0 {
		sensitivity = DefaultWheelSensitivity
	}
	return &Controller{s: s, sensitivity: sensitivity}
}

// State returns the active gesture.
func (c *Controller) State() State { return c.state }

// DraggingID returns the id of the entity being dragged, or "".
func (c *Controller) DraggingID() string {
	if c.state != DraggingEntity {
		return ""
	}
	return c.dragID
}

// PointerDown starts a gesture at screen position p. An entity under the
// pointer is dragged; otherwise the canvas pans. Ignored while another
// gesture is active or the surface is locked.
func (c *Controller) PointerDown(p erdfile.Point) {
	if c.state != Idle || c.s.locked() {
		return
	}
	world := c.s.view().ScreenToWorld(p)
	if id, ok := c.s.hitTest(world); ok {
		c.state = DraggingEntity
		c.dragID = id
	} else {
		c.state = PanningCanvas
	}
	c.last = p
	c.moved = false
}

// PointerMove applies the delta since the previous pointer position.
func (c *Controller) PointerMove(p erdfile.Point) {
	dx, dy := p.X-c.last.X, p.Y-c.last.Y
	switch c.state {
	case PanningCanvas:
		c.s.view().PanBy(dx, dy)
	case DraggingEntity:
		wx, wy := c.s.view().ScreenDeltaToWorld(dx, dy)
		c.s.moveEntity(c.dragID, wx, wy)
		if dx != 0 || dy != 0 {
			c.moved = true
		}
	default:
		return
	}
	c.last = p
}

// PointerUp ends the gesture. A finished entity drag is committed to
// history.
func (c *Controller) PointerUp() {
	if c.state == DraggingEntity && c.moved {
		c.s.commit()
	}
	c.state = Idle
	c.dragID = ""
	c.moved = false
}

// PointerLeave ends the gesture as if the button were released.
func (c *Controller) PointerLeave() { c.PointerUp() }

// Wheel zooms by -deltaY scaled by the wheel sensitivity. The active
// gesture and pan are left alone.
func (c *Controller) Wheel(deltaY float64) {
	c.s.view().ZoomBy(-deltaY * c.sensitivity)
}

// Cancel drops the active gesture without committing it.
func (c *Controller) Cancel() {
	c.state = Idle
	c.dragID = ""
	c.moved = false
}
