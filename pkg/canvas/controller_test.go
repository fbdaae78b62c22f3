package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// fakeSurface has a single 10x10 target at the world origin.
type fakeSurface struct {
	vp      Viewport
	moves   []erdfile.Point
	commits int
	lock    bool
}

func (f *fakeSurface) view() *Viewport { return &f.vp }

func (f *fakeSurface) hitTest(p erdfile.Point) (string, bool) {
	if (erdfile.Rect{W: 10, H: 10}).Contains(p) {
		return "box", true
	}
	return "", false
}

func (f *fakeSurface) moveEntity(id string, dx, dy float64) {
	f.moves = append(f.moves, erdfile.Point{X: dx, Y: dy})
}

func (f *fakeSurface) commit()      { f.commits++ }
func (f *fakeSurface) locked() bool { return f.lock }

func newFake() (*fakeSurface, *Controller) {
	f := &fakeSurface{vp: NewViewport()}
	return f, newController(f, 0)
}

func TestPointerDownClassifiesGesture(t *testing.T) {
	f, c := newFake()
	c.PointerDown(erdfile.Point{X: 5, Y: 5})
	assert.Equal(t, DraggingEntity, c.State())
	assert.Equal(t, "box", c.DraggingID())
	c.PointerUp()

	c.PointerDown(erdfile.Point{X: 50, Y: 50})
	assert.Equal(t, PanningCanvas, c.State())
	assert.Empty(t, c.DraggingID())
	c.PointerUp()
	assert.Equal(t, Idle, c.State())
	assert.Zero(t, f.commits, "panning must not touch history")
}

func TestPanUsesIncrementalDeltas(t *testing.T) {
	f, c := newFake()
	f.vp.Scale = 2
	c.PointerDown(erdfile.Point{X: 100, Y: 100})
	c.PointerMove(erdfile.Point{X: 110, Y: 100})
	c.PointerMove(erdfile.Point{X: 115, Y: 90})
	c.PointerUp()

	assert.Equal(t, 15.0, f.vp.PanX)
	assert.Equal(t, -10.0, f.vp.PanY)
	assert.Empty(t, f.moves)
}

func TestDragScalesDeltaAndCommitsOnce(t *testing.T) {
	f, c := newFake()
	f.vp.Scale = 2
	c.PointerDown(erdfile.Point{X: 4, Y: 4})
	c.PointerMove(erdfile.Point{X: 24, Y: 4})
	c.PointerMove(erdfile.Point{X: 54, Y: 4})
	assert.Zero(t, f.commits, "intermediate moves must not be committed")
	c.PointerUp()

	require.Len(t, f.moves, 2)
	assert.Equal(t, erdfile.Point{X: 10, Y: 0}, f.moves[0])
	assert.Equal(t, erdfile.Point{X: 15, Y: 0}, f.moves[1])
	assert.Equal(t, 1, f.commits)
	assert.Zero(t, f.vp.PanX, "dragging must not pan")
}

func TestClickWithoutMoveDoesNotCommit(t *testing.T) {
	f, c := newFake()
	c.PointerDown(erdfile.Point{X: 1, Y: 1})
	c.PointerUp()
	assert.Zero(t, f.commits)
}

func TestPointerLeaveEndsDrag(t *testing.T) {
	f, c := newFake()
	c.PointerDown(erdfile.Point{X: 1, Y: 1})
	c.PointerMove(erdfile.Point{X: 3, Y: 1})
	c.PointerLeave()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1, f.commits)

	// Moves after leaving are ignored
	c.PointerMove(erdfile.Point{X: 50, Y: 50})
	assert.Len(t, f.moves, 1)
}

func TestSecondPointerDownIgnored(t *testing.T) {
	_, c := newFake()
	c.PointerDown(erdfile.Point{X: 50, Y: 50})
	c.PointerDown(erdfile.Point{X: 5, Y: 5})
	assert.Equal(t, PanningCanvas, c.State(), "first gesture wins")
}

func TestLockedSurfaceIgnoresPointerDown(t *testing.T) {
	f, c := newFake()
	f.lock = true
	c.PointerDown(erdfile.Point{X: 5, Y: 5})
	assert.Equal(t, Idle, c.State())
}

func TestWheelZoomsWithoutPanning(t *testing.T) {
	f, c := newFake()
	c.PointerDown(erdfile.Point{X: 5, Y: 5})
	c.Wheel(-100)
	assert.InDelta(t, 1.1, f.vp.Scale, 1e-9)
	assert.Equal(t, DraggingEntity, c.State(), "wheel is independent of the gesture")

	c.Wheel(1e6)
	assert.Equal(t, MinZoom, f.vp.Scale)
	assert.Zero(t, f.vp.PanX)
	assert.Zero(t, f.vp.PanY)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "panning", PanningCanvas.String())
	assert.Equal(t, "dragging", DraggingEntity.String())
}
