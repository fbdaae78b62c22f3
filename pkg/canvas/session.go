package canvas

import (
	"errors"
	"io"
	"log/slog"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// ErrLayoutActive is returned for operations refused while an
// auto-layout run is in progress.
var ErrLayoutActive = errors.New("auto-layout in progress")

// Options configures a Session.
type Options struct {
	HistoryLimit     int
	Algorithm        erdfile.LayoutAlgorithm
	Layout           erdfile.LayoutOptions
	WheelSensitivity float64
	Export           erdfile.ExportOptions
	Logger           *slog.Logger
}

// DefaultOptions returns the standard session settings.
func DefaultOptions() Options {
	return Options{
		HistoryLimit:     DefaultHistoryLimit,
		Algorithm:        erdfile.LayoutForceDirected,
		Layout:           erdfile.DefaultLayoutOptions(),
		WheelSensitivity: DefaultWheelSensitivity,
		Export:           erdfile.DefaultExportOptions(),
	}
}

// Session owns everything one open diagram needs: positions, camera,
// history, pointer state and any running layout. Load resets it.
// A Session is not safe for concurrent use.
type Session struct {
	opts    Options
	log     *slog.Logger
	diagram *erd.Diagram
	vp      Viewport
	width   float64
	height  float64
	history *History
	ctrl    *Controller
	sim     *erdfile.Simulation
}

// NewSession creates an empty session.
func NewSession(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Export.Logger == nil {
		opts.Export.Logger = log
	}
	s := &Session{
		opts:    opts,
		log:     log,
		diagram: erd.New(""),
		vp:      NewViewport(),
		history: NewHistory(opts.HistoryLimit),
	}
	s.ctrl = newController(s, opts.WheelSensitivity)
	return s
}

// Load replaces the diagram. The session keeps its own copy. History is
// reset to a single entry and the view is fitted to the content.
func (s *Session) Load(d *erd.Diagram) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.diagram = d.Clone()
	s.sim = nil
	s.ctrl.Cancel()
	s.history.Reset()
	s.history.Push(s.diagram.Snapshot())
	s.Fit()
	s.log.Debug("diagram loaded",
		"name", d.Name,
		"entities", len(d.Entities),
		"relationships", len(d.Relationships))
	return nil
}

// Diagram returns the live diagram. Callers must not modify it.
func (s *Session) Diagram() *erd.Diagram { return s.diagram }

// Viewport returns the current camera.
func (s *Session) Viewport() Viewport { return s.vp }

// Controller returns the pointer state machine.
func (s *Session) Controller() *Controller { return s.ctrl }

// History returns the undo history.
func (s *Session) History() *History { return s.history }

// Resize records the size of the drawing surface.
func (s *Session) Resize(width, height float64) {
	s.width, s.height = width, height
}

// Size returns the drawing surface size.
func (s *Session) Size() (float64, float64) { return s.width, s.height }

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo or a gesture or layout is active.
func (s *Session) Undo() bool {
	if s.busy() {
		return false
	}
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.diagram.Apply(snap)
	s.log.Debug("undo", "cursor", s.history.Cursor())
	return true
}

// Redo re-applies the next snapshot.
func (s *Session) Redo() bool {
	if s.busy() {
		return false
	}
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.diagram.Apply(snap)
	s.log.Debug("redo", "cursor", s.history.Cursor())
	return true
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool { return !s.busy() && s.history.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() bool { return !s.busy() && s.history.CanRedo() }

func (s *Session) busy() bool {
	return s.sim != nil || s.ctrl.State() != Idle
}

// ZoomIn increases the scale by one step.
func (s *Session) ZoomIn() { s.vp.ZoomBy(ZoomStep) }

// ZoomOut decreases the scale by one step.
func (s *Session) ZoomOut() { s.vp.ZoomBy(-ZoomStep) }

// ResetZoom returns to scale 1, keeping the pan.
func (s *Session) ResetZoom() { s.vp.SetScale(1) }

// Fit centres the diagram in the surface. It does nothing for an empty
// diagram or before the surface size is known.
func (s *Session) Fit() {
	box, ok := erdfile.Bounds(s.diagram.Entities)
	if !ok || s.width <= 0 || s.height <= 0 {
		return
	}
	s.vp = FitToContent(box, s.width, s.height)
}

// AutoLayout runs the configured algorithm to completion and commits
// the result.
func (s *Session) AutoLayout() error {
	if err := s.BeginAutoLayout(); err != nil {
		return err
	}
	for !s.Advance(s.opts.Layout.Iterations + 1) {
	}
	return nil
}

// BeginAutoLayout starts a resumable layout run. Positions are not
// touched until the run finishes; pointer-down is ignored meanwhile.
// Only the force-directed layout runs in steps; the others finish
// immediately.
func (s *Session) BeginAutoLayout() error {
	if s.sim != nil {
		return ErrLayoutActive
	}
	s.ctrl.Cancel()
	s.log.Debug("auto-layout started",
		"algorithm", s.opts.Algorithm.String(),
		"entities", len(s.diagram.Entities),
		"iterations", s.opts.Layout.Iterations)

	if s.opts.Algorithm != erdfile.LayoutForceDirected {
		s.finishLayout(erdfile.AutoLayout(s.diagram, s.opts.Algorithm, s.opts.Layout))
		return nil
	}
	s.sim = erdfile.NewSimulation(s.diagram, s.opts.Layout)
	if s.sim.Done() {
		s.finishLayout(s.sim.Snapshot())
	}
	return nil
}

// Advance runs up to n iterations of the active layout. It reports true
// when no run is active afterwards; the finished result has then been
// applied, pushed to history and fitted.
func (s *Session) Advance(n int) bool {
	if s.sim == nil {
		return true
	}
	if s.sim.Advance(n) > 0 {
		return false
	}
	s.finishLayout(s.sim.Snapshot())
	return true
}

// LayoutActive reports whether a layout run is in progress.
func (s *Session) LayoutActive() bool { return s.sim != nil }

// LayoutProgress returns completed and total iterations of the active run.
func (s *Session) LayoutProgress() (done, total int) {
	if s.sim == nil {
		return 0, 0
	}
	return s.sim.Iteration(), s.opts.Layout.Iterations
}

func (s *Session) finishLayout(snap erd.Snapshot) {
	s.sim = nil
	s.diagram.Apply(snap)
	s.history.Push(snap)
	s.Fit()
	s.log.Debug("auto-layout finished", "entities", len(snap))
}

// PointerDown forwards to the controller.
func (s *Session) PointerDown(x, y float64) { s.ctrl.PointerDown(erdfile.Point{X: x, Y: y}) }

// PointerMove forwards to the controller.
func (s *Session) PointerMove(x, y float64) { s.ctrl.PointerMove(erdfile.Point{X: x, Y: y}) }

// PointerUp forwards to the controller.
func (s *Session) PointerUp() { s.ctrl.PointerUp() }

// PointerLeave forwards to the controller.
func (s *Session) PointerLeave() { s.ctrl.PointerLeave() }

// Wheel forwards to the controller.
func (s *Session) Wheel(deltaY float64) { s.ctrl.Wheel(deltaY) }

// Frame builds the display list for the current state.
func (s *Session) Frame() Frame {
	return BuildFrame(s.diagram, s.vp, s.width, s.height, s.ctrl.DraggingID())
}

// EntityAt returns the id of the top-most entity under a screen position.
func (s *Session) EntityAt(x, y float64) (string, bool) {
	return s.hitTest(s.vp.ScreenToWorld(erdfile.Point{X: x, Y: y}))
}

// ExportPNG writes the current diagram to a dated PNG file.
func (s *Session) ExportPNG() (string, error) {
	path, err := erdfile.ExportPNG(s.diagram, s.opts.Export)
	s.logExport("png", path, err)
	return path, err
}

// ExportSVG writes the current diagram to a dated SVG file.
func (s *Session) ExportSVG() (string, error) {
	path, err := erdfile.ExportSVG(s.diagram, s.opts.Export)
	s.logExport("svg", path, err)
	return path, err
}

// ExportPNGAsync renders a copy of the current diagram on another
// goroutine and calls done with the result from that goroutine.
// Overlapping exports are not coordinated.
func (s *Session) ExportPNGAsync(done func(path string, err error)) {
	d := s.diagram.Clone()
	opts := s.opts.Export
	go func() {
		path, err := erdfile.ExportPNG(d, opts)
		s.logExport("png", path, err)
		done(path, err)
	}()
}

func (s *Session) logExport(kind, path string, err error) {
	if err != nil {
		s.log.Debug("export failed", "format", kind, "error", err)
		return
	}
	s.log.Debug("export written", "format", kind, "path", path)
}

// surface implementation

func (s *Session) view() *Viewport { return &s.vp }

func (s *Session) hitTest(p erdfile.Point) (string, bool) {
	for i := len(s.diagram.Entities) - 1; i >= 0; i-- {
		e := s.diagram.Entities[i]
		if erdfile.EntityRect(e).Contains(p) {
			return e.ID, true
		}
	}
	return "", false
}

func (s *Session) moveEntity(id string, dx, dy float64) {
	if e, ok := s.diagram.Entity(id); ok {
		e.X += dx
		e.Y += dy
	}
}

func (s *Session) commit() {
	s.history.Push(s.diagram.Snapshot())
}

func (s *Session) locked() bool { return s.sim != nil }
