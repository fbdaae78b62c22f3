package main

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/erd-toolkit/pkg/config"
	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// TestFlashTiming verifies the flash phases of status messages.
func TestFlashTiming(t *testing.T) {
	tests := []struct {
		elapsed      int64
		wantInverted bool
		description  string
	}{
		{-1, false, "clock skew - normal"},
		{0, false, "phase 0 - normal"},
		{124, false, "end of phase 0 - normal"},
		{125, true, "phase 1 - inverted"},
		{249, true, "end of phase 1 - inverted"},
		{250, false, "phase 2 - normal"},
		{375, true, "phase 3 - inverted"},
		{499, true, "end of phase 3 - inverted"},
		{500, false, "flash over - normal"},
		{1000, false, "long after flash - normal"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := flashInverted(tt.elapsed); got != tt.wantInverted {
				t.Errorf("elapsed=%d: got inverted=%v, want %v", tt.elapsed, got, tt.wantInverted)
			}
		})
	}
}

// TestFlashMessageTypes verifies which message types flash.
func TestFlashMessageTypes(t *testing.T) {
	tests := []struct {
		msgType     MessageType
		shouldFlash bool
	}{
		{MsgInfo, false},
		{MsgError, true},
		{MsgSuccess, true},
		{MsgWarning, true},
	}
	for _, tt := range tests {
		if got := shouldFlash(tt.msgType); got != tt.shouldFlash {
			t.Errorf("msgType=%v: got %v, want %v", tt.msgType, got, tt.shouldFlash)
		}
	}
}

func TestArrowRune(t *testing.T) {
	tests := []struct {
		dx, dy float64
		want   rune
	}{
		{10, 0, '▶'},
		{-10, 0, '◀'},
		{0, 10, '▼'},
		{0, -10, '▲'},
		{10, 15, '▶'}, // 1.25 cells across, under one cell down
		{10, 40, '▼'},
	}
	for _, tt := range tests {
		if got := arrowRune(tt.dx, tt.dy); got != tt.want {
			t.Errorf("arrowRune(%v, %v) = %q, want %q", tt.dx, tt.dy, got, tt.want)
		}
	}
}

func TestCellMapping(t *testing.T) {
	x, y := cellCenter(3, 2)
	if x != 28 || y != 40 {
		t.Errorf("cellCenter(3, 2) = (%v, %v), want (28, 40)", x, y)
	}

	x0, y0, x1, y1 := cellBox(rectOf(16, 32, 240, 114))
	if x0 != 2 || y0 != 2 || x1 != 31 || y1 != 9 {
		t.Errorf("cellBox = (%d,%d)-(%d,%d), want (2,2)-(31,9)", x0, y0, x1, y1)
	}

	x0, y0, x1, y1 = cellBox(rectOf(-4, -4, 1, 1))
	if x0 != -1 || y0 != -1 || x1 != x0 || y1 != y0 {
		t.Errorf("tiny box = (%d,%d)-(%d,%d)", x0, y0, x1, y1)
	}
}

func rectOf(x, y, w, h float64) erdfile.Rect {
	return erdfile.Rect{X: x, Y: y, W: w, H: h}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"users", 10, "users"},
		{"enrollments", 8, "enrol..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
		{"matrículas", 6, "mat..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func newTestViewer(t *testing.T) (*Viewer, tcell.SimulationScreen) {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	t.Cleanup(s.Fini)
	s.SetSize(120, 40)

	cfg := config.Default()
	cfg.ExportDir = t.TempDir()
	ed := newViewer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ed.screen = s
	ed.filename = "shop.json"
	ed.resize()

	d := erd.New("shop")
	d.AddEntity("users", "Users", erd.Field{Name: "id", IsKey: true}, erd.Field{Name: "name"})
	d.AddEntity("orders", "Orders", erd.Field{Name: "id", IsKey: true}, erd.Field{Name: "user_id"})
	d.Entities[0].X, d.Entities[0].Y = 0, 0
	d.Entities[1].X, d.Entities[1].Y = 400, 0
	d.AddRelationship("orders", "users")
	if err := ed.session.Load(d); err != nil {
		t.Fatalf("load: %v", err)
	}
	return ed, s
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestViewerKeys(t *testing.T) {
	ed, _ := newTestViewer(t)

	before := ed.session.Viewport().Scale
	if ed.handleEvent(key('+')) {
		t.Fatal("'+' should not quit")
	}
	if got := ed.session.Viewport().Scale; got <= before {
		t.Errorf("zoom in: scale %v, was %v", got, before)
	}

	ed.handleEvent(key('0'))
	if got := ed.session.Viewport().Scale; got != 1 {
		t.Errorf("reset zoom: scale %v, want 1", got)
	}

	ed.handleEvent(key('u'))
	if ed.message != "Nothing to undo" || ed.messageType != MsgInfo {
		t.Errorf("undo message = %q (%v)", ed.message, ed.messageType)
	}

	ed.handleEvent(key('m'))
	if ed.showMinimap {
		t.Error("minimap should be hidden")
	}

	if !ed.handleEvent(key('q')) {
		t.Error("'q' should quit")
	}
	if !ed.handleEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone)) {
		t.Error("Ctrl+C should quit")
	}
}

func TestViewerLayoutRunsOnTicks(t *testing.T) {
	ed, _ := newTestViewer(t)
	ed.config.LayoutStepsPerFrame = 40

	ed.handleEvent(key('l'))
	if !ed.session.LayoutActive() {
		t.Fatal("layout should be running")
	}
	if !ed.animating.Load() {
		t.Error("layout should keep the ticker running")
	}
	if got := ed.modeString(); !strings.HasPrefix(got, "LAYOUT 0/") {
		t.Errorf("mode = %q", got)
	}

	for i := 0; i < 10 && ed.session.LayoutActive(); i++ {
		ed.handleEvent(tcell.NewEventInterrupt(nil))
	}
	if ed.session.LayoutActive() {
		t.Fatal("layout did not finish")
	}
	if ed.message != "Layout complete" {
		t.Errorf("message = %q", ed.message)
	}
	if ed.session.History().Len() != 2 {
		t.Errorf("history length = %d, want 2", ed.session.History().Len())
	}
}

func TestViewerMouseDrag(t *testing.T) {
	ed, _ := newTestViewer(t)

	f := ed.session.Frame()
	cx, cy := toCell(f.Entities[0].Box.Center())
	scale := ed.session.Viewport().Scale
	startX := ed.session.Diagram().Entities[0].X

	ed.handleEvent(tcell.NewEventMouse(cx, cy, tcell.Button1, tcell.ModNone))
	if got := ed.modeString(); got != "MOVE users" {
		t.Errorf("mode = %q, want MOVE users", got)
	}
	ed.handleEvent(tcell.NewEventMouse(cx+5, cy, tcell.Button1, tcell.ModNone))
	ed.handleEvent(tcell.NewEventMouse(cx+5, cy, tcell.ButtonNone, tcell.ModNone))

	got := ed.session.Diagram().Entities[0].X
	want := startX + 5*cellW/scale
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("entity x = %v, want %v", got, want)
	}
	if ed.session.History().Len() != 2 {
		t.Errorf("history length = %d, want 2", ed.session.History().Len())
	}

	ed.handleEvent(key('u'))
	if got := ed.session.Diagram().Entities[0].X; got != startX {
		t.Errorf("after undo x = %v, want %v", got, startX)
	}
}

func TestViewerDrawsEntities(t *testing.T) {
	ed, s := newTestViewer(t)
	ed.draw()

	w, h := s.Size()
	var screen strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, _, _, _ := s.GetContent(x, y)
			screen.WriteRune(r)
		}
		screen.WriteRune('\n')
	}
	out := screen.String()

	for _, want := range []string{"Users", "Orders", "* id", "user_id", "shop.json", "Wheel:Zoom"} {
		if !strings.Contains(out, want) {
			t.Errorf("screen missing %q", want)
		}
	}
	if !strings.ContainsAny(out, "▶◀▲▼") {
		t.Error("screen has no arrowhead")
	}
}

func TestViewerExportSVG(t *testing.T) {
	ed, _ := newTestViewer(t)
	ed.handleEvent(key('s'))
	if ed.messageType != MsgSuccess {
		t.Fatalf("export message = %q (%v)", ed.message, ed.messageType)
	}
	path := strings.TrimPrefix(ed.message, "Exported ")
	if filepath.Dir(path) != ed.config.ExportDir {
		t.Errorf("exported to %s, want dir %s", path, ed.config.ExportDir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export missing: %v", err)
	}
}

func TestViewerExportFollowsFormat(t *testing.T) {
	ed, _ := newTestViewer(t)
	ed.config.ExportFormat = "svg"
	ed.handleEvent(key('e'))
	if ed.exporting {
		t.Error("svg export should not run in the background")
	}
	if !strings.HasSuffix(ed.message, ".svg") {
		t.Errorf("message = %q, want an .svg path", ed.message)
	}
}

func TestExportDoneInterrupt(t *testing.T) {
	ed, _ := newTestViewer(t)
	ed.exporting = true
	ed.handleEvent(tcell.NewEventInterrupt(exportDone{path: "/tmp/x.png"}))
	if ed.exporting {
		t.Error("exporting flag not cleared")
	}
	if ed.message != "Exported /tmp/x.png" || ed.messageType != MsgSuccess {
		t.Errorf("message = %q (%v)", ed.message, ed.messageType)
	}
}
