// erdview is an interactive terminal viewer for ERD diagrams.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"

	"github.com/ha1tch/erd-toolkit/pkg/canvas"
	"github.com/ha1tch/erd-toolkit/pkg/config"
	"github.com/ha1tch/erd-toolkit/pkg/schema"
)

const usage = `erdview - interactive ERD viewer

Usage: erdview <diagram.json | database.db>

Mouse:
  drag entity     Move it
  drag canvas     Pan
  wheel           Zoom

Keys:
  u / Ctrl+Z      Undo
  r / Ctrl+Y      Redo
  + / -           Zoom in / out
  0               Reset zoom
  f               Fit to content
  l               Auto-layout
  e               Export (export_format: png or svg)
  s               Export SVG
  m               Toggle minimap
  q / Esc         Quit
`

// Each terminal cell stands for cellW x cellH canvas pixels.
const (
	cellW = 8
	cellH = 16
)

// Bottom rows reserved for the help and status bars.
const chromeRows = 2

// MessageType determines message styling and flash behaviour
type MessageType int

const (
	MsgInfo    MessageType = iota // Passive info, no flash
	MsgError                      // Errors, flash
	MsgSuccess                    // Completed actions, flash
	MsgWarning                    // Warnings, flash
)

// exportDone is posted by a background export when it finishes.
type exportDone struct {
	path string
	err  error
}

// Viewer holds all viewer state
type Viewer struct {
	screen   tcell.Screen
	session  *canvas.Session
	filename string
	config   config.Config
	log      *slog.Logger

	message           string
	messageType       MessageType
	messageFlashStart int64

	mouseDown   bool
	showMinimap bool
	exporting   bool

	// read by the ticker goroutine
	animating atomic.Bool
}

func newViewer(cfg config.Config, log *slog.Logger) *Viewer {
	return &Viewer{
		session:     canvas.NewSession(cfg.SessionOptions(log)),
		config:      cfg,
		log:         log,
		showMinimap: true,
	}
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	_ = godotenv.Load()

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	// The terminal belongs to tcell, so logs only go to a file.
	log, closer, err := cfg.OpenLogger(io.Discard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ed := newViewer(cfg, log)
	ed.filename = os.Args[1]
	d, err := schema.LoadDiagram(context.Background(), ed.filename, schema.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", ed.filename, err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing screen: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.Clear()

	ed.screen = screen
	ed.resize()
	if err := ed.session.Load(d); err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ed.showMessage(fmt.Sprintf("Loaded %d entities", len(d.Entities)), MsgInfo)

	ed.run()
	screen.Fini()

	if abs, err := filepath.Abs(ed.filename); err == nil {
		if err := config.SaveLastDir(config.Path(), filepath.Dir(abs)); err != nil {
			log.Warn("config not saved", "error", err)
		}
	}
}

func (ed *Viewer) run() {
	// Ticks drive layout chunks and the message flash.
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if ed.animating.Load() {
				ed.screen.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	for {
		ed.draw()
		ed.screen.Show()

		ev := ed.screen.PollEvent()
		if ed.handleEvent(ev) {
			return
		}
		ed.animating.Store(ed.session.LayoutActive() || ed.flashing(time.Now().UnixMilli()))
	}
}

// handleEvent processes one event and reports whether to quit.
func (ed *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		ed.screen.Sync()
		ed.resize()
	case *tcell.EventKey:
		return ed.handleKey(ev)
	case *tcell.EventMouse:
		ed.handleMouse(ev)
	case *tcell.EventInterrupt:
		ed.handleInterrupt(ev.Data())
	case nil:
		return true
	}
	return false
}

func (ed *Viewer) resize() {
	w, h := ed.screen.Size()
	ed.session.Resize(float64(w*cellW), float64(max(h-chromeRows, 0)*cellH))
}

func (ed *Viewer) handleInterrupt(data interface{}) {
	switch d := data.(type) {
	case exportDone:
		ed.exporting = false
		if d.err != nil {
			ed.showMessage("Export failed: "+d.err.Error(), MsgError)
			return
		}
		ed.showMessage("Exported "+d.path, MsgSuccess)
	default:
		if !ed.session.LayoutActive() {
			return
		}
		if ed.session.Advance(ed.config.LayoutStepsPerFrame) {
			ed.showMessage("Layout complete", MsgSuccess)
		}
	}
}

func (ed *Viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyCtrlZ:
		ed.undo()
		return false
	case tcell.KeyCtrlY:
		ed.redo()
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	switch ev.Rune() {
	case 'q', 'Q':
		return true
	case 'u':
		ed.undo()
	case 'r':
		ed.redo()
	case '+', '=':
		ed.session.ZoomIn()
	case '-', '_':
		ed.session.ZoomOut()
	case '0':
		ed.session.ResetZoom()
	case 'f':
		ed.session.Fit()
	case 'l':
		ed.startLayout()
	case 'e':
		ed.export()
	case 's':
		ed.exportSVG()
	case 'm':
		ed.showMinimap = !ed.showMinimap
	}
	return false
}

func (ed *Viewer) undo() {
	if !ed.session.Undo() {
		ed.showMessage("Nothing to undo", MsgInfo)
	}
}

func (ed *Viewer) redo() {
	if !ed.session.Redo() {
		ed.showMessage("Nothing to redo", MsgInfo)
	}
}

func (ed *Viewer) startLayout() {
	if err := ed.session.BeginAutoLayout(); err != nil {
		ed.showMessage(err.Error(), MsgWarning)
		return
	}
	if !ed.session.LayoutActive() {
		ed.showMessage("Layout complete", MsgSuccess)
		return
	}
	ed.animating.Store(true)
	ed.showMessage("Running layout...", MsgInfo)
}

// export writes the diagram in the configured export format.
func (ed *Viewer) export() {
	if ed.config.ExportFormat == "svg" {
		ed.exportSVG()
		return
	}
	ed.exportPNG()
}

func (ed *Viewer) exportPNG() {
	if ed.exporting {
		ed.showMessage("Export already running", MsgWarning)
		return
	}
	ed.exporting = true
	ed.showMessage("Exporting...", MsgInfo)
	ed.session.ExportPNGAsync(func(path string, err error) {
		ed.screen.PostEvent(tcell.NewEventInterrupt(exportDone{path: path, err: err}))
	})
}

func (ed *Viewer) exportSVG() {
	path, err := ed.session.ExportSVG()
	if err != nil {
		ed.showMessage("Export failed: "+err.Error(), MsgError)
		return
	}
	ed.showMessage("Exported "+path, MsgSuccess)
}

func (ed *Viewer) handleMouse(ev *tcell.EventMouse) {
	cx, cy := ev.Position()
	x, y := cellCenter(cx, cy)
	_, h := ed.screen.Size()
	inCanvas := cy < h-chromeRows

	switch btn := ev.Buttons(); {
	case btn&tcell.WheelUp != 0:
		if inCanvas {
			ed.session.Wheel(-100)
		}
	case btn&tcell.WheelDown != 0:
		if inCanvas {
			ed.session.Wheel(100)
		}
	case btn&tcell.Button1 != 0:
		switch {
		case !ed.mouseDown && inCanvas:
			ed.mouseDown = true
			ed.session.PointerDown(x, y)
			if ed.session.LayoutActive() {
				ed.showMessage("Layout running", MsgWarning)
			}
		case ed.mouseDown && !inCanvas:
			ed.mouseDown = false
			ed.session.PointerLeave()
		case ed.mouseDown:
			ed.session.PointerMove(x, y)
		}
	default:
		if ed.mouseDown {
			ed.mouseDown = false
			ed.session.PointerUp()
		}
	}
}

// cellCenter returns the canvas pixel at the middle of a cell.
func cellCenter(cx, cy int) (float64, float64) {
	return float64(cx*cellW + cellW/2), float64(cy*cellH + cellH/2)
}

func (ed *Viewer) showMessage(msg string, msgType MessageType) {
	ed.message = msg
	ed.messageType = msgType
	ed.messageFlashStart = time.Now().UnixMilli()
	if msgType != MsgInfo {
		ed.animating.Store(true)
	}
	ed.log.Debug("message", "text", msg)
}

func (ed *Viewer) flashing(now int64) bool {
	if ed.message == "" || !shouldFlash(ed.messageType) {
		return false
	}
	elapsed := now - ed.messageFlashStart
	return elapsed >= 0 && elapsed < 700
}

// shouldFlash reports whether messages of type t blink when shown.
func shouldFlash(t MessageType) bool {
	switch t {
	case MsgError, MsgSuccess, MsgWarning:
		return true
	default:
		return false
	}
}

// flashInverted reports whether the message is drawn inverted elapsed
// milliseconds after it was shown: two blinks within 500ms.
func flashInverted(elapsed int64) bool {
	if elapsed < 0 || elapsed >= 500 {
		return false
	}
	phase := elapsed / 125
	return phase == 1 || phase == 3
}
