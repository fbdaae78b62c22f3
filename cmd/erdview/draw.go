package main

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/ha1tch/erd-toolkit/pkg/canvas"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// Styles
var (
	styleDefault     = tcell.StyleDefault
	styleGrid        = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleEdge        = tcell.StyleDefault.Foreground(tcell.NewRGBColor(148, 163, 184))
	styleArrow       = tcell.StyleDefault.Foreground(tcell.NewRGBColor(148, 163, 184)).Bold(true)
	styleEntity      = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleEntityTitle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleKey         = tcell.StyleDefault.Foreground(tcell.NewRGBColor(245, 158, 11)).Bold(true)
	styleField       = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleBorder      = tcell.StyleDefault.Foreground(tcell.NewRGBColor(37, 99, 235))
	styleDragging    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(200, 162, 200)).Bold(true)
	styleMinimap     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleMinimapBox  = tcell.StyleDefault.Foreground(tcell.NewRGBColor(59, 130, 246))
	styleMinimapView = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleStatus      = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleMsgInfo     = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleMsgError    = tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorNavy).Bold(true)
	styleMsgSuccess  = tcell.StyleDefault.Foreground(tcell.ColorSilver).Background(tcell.ColorNavy)
	styleMsgWarning  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorNavy)
	styleHelp        = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Minimap size in cells, border included.
const (
	minimapW = 24
	minimapH = 12
)

const helpText = "Drag:Move  Wheel:Zoom  u/r:Undo/Redo  +/-/0:Zoom  f:Fit  l:Layout  e:Export  s:SVG  m:Minimap  q:Quit"

func (ed *Viewer) draw() {
	ed.screen.Clear()
	w, h := ed.screen.Size()
	if w <= 0 || h <= chromeRows {
		return
	}

	f := ed.session.Frame()
	ed.drawGrid(f.Grid, w, h)
	for _, e := range f.Edges {
		ed.drawEdge(e)
	}
	for _, e := range f.Entities {
		ed.drawEntity(e)
	}
	// Arrowheads go on top so entity borders do not hide them.
	for _, e := range f.Edges {
		ed.drawArrow(e.Curve)
	}
	if ed.showMinimap {
		ed.drawMinimap(f.Minimap, w, h)
	}
	ed.drawStatusBar(w, h)
}

// setCell draws one rune, clipped to the canvas area.
func (ed *Viewer) setCell(x, y int, r rune, style tcell.Style) {
	w, h := ed.screen.Size()
	if x < 0 || y < 0 || x >= w || y >= h-chromeRows {
		return
	}
	ed.screen.SetContent(x, y, r, nil, style)
}

func (ed *Viewer) drawGrid(g canvas.Grid, w, h int) {
	if g.Spacing < cellH {
		return
	}
	maxX := float64(w * cellW)
	maxY := float64((h - chromeRows) * cellH)
	for y := g.OffsetY; y < maxY; y += g.Spacing {
		for x := g.OffsetX; x < maxX; x += g.Spacing {
			cx, cy := toCell(erdfile.Point{X: x, Y: y})
			ed.setCell(cx, cy, '·', styleGrid)
		}
	}
}

func (ed *Viewer) drawEdge(e canvas.EdgeShape) {
	c := e.Curve
	n := int(c.Start.Dist(c.End)/cellW) + 4
	if n > 512 {
		n = 512
	}
	for _, p := range c.Flatten(n) {
		cx, cy := toCell(p)
		ed.setCell(cx, cy, '·', styleEdge)
	}
}

func (ed *Viewer) drawArrow(c erdfile.Curve) {
	t := c.Tangent(1)
	if t.X == 0 && t.Y == 0 {
		t = c.End.Sub(c.Start)
	}
	r := arrowRune(t.X, t.Y)
	// Step back one cell along the dominant axis so the head sits
	// outside the target box.
	p := c.End
	if r == '▶' || r == '◀' {
		p.X -= math.Copysign(cellW, t.X)
	} else {
		p.Y -= math.Copysign(cellH, t.Y)
	}
	cx, cy := toCell(p)
	ed.setCell(cx, cy, r, styleArrow)
}

// arrowRune picks the arrowhead for a direction given in pixels.
// Cells are twice as tall as wide, so directions are compared in cells.
func arrowRune(dx, dy float64) rune {
	if math.Abs(dx/cellW) >= math.Abs(dy/cellH) {
		if dx < 0 {
			return '◀'
		}
		return '▶'
	}
	if dy < 0 {
		return '▲'
	}
	return '▼'
}

func (ed *Viewer) drawEntity(e canvas.EntityShape) {
	x0, y0, x1, y1 := cellBox(e.Box)
	border := styleBorder
	if e.Dragging {
		border = styleDragging
	}
	if x1-x0 < 2 || y1-y0 < 1 {
		ed.setCell(x0, y0, '■', border)
		return
	}
	ed.drawBox(x0, y0, x1, y1, border, styleEntity)

	// Title sits on the top border.
	title := truncate(e.Label, x1-x0-3)
	if title != "" {
		tx := x0 + (x1-x0+1-len([]rune(title))-2)/2
		ed.setCell(tx, y0, ' ', border)
		ed.drawString(tx+1, y0, title, styleEntityTitle)
		ed.setCell(tx+1+len([]rune(title)), y0, ' ', border)
	}

	last := y0
	for _, row := range e.Rows {
		_, ry := toCell(row.Box.Center())
		if ry <= last || ry >= y1 {
			continue
		}
		last = ry
		text, style := "  "+row.Name, styleField
		if row.IsKey {
			text, style = "* "+row.Name, styleKey
		}
		ed.drawString(x0+1, ry, truncate(text, x1-x0-1), style)
	}
}

// drawBox draws a bordered box between inclusive cell corners.
func (ed *Viewer) drawBox(x0, y0, x1, y1 int, border, fill tcell.Style) {
	ed.setCell(x0, y0, '┌', border)
	ed.setCell(x1, y0, '┐', border)
	ed.setCell(x0, y1, '└', border)
	ed.setCell(x1, y1, '┘', border)
	for x := x0 + 1; x < x1; x++ {
		ed.setCell(x, y0, '─', border)
		ed.setCell(x, y1, '─', border)
	}
	for y := y0 + 1; y < y1; y++ {
		ed.setCell(x0, y, '│', border)
		ed.setCell(x1, y, '│', border)
		for x := x0 + 1; x < x1; x++ {
			ed.setCell(x, y, ' ', fill)
		}
	}
}

func (ed *Viewer) drawMinimap(m canvas.Minimap, w, h int) {
	canvasH := h - chromeRows
	if w < minimapW+10 || canvasH < minimapH+2 {
		return
	}
	x0, y0 := w-minimapW-1, canvasH-minimapH-1
	x1, y1 := x0+minimapW-1, y0+minimapH-1
	ed.drawBox(x0, y0, x1, y1, styleMinimap, styleDefault)

	innerW := float64((minimapW - 2) * cellW)
	innerH := float64((minimapH - 2) * cellH)
	inside := func(cx, cy int) bool {
		return cx > x0 && cx < x1 && cy > y0 && cy < y1
	}
	project := func(r erdfile.Rect) (int, int, int, int) {
		p := m.Project(r, innerW, innerH)
		bx0, by0, bx1, by1 := cellBox(p)
		return bx0 + x0 + 1, by0 + y0 + 1, bx1 + x0 + 1, by1 + y0 + 1
	}

	for _, b := range m.Boxes {
		bx0, by0, bx1, by1 := project(b)
		for y := by0; y <= by1; y++ {
			for x := bx0; x <= bx1; x++ {
				if inside(x, y) {
					ed.setCell(x, y, '█', styleMinimapBox)
				}
			}
		}
	}

	vx0, vy0, vx1, vy1 := project(m.View)
	for x := vx0; x <= vx1; x++ {
		for _, y := range []int{vy0, vy1} {
			if inside(x, y) {
				ed.setCell(x, y, '·', styleMinimapView)
			}
		}
	}
	for y := vy0; y <= vy1; y++ {
		for _, x := range []int{vx0, vx1} {
			if inside(x, y) {
				ed.setCell(x, y, '·', styleMinimapView)
			}
		}
	}
}

func (ed *Viewer) drawStatusBar(w, h int) {
	y := h - 1

	// Background
	for x := 0; x < w; x++ {
		ed.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	fileInfo := filepath.Base(ed.filename)
	if ed.session.History().Cursor() > 0 {
		fileInfo += " *"
	}
	ed.drawString(1, y, fileInfo, styleStatus)

	mode := ed.modeString()
	ed.drawString(w/2-len(mode)/2, y, mode, styleStatus)

	zoom := fmt.Sprintf("%d%%", int(math.Round(ed.session.Viewport().Scale*100)))
	ed.drawString(w-len(zoom)-1, y, zoom, styleStatus)

	if ed.message != "" {
		style := styleMsgInfo
		switch ed.messageType {
		case MsgError:
			style = styleMsgError
		case MsgSuccess:
			style = styleMsgSuccess
		case MsgWarning:
			style = styleMsgWarning
		}
		if shouldFlash(ed.messageType) && flashInverted(time.Now().UnixMilli()-ed.messageFlashStart) {
			style = style.Reverse(true)
		}
		msg := truncate(ed.message, w/2-len(zoom)-4)
		ed.drawString(w-len(zoom)-len([]rune(msg))-3, y, msg, style)
	}

	// Help bar
	y = h - 2
	for x := 0; x < w; x++ {
		ed.screen.SetContent(x, y, ' ', nil, styleDefault)
	}
	ed.drawString(1, y, truncate(helpText, w-2), styleHelp)
}

func (ed *Viewer) drawString(x, y int, s string, style tcell.Style) {
	i := 0
	for _, r := range s {
		ed.screen.SetContent(x+i, y, r, nil, style)
		i++
	}
}

func (ed *Viewer) modeString() string {
	if ed.session.LayoutActive() {
		done, total := ed.session.LayoutProgress()
		return fmt.Sprintf("LAYOUT %d/%d", done, total)
	}
	switch ed.session.Controller().State() {
	case canvas.DraggingEntity:
		return "MOVE " + ed.session.Controller().DraggingID()
	case canvas.PanningCanvas:
		return "PAN"
	default:
		return ""
	}
}

// toCell returns the cell holding canvas pixel p.
func toCell(p erdfile.Point) (int, int) {
	return int(math.Floor(p.X / cellW)), int(math.Floor(p.Y / cellH))
}

// cellBox returns the inclusive cell corners covering r.
func cellBox(r erdfile.Rect) (x0, y0, x1, y1 int) {
	x0, y0 = toCell(erdfile.Point{X: r.X, Y: r.Y})
	x1, y1 = toCell(erdfile.Point{X: r.MaxX() - 1, Y: r.MaxY() - 1})
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return x0, y0, x1, y1
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 {
		return ""
	}
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
