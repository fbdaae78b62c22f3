package canvas

import (
	"math"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// Renderer constants.
const (
	GridSpacing   = 24.0   // dot grid spacing at scale 1
	MinimapWorld  = 2000.0 // side of the square area the minimap shows
	MinimapOffset = 500.0  // world origin inside the minimap
)

// Frame is a screen-space display list for one redraw. Layers are drawn
// in field order: grid, edges, entities, minimap.
type Frame struct {
	Width, Height float64
	Viewport      Viewport
	Grid          Grid
	Edges         []EdgeShape
	Entities      []EntityShape
	Minimap       Minimap
}

// Grid describes the decorative dot grid. Dots sit at
// (OffsetX + i*Spacing, OffsetY + j*Spacing).
type Grid struct {
	Spacing          float64
	OffsetX, OffsetY float64
}

// EdgeShape is a relationship in screen space. Curve is the full path;
// Line is the straight border-to-border connector for coarse surfaces.
// The arrowhead belongs at Curve.End.
type EdgeShape struct {
	From, To  string
	Curve     erdfile.Curve
	LineStart erdfile.Point
	LineEnd   erdfile.Point
}

// EntityShape is an entity box in screen space.
type EntityShape struct {
	ID       string
	Label    string
	Box      erdfile.Rect
	Header   erdfile.Rect
	Rows     []RowShape
	Dragging bool
}

// RowShape is one field row.
type RowShape struct {
	Name  string
	IsKey bool
	Box   erdfile.Rect
}

// Minimap is a fixed-scale overview in minimap coordinates
// (0..MinimapWorld on both axes).
type Minimap struct {
	Boxes []erdfile.Rect
	View  erdfile.Rect
}

// BuildFrame lays out a redraw of d under v for a width x height surface.
// dragging names the entity being dragged, if any.
func BuildFrame(d *erd.Diagram, v Viewport, width, height float64, dragging string) Frame {
	f := Frame{
		Width:    width,
		Height:   height,
		Viewport: v,
		Grid:     gridFor(v),
		Minimap:  minimapFor(d, v, width, height),
	}

	toScreen := v.WorldToScreen
	for _, e := range erdfile.ResolveEdges(d) {
		src, _ := d.Entity(e.From)
		dst, _ := d.Entity(e.To)
		a, b := erdfile.ConnectorLine(*src, *dst)
		f.Edges = append(f.Edges, EdgeShape{
			From:      e.From,
			To:        e.To,
			Curve:     e.Curve.Map(toScreen),
			LineStart: toScreen(a),
			LineEnd:   toScreen(b),
		})
	}

	f.Entities = make([]EntityShape, len(d.Entities))
	for i, e := range d.Entities {
		f.Entities[i] = entityShape(e, v, e.ID == dragging)
	}
	return f
}

func gridFor(v Viewport) Grid {
	spacing := GridSpacing * v.scale()
	return Grid{
		Spacing: spacing,
		OffsetX: positiveMod(v.PanX, spacing),
		OffsetY: positiveMod(v.PanY, spacing),
	}
}

func positiveMod(a, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

func entityShape(e erd.Entity, v Viewport, dragging bool) EntityShape {
	box := erdfile.EntityRect(e)
	s := EntityShape{
		ID:       e.ID,
		Label:    e.Label,
		Box:      v.RectToScreen(box),
		Header:   v.RectToScreen(erdfile.Rect{X: box.X, Y: box.Y, W: box.W, H: erdfile.HeaderHeight}),
		Rows:     make([]RowShape, len(e.Fields)),
		Dragging: dragging,
	}
	for i, fld := range e.Fields {
		row := erdfile.Rect{
			X: box.X,
			Y: box.Y + erdfile.HeaderHeight + float64(i)*erdfile.RowHeight,
			W: box.W,
			H: erdfile.RowHeight,
		}
		s.Rows[i] = RowShape{Name: fld.Name, IsKey: fld.IsKey, Box: v.RectToScreen(row)}
	}
	return s
}

func minimapFor(d *erd.Diagram, v Viewport, width, height float64) Minimap {
	m := Minimap{Boxes: make([]erdfile.Rect, len(d.Entities))}
	for i, e := range d.Entities {
		r := erdfile.EntityRect(e)
		r.X += MinimapOffset
		r.Y += MinimapOffset
		m.Boxes[i] = r
	}
	vis := v.Visible(width, height)
	vis.X += MinimapOffset
	vis.Y += MinimapOffset
	m.View = vis
	return m
}

// Project maps a minimap rectangle into a w x h target, scaled uniformly
// and centred.
func (m Minimap) Project(r erdfile.Rect, w, h float64) erdfile.Rect {
	k := math.Min(w, h) / MinimapWorld
	ox := (w - MinimapWorld*k) / 2
	oy := (h - MinimapWorld*k) / 2
	return erdfile.Rect{X: ox + r.X*k, Y: oy + r.Y*k, W: r.W * k, H: r.H * k}
}
