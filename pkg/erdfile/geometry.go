// Geometric utilities for ERD rendering.
// Entity sizes, bounding boxes and rectangle clipping.

package erdfile

import (
	"math"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// Entity box dimensions in world units.
const (
	NodeWidth    = 180.0
	HeaderHeight = 32.0
	RowHeight    = 26.0
	NodePadding  = 4.0
	MinCurvature = 60.0
)

// Point represents a 2D coordinate.
type Point struct {
	X, Y float64
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Rect represents an axis-aligned rectangle.
type Rect struct {
	X, Y float64 // Top-left corner
	W, H float64 // Full width and height
}

// Center returns the middle of the rectangle.
func (r Rect) Center() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Contains reports whether p lies inside r (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.MaxX() && p.Y >= r.Y && p.Y <= r.MaxY()
}

// Inset grows the rectangle by m on every side (shrinks when m < 0).
func (r Rect) Inset(m float64) Rect {
	return Rect{r.X - m, r.Y - m, r.W + 2*m, r.H + 2*m}
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.MaxX(), o.MaxX())
	maxY := math.Max(r.MaxY(), o.MaxY())
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// RectOverlap returns the overlap area between two rectangles.
// Returns 0 if they don't overlap.
func RectOverlap(a, b Rect) float64 {
	overlapX := math.Min(a.MaxX(), b.MaxX()) - math.Max(a.X, b.X)
	overlapY := math.Min(a.MaxY(), b.MaxY()) - math.Max(a.Y, b.Y)
	if overlapX <= 0 || overlapY <= 0 {
		return 0
	}
	return overlapX * overlapY
}

// EntityHeight returns the box height for an entity with fieldCount rows.
func EntityHeight(fieldCount int) float64 {
	if fieldCount < 0 {
		fieldCount = 0
	}
	return HeaderHeight + float64(fieldCount)*RowHeight + NodePadding
}

// EntityRect returns the world-space box of an entity.
// Size is always derived from the field count.
func EntityRect(e erd.Entity) Rect {
	return Rect{X: e.X, Y: e.Y, W: NodeWidth, H: EntityHeight(len(e.Fields))}
}

// Bounds returns the box enclosing every entity.
// ok is false when there are no entities.
func Bounds(entities []erd.Entity) (r Rect, ok bool) {
	for i, e := range entities {
		er := EntityRect(e)
		if i == 0 {
			r = er
			continue
		}
		r = r.Union(er)
	}
	return r, len(entities) > 0
}

// RectIntersection returns where the ray from center toward target leaves
// a w x h rectangle centred on center. The wall hit first wins.
// When target equals center the center is returned unchanged.
func RectIntersection(center, target Point, w, h float64) Point {
	dx := target.X - center.X
	dy := target.Y - center.Y
	if dx == 0 && dy == 0 {
		return center
	}

	t := math.Inf(1)
	if dx != 0 {
		half := w / 2
		if dx < 0 {
			half = -half
		}
		if tx := half / dx; tx > 0 && tx < t {
			t = tx
		}
	}
	if dy != 0 {
		half := h / 2
		if dy < 0 {
			half = -half
		}
		if ty := half / dy; ty > 0 && ty < t {
			t = ty
		}
	}
	if math.IsInf(t, 1) {
		return center
	}
	return Point{center.X + dx*t, center.Y + dy*t}
}

// ConnectorLine returns a straight segment between the borders of two
// entity boxes, used for low-detail rendering.
func ConnectorLine(source, target erd.Entity) (Point, Point) {
	sr, tr := EntityRect(source), EntityRect(target)
	sc, tc := sr.Center(), tr.Center()
	return RectIntersection(sc, tc, sr.W, sr.H), RectIntersection(tc, sc, tr.W, tr.H)
}
