// Cubic Bézier connectors between entity boxes.

package erdfile

import (
	"fmt"
	"math"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// Curve is a single cubic Bézier segment.
type Curve struct {
	Start, C1, C2, End Point
}

// Edge is a relationship whose endpoints were both found.
type Edge struct {
	From, To string
	Curve    Curve
}

// EdgeCurve computes the connector from source to target.
//
// The dominant axis is the one with the larger centre-to-centre distance.
// The path leaves the side of the source facing the target and enters the
// opposite side of the target. Control points are pushed out along the
// dominant axis by max(half the distance on that axis, MinCurvature) so
// aligned boxes still get a visible bow.
func EdgeCurve(source, target erd.Entity) Curve {
	sr, tr := EntityRect(source), EntityRect(target)
	sc, tc := sr.Center(), tr.Center()

	var c Curve
	if math.Abs(tc.X-sc.X) > math.Abs(tc.Y-sc.Y) {
		curvature := math.Max(math.Abs(tc.X-sc.X)*0.5, MinCurvature)
		if tc.X > sc.X {
			c.Start = Point{sr.MaxX(), sc.Y}
			c.End = Point{tr.X, tc.Y}
		} else {
			c.Start = Point{sr.X, sc.Y}
			c.End = Point{tr.MaxX(), tc.Y}
			curvature = -curvature
		}
		c.C1 = Point{c.Start.X + curvature, c.Start.Y}
		c.C2 = Point{c.End.X - curvature, c.End.Y}
		return c
	}

	curvature := math.Max(math.Abs(tc.Y-sc.Y)*0.5, MinCurvature)
	if tc.Y > sc.Y {
		c.Start = Point{sc.X, sr.MaxY()}
		c.End = Point{tc.X, tr.Y}
	} else {
		c.Start = Point{sc.X, sr.Y}
		c.End = Point{tc.X, tr.MaxY()}
		curvature = -curvature
	}
	c.C1 = Point{c.Start.X, c.Start.Y + curvature}
	c.C2 = Point{c.End.X, c.End.Y - curvature}
	return c
}

// At evaluates the curve at parameter t in [0,1].
func (c Curve) At(t float64) Point {
	if t <= 0 {
		return c.Start
	}
	if t >= 1 {
		return c.End
	}
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return Point{
		X: a*c.Start.X + b*c.C1.X + d*c.C2.X + e*c.End.X,
		Y: a*c.Start.Y + b*c.C1.Y + d*c.C2.Y + e*c.End.Y,
	}
}

// Tangent returns the derivative at t.
func (c Curve) Tangent(t float64) Point {
	mt := 1 - t
	return Point{
		X: 3*mt*mt*(c.C1.X-c.Start.X) + 6*mt*t*(c.C2.X-c.C1.X) + 3*t*t*(c.End.X-c.C2.X),
		Y: 3*mt*mt*(c.C1.Y-c.Start.Y) + 6*mt*t*(c.C2.Y-c.C1.Y) + 3*t*t*(c.End.Y-c.C2.Y),
	}
}

// Flatten samples the curve into n+1 points.
func (c Curve) Flatten(n int) []Point {
	if n < 1 {
		n = 1
	}
	pts := make([]Point, n+1)
	for i := 0; i <= n; i++ {
		pts[i] = c.At(float64(i) / float64(n))
	}
	return pts
}

// Map applies fn to every control point. Affine maps preserve the curve.
func (c Curve) Map(fn func(Point) Point) Curve {
	return Curve{fn(c.Start), fn(c.C1), fn(c.C2), fn(c.End)}
}

// PathData formats the curve as SVG path data.
func (c Curve) PathData() string {
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		num(c.Start.X), num(c.Start.Y),
		num(c.C1.X), num(c.C1.Y),
		num(c.C2.X), num(c.C2.Y),
		num(c.End.X), num(c.End.Y))
}

// ResolveEdges pairs every relationship with its entities.
// Relationships naming a missing entity, and self-references, are skipped.
func ResolveEdges(d *erd.Diagram) []Edge {
	idx := d.Index()
	edges := make([]Edge, 0, len(d.Relationships))
	for _, r := range d.Relationships {
		si, ok := idx[r.From]
		if !ok {
			continue
		}
		ti, ok := idx[r.To]
		if !ok || si == ti {
			continue
		}
		edges = append(edges, Edge{
			From:  r.From,
			To:    r.To,
			Curve: EdgeCurve(d.Entities[si], d.Entities[ti]),
		})
	}
	return edges
}

// num formats a coordinate with at most two decimals.
func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
