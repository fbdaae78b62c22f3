// Rasterisation of decoded SVG documents through a gg drawing context.

package erdfile

import (
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// MaxRasterPixels bounds any bitmap Rasterize allocates.
const MaxRasterPixels = 1 << 27

// RasterSize returns the bitmap size for the given scale.
func (doc *Document) RasterSize(scale float64) (int, int) {
	return int(math.Ceil(doc.Width * scale)), int(math.Ceil(doc.Height * scale))
}

// FitScale lowers scale until the bitmap holds at most maxPixels pixels.
// A non-positive maxPixels leaves scale unchanged.
func (doc *Document) FitScale(scale float64, maxPixels int) float64 {
	if maxPixels <= 0 || doc.Width <= 0 || doc.Height <= 0 {
		return scale
	}
	w, h := doc.RasterSize(scale)
	if int64(w)*int64(h) <= int64(maxPixels) {
		return scale
	}
	fit := math.Sqrt(float64(maxPixels) / (doc.Width * doc.Height))
	// Ceil in RasterSize can push the product back over the cap.
	for fit > 0 {
		w, h = doc.RasterSize(fit)
		if int64(w)*int64(h) <= int64(maxPixels) {
			break
		}
		fit *= 0.99
	}
	return fit
}

// Rasterize paints the document at scale pixels per user unit of the
// declared width and height.
func (doc *Document) Rasterize(scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	w, h := doc.RasterSize(scale)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty canvas", ErrDecode)
	}
	if int64(w)*int64(h) > MaxRasterPixels {
		return nil, fmt.Errorf("%w: %dx%d canvas exceeds %d pixels", ErrDecode, w, h, MaxRasterPixels)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	dc := gg.NewContextForRGBA(img)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetFillRule(gg.FillRuleWinding)

	p := &painter{
		dc:     dc,
		origin: Point{doc.ViewBox.X, doc.ViewBox.Y},
		sx:     scale * doc.Width / doc.ViewBox.W,
		sy:     scale * doc.Height / doc.ViewBox.H,
		faces:  make(map[faceKey]font.Face),
	}
	defer p.close()

	for _, s := range doc.shapes {
		if err := p.paintShape(s); err != nil {
			return nil, err
		}
		if s.hasEnd && s.paint.markerEnd != "" {
			if m := doc.lookupMarker(s.paint.markerEnd); m != nil {
				if err := p.paintMarker(m, s); err != nil {
					return nil, err
				}
			}
		}
	}
	return img, nil
}

func (doc *Document) lookupMarker(ref string) *marker {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "url(#") || !strings.HasSuffix(ref, ")") {
		return nil
	}
	return doc.markers[ref[5:len(ref)-1]]
}

type faceKey struct {
	mono, bold bool
	size       float64
}

type painter struct {
	dc     *gg.Context
	origin Point
	sx, sy float64
	faces  map[faceKey]font.Face
}

func (p *painter) close() {
	for _, f := range p.faces {
		f.Close()
	}
}

func (p *painter) toPx(q Point) Point {
	return Point{(q.X - p.origin.X) * p.sx, (q.Y - p.origin.Y) * p.sy}
}

func (p *painter) paintShape(s shape) error {
	if s.text != "" {
		return p.paintText(s)
	}

	dc := p.dc
	for i, poly := range s.polys {
		if len(poly) < 2 {
			continue
		}
		start := p.toPx(poly[0])
		dc.MoveTo(start.X, start.Y)
		for _, q := range poly[1:] {
			q = p.toPx(q)
			dc.LineTo(q.X, q.Y)
		}
		if s.closed[i] {
			dc.ClosePath()
		}
	}

	if s.paint.hasFill && s.paint.fill.A > 0 {
		dc.SetColor(s.paint.fill)
		dc.FillPreserve()
	}
	if s.paint.hasStroke && s.paint.strokeWidth > 0 && s.paint.stroke.A > 0 {
		dc.SetColor(s.paint.stroke)
		dc.SetLineWidth(s.paint.strokeWidth * (p.sx + p.sy) / 2)
		dc.StrokePreserve()
	}
	dc.ClearPath()
	return nil
}

// paintMarker places the marker at the end of s, scaled by the stroke
// width and rotated along the end tangent when orient is auto.
func (p *painter) paintMarker(m *marker, s shape) error {
	k := s.paint.strokeWidth
	angle := 0.0
	if m.orientAuto {
		angle = math.Atan2(s.endDir.Y, s.endDir.X)
	}
	sin, cos := math.Sincos(angle)
	place := func(q Point) Point {
		v := q.Sub(m.ref).Scale(k)
		return s.end.Add(Point{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos})
	}

	for _, ms := range m.shapes {
		placed := ms
		placed.polys = make([][]Point, len(ms.polys))
		for i, poly := range ms.polys {
			placed.polys[i] = make([]Point, len(poly))
			for j, q := range poly {
				placed.polys[i][j] = place(q)
			}
		}
		placed.hasEnd = false
		if err := p.paintShape(placed); err != nil {
			return err
		}
	}
	return nil
}

func (p *painter) paintText(s shape) error {
	if !s.paint.hasFill || s.paint.fontSize <= 0 {
		return nil
	}
	key := faceKey{
		mono: strings.Contains(strings.ToLower(s.paint.fontFamily), "mono"),
		bold: isBold(s.paint.fontWeight),
		size: s.paint.fontSize * p.sy,
	}
	face, err := p.face(key)
	if err != nil {
		return err
	}

	at := p.toPx(s.at)
	p.dc.SetFontFace(face)
	p.dc.SetColor(s.paint.fill)
	p.dc.DrawStringAnchored(s.text, at.X, at.Y, anchorX(s.paint.anchor), 0)
	return nil
}

// anchorX maps text-anchor to a gg horizontal anchor.
func anchorX(anchor string) float64 {
	switch anchor {
	case "middle":
		return 0.5
	case "end":
		return 1
	}
	return 0
}

func (p *painter) face(k faceKey) (font.Face, error) {
	if f, ok := p.faces[k]; ok {
		return f, nil
	}
	fnt, err := loadFont(k.mono, k.bold)
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    k.size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	p.faces[k] = face
	return face, nil
}

func isBold(weight string) bool {
	switch weight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

var fonts struct {
	once   sync.Once
	parsed [4]*opentype.Font
	err    error
}

// loadFont returns one of the embedded Go fonts.
func loadFont(mono, bold bool) (*opentype.Font, error) {
	fonts.once.Do(func() {
		for i, ttf := range [][]byte{goregular.TTF, gobold.TTF, gomono.TTF, gomonobold.TTF} {
			f, err := opentype.Parse(ttf)
			if err != nil {
				fonts.err = err
				return
			}
			fonts.parsed[i] = f
		}
	})
	if fonts.err != nil {
		return nil, fonts.err
	}
	i := 0
	if bold {
		i++
	}
	if mono {
		i += 2
	}
	return fonts.parsed[i], nil
}
