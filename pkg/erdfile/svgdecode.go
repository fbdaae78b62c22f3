// SVG decoding.
// Understands the subset of SVG produced by RenderSVG: rect, circle,
// polygon, path (M/L/H/V/C/Z), text, translated groups and end markers.

package erdfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrDecode is returned when an SVG document cannot be decoded.
var ErrDecode = errors.New("malformed SVG document")

// Segments used when flattening curves.
const (
	curveSegments  = 24
	circleSegments = 32
	cornerSegments = 6
)

// Document is a decoded SVG display list.
type Document struct {
	Width, Height float64
	ViewBox       Rect

	shapes  []shape
	markers map[string]*marker
}

type paint struct {
	fill, stroke       color.RGBA
	hasFill, hasStroke bool
	strokeWidth        float64
	fontFamily         string
	fontWeight         string
	fontSize           float64
	anchor             string
	markerEnd          string
}

func defaultPaint() paint {
	return paint{
		fill:        color.RGBA{0, 0, 0, 255},
		hasFill:     true,
		strokeWidth: 1,
		fontFamily:  "sans-serif",
		fontWeight:  "normal",
		fontSize:    16,
		anchor:      "start",
	}
}

type shape struct {
	polys  [][]Point // world space
	closed []bool
	text   string
	at     Point
	paint  paint

	// Set for open paths, used to place end markers
	hasEnd bool
	end    Point
	endDir Point
}

type marker struct {
	ref        Point
	width      float64
	height     float64
	orientAuto bool
	shapes     []shape
}

type frame struct {
	offset Point
	paint  paint
	defs   bool
	marker *marker
}

// DecodeSVG parses an SVG document into a display list.
// Every failure wraps ErrDecode.
func DecodeSVG(r io.Reader) (*Document, error) {
	doc, err := decodeSVG(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return doc, nil
}

func decodeSVG(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{markers: make(map[string]*marker)}

	var stack []frame
	var pending *shape // text element collecting character data
	var pendingTarget *[]shape
	var textBuf strings.Builder
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if !sawRoot {
				if name != "svg" {
					return nil, fmt.Errorf("root element is <%s>, want <svg>", name)
				}
				if err := doc.readRoot(t); err != nil {
					return nil, err
				}
				sawRoot = true
				stack = append(stack, frame{paint: defaultPaint()})
				continue
			}

			parent := stack[len(stack)-1]
			f := frame{offset: parent.offset, defs: parent.defs, marker: parent.marker}
			p, err := resolvePaint(parent.paint, t)
			if err != nil {
				return nil, fmt.Errorf("<%s>: %w", name, err)
			}
			f.paint = p

			if tr, ok := attr(t, "transform"); ok {
				d, err := parseTranslate(tr)
				if err != nil {
					return nil, err
				}
				f.offset = f.offset.Add(d)
			}

			target := &doc.shapes
			if f.marker != nil {
				target = &f.marker.shapes
			} else if f.defs {
				target = nil
			}

			switch name {
			case "defs":
				f.defs = true
			case "marker":
				m, id, err := readMarker(t)
				if err != nil {
					return nil, err
				}
				doc.markers[id] = m
				f.marker = m
				f.offset = Point{}
			case "rect", "circle", "polygon", "path", "line", "polyline":
				s, err := readShape(name, t)
				if err != nil {
					return nil, fmt.Errorf("<%s>: %w", name, err)
				}
				s.paint = f.paint
				s.translate(f.offset)
				if target != nil {
					*target = append(*target, s)
				}
			case "text":
				x, err := numAttr(t, "x", 0)
				if err != nil {
					return nil, err
				}
				y, err := numAttr(t, "y", 0)
				if err != nil {
					return nil, err
				}
				pending = &shape{at: Point{x, y}.Add(f.offset), paint: f.paint}
				pendingTarget = target
				textBuf.Reset()
			}
			stack = append(stack, f)

		case xml.CharData:
			if pending != nil {
				textBuf.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected </%s>", t.Name.Local)
			}
			if t.Name.Local == "text" && pending != nil {
				pending.text = strings.Join(strings.Fields(textBuf.String()), " ")
				if pendingTarget != nil && pending.text != "" {
					*pendingTarget = append(*pendingTarget, *pending)
				}
				pending = nil
				pendingTarget = nil
			}
			stack = stack[:len(stack)-1]
		}
	}

	if !sawRoot {
		return nil, errors.New("no <svg> element")
	}
	return doc, nil
}

func (doc *Document) readRoot(t xml.StartElement) error {
	w, err := numAttr(t, "width", -1)
	if err != nil {
		return err
	}
	h, err := numAttr(t, "height", -1)
	if err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return errors.New("svg width and height must be positive")
	}
	doc.Width, doc.Height = w, h
	doc.ViewBox = Rect{0, 0, w, h}

	if vb, ok := attr(t, "viewBox"); ok {
		nums, err := parseNumbers(vb)
		if err != nil {
			return fmt.Errorf("viewBox: %w", err)
		}
		if len(nums) != 4 || nums[2] <= 0 || nums[3] <= 0 {
			return fmt.Errorf("viewBox %q is invalid", vb)
		}
		doc.ViewBox = Rect{nums[0], nums[1], nums[2], nums[3]}
	}
	return nil
}

func readMarker(t xml.StartElement) (*marker, string, error) {
	id, ok := attr(t, "id")
	if !ok || id == "" {
		return nil, "", errors.New("marker without id")
	}
	m := &marker{}
	var err error
	if m.ref.X, err = numAttr(t, "refX", 0); err != nil {
		return nil, "", err
	}
	if m.ref.Y, err = numAttr(t, "refY", 0); err != nil {
		return nil, "", err
	}
	if m.width, err = numAttr(t, "markerWidth", 3); err != nil {
		return nil, "", err
	}
	if m.height, err = numAttr(t, "markerHeight", 3); err != nil {
		return nil, "", err
	}
	o, _ := attr(t, "orient")
	m.orientAuto = o == "auto"
	return m, id, nil
}

func readShape(name string, t xml.StartElement) (shape, error) {
	var s shape
	switch name {
	case "rect":
		vals, err := numAttrs(t, []string{"x", "y", "width", "height"})
		if err != nil {
			return s, err
		}
		rx, err := numAttr(t, "rx", -1)
		if err != nil {
			return s, err
		}
		ry, err := numAttr(t, "ry", -1)
		if err != nil {
			return s, err
		}
		if rx < 0 {
			rx = ry
		}
		if ry < 0 {
			ry = rx
		}
		s.addPoly(roundRect(vals[0], vals[1], vals[2], vals[3], math.Max(rx, 0), math.Max(ry, 0)), true)

	case "circle":
		vals, err := numAttrs(t, []string{"cx", "cy", "r"})
		if err != nil {
			return s, err
		}
		s.addPoly(ellipse(Point{vals[0], vals[1]}, vals[2], vals[2], circleSegments), true)

	case "polygon", "polyline":
		raw, _ := attr(t, "points")
		nums, err := parseNumbers(raw)
		if err != nil {
			return s, err
		}
		if len(nums)%2 != 0 {
			return s, fmt.Errorf("odd number of coordinates in %q", raw)
		}
		pts := make([]Point, 0, len(nums)/2)
		for i := 0; i < len(nums); i += 2 {
			pts = append(pts, Point{nums[i], nums[i+1]})
		}
		s.addPoly(pts, name == "polygon")
		if name == "polyline" && len(pts) >= 2 {
			s.setEnd(pts[len(pts)-1], pts[len(pts)-1].Sub(pts[len(pts)-2]))
		}

	case "line":
		vals, err := numAttrs(t, []string{"x1", "y1", "x2", "y2"})
		if err != nil {
			return s, err
		}
		a, b := Point{vals[0], vals[1]}, Point{vals[2], vals[3]}
		s.addPoly([]Point{a, b}, false)
		s.setEnd(b, b.Sub(a))

	case "path":
		d, _ := attr(t, "d")
		if err := parsePath(&s, d); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s *shape) addPoly(pts []Point, closed bool) {
	if len(pts) == 0 {
		return
	}
	s.polys = append(s.polys, pts)
	s.closed = append(s.closed, closed)
}

func (s *shape) setEnd(p, dir Point) {
	s.hasEnd = true
	s.end = p
	s.endDir = dir
}

func (s *shape) translate(d Point) {
	for _, poly := range s.polys {
		for i := range poly {
			poly[i] = poly[i].Add(d)
		}
	}
	s.at = s.at.Add(d)
	s.end = s.end.Add(d)
}

// parsePath handles absolute and relative M, L, H, V, C and Z commands.
func parsePath(s *shape, d string) error {
	toks, err := tokenizePath(d)
	if err != nil {
		return err
	}

	var cur, start Point
	var poly []Point
	var dir Point
	flush := func(closed bool) {
		if len(poly) > 1 {
			s.addPoly(poly, closed)
		}
		poly = nil
	}

	cmd := byte(0)
	i := 0
	next := func(n int) ([]float64, error) {
		if i+n > len(toks) {
			return nil, fmt.Errorf("path %q: missing coordinates", d)
		}
		vals := make([]float64, n)
		for k := 0; k < n; k++ {
			if toks[i+k].cmd != 0 {
				return nil, fmt.Errorf("path %q: expected number", d)
			}
			vals[k] = toks[i+k].val
		}
		i += n
		return vals, nil
	}

	for i < len(toks) {
		if toks[i].cmd != 0 {
			cmd = toks[i].cmd
			i++
		} else if cmd == 0 {
			return fmt.Errorf("path %q: number before command", d)
		}

		rel := cmd >= 'a' && cmd <= 'z'
		base := Point{}
		if rel {
			base = cur
		}

		switch cmd {
		case 'M', 'm':
			v, err := next(2)
			if err != nil {
				return err
			}
			flush(false)
			cur = base.Add(Point{v[0], v[1]})
			start = cur
			poly = []Point{cur}
			// Further pairs are implicit line-tos
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L', 'l':
			v, err := next(2)
			if err != nil {
				return err
			}
			p := base.Add(Point{v[0], v[1]})
			dir = p.Sub(cur)
			cur = p
			poly = append(poly, cur)
		case 'H', 'h':
			v, err := next(1)
			if err != nil {
				return err
			}
			p := Point{base.X + v[0], cur.Y}
			dir = p.Sub(cur)
			cur = p
			poly = append(poly, cur)
		case 'V', 'v':
			v, err := next(1)
			if err != nil {
				return err
			}
			p := Point{cur.X, base.Y + v[0]}
			dir = p.Sub(cur)
			cur = p
			poly = append(poly, cur)
		case 'C', 'c':
			v, err := next(6)
			if err != nil {
				return err
			}
			c := Curve{
				Start: cur,
				C1:    base.Add(Point{v[0], v[1]}),
				C2:    base.Add(Point{v[2], v[3]}),
				End:   base.Add(Point{v[4], v[5]}),
			}
			pts := c.Flatten(curveSegments)
			poly = append(poly, pts[1:]...)
			dir = c.End.Sub(c.C2)
			if dir == (Point{}) {
				dir = c.End.Sub(c.C1)
			}
			if dir == (Point{}) {
				dir = c.End.Sub(c.Start)
			}
			cur = c.End
		case 'Z', 'z':
			flush(true)
			cur = start
			poly = []Point{cur}
			cmd = 0
		default:
			return fmt.Errorf("path %q: unsupported command %q", d, cmd)
		}
		if poly == nil {
			poly = []Point{cur}
		}
	}
	flush(false)
	if dir != (Point{}) {
		s.setEnd(cur, dir)
	}
	return nil
}

type pathToken struct {
	cmd byte
	val float64
}

func tokenizePath(d string) ([]pathToken, error) {
	var toks []pathToken
	i := 0
	for i < len(d) {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.IndexByte("MmLlHhVvCcZz", c) >= 0:
			toks = append(toks, pathToken{cmd: c})
			i++
		default:
			j := i
			if d[j] == '-' || d[j] == '+' {
				j++
			}
			for j < len(d) && (d[j] >= '0' && d[j] <= '9' || d[j] == '.' || d[j] == 'e' || d[j] == 'E' ||
				(d[j] == '-' && (d[j-1] == 'e' || d[j-1] == 'E'))) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("path %q: unexpected %q", d, c)
			}
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", d, err)
			}
			toks = append(toks, pathToken{val: v})
			i = j
		}
	}
	return toks, nil
}

func roundRect(x, y, w, h, rx, ry float64) []Point {
	rx = math.Min(rx, w/2)
	ry = math.Min(ry, h/2)
	if rx <= 0 || ry <= 0 {
		return []Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	}
	corners := []struct {
		c     Point
		start float64
	}{
		{Point{x + w - rx, y + ry}, -math.Pi / 2},
		{Point{x + w - rx, y + h - ry}, 0},
		{Point{x + rx, y + h - ry}, math.Pi / 2},
		{Point{x + rx, y + ry}, math.Pi},
	}
	pts := make([]Point, 0, 4*(cornerSegments+1))
	for _, k := range corners {
		for i := 0; i <= cornerSegments; i++ {
			a := k.start + math.Pi/2*float64(i)/cornerSegments
			pts = append(pts, Point{k.c.X + rx*math.Cos(a), k.c.Y + ry*math.Sin(a)})
		}
	}
	return pts
}

// ellipse returns a polygon wound the same way as stroke quads.
func ellipse(c Point, rx, ry float64, n int) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		a := -2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{c.X + rx*math.Cos(a), c.Y + ry*math.Sin(a)}
	}
	return pts
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func numAttr(t xml.StartElement, name string, def float64) (float64, error) {
	v, ok := attr(t, name)
	if !ok {
		return def, nil
	}
	f, err := parseLength(v)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return f, nil
}

func numAttrs(t xml.StartElement, names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := numAttr(t, n, 0)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseLength(v string) (float64, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	return strconv.ParseFloat(v, 64)
}

func parseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\n' || r == '\t' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseTranslate(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "translate(") || !strings.HasSuffix(s, ")") {
		return Point{}, fmt.Errorf("unsupported transform %q", s)
	}
	nums, err := parseNumbers(s[len("translate(") : len(s)-1])
	if err != nil {
		return Point{}, fmt.Errorf("transform %q: %w", s, err)
	}
	switch len(nums) {
	case 1:
		return Point{nums[0], 0}, nil
	case 2:
		return Point{nums[0], nums[1]}, nil
	}
	return Point{}, fmt.Errorf("transform %q: want 1 or 2 values", s)
}

// resolvePaint applies presentation attributes, then the style attribute.
func resolvePaint(p paint, t xml.StartElement) (paint, error) {
	for _, a := range t.Attr {
		if err := p.set(a.Name.Local, a.Value); err != nil {
			return p, err
		}
	}
	if st, ok := attr(t, "style"); ok {
		for _, decl := range strings.Split(st, ";") {
			k, v, found := strings.Cut(decl, ":")
			if !found {
				if strings.TrimSpace(decl) != "" {
					return p, fmt.Errorf("bad style declaration %q", decl)
				}
				continue
			}
			if err := p.set(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
				return p, err
			}
		}
	}
	return p, nil
}

func (p *paint) set(key, value string) error {
	var err error
	switch key {
	case "fill":
		p.fill, p.hasFill, err = parseColor(value)
	case "stroke":
		p.stroke, p.hasStroke, err = parseColor(value)
	case "stroke-width":
		p.strokeWidth, err = parseLength(value)
	case "font-family":
		p.fontFamily = value
	case "font-weight":
		p.fontWeight = value
	case "font-size":
		p.fontSize, err = parseLength(value)
	case "text-anchor":
		p.anchor = value
	case "marker-end":
		p.markerEnd = value
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

var namedColors = map[string]color.RGBA{
	"black": {0, 0, 0, 255},
	"white": {255, 255, 255, 255},
	"red":   {255, 0, 0, 255},
	"green": {0, 128, 0, 255},
	"blue":  {0, 0, 255, 255},
	"gray":  {128, 128, 128, 255},
	"grey":  {128, 128, 128, 255},
}

func parseColor(s string) (color.RGBA, bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "none" || s == "transparent":
		return color.RGBA{}, false, nil
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.RGBA{}, false, fmt.Errorf("bad colour %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, false, fmt.Errorf("bad colour %q", s)
		}
		return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, true, nil
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		nums, err := parseNumbers(s[4 : len(s)-1])
		if err != nil || len(nums) != 3 {
			return color.RGBA{}, false, fmt.Errorf("bad colour %q", s)
		}
		return color.RGBA{clampByte(nums[0]), clampByte(nums[1]), clampByte(nums[2]), 255}, true, nil
	}
	if c, ok := namedColors[s]; ok {
		return c, true, nil
	}
	return color.RGBA{}, false, fmt.Errorf("unknown colour %q", s)
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
