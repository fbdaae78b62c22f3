// Self-contained SVG export for ERD diagrams.
// Styles are inlined so the document renders with no stylesheet.

package erdfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	svg "github.com/ajstarks/svgo/float"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// ErrEmptyDiagram is returned when exporting a diagram with no entities.
var ErrEmptyDiagram = errors.New("diagram has no entities")

// SVGOptions controls document generation.
type SVGOptions struct {
	Margin   float64 // space around the entity bounding box
	Decimals int     // coordinate precision
	Title    string  // optional <title>
}

// DefaultSVGOptions returns sensible defaults.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Margin:   50,
		Decimals: 2,
	}
}

// Export palette
const (
	colorBackground = "#f8fafc"
	colorNodeFill   = "#ffffff"
	colorNodeStroke = "#cbd5e1"
	colorHeader     = "#f1f5f9"
	colorTitle      = "#334155"
	colorField      = "#64748b"
	colorKeyField   = "#0f172a"
	colorEdge       = "#94a3b8"
	colorKeyMarker  = "#f59e0b"
)

const arrowMarkerID = "arrow"

var (
	styleBackground = "fill:" + colorBackground
	styleNode       = "fill:" + colorNodeFill + ";stroke:" + colorNodeStroke + ";stroke-width:1"
	styleHeader     = "fill:" + colorHeader
	styleTitle      = "font-family:sans-serif;font-weight:bold;font-size:12px;fill:" + colorTitle + ";text-anchor:middle"
	styleField      = "font-family:monospace;font-size:11px;fill:" + colorField
	styleKeyField   = "font-family:monospace;font-weight:bold;font-size:11px;fill:" + colorKeyField
	styleEdge       = "fill:none;stroke:" + colorEdge + ";stroke-width:2"
	styleKeyMarker  = "fill:" + colorKeyMarker
	styleArrow      = "fill:" + colorEdge
)

// ExportBounds returns the area covered by the export: the entity bounding
// box grown by margin on every side.
func ExportBounds(d *erd.Diagram, margin float64) (Rect, error) {
	r, ok := Bounds(d.Entities)
	if !ok {
		return Rect{}, ErrEmptyDiagram
	}
	return r.Inset(margin), nil
}

// RenderSVG writes the diagram as a standalone SVG document.
// It returns the exported world-space area.
func RenderSVG(d *erd.Diagram, w io.Writer, opts SVGOptions) (Rect, error) {
	box, err := ExportBounds(d, opts.Margin)
	if err != nil {
		return Rect{}, err
	}

	canvas := svg.New(w)
	canvas.Decimals = opts.Decimals
	canvas.Startview(box.W, box.H, box.X, box.Y, box.W, box.H)
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}

	canvas.Def()
	canvas.Marker(arrowMarkerID, 9, 3.5, 10, 7, `orient="auto"`)
	canvas.Polygon([]float64{0, 10, 0}, []float64{0, 3.5, 7}, styleArrow)
	canvas.MarkerEnd()
	canvas.DefEnd()

	canvas.Rect(box.X, box.Y, box.W, box.H, styleBackground)

	// Edges first so entities paint over them
	for _, e := range ResolveEdges(d) {
		canvas.Path(e.Curve.PathData(), styleEdge, fmt.Sprintf(`marker-end="url(#%s)"`, arrowMarkerID))
	}

	for _, e := range d.Entities {
		writeEntity(canvas, e)
	}

	canvas.End()
	return box, nil
}

// GenerateSVG renders the diagram to a string.
func GenerateSVG(d *erd.Diagram, opts SVGOptions) (string, error) {
	var buf bytes.Buffer
	if _, err := RenderSVG(d, &buf, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeEntity(canvas *svg.SVG, e erd.Entity) {
	r := EntityRect(e)

	canvas.Translate(r.X, r.Y)
	canvas.Roundrect(0, 0, r.W, r.H, 6, 6, styleNode)
	canvas.Roundrect(0, 0, r.W, HeaderHeight, 6, 6, styleHeader)
	// Square off the bottom of the header
	canvas.Rect(0, HeaderHeight-5, r.W, 10, styleHeader)
	canvas.Text(r.W/2, 20, strings.ToUpper(e.Label), styleTitle)

	for i, f := range e.Fields {
		row := float64(i) * RowHeight
		style := styleField
		if f.IsKey {
			style = styleKeyField
		}
		canvas.Text(12, HeaderHeight+20+row, f.Name, style)
		if f.IsKey {
			canvas.Circle(r.W-20, HeaderHeight+16+row, 3, styleKeyMarker)
		}
	}
	canvas.Gend()
}
