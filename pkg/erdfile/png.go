// PNG export for ERD diagrams.
// The vector document is generated, decoded and rasterised, so the bitmap
// always matches the SVG export.

package erdfile

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// PNGOptions configures PNG rendering.
type PNGOptions struct {
	SVG         SVGOptions
	Supersample float64 // pixels per world unit
	MaxWidth    int     // downscale wider results; 0 keeps full size
	MaxPixels   int     // lower the scale of larger bitmaps; 0 disables
}

// DefaultMaxPixels caps export bitmaps at about 160 MB of RGBA.
const DefaultMaxPixels = 40_000_000

// DefaultPNGOptions returns sensible defaults for PNG rendering.
func DefaultPNGOptions() PNGOptions {
	return PNGOptions{
		SVG:         DefaultSVGOptions(),
		Supersample: 2,
		MaxPixels:   DefaultMaxPixels,
	}
}

// ExportOptions controls where exported files go.
type ExportOptions struct {
	PNG    PNGOptions
	Dir    string           // output directory, "" for the working directory
	Prefix string           // file name prefix
	Now    func() time.Time // clock, for the date in the file name
	Logger *slog.Logger
}

// DefaultExportOptions returns the standard export settings.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		PNG:    DefaultPNGOptions(),
		Prefix: "erd_diagram",
		Now:    time.Now,
	}
}

// ExportFilename returns <prefix>_<YYYY-MM-DD>.<ext> for the UTC date of t.
func ExportFilename(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.UTC().Format("2006-01-02"), ext)
}

// RasterizeDiagram runs the full pipeline and returns the bitmap.
func RasterizeDiagram(d *erd.Diagram, opts PNGOptions) (*image.RGBA, error) {
	var buf bytes.Buffer
	if _, err := RenderSVG(d, &buf, opts.SVG); err != nil {
		return nil, err
	}
	return rasterizeSVG(buf.Bytes(), opts)
}

// RenderPNG writes the diagram as PNG.
func RenderPNG(d *erd.Diagram, w io.Writer, opts PNGOptions) error {
	img, err := RasterizeDiagram(d, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// ExportPNG renders the diagram and writes it to a dated file.
// Nothing is written unless rendering succeeds. Returns the file path.
func ExportPNG(d *erd.Diagram, opts ExportOptions) (string, error) {
	var doc bytes.Buffer
	if _, err := RenderSVG(d, &doc, opts.PNG.SVG); err != nil {
		return "", err
	}
	return exportDocument(doc.Bytes(), opts)
}

// ExportSVG writes the vector document to a dated file.
func ExportSVG(d *erd.Diagram, opts ExportOptions) (string, error) {
	var doc bytes.Buffer
	if _, err := RenderSVG(d, &doc, opts.PNG.SVG); err != nil {
		return "", err
	}
	path := opts.path("svg")
	if err := writeFile(path, doc.Bytes()); err != nil {
		return "", err
	}
	opts.logger().Debug("svg exported", "path", path, "bytes", doc.Len())
	return path, nil
}

func exportDocument(doc []byte, opts ExportOptions) (string, error) {
	log := opts.logger()
	img, err := rasterizeSVG(doc, opts.PNG)
	if err != nil {
		log.Debug("png export failed", "error", err)
		return "", err
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}

	path := opts.path("png")
	if err := writeFile(path, out.Bytes()); err != nil {
		return "", err
	}
	b := img.Bounds()
	log.Debug("png exported", "path", path, "width", b.Dx(), "height", b.Dy())
	return path, nil
}

func rasterizeSVG(doc []byte, opts PNGOptions) (*image.RGBA, error) {
	parsed, err := DecodeSVG(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	scale := opts.Supersample
	if scale <= 0 {
		scale = 1
	}
	img, err := parsed.Rasterize(parsed.FitScale(scale, opts.MaxPixels))
	if err != nil {
		return nil, err
	}
	if opts.MaxWidth > 0 && img.Bounds().Dx() > opts.MaxWidth {
		img = Downscale(img, opts.MaxWidth)
	}
	return img, nil
}

// Downscale resizes img to width w, keeping the aspect ratio.
func Downscale(img image.Image, w int) *image.RGBA {
	b := img.Bounds()
	h := int(math.Round(float64(b.Dy()) * float64(w) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), img, b, draw.Over, nil)
	return out
}

func (o ExportOptions) path(ext string) string {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	prefix := o.Prefix
	if prefix == "" {
		prefix = "erd_diagram"
	}
	return filepath.Join(o.Dir, ExportFilename(prefix, ext, now()))
}

func (o ExportOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
