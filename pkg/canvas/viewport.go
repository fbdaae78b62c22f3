// Package canvas holds the interactive side of the diagram engine:
// the camera transform, undo history, pointer state machine and the
// display list handed to a drawing surface.
package canvas

import (
	"math"

	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// Zoom limits and steps.
const (
	MinZoom                 = 0.2
	MaxZoom                 = 3.0
	ZoomStep                = 0.2
	DefaultWheelSensitivity = 0.001
)

// Fit parameters.
const (
	FitPadding  = 100.0
	FitMaxScale = 1.2
)

// Viewport maps world coordinates to screen coordinates:
// screen = world*Scale + Pan.
type Viewport struct {
	PanX, PanY float64
	Scale      float64
}

// NewViewport returns the identity transform.
func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// PanBy moves the view by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// ZoomBy adds delta to the scale, clamped to [MinZoom, MaxZoom].
// Pan is left unchanged.
func (v *Viewport) ZoomBy(delta float64) {
	if math.IsNaN(delta) {
		return
	}
	v.SetScale(v.scale() + delta)
}

// SetScale sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (v *Viewport) SetScale(s float64) {
	if math.IsNaN(s) {
		return
	}
	v.Scale = clampZoom(s)
}

func clampZoom(s float64) float64 {
	return math.Min(math.Max(s, MinZoom), MaxZoom)
}

// scale is the effective zoom. An unset Scale counts as 1, so the zero
// Viewport is the identity transform.
func (v Viewport) scale() float64 {
	if !(v.Scale > 0) {
		return 1
	}
	return clampZoom(v.Scale)
}

// ScreenDeltaToWorld converts a pointer delta into world units so that
// dragged content tracks the cursor at any zoom level.
func (v Viewport) ScreenDeltaToWorld(dx, dy float64) (float64, float64) {
	s := v.scale()
	return dx / s, dy / s
}

// ScreenToWorld converts a screen position to world space.
func (v Viewport) ScreenToWorld(p erdfile.Point) erdfile.Point {
	s := v.scale()
	return erdfile.Point{X: (p.X - v.PanX) / s, Y: (p.Y - v.PanY) / s}
}

// WorldToScreen converts a world position to screen space.
func (v Viewport) WorldToScreen(p erdfile.Point) erdfile.Point {
	s := v.scale()
	return erdfile.Point{X: p.X*s + v.PanX, Y: p.Y*s + v.PanY}
}

// RectToScreen maps a world rectangle to screen space.
func (v Viewport) RectToScreen(r erdfile.Rect) erdfile.Rect {
	p := v.WorldToScreen(erdfile.Point{X: r.X, Y: r.Y})
	s := v.scale()
	return erdfile.Rect{X: p.X, Y: p.Y, W: r.W * s, H: r.H * s}
}

// Visible returns the world-space area shown in a container of the
// given size.
func (v Viewport) Visible(width, height float64) erdfile.Rect {
	p := v.ScreenToWorld(erdfile.Point{})
	s := v.scale()
	return erdfile.Rect{X: p.X, Y: p.Y, W: width / s, H: height / s}
}

// FitToContent returns a viewport that centres box, grown by FitPadding,
// inside a width x height container. Small content is never magnified
// beyond FitMaxScale.
func FitToContent(box erdfile.Rect, width, height float64) Viewport {
	contentW := box.W + 2*FitPadding
	contentH := box.H + 2*FitPadding
	if width <= 0 || height <= 0 || contentW <= 0 || contentH <= 0 {
		return NewViewport()
	}

	scale := math.Min(math.Min(width/contentW, height/contentH), FitMaxScale)
	scale = clampZoom(scale)

	return Viewport{
		PanX:  (width-contentW*scale)/2 - box.X*scale + FitPadding*scale,
		PanY:  (height-contentH*scale)/2 - box.Y*scale + FitPadding*scale,
		Scale: scale,
	}
}
