package canvas

import (
	"math"
	"testing"

	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

func TestZoomByClamps(t *testing.T) {
	tests := []struct {
		start, delta, want float64
	}{
		{1, 0.2, 1.2},
		{1, -0.5, 0.5},
		{1, 100, MaxZoom},
		{1, -100, MinZoom},
		{2.9, 0.2, MaxZoom},
		{0.3, -0.2, MinZoom},
		{1, math.Inf(1), MaxZoom},
		{1, math.Inf(-1), MinZoom},
		{1, math.NaN(), 1},
	}

	for _, tt := range tests {
		v := Viewport{PanX: 7, PanY: -3, Scale: tt.start}
		v.ZoomBy(tt.delta)
		if math.Abs(v.Scale-tt.want) > 1e-9 {
			t.Errorf("ZoomBy(%v) from %v: got %v, want %v", tt.delta, tt.start, v.Scale, tt.want)
		}
		if v.Scale < MinZoom || v.Scale > MaxZoom {
			t.Errorf("scale %v out of bounds", v.Scale)
		}
		if v.PanX != 7 || v.PanY != -3 {
			t.Errorf("zoom must not pan, got (%v,%v)", v.PanX, v.PanY)
		}
	}
}

func TestPanBy(t *testing.T) {
	v := NewViewport()
	v.Scale = 2
	v.PanBy(10, -5)
	v.PanBy(1, 1)
	if v.PanX != 11 || v.PanY != -4 {
		t.Errorf("got (%v,%v), want (11,-4)", v.PanX, v.PanY)
	}
}

func TestScreenWorldRoundTrip(t *testing.T) {
	v := Viewport{PanX: 40, PanY: -20, Scale: 2}
	w := erdfile.Point{X: 100, Y: 50}
	s := v.WorldToScreen(w)
	if s != (erdfile.Point{X: 240, Y: 80}) {
		t.Errorf("WorldToScreen: got %v", s)
	}
	if back := v.ScreenToWorld(s); back != w {
		t.Errorf("ScreenToWorld: got %v, want %v", back, w)
	}

	dx, dy := v.ScreenDeltaToWorld(50, -10)
	if dx != 25 || dy != -5 {
		t.Errorf("ScreenDeltaToWorld: got (%v,%v), want (25,-5)", dx, dy)
	}
}

func TestZeroViewportIsIdentity(t *testing.T) {
	var v Viewport

	dx, dy := v.ScreenDeltaToWorld(10, 0)
	if dx != 10 || dy != 0 {
		t.Errorf("ScreenDeltaToWorld: got (%v,%v), want (10,0)", dx, dy)
	}
	p := erdfile.Point{X: 30, Y: -12}
	if got := v.ScreenToWorld(p); got != p {
		t.Errorf("ScreenToWorld: got %v, want %v", got, p)
	}
	if got := v.WorldToScreen(p); got != p {
		t.Errorf("WorldToScreen: got %v, want %v", got, p)
	}
	if got := v.Visible(800, 600); got != (erdfile.Rect{W: 800, H: 600}) {
		t.Errorf("Visible: got %+v", got)
	}

	v.ZoomBy(ZoomStep)
	if math.Abs(v.Scale-1.2) > 1e-9 {
		t.Errorf("ZoomBy from zero value: scale %v, want 1.2", v.Scale)
	}
}

func TestOutOfRangeScaleIsClamped(t *testing.T) {
	tests := []struct {
		scale, want float64
	}{
		{-2, 1},
		{math.NaN(), 1},
		{0.01, MinZoom},
		{50, MaxZoom},
	}
	for _, tt := range tests {
		v := Viewport{Scale: tt.scale}
		dx, _ := v.ScreenDeltaToWorld(6, 0)
		if want := 6 / tt.want; math.Abs(dx-want) > 1e-9 {
			t.Errorf("scale %v: got dx %v, want %v", tt.scale, dx, want)
		}
	}
}

func TestVisible(t *testing.T) {
	v := Viewport{PanX: -100, PanY: -50, Scale: 2}
	got := v.Visible(800, 600)
	want := erdfile.Rect{X: 50, Y: 25, W: 400, H: 300}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFitToContent(t *testing.T) {
	t.Run("small content capped", func(t *testing.T) {
		box := erdfile.Rect{X: 100, Y: 100, W: 180, H: 114}
		v := FitToContent(box, 1000, 800)
		if v.Scale != FitMaxScale {
			t.Fatalf("scale: got %v, want %v", v.Scale, FitMaxScale)
		}
		// Content centre lands on container centre
		c := v.WorldToScreen(box.Center())
		if math.Abs(c.X-500) > 1e-9 || math.Abs(c.Y-400) > 1e-9 {
			t.Errorf("centre: got %v, want (500,400)", c)
		}
	})

	t.Run("large content shrinks", func(t *testing.T) {
		box := erdfile.Rect{X: -500, Y: 0, W: 1800, H: 400}
		v := FitToContent(box, 1000, 800)
		want := 1000.0 / 2000.0
		if math.Abs(v.Scale-want) > 1e-9 {
			t.Fatalf("scale: got %v, want %v", v.Scale, want)
		}
		left := v.WorldToScreen(erdfile.Point{X: box.X - FitPadding})
		if math.Abs(left.X) > 1e-9 {
			t.Errorf("padded left edge should touch the container, got %v", left.X)
		}
	})

	t.Run("huge content clamped to min zoom", func(t *testing.T) {
		v := FitToContent(erdfile.Rect{W: 100000, H: 100000}, 800, 600)
		if v.Scale != MinZoom {
			t.Errorf("got %v, want %v", v.Scale, MinZoom)
		}
	})

	t.Run("empty container", func(t *testing.T) {
		if v := FitToContent(erdfile.Rect{W: 10, H: 10}, 0, 0); v != NewViewport() {
			t.Errorf("got %+v", v)
		}
	})
}
