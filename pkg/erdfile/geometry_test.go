package erdfile

import (
	"math"
	"testing"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

func TestEntityHeight(t *testing.T) {
	tests := []struct {
		fields int
		want   float64
	}{
		{0, 36},
		{1, 62},
		{3, 114},
		{10, 296},
		{-2, 36},
	}

	for _, tt := range tests {
		if got := EntityHeight(tt.fields); got != tt.want {
			t.Errorf("EntityHeight(%d) = %v, want %v", tt.fields, got, tt.want)
		}
	}

	prev := EntityHeight(0)
	for f := 1; f < 200; f++ {
		h := EntityHeight(f)
		if h < prev {
			t.Fatalf("height decreased at %d fields: %v < %v", f, h, prev)
		}
		if h != HeaderHeight+float64(f)*RowHeight+NodePadding {
			t.Fatalf("height for %d fields: got %v", f, h)
		}
		prev = h
	}
}

func TestRectIntersectionDegenerate(t *testing.T) {
	c := Point{10, 20}
	got := RectIntersection(c, c, 100, 50)
	if got != c {
		t.Errorf("got %v, want %v", got, c)
	}
	if !got.Finite() {
		t.Error("degenerate intersection produced a non-finite point")
	}
}

func TestRectIntersection(t *testing.T) {
	c := Point{0, 0}
	tests := []struct {
		name   string
		toward Point
		want   Point
	}{
		{"right", Point{100, 0}, Point{50, 0}},
		{"left", Point{-100, 0}, Point{-50, 0}},
		{"down", Point{0, 100}, Point{0, 25}},
		{"up", Point{0, -100}, Point{0, -25}},
		{"shallow hits side wall", Point{100, 10}, Point{50, 5}},
		{"steep hits top wall", Point{10, -100}, Point{2.5, -25}},
		{"inside target still clips to wall", Point{5, 0}, Point{50, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RectIntersection(c, tt.toward, 100, 50)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectOverlap(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	if got := RectOverlap(a, Rect{5, 5, 10, 10}); got != 25 {
		t.Errorf("got %v, want 25", got)
	}
	if got := RectOverlap(a, Rect{10, 0, 10, 10}); got != 0 {
		t.Errorf("touching rects should not overlap, got %v", got)
	}
}

func TestBounds(t *testing.T) {
	if _, ok := Bounds(nil); ok {
		t.Error("expected no bounds for empty input")
	}

	entities := []erd.Entity{
		{ID: "a", X: 100, Y: 100, Fields: make([]erd.Field, 3)},
		{ID: "b", X: -50, Y: 400},
	}
	r, ok := Bounds(entities)
	if !ok {
		t.Fatal("expected bounds")
	}
	want := Rect{X: -50, Y: 100, W: 330, H: 336}
	if r != want {
		t.Errorf("got %+v, want %+v", r, want)
	}
}

func TestConnectorLine(t *testing.T) {
	a := erd.Entity{ID: "a", X: 0, Y: 0}
	b := erd.Entity{ID: "b", X: 400, Y: 0}
	p, q := ConnectorLine(a, b)
	if p != (Point{180, 18}) {
		t.Errorf("source end: got %v", p)
	}
	if q != (Point{400, 18}) {
		t.Errorf("target end: got %v", q)
	}
}
