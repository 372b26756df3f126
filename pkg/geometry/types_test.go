package geometry

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestPointOps(t *testing.T) {
	a := Pt(3, 4)
	b := Pt(1, 1)

	if d := a.Distance(Point{}); !near(d, 5) {
		t.Errorf("Distance = %v, want 5", d)
	}
	if got := a.Add(b); got != Pt(4, 5) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != Pt(2, 3) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(2); got != Pt(6, 8) {
		t.Errorf("Scale = %v", got)
	}
	if got := a.Mid(b); got != Pt(2, 2.5) {
		t.Errorf("Mid = %v", got)
	}
	if got := Pt(0, 1).Angle(); !near(got, math.Pi/2) {
		t.Errorf("Angle = %v", got)
	}
}

func TestAffineInverse(t *testing.T) {
	m := Translation(10, -5).Compose(Scaling(2, 2))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("expected invertible transform")
	}
	p := Pt(7, 11)
	back := inv.Apply(m.Apply(p))
	if !near(back.X, p.X) || !near(back.Y, p.Y) {
		t.Errorf("round trip = %v, want %v", back, p)
	}

	if _, ok := Scaling(0, 1).Inverse(); ok {
		t.Error("degenerate transform reported as invertible")
	}
}

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		name   string
		points []Point
		want   Rect
	}{
		{"empty", nil, Rect{}},
		{"single", []Point{Pt(2, 3)}, Rect{X: 2, Y: 3}},
		{"reversed corners", []Point{Pt(10, 20), Pt(4, 2)}, Rect{X: 4, Y: 2, Width: 6, Height: 18}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BoundingBox(tt.points); got != tt.want {
				t.Errorf("BoundingBox = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRectCenterExpandIntersects(t *testing.T) {
	r := RectFromCorners(Pt(5, 5), Pt(0, 0))
	if c := r.Center(); c != Pt(2.5, 2.5) {
		t.Errorf("Center = %v", c)
	}
	if e := r.Expand(1); e != (Rect{X: -1, Y: -1, Width: 7, Height: 7}) {
		t.Errorf("Expand = %+v", e)
	}

	tests := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"overlapping", Rect{X: 4, Y: 4, Width: 3, Height: 3}, true},
		{"inside", Rect{X: 1, Y: 1, Width: 1, Height: 1}, true},
		{"touching edge", Rect{X: 5, Y: 0, Width: 2, Height: 2}, true},
		{"right of", Rect{X: 6, Y: 0, Width: 2, Height: 2}, false},
		{"above", Rect{X: 0, Y: -3, Width: 2, Height: 2}, false},
	}
	for _, tt := range tests {
		if got := r.Intersects(tt.other); got != tt.want {
			t.Errorf("%s: Intersects = %v, want %v", tt.name, got, tt.want)
		}
		if got := tt.other.Intersects(r); got != tt.want {
			t.Errorf("%s: Intersects is not symmetric", tt.name)
		}
	}
}
