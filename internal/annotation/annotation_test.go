package annotation

import (
	"encoding/json"
	"image"
	"math"
	"strings"
	"testing"

	"ortho-annotator/internal/sticker"
	"ortho-annotator/pkg/geometry"
)

func TestRulerMeasurement(t *testing.T) {
	a, err := NewRuler(DefaultStyle(), geometry.Pt(0, 0), geometry.Pt(100, 0), 10)
	if err != nil {
		t.Fatalf("NewRuler: %v", err)
	}
	if a.Distance == nil || *a.Distance != 10 {
		t.Fatalf("Distance = %v", a.Distance)
	}
	if a.Text != "10.0 mm" {
		t.Errorf("Text = %q", a.Text)
	}
}

func TestAngleBetween(t *testing.T) {
	tests := []struct {
		name       string
		v, a1, a2  geometry.Point
		wantDegree float64
	}{
		{"right angle", geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(0, 10), 90},
		{"reversed arms", geometry.Pt(0, 0), geometry.Pt(0, 10), geometry.Pt(10, 0), 90},
		{"reflex reflected", geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(-10, -1), 180 - math.Atan2(1, 10)*180/math.Pi},
		{"straight", geometry.Pt(5, 5), geometry.Pt(10, 5), geometry.Pt(0, 5), 180},
		{"coincident", geometry.Pt(0, 0), geometry.Pt(3, 3), geometry.Pt(6, 6), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleBetween(tt.v, tt.a1, tt.a2)
			if math.Abs(got-tt.wantDegree) > 1e-9 {
				t.Errorf("AngleBetween = %v, want %v", got, tt.wantDegree)
			}
		})
	}

	a, err := NewAngle(DefaultStyle(), geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(0, 10))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(*a.Angle-90) > 1e-9 || a.Text != "90.0°" {
		t.Errorf("angle annotation = %v %q", *a.Angle, a.Text)
	}
}

func TestNewShapeArity(t *testing.T) {
	style := DefaultStyle()
	tests := []struct {
		tool    Tool
		n       int
		wantErr bool
	}{
		{ToolPen, 1, false},
		{ToolPen, 7, false},
		{ToolPen, 0, true},
		{ToolLine, 2, false},
		{ToolLine, 3, true},
		{ToolArrow, 1, true},
		{ToolRectangle, 2, false},
		{ToolCircle, 2, false},
		{ToolCurve, 3, false},
		{ToolCurve, 2, true},
		{ToolRuler, 2, true}, // not a shape tool
		{ToolPan, 2, true},
	}
	for _, tt := range tests {
		pts := make([]geometry.Point, tt.n)
		for i := range pts {
			pts[i] = geometry.Pt(float64(i*10), float64(i*5))
		}
		_, err := NewShape(tt.tool, style, pts)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewShape(%s, %d points) err = %v", tt.tool, tt.n, err)
		}
	}
}

func TestRectangleSize(t *testing.T) {
	a, err := NewShape(ToolRectangle, DefaultStyle(), []geometry.Point{geometry.Pt(10, 40), geometry.Pt(4, 50)})
	if err != nil {
		t.Fatal(err)
	}
	if a.Width != 6 || a.Height != 10 {
		t.Errorf("size = %vx%v", a.Width, a.Height)
	}
}

func TestSticker(t *testing.T) {
	style := Style{Color: "#ff0000", StrokeWidth: 5, Opacity: 0.3}
	a, err := NewSticker(style, geometry.Pt(3, 4), sticker.Bracket)
	if err != nil {
		t.Fatal(err)
	}
	if a.StrokeWidth != 0 || a.Opacity != 1 || a.Width != sticker.Width || a.Height != sticker.Height {
		t.Errorf("sticker style = %+v", a)
	}
	if _, err := NewSticker(style, geometry.Pt(0, 0), ""); err == nil {
		t.Error("sticker without asset should be invalid")
	}
}

type fakeResolver struct{ calls int }

func (f *fakeResolver) Resolve(id string) *sticker.Handle {
	f.calls++
	return sticker.NewReadyHandle(id, image.NewRGBA(image.Rect(0, 0, 1, 1)))
}

func TestStripAndResolve(t *testing.T) {
	s, _ := NewSticker(DefaultStyle(), geometry.Pt(1, 1), sticker.Bracket)
	l, _ := NewShape(ToolLine, DefaultStyle(), []geometry.Point{{}, geometry.Pt(5, 5)})
	list := []Annotation{s, l}

	r := &fakeResolver{}
	ResolveStickers(list, r)
	if list[0].Sticker == nil || list[1].Sticker != nil || r.calls != 1 {
		t.Fatalf("ResolveStickers: calls=%d", r.calls)
	}

	stripped := StripHandles(list)
	if stripped[0].Sticker != nil {
		t.Error("StripHandles kept handle")
	}
	if list[0].Sticker == nil {
		t.Error("StripHandles modified the input")
	}

	data, err := json.Marshal(list)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Sticker\"") {
		t.Errorf("handle leaked into JSON: %s", data)
	}
}

func TestCloneIsDeep(t *testing.T) {
	a, _ := NewRuler(DefaultStyle(), geometry.Pt(0, 0), geometry.Pt(30, 40), 10)
	c := a.Clone()
	c.Points[0].X = 99
	*c.Distance = 1
	if a.Points[0].X != 0 || *a.Distance != 5 {
		t.Error("Clone shares memory with the original")
	}

	fresh := WithNewIDs([]Annotation{a})
	if fresh[0].ID == a.ID {
		t.Error("WithNewIDs kept the id")
	}
}

func TestToolLookup(t *testing.T) {
	if ToolCurve.Label() != "Curve" || ToolPan.Annotates() || !ToolPen.IsDrag() || ToolRuler.IsDrag() {
		t.Error("tool metadata mismatch")
	}
	if _, err := ParseTool("laser"); err == nil {
		t.Error("ParseTool accepted unknown tool")
	}
	if tool, err := ParseTool("angle_measurer"); err != nil || tool != ToolAngle {
		t.Errorf("ParseTool = %v, %v", tool, err)
	}
}

func TestCircleBounds(t *testing.T) {
	a, _ := NewShape(ToolCircle, DefaultStyle(), []geometry.Point{geometry.Pt(10, 10), geometry.Pt(13, 14)})
	b := a.Bounds()
	if b.X != 5 || b.Y != 5 || b.Width != 10 || b.Height != 10 {
		t.Errorf("Bounds = %+v", b)
	}
}
