package colorutil

import (
	"image/color"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ff0000", color.NRGBA{R: 255, A: 255}},
		{"#0f0", color.NRGBA{G: 255, A: 255}},
		{"rgb(0, 0, 255)", color.NRGBA{B: 255, A: 255}},
		{"rgba(200,200,0,0.3)", color.NRGBA{R: 200, G: 200, A: 77}},
		{"white", White},
		{"oklch(1 0 0)", color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"oklch(0 0 0)", color.NRGBA{A: 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if !closeTo(got, tt.want, 1) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseOklchWarm(t *testing.T) {
	c, err := Parse(DefaultAnnotation)
	if err != nil {
		t.Fatal(err)
	}
	// Gold: red and green well above blue.
	if c.R <= c.B || c.G <= c.B {
		t.Errorf("default annotation colour %v is not warm", c)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "rgb(1,2)", "oklch(a b c)", "hsl(1 2 3)", "#zzzzzz"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
	if got := MustParse("bogus"); got != fallbackHighlight {
		t.Errorf("MustParse fallback = %v", got)
	}
}

func TestPaletteParses(t *testing.T) {
	for _, sw := range Palette {
		if _, err := Parse(sw.Value); err != nil {
			t.Errorf("palette %s: %v", sw.Name, err)
		}
	}
}

func closeTo(a, b color.NRGBA, tol int) bool {
	d := func(x, y uint8) bool {
		v := int(x) - int(y)
		return v <= tol && v >= -tol
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}
