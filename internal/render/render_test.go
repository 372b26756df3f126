package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/internal/viewport"
	"ortho-annotator/pkg/colorutil"
	"ortho-annotator/pkg/geometry"
)

func newRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func rgb(img image.Image, x, y int) (r, g, b uint8) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	return d <= tol && d >= -tol
}

func TestBackgroundOnlyWithoutDocument(t *testing.T) {
	r := newRenderer(t)
	img := r.Render(16, 16, Scene{})

	want := colorutil.MustParse(colorutil.CanvasBackground)
	gr, gg, gb := rgb(img, 8, 8)
	if !near(gr, want.R, 2) || !near(gg, want.G, 2) || !near(gb, want.B, 2) {
		t.Errorf("background = %d,%d,%d, want %d,%d,%d", gr, gg, gb, want.R, want.G, want.B)
	}
}

func TestImageDrawnAtPanAndZoom(t *testing.T) {
	r := newRenderer(t)
	vp := viewport.New()
	vp.Zoom = 2
	vp.Pan = geometry.Pt(4, 4)

	img := r.Render(40, 40, Scene{
		HasDocument: true,
		Image:       solid(10, 10, color.NRGBA{R: 255, A: 255}),
		Viewport:    vp,
	})

	// The image covers screen [4, 24) in both axes.
	if red, g, b := rgb(img, 14, 14); red < 240 || g > 15 || b > 15 {
		t.Errorf("inside image = %d,%d,%d, want red", red, g, b)
	}
	if red, _, _ := rgb(img, 34, 34); red > 100 {
		t.Errorf("outside image red = %d, want background", red)
	}
}

func TestLineStroke(t *testing.T) {
	r := newRenderer(t)
	line := annotation.Annotation{
		ID:          "l",
		Tool:        annotation.ToolLine,
		Color:       "#000000",
		StrokeWidth: 6,
		Opacity:     1,
		Points:      []geometry.Point{geometry.Pt(10, 50), geometry.Pt(90, 50)},
	}
	img := r.Render(100, 100, Scene{
		HasDocument: true,
		Image:       solid(100, 100, color.White),
		Viewport:    viewport.New(),
		Annotations: []annotation.Annotation{line},
	})

	if red, g, b := rgb(img, 50, 50); red > 40 || g > 40 || b > 40 {
		t.Errorf("on line = %d,%d,%d, want black", red, g, b)
	}
	if red, g, b := rgb(img, 50, 20); red < 240 || g < 240 || b < 240 {
		t.Errorf("off line = %d,%d,%d, want white", red, g, b)
	}
}

func TestStrokeWidthIsScreenConstant(t *testing.T) {
	r := newRenderer(t)
	vp := viewport.New()
	vp.Zoom = 4
	line := annotation.Annotation{
		ID:          "l",
		Tool:        annotation.ToolLine,
		Color:       "#000000",
		StrokeWidth: 2,
		Opacity:     1,
		Points:      []geometry.Point{geometry.Pt(2, 10), geometry.Pt(22, 10)},
	}
	img := r.Render(100, 100, Scene{
		HasDocument: true,
		Image:       solid(25, 25, color.White),
		Viewport:    vp,
		Annotations: []annotation.Annotation{line},
	})

	// Screen y of the line is 40. A zoomed stroke would reach y = 44.
	if red, _, _ := rgb(img, 50, 40); red > 60 {
		t.Errorf("line centre red = %d, want dark", red)
	}
	if red, _, _ := rgb(img, 50, 44); red < 240 {
		t.Errorf("4px below line red = %d, want white", red)
	}
}

func stickerAt(p geometry.Point, h *sticker.Handle) annotation.Annotation {
	return annotation.Annotation{
		ID:           "s",
		Tool:         annotation.ToolSticker,
		Color:        "#000000",
		Opacity:      1,
		Points:       []geometry.Point{p},
		Width:        sticker.Width,
		Height:       sticker.Height,
		StickerAsset: sticker.Bracket,
		Sticker:      h,
	}
}

func TestStickerPlaceholders(t *testing.T) {
	r := newRenderer(t)
	cache := sticker.NewCache(sticker.LoaderFunc(func(context.Context, string) (image.Image, error) {
		return nil, errors.New("broken asset")
	}))
	failed := cache.Resolve(sticker.Bracket)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := failed.Wait(ctx); err == nil {
		t.Fatal("expected load failure")
	}

	img := r.Render(100, 100, Scene{
		HasDocument: true,
		Image:       solid(100, 100, color.White),
		Viewport:    viewport.New(),
		Annotations: []annotation.Annotation{
			stickerAt(geometry.Pt(25, 50), nil),
			stickerAt(geometry.Pt(75, 50), failed),
		},
	})

	// Pending: translucent yellow over white.
	if red, g, b := rgb(img, 25, 50); red < 200 || g < 200 || b > 200 {
		t.Errorf("pending placeholder = %d,%d,%d, want yellow tint", red, g, b)
	}
	// Failed: translucent red over white.
	if red, g, b := rgb(img, 75, 50); red < 240 || g > 200 || b > 200 {
		t.Errorf("failed placeholder = %d,%d,%d, want red tint", red, g, b)
	}
	// Outside both placeholders.
	if red, g, b := rgb(img, 50, 50); red < 240 || g < 240 || b < 240 {
		t.Errorf("between placeholders = %d,%d,%d, want white", red, g, b)
	}
}

func TestResolvedStickerDrawnCentred(t *testing.T) {
	r := newRenderer(t)
	h := sticker.NewReadyHandle(sticker.Bracket, solid(48, 48, color.NRGBA{B: 255, A: 255}))

	img := r.Render(100, 100, Scene{
		HasDocument: true,
		Image:       solid(100, 100, color.White),
		Viewport:    viewport.New(),
		Annotations: []annotation.Annotation{stickerAt(geometry.Pt(50, 50), h)},
	})

	if red, _, b := rgb(img, 50, 50); red > 20 || b < 240 {
		t.Errorf("sticker centre = %d,_,%d, want blue", red, b)
	}
	// 24px wide, so x = 65 is outside.
	if red, _, _ := rgb(img, 65, 50); red < 240 {
		t.Errorf("outside sticker red = %d, want white", red)
	}
}

func TestLoadingOverlay(t *testing.T) {
	r := newRenderer(t)
	bare := r.Render(40, 40, Scene{})
	loading := r.Render(40, 40, Scene{HasDocument: true})

	br, bg, bb := rgb(bare, 1, 1)
	lr, lg, lb := rgb(loading, 1, 1)
	if br == lr && bg == lg && bb == lb {
		t.Error("loading backdrop not drawn")
	}
	// Grey backdrop at half alpha brightens the dark background.
	if lr <= br {
		t.Errorf("loading red %d not brighter than background %d", lr, br)
	}
}

func TestFilterCached(t *testing.T) {
	calls := 0
	r := newRenderer(t, WithFilter(FilterFunc(func(img image.Image, f viewport.Filters) (image.Image, error) {
		calls++
		return img, nil
	})))
	src := solid(8, 8, color.White)
	vp := viewport.New()
	sc := Scene{HasDocument: true, Image: src, Viewport: vp}

	r.Render(8, 8, sc)
	if calls != 0 {
		t.Fatalf("neutral filters applied the filter %d times", calls)
	}

	vp.SetFilters(viewport.Filters{Brightness: 150, Contrast: 100})
	r.Render(8, 8, sc)
	r.Render(8, 8, sc)
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for repeated frames", calls)
	}

	vp.SetFilters(viewport.Filters{Brightness: 150, Contrast: 80})
	r.Render(8, 8, sc)
	if calls != 2 {
		t.Errorf("calls = %d, want 2 after filter change", calls)
	}
}

func TestFilterErrorFallsBackToSource(t *testing.T) {
	r := newRenderer(t, WithFilter(FilterFunc(func(image.Image, viewport.Filters) (image.Image, error) {
		return nil, errors.New("no backend")
	})))
	vp := viewport.New()
	vp.SetFilters(viewport.Filters{Brightness: 50, Contrast: 100})

	img := r.Render(8, 8, Scene{HasDocument: true, Image: solid(8, 8, color.White), Viewport: vp})
	if red, _, _ := rgb(img, 4, 4); red < 240 {
		t.Errorf("red = %d, want unfiltered white", red)
	}
}

func TestAngleLabelPosition(t *testing.T) {
	tests := []struct {
		name       string
		arm1, arm2 geometry.Point
		want       geometry.Point
	}{
		{"right angle", geometry.Pt(10, 0), geometry.Pt(0, 10), geometry.Pt(20/math.Sqrt2, 20/math.Sqrt2)},
		{"unequal arms", geometry.Pt(100, 0), geometry.Pt(0, 5), geometry.Pt(20/math.Sqrt2, 20/math.Sqrt2)},
		{"opposite arms", geometry.Pt(10, 0), geometry.Pt(-10, 0), geometry.Pt(20*0.707, -20*0.707)},
		{"degenerate", geometry.Pt(0, 0), geometry.Pt(0, 0), geometry.Pt(20*0.707, -20*0.707)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleLabelPosition(geometry.Pt(0, 0), tt.arm1, tt.arm2, 20)
			if math.Abs(got.X-tt.want.X) > 1e-6 || math.Abs(got.Y-tt.want.Y) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func shape(tool annotation.Tool, width float64, text string, pts ...geometry.Point) annotation.Annotation {
	return annotation.Annotation{
		ID:          string(tool),
		Tool:        tool,
		Color:       "#000000",
		StrokeWidth: width,
		Opacity:     1,
		Points:      pts,
		Text:        text,
	}
}

// renderOn draws annotations over a white 100x100 image at zoom 1.
func renderOn(t *testing.T, preview *annotation.Annotation, anns ...annotation.Annotation) image.Image {
	t.Helper()
	return newRenderer(t).Render(100, 100, Scene{
		HasDocument: true,
		Image:       solid(100, 100, color.White),
		Viewport:    viewport.New(),
		Annotations: anns,
		Preview:     preview,
	})
}

func isDark(img image.Image, x, y int) bool {
	red, g, b := rgb(img, x, y)
	return red < 100 && g < 100 && b < 100
}

func isWhite(img image.Image, x, y int) bool {
	red, g, b := rgb(img, x, y)
	return red > 230 && g > 230 && b > 230
}

// inkIn counts pixels in r that are not white.
func inkIn(img image.Image, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !isWhite(img, x, y) {
				n++
			}
		}
	}
	return n
}

type pixelCheck struct {
	x, y int
	dark bool
}

func checkPixels(t *testing.T, img image.Image, checks []pixelCheck) {
	t.Helper()
	for _, c := range checks {
		if c.dark && !isDark(img, c.x, c.y) {
			red, g, b := rgb(img, c.x, c.y)
			t.Errorf("(%d,%d) = %d,%d,%d, want stroke", c.x, c.y, red, g, b)
		}
		if !c.dark && !isWhite(img, c.x, c.y) {
			red, g, b := rgb(img, c.x, c.y)
			t.Errorf("(%d,%d) = %d,%d,%d, want white", c.x, c.y, red, g, b)
		}
	}
}

func TestArrowHead(t *testing.T) {
	from, to := geometry.Pt(10, 50), geometry.Pt(80, 50)

	// Width 3: head length is the 10px minimum. Arms leave the tip at
	// 30 degrees either side of the shaft.
	img := renderOn(t, nil, shape(annotation.ToolArrow, 3, "", from, to))
	checkPixels(t, img, []pixelCheck{
		{40, 50, true},  // shaft
		{75, 47, true},  // upper arm, 5px from the tip
		{75, 52, true},  // lower arm
		{67, 42, false}, // 14px along the upper arm, past its end
		{75, 40, false},
	})

	// Width 6: head grows to 3*width = 18px.
	img = renderOn(t, nil, shape(annotation.ToolArrow, 6, "", from, to))
	checkPixels(t, img, []pixelCheck{
		{67, 42, true},
		{67, 57, true},
	})
}

func TestCircleRadius(t *testing.T) {
	img := renderOn(t, nil, shape(annotation.ToolCircle, 4, "", geometry.Pt(50, 50), geometry.Pt(80, 50)))
	checkPixels(t, img, []pixelCheck{
		{50, 20, true}, // radius 30 above the centre
		{20, 50, true},
		{79, 50, true},
		{50, 79, true},
		{50, 50, false}, // outline only
		{50, 35, false},
		{50, 8, false},
	})
}

func TestRectangleFromCorners(t *testing.T) {
	img := renderOn(t, nil, shape(annotation.ToolRectangle, 4, "", geometry.Pt(80, 70), geometry.Pt(20, 30)))
	checkPixels(t, img, []pixelCheck{
		{50, 30, true},
		{50, 69, true},
		{20, 50, true},
		{79, 50, true},
		{50, 50, false},
		{10, 50, false},
		{50, 85, false},
	})
}

func TestFreehandPolyline(t *testing.T) {
	img := renderOn(t, nil, shape(annotation.ToolPen, 4, "",
		geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 90)))
	checkPixels(t, img, []pixelCheck{
		{30, 10, true},
		{50, 50, true},
		{30, 50, false}, // the path is not closed
	})
}

func TestCurve(t *testing.T) {
	start, control, end := geometry.Pt(10, 90), geometry.Pt(50, 10), geometry.Pt(90, 90)

	// At t=0.5 a quadratic passes through start/4 + control/2 + end/4.
	img := renderOn(t, nil, shape(annotation.ToolCurve, 4, "", start, control, end))
	checkPixels(t, img, []pixelCheck{
		{50, 50, true},
		{50, 12, false}, // the control point is off the curve
		{50, 89, false}, // no chord
	})

	// While the control point is pending the preview is a straight line.
	preview := shape(annotation.ToolCurve, 4, "", geometry.Pt(10, 50), geometry.Pt(90, 50))
	img = renderOn(t, &preview)
	checkPixels(t, img, []pixelCheck{
		{50, 50, true},
		{50, 30, false},
	})
}

func TestRulerLabelAboveMidpoint(t *testing.T) {
	a, b := geometry.Pt(20, 60), geometry.Pt(80, 60)
	labelArea := image.Rect(25, 38, 75, 52)
	below := image.Rect(20, 64, 80, 80)

	bare := renderOn(t, nil, shape(annotation.ToolRuler, 2, "", a, b))
	if n := inkIn(bare, labelArea); n != 0 {
		t.Fatalf("unlabelled ruler has %d inked pixels above the line", n)
	}

	img := renderOn(t, nil, shape(annotation.ToolRuler, 2, "6.0 mm", a, b))
	checkPixels(t, img, []pixelCheck{{50, 60, true}})
	if inkIn(img, labelArea) == 0 {
		t.Error("no label drawn 8px above the midpoint")
	}
	if n := inkIn(img, below); n != 0 {
		t.Errorf("%d inked pixels below the ruler", n)
	}
}

func TestAngleRaysAndLabel(t *testing.T) {
	vertex, arm1, arm2 := geometry.Pt(20, 80), geometry.Pt(80, 80), geometry.Pt(20, 20)
	// The bisector points up-right; the label sits 20px along it.
	labelArea := image.Rect(24, 55, 50, 68)

	bare := renderOn(t, nil, shape(annotation.ToolAngle, 2, "", vertex, arm1, arm2))
	if n := inkIn(bare, labelArea); n != 0 {
		t.Fatalf("unlabelled angle has %d inked pixels on the bisector", n)
	}

	img := renderOn(t, nil, shape(annotation.ToolAngle, 2, "90.0°", vertex, arm1, arm2))
	checkPixels(t, img, []pixelCheck{
		{50, 80, true},  // first ray
		{20, 50, true},  // second ray
		{50, 50, false}, // arm ends are not joined
	})
	if inkIn(img, labelArea) == 0 {
		t.Error("no label near the bisector")
	}
}

func TestVisible(t *testing.T) {
	view := geometry.Rect{Width: 100, Height: 100}
	far := shape(annotation.ToolLine, 2, "", geometry.Pt(300, 300), geometry.Pt(400, 400))
	edge := shape(annotation.ToolLine, 2, "", geometry.Pt(-50, 50), geometry.Pt(-10, 50))

	vp := viewport.New()
	if Visible(vp.Transform(), view, &far) {
		t.Error("annotation 200px past the view reported visible")
	}
	if !Visible(vp.Transform(), view, &edge) {
		t.Error("annotation within the label margin reported hidden")
	}
	if Visible(vp.Transform(), view, &annotation.Annotation{Tool: annotation.ToolLine}) {
		t.Error("annotation without points reported visible")
	}

	vp.Pan = geometry.Pt(-300, -300)
	if !Visible(vp.Transform(), view, &far) {
		t.Error("panned annotation reported hidden")
	}
}

func TestLabelOfOffscreenRulerStillDrawn(t *testing.T) {
	// The line lies below the canvas; its label reaches into the bottom rows.
	ruler := shape(annotation.ToolRuler, 2, "12.0 mm", geometry.Pt(20, 107), geometry.Pt(80, 107))
	img := renderOn(t, nil, ruler)
	if inkIn(img, image.Rect(20, 88, 80, 100)) == 0 {
		t.Error("label of a ruler just off the canvas was culled")
	}
}
