// Package viewport maps between screen pixels and image (world) coordinates.
package viewport

import (
	"math"

	"ortho-annotator/pkg/geometry"
)

const (
	ZoomStep = 0.1
	MinZoom  = 0.05
	MaxZoom  = 10.0

	fitMargin = 0.95
	// zoom changes smaller than this are treated as no change
	zoomEpsilon = 0.001
)

// Filter ranges. 100 is neutral.
const (
	FilterMin     = 0
	FilterMax     = 200
	FilterNeutral = 100
)

// Filters holds brightness and contrast percentages applied to the image
// (never to annotations).
type Filters struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
}

// DefaultFilters returns neutral filters.
func DefaultFilters() Filters {
	return Filters{Brightness: FilterNeutral, Contrast: FilterNeutral}
}

// Neutral reports whether the filters leave the image unchanged.
func (f Filters) Neutral() bool {
	return f.Brightness == FilterNeutral && f.Contrast == FilterNeutral
}

// Clamp limits both values to [FilterMin, FilterMax].
func (f Filters) Clamp() Filters {
	return Filters{Brightness: clampInt(f.Brightness), Contrast: clampInt(f.Contrast)}
}

func clampInt(v int) int {
	if v < FilterMin {
		return FilterMin
	}
	if v > FilterMax {
		return FilterMax
	}
	return v
}

// Viewport is the pan/zoom state of the canvas.
// screen = world*Zoom + Pan.
type Viewport struct {
	Zoom    float64
	Pan     geometry.Point
	Filters Filters

	panning bool
	lastPan geometry.Point
}

// New returns a viewport at zoom 1 with no pan and neutral filters.
func New() *Viewport {
	v := &Viewport{}
	v.Reset()
	return v
}

// Reset restores zoom 1, zero pan, neutral filters and stops panning.
func (v *Viewport) Reset() {
	v.Zoom = 1
	v.Pan = geometry.Point{}
	v.Filters = DefaultFilters()
	v.panning = false
	v.lastPan = geometry.Point{}
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ScreenToWorld converts a canvas pixel position to image coordinates.
func (v *Viewport) ScreenToWorld(p geometry.Point) geometry.Point {
	inv, ok := v.Transform().Inverse()
	if !ok {
		return p
	}
	return inv.Apply(p)
}

// WorldToScreen converts image coordinates to a canvas pixel position.
func (v *Viewport) WorldToScreen(p geometry.Point) geometry.Point {
	return v.Transform().Apply(p)
}

// Transform returns the world-to-screen matrix.
func (v *Viewport) Transform() geometry.Affine {
	return geometry.Translation(v.Pan.X, v.Pan.Y).Compose(geometry.Scaling(v.Zoom, v.Zoom))
}

// Percent returns the zoom as a rounded percentage.
func (v *Viewport) Percent() int {
	return int(math.Round(v.Zoom * 100))
}

// ZoomAt sets the zoom (clamped) while keeping the world point under the
// cursor fixed on screen. It returns the applied zoom.
func (v *Viewport) ZoomAt(cursor geometry.Point, zoom float64) float64 {
	zoom = ClampZoom(zoom)
	world := v.ScreenToWorld(cursor)
	v.Zoom = zoom
	v.Pan = geometry.Point{X: cursor.X - world.X*zoom, Y: cursor.Y - world.Y*zoom}
	return zoom
}

// Wheel applies one wheel notch at the cursor. Positive deltaY zooms out.
func (v *Viewport) Wheel(cursor geometry.Point, deltaY float64) float64 {
	factor := 1 + ZoomStep
	if deltaY > 0 {
		factor = 1 - ZoomStep
	}
	return v.ZoomAt(cursor, v.Zoom*factor)
}

// Step zooms one step in or out about the canvas centre. It reports false
// when the zoom is already at its limit, leaving the viewport untouched.
func (v *Viewport) Step(canvas geometry.Size, in bool) (float64, bool) {
	factor := 1 - ZoomStep
	if in {
		factor = 1 + ZoomStep
	}
	zoom := ClampZoom(v.Zoom * factor)
	if math.Abs(zoom-v.Zoom) < zoomEpsilon {
		return v.Zoom, false
	}
	center := geometry.Rect{Width: canvas.Width, Height: canvas.Height}.Center()
	return v.ZoomAt(center, zoom), true
}

// FitToView scales the image to fit the canvas with a small margin, never
// enlarging beyond 100%, and centres it. An empty canvas or image resets the
// viewport to zoom 1 with no pan.
func (v *Viewport) FitToView(canvas, image geometry.Size) {
	if canvas.Empty() || image.Empty() {
		v.Zoom = 1
		v.Pan = geometry.Point{}
		return
	}
	zoom := math.Min(canvas.Width/image.Width, canvas.Height/image.Height) * fitMargin
	zoom = math.Max(MinZoom, math.Min(zoom, math.Min(1, MaxZoom)))
	v.Zoom = zoom
	v.Pan = geometry.Point{
		X: (canvas.Width - image.Width*zoom) / 2,
		Y: (canvas.Height - image.Height*zoom) / 2,
	}
}

// BeginPan starts a pan gesture at a screen position.
func (v *Viewport) BeginPan(screen geometry.Point) {
	v.panning = true
	v.lastPan = screen
}

// PanTo moves the view by the screen delta since the last pan position.
// It does nothing when no pan is in progress.
func (v *Viewport) PanTo(screen geometry.Point) bool {
	if !v.panning {
		return false
	}
	v.Pan = v.Pan.Add(screen.Sub(v.lastPan))
	v.lastPan = screen
	return true
}

// EndPan stops panning and reports whether a pan was in progress.
func (v *Viewport) EndPan() bool {
	was := v.panning
	v.panning = false
	v.lastPan = geometry.Point{}
	return was
}

// Panning reports whether a pan gesture is in progress.
func (v *Viewport) Panning() bool {
	return v.panning
}

// SetFilters stores clamped filter values.
func (v *Viewport) SetFilters(f Filters) {
	v.Filters = f.Clamp()
}
