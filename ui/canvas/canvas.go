// Package canvas provides the annotation surface: a raster that paints the
// active document and forwards pointer input to its interaction session.
package canvas

import (
	"image"
	"sync"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/interaction"
	"ortho-annotator/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// resizeDebounce delays the canvas size update after the last resize.
const resizeDebounce = 16 * time.Millisecond

// AnnotationCanvas displays the active document of a State.
type AnnotationCanvas struct {
	widget.BaseWidget

	state  *app.State
	raster *fynecanvas.Raster

	mu sync.Mutex
	// Device pixels per fyne unit, learned from the last raster draw.
	scale       float32
	pixels      geometry.Size
	resizeTimer *time.Timer
	lastSize    fyne.Size
	pressed     bool
}

var (
	_ desktop.Mouseable  = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable  = (*AnnotationCanvas)(nil)
	_ desktop.Cursorable = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable    = (*AnnotationCanvas)(nil)
)

// New creates a canvas bound to state. Redraw events from the state
// refresh the raster.
func New(state *app.State) *AnnotationCanvas {
	ac := &AnnotationCanvas{state: state, scale: 1}
	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(fyne.NewSize(400, 300))
	ac.ExtendBaseWidget(ac)

	for _, ev := range []app.EventType{
		app.EventRedraw, app.EventAnnotationsChanged, app.EventSelectionChanged,
		app.EventDocumentsChanged, app.EventCaseLoaded,
	} {
		state.On(ev, func(interface{}) { ac.raster.Refresh() })
	}
	return ac
}

// draw renders a frame at the raster's pixel size.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	size := ac.Size()
	if size.Width > 0 {
		ac.scale = float32(w) / size.Width
	}
	ac.pixels = geometry.NewSize(float64(w), float64(h))
	return ac.state.Frame(w, h)
}

// Resize records the new size on the state and schedules one redraw once
// resizing settles.
func (ac *AnnotationCanvas) Resize(size fyne.Size) {
	ac.BaseWidget.Resize(size)

	ac.mu.Lock()
	if size == ac.lastSize {
		ac.mu.Unlock()
		return
	}
	ac.lastSize = size
	px := geometry.NewSize(float64(size.Width*ac.scale), float64(size.Height*ac.scale))
	if ac.resizeTimer != nil {
		ac.resizeTimer.Stop()
	}
	ac.resizeTimer = time.AfterFunc(resizeDebounce, ac.raster.Refresh)
	ac.mu.Unlock()

	first := ac.state.CanvasSize().Empty()
	ac.state.SetCanvasSize(px)
	// An image opened before the canvas had a size is fitted once.
	if sess := ac.session(); first && sess != nil {
		sess.FitToView(px)
	}
}

// toScreen converts a widget position to canvas pixels.
func (ac *AnnotationCanvas) toScreen(pos fyne.Position) geometry.Point {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return geometry.Pt(float64(pos.X*ac.scale), float64(pos.Y*ac.scale))
}

func (ac *AnnotationCanvas) session() *interaction.Session {
	return ac.state.Session()
}

// MouseDown forwards a button press to the session.
func (ac *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	sess := ac.session()
	if sess == nil {
		return
	}
	ac.pressed = true
	sess.PointerDown(ac.toScreen(ev.Position), buttonOf(ev.Button))
}

// MouseUp forwards a button release to the session.
func (ac *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	sess := ac.session()
	if sess == nil || !ac.pressed {
		return
	}
	ac.pressed = false
	sess.PointerUp(ac.toScreen(ev.Position))
}

// MouseIn is part of desktop.Hoverable.
func (ac *AnnotationCanvas) MouseIn(ev *desktop.MouseEvent) {
	ac.MouseMoved(ev)
}

// MouseMoved forwards pointer motion, including motion while a button is
// held, to the session.
func (ac *AnnotationCanvas) MouseMoved(ev *desktop.MouseEvent) {
	if sess := ac.session(); sess != nil {
		sess.PointerMove(ac.toScreen(ev.Position))
	}
}

// MouseOut finishes drags in progress as a release would.
func (ac *AnnotationCanvas) MouseOut() {
	ac.pressed = false
	if sess := ac.session(); sess != nil {
		sess.PointerLeave()
	}
}

// Scrolled zooms at the cursor.
func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	sess := ac.session()
	if sess == nil || ev.Scrolled.DY == 0 {
		return
	}
	// Fyne reports wheel-up as positive DY; the session zooms out on positive.
	sess.Wheel(ac.toScreen(ev.Position), float64(-ev.Scrolled.DY))
}

// Cursor shows a crosshair for drawing tools.
func (ac *AnnotationCanvas) Cursor() desktop.Cursor {
	if ac.state.Tool() == annotation.ToolPan {
		return desktop.DefaultCursor
	}
	return desktop.CrosshairCursor
}

// PixelSize returns the drawing area in device pixels.
func (ac *AnnotationCanvas) PixelSize() geometry.Size {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.pixels
}

// FitToView fits the active image into the visible area.
func (ac *AnnotationCanvas) FitToView() {
	if sess := ac.session(); sess != nil {
		sess.FitToView(ac.state.CanvasSize())
	}
}

// Zoom zooms one step about the centre of the visible area.
func (ac *AnnotationCanvas) Zoom(in bool) {
	if sess := ac.session(); sess != nil {
		sess.ZoomStep(ac.state.CanvasSize(), in)
	}
}

// Refresh repaints the raster.
func (ac *AnnotationCanvas) Refresh() {
	ac.raster.Refresh()
}

func buttonOf(b desktop.MouseButton) interaction.Button {
	switch {
	case b&desktop.MouseButtonSecondary != 0:
		return interaction.ButtonSecondary
	case b&desktop.MouseButtonTertiary != 0:
		return interaction.ButtonMiddle
	}
	return interaction.ButtonPrimary
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &annotationCanvasRenderer{canvas: ac}
}

type annotationCanvasRenderer struct {
	canvas *AnnotationCanvas
}

func (r *annotationCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *annotationCanvasRenderer) MinSize() fyne.Size {
	return r.canvas.raster.MinSize()
}

func (r *annotationCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *annotationCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *annotationCanvasRenderer) Destroy() {}
