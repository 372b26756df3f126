// Package render draws a document frame: the filtered image, committed
// annotations and the live preview.
//
// Drawing happens in screen space. Geometry is mapped through the viewport
// while stroke widths, label sizes, offsets and sticker sizes are used as
// given, so they stay constant on screen at every zoom level.
package render

import (
	"fmt"
	"image"
	"math"
	"sync"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/internal/viewport"
	"ortho-annotator/pkg/colorutil"
	"ortho-annotator/pkg/geometry"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	LabelSize   = 12.0
	LoadingSize = 16.0

	rulerLabelOffset   = 8.0
	angleLabelOffset   = 20.0
	placeholderSize    = 20.0
	minArrowHead       = 10.0
	arrowHeadPerStroke = 3.0
	bisectorMinLength  = 0.1
	// screen pixels around an annotation's points that labels may occupy
	cullMargin = 64.0
)

// LoadingText is shown while the active document's image is not decoded.
const LoadingText = "Loading image..."

// Filter applies brightness and contrast to the document image.
type Filter interface {
	Apply(img image.Image, f viewport.Filters) (image.Image, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(img image.Image, f viewport.Filters) (image.Image, error)

func (fn FilterFunc) Apply(img image.Image, f viewport.Filters) (image.Image, error) {
	return fn(img, f)
}

// Scene is everything one frame depends on.
type Scene struct {
	// HasDocument is false when no document is selected; only the
	// background is drawn.
	HasDocument bool
	// Image is nil while the document's image is loading.
	Image       image.Image
	Viewport    *viewport.Viewport
	Annotations []annotation.Annotation
	Preview     *annotation.Annotation
}

// Renderer draws scenes. It caches the filtered image and sticker bitmaps
// between frames.
type Renderer struct {
	labelFace   text.Face
	loadingFace text.Face
	filter      Filter

	background gg.RGBA

	mu          sync.Mutex
	imgSrc      image.Image
	imgFilters  viewport.Filters
	imgBuf      *gg.ImageBuf
	stickerBufs map[*sticker.Handle]*gg.ImageBuf
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFilter sets the image filter. Without one the image is drawn as is.
func WithFilter(f Filter) Option {
	return func(r *Renderer) { r.filter = f }
}

// WithBackground overrides the canvas background colour (CSS syntax).
func WithBackground(css string) Option {
	return func(r *Renderer) { r.background = gg.FromColor(colorutil.MustParse(css)) }
}

// New creates a renderer with the embedded Go Regular font.
func New(opts ...Option) (*Renderer, error) {
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to load label font: %w", err)
	}
	r := &Renderer{
		labelFace:   source.Face(LabelSize),
		loadingFace: source.Face(LoadingSize),
		background:  gg.FromColor(colorutil.MustParse(colorutil.CanvasBackground)),
		stickerBufs: make(map[*sticker.Handle]*gg.ImageBuf),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render draws sc into a new w x h image.
func (r *Renderer) Render(w, h int, sc Scene) image.Image {
	dc := gg.NewContext(w, h)
	defer dc.Close()
	r.Draw(dc, sc)
	if err := dc.FlushGPU(); err != nil {
		logging.For("render").Debug("flush failed", "error", err)
	}
	return dc.Image()
}

// Draw draws sc onto dc.
func (r *Renderer) Draw(dc *gg.Context, sc Scene) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc.ClearWithColor(r.background)
	if !sc.HasDocument {
		return
	}
	vp := sc.Viewport
	if vp == nil {
		vp = viewport.New()
	}

	if sc.Image == nil {
		w, h := float64(dc.Width()), float64(dc.Height())
		dc.SetColor(colorutil.LoadingBackdrop)
		dc.DrawRectangle(0, 0, w, h)
		r.fill(dc)
		dc.SetFont(r.loadingFace)
		dc.SetColor(colorutil.White)
		dc.DrawStringAnchored(LoadingText, w/2, h/2, 0.5, 0.5)
		return
	}

	r.drawImage(dc, sc.Image, vp)
	t := vp.Transform()
	view := geometry.Rect{Width: float64(dc.Width()), Height: float64(dc.Height())}
	for i := range sc.Annotations {
		if a := &sc.Annotations[i]; Visible(t, view, a) {
			r.drawAnnotation(dc, t, a, false)
		}
	}
	if sc.Preview != nil {
		r.drawAnnotation(dc, t, sc.Preview, true)
	}
}

// Visible reports whether any part of a, including its labels and
// arrowheads, can fall inside view once mapped through t.
func Visible(t geometry.Affine, view geometry.Rect, a *annotation.Annotation) bool {
	if len(a.Points) == 0 {
		return false
	}
	b := a.Bounds()
	screen := geometry.RectFromCorners(t.Apply(geometry.Pt(b.X, b.Y)), t.Apply(geometry.Pt(b.X+b.Width, b.Y+b.Height)))
	margin := cullMargin + a.StrokeWidth*arrowHeadPerStroke + math.Max(a.Width, a.Height)
	return screen.Expand(margin).Intersects(view)
}

func (r *Renderer) drawImage(dc *gg.Context, img image.Image, vp *viewport.Viewport) {
	if r.imgSrc != img || r.imgFilters != vp.Filters || r.imgBuf == nil {
		src := img
		if r.filter != nil && !vp.Filters.Neutral() {
			filtered, err := r.filter.Apply(img, vp.Filters)
			if err != nil {
				logging.For("render").Warn("image filter failed", "error", err)
			} else {
				src = filtered
			}
		}
		r.imgSrc, r.imgFilters = img, vp.Filters
		r.imgBuf = gg.ImageBufFromImage(src)
	}

	b := img.Bounds()
	dc.DrawImageEx(r.imgBuf, gg.DrawImageOptions{
		X:             vp.Pan.X,
		Y:             vp.Pan.Y,
		DstWidth:      float64(b.Dx()) * vp.Zoom,
		DstHeight:     float64(b.Dy()) * vp.Zoom,
		Interpolation: gg.InterpBilinear,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
}

func (r *Renderer) drawAnnotation(dc *gg.Context, t geometry.Affine, a *annotation.Annotation, preview bool) {
	pts := make([]geometry.Point, len(a.Points))
	for i, p := range a.Points {
		pts[i] = t.Apply(p)
	}
	if len(pts) == 0 {
		return
	}

	if a.Tool == annotation.ToolSticker {
		r.drawSticker(dc, a, pts[0], preview)
		return
	}

	c := colorutil.MustParse(a.Color)
	c.A = uint8(math.Round(float64(c.A) * clamp01(a.Opacity)))
	dc.SetColor(c)
	dc.SetLineWidth(a.StrokeWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	switch a.Tool {
	case annotation.ToolPen:
		if len(pts) < 2 {
			return
		}
		dc.MoveTo(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			dc.LineTo(p.X, p.Y)
		}
		r.stroke(dc)

	case annotation.ToolLine, annotation.ToolArrow:
		if len(pts) < 2 {
			return
		}
		dc.MoveTo(pts[0].X, pts[0].Y)
		dc.LineTo(pts[1].X, pts[1].Y)
		if a.Tool == annotation.ToolArrow {
			arrowHead(dc, pts[0], pts[1], a.StrokeWidth)
		}
		r.stroke(dc)

	case annotation.ToolRectangle:
		if len(pts) < 2 {
			return
		}
		rect := geometry.RectFromCorners(pts[0], pts[1])
		dc.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
		r.stroke(dc)

	case annotation.ToolCircle:
		if len(pts) < 2 {
			return
		}
		dc.DrawCircle(pts[0].X, pts[0].Y, pts[0].Distance(pts[1]))
		r.stroke(dc)

	case annotation.ToolCurve:
		switch len(pts) {
		case 2:
			dc.MoveTo(pts[0].X, pts[0].Y)
			dc.LineTo(pts[1].X, pts[1].Y)
		case 3:
			dc.MoveTo(pts[0].X, pts[0].Y)
			dc.QuadraticTo(pts[1].X, pts[1].Y, pts[2].X, pts[2].Y)
		default:
			return
		}
		r.stroke(dc)

	case annotation.ToolRuler:
		if len(pts) < 2 {
			return
		}
		dc.MoveTo(pts[0].X, pts[0].Y)
		dc.LineTo(pts[1].X, pts[1].Y)
		r.stroke(dc)
		if a.Text != "" {
			mid := pts[0].Mid(pts[1])
			r.label(dc, a.Text, mid.X, mid.Y-rulerLabelOffset)
		}

	case annotation.ToolAngle:
		if len(pts) < 2 {
			return
		}
		dc.MoveTo(pts[0].X, pts[0].Y)
		dc.LineTo(pts[1].X, pts[1].Y)
		if len(pts) >= 3 {
			dc.MoveTo(pts[0].X, pts[0].Y)
			dc.LineTo(pts[2].X, pts[2].Y)
		}
		r.stroke(dc)
		if len(pts) >= 3 && a.Text != "" {
			p := AngleLabelPosition(pts[0], pts[1], pts[2], angleLabelOffset)
			r.label(dc, a.Text, p.X, p.Y)
		}
	}
}

// arrowHead adds two strokes at the tip, 30 degrees either side of the shaft.
func arrowHead(dc *gg.Context, from, to geometry.Point, strokeWidth float64) {
	head := math.Max(minArrowHead, strokeWidth*arrowHeadPerStroke)
	angle := to.Sub(from).Angle()
	dc.MoveTo(to.X, to.Y)
	dc.LineTo(to.X-head*math.Cos(angle-math.Pi/6), to.Y-head*math.Sin(angle-math.Pi/6))
	dc.MoveTo(to.X, to.Y)
	dc.LineTo(to.X-head*math.Cos(angle+math.Pi/6), to.Y-head*math.Sin(angle+math.Pi/6))
}

// AngleLabelPosition places an angle label offset from the vertex along the
// bisector of the two arms. Coincident or opposite arms fall back to a
// fixed up-right offset.
func AngleLabelPosition(vertex, arm1, arm2 geometry.Point, offset float64) geometry.Point {
	d1, d2 := arm1.Sub(vertex), arm2.Sub(vertex)
	len1, len2 := d1.Len(), d2.Len()
	if len1+len2 > 0 {
		bisector := d1.Scale(len2).Add(d2.Scale(len1)).Scale(1 / (len1 + len2))
		if l := bisector.Len(); l > bisectorMinLength {
			return vertex.Add(bisector.Scale(offset / l))
		}
	}
	return geometry.Pt(vertex.X+offset*0.707, vertex.Y-offset*0.707)
}

// label draws text centred horizontally on x with its baseline at y.
func (r *Renderer) label(dc *gg.Context, s string, x, y float64) {
	dc.SetFont(r.labelFace)
	w, _ := dc.MeasureString(s)
	dc.DrawString(s, x-w/2, y)
}

func (r *Renderer) drawSticker(dc *gg.Context, a *annotation.Annotation, at geometry.Point, preview bool) {
	h := a.Sticker
	if h != nil && h.Image() != nil {
		w, ht := a.Width, a.Height
		if w <= 0 {
			w = sticker.Width
		}
		if ht <= 0 {
			ht = sticker.Height
		}
		dc.DrawImageEx(r.stickerBuf(h), gg.DrawImageOptions{
			X:             at.X - w/2,
			Y:             at.Y - ht/2,
			DstWidth:      w,
			DstHeight:     ht,
			Interpolation: gg.InterpBilinear,
			Opacity:       clamp01(a.Opacity),
			BlendMode:     gg.BlendNormal,
		})
		return
	}

	switch {
	case h != nil && h.Failed():
		dc.SetColor(colorutil.StickerFailed)
	case !preview:
		dc.SetColor(colorutil.StickerPending)
	default:
		return
	}
	dc.DrawRectangle(at.X-placeholderSize/2, at.Y-placeholderSize/2, placeholderSize, placeholderSize)
	r.fill(dc)
}

// stickerBuf converts a resolved sticker bitmap once per handle.
func (r *Renderer) stickerBuf(h *sticker.Handle) *gg.ImageBuf {
	if buf, ok := r.stickerBufs[h]; ok {
		return buf
	}
	buf := gg.ImageBufFromImage(h.Image())
	r.stickerBufs[h] = buf
	return buf
}

func (r *Renderer) stroke(dc *gg.Context) {
	if err := dc.Stroke(); err != nil {
		logging.For("render").Debug("stroke failed", "error", err)
	}
}

func (r *Renderer) fill(dc *gg.Context) {
	if err := dc.Fill(); err != nil {
		logging.For("render").Debug("fill failed", "error", err)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
