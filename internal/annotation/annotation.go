// Package annotation defines committed marks on an image and the derived
// measurements they carry.
package annotation

import (
	"fmt"
	"math"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/calibration"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/pkg/colorutil"
	"ortho-annotator/pkg/geometry"

	"github.com/google/uuid"
)

// Style is the colour, stroke width and opacity copied onto an annotation
// at commit time.
type Style struct {
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

// DefaultStyle returns the initial tool settings.
func DefaultStyle() Style {
	return Style{Color: colorutil.DefaultAnnotation, StrokeWidth: 2, Opacity: 1}
}

// Annotation is a committed mark. It is treated as immutable once committed;
// edits produce a new list in history.
type Annotation struct {
	ID          string           `json:"id"`
	Tool        Tool             `json:"tool"`
	Color       string           `json:"color"`
	StrokeWidth float64          `json:"strokeWidth"`
	Opacity     float64          `json:"opacity"`
	Points      []geometry.Point `json:"points"`

	// Rectangle and circle: |dx|, |dy| of the two points.
	// Sticker: on-screen size in pixels.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	Text     string   `json:"text,omitempty"`
	Distance *float64 `json:"distance,omitempty"` // mm, ruler
	Angle    *float64 `json:"angle,omitempty"`    // degrees, angle measurer

	StickerAsset string `json:"stickerAsset,omitempty"`
	// Sticker is the process-local bitmap handle. Never persisted.
	Sticker *sticker.Handle `json:"-"`
}

// NewID returns a fresh annotation id.
func NewID() string {
	return uuid.NewString()
}

func base(tool Tool, style Style, points []geometry.Point) Annotation {
	return Annotation{
		ID:          NewID(),
		Tool:        tool,
		Color:       style.Color,
		StrokeWidth: style.StrokeWidth,
		Opacity:     style.Opacity,
		Points:      append([]geometry.Point(nil), points...),
	}
}

// NewShape builds a pen, line, arrow, rectangle, circle or curve annotation.
// Curve points are start, control, end.
func NewShape(tool Tool, style Style, points []geometry.Point) (Annotation, error) {
	switch tool {
	case ToolPen, ToolLine, ToolArrow, ToolRectangle, ToolCircle, ToolCurve:
	default:
		return Annotation{}, apperr.NewInvalid("build annotation", fmt.Sprintf("%s is not a shape tool", tool))
	}
	a := base(tool, style, points)
	if (tool == ToolRectangle || tool == ToolCircle) && len(points) == 2 {
		a.Width = math.Abs(points[1].X - points[0].X)
		a.Height = math.Abs(points[1].Y - points[0].Y)
	}
	return a, a.Validate()
}

// NewRuler builds a ruler between start and end, measured with factor
// pixels per millimetre.
func NewRuler(style Style, start, end geometry.Point, factor float64) (Annotation, error) {
	a := base(ToolRuler, style, []geometry.Point{start, end})
	mm := calibration.MmDistance(start.Distance(end), factor)
	a.Distance = &mm
	a.Text = calibration.FormatMm(mm)
	return a, a.Validate()
}

// NewAngle builds an angle measurement at vertex between the two arm ends.
func NewAngle(style Style, vertex, arm1, arm2 geometry.Point) (Annotation, error) {
	a := base(ToolAngle, style, []geometry.Point{vertex, arm1, arm2})
	deg := AngleBetween(vertex, arm1, arm2)
	a.Angle = &deg
	a.Text = FormatAngle(deg)
	return a, a.Validate()
}

// NewSticker builds a sticker anchored at p. Stickers carry no stroke.
func NewSticker(style Style, p geometry.Point, assetID string) (Annotation, error) {
	a := base(ToolSticker, Style{Color: style.Color, StrokeWidth: 0, Opacity: 1}, []geometry.Point{p})
	a.StickerAsset = assetID
	a.Width = sticker.Width
	a.Height = sticker.Height
	return a, a.Validate()
}

// AngleBetween returns the interior angle in degrees, in [0, 180], between
// the rays vertex->arm1 and vertex->arm2.
func AngleBetween(vertex, arm1, arm2 geometry.Point) float64 {
	a1 := arm1.Sub(vertex).Angle()
	a2 := arm2.Sub(vertex).Angle()
	deg := math.Mod((a2-a1)*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// FormatAngle renders degrees the way angle labels show them.
func FormatAngle(deg float64) string {
	return fmt.Sprintf("%.1f°", deg)
}

// Validate checks the invariants required before an annotation may enter
// history.
func (a Annotation) Validate() error {
	if a.ID == "" {
		return apperr.NewInvalid("validate annotation", "missing id")
	}
	if err := checkArity(a.Tool, len(a.Points)); err != nil {
		return apperr.NewInvalid("validate annotation", err.Error())
	}
	for _, p := range a.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return apperr.NewInvalid("validate annotation", "non-finite point")
		}
	}
	if a.StrokeWidth < 0 {
		return apperr.NewInvalid("validate annotation", "negative stroke width")
	}
	if a.Opacity < 0 || a.Opacity > 1 {
		return apperr.NewInvalid("validate annotation", fmt.Sprintf("opacity %v out of range", a.Opacity))
	}
	if a.Tool == ToolSticker && a.StickerAsset == "" {
		return apperr.NewInvalid("validate annotation", "sticker without asset")
	}
	return nil
}

// Clone returns a deep copy. The sticker handle is shared.
func (a Annotation) Clone() Annotation {
	c := a
	c.Points = append([]geometry.Point(nil), a.Points...)
	if a.Distance != nil {
		d := *a.Distance
		c.Distance = &d
	}
	if a.Angle != nil {
		d := *a.Angle
		c.Angle = &d
	}
	return c
}

// Bounds returns the bounding box of the annotation's points.
func (a Annotation) Bounds() geometry.Rect {
	if a.Tool == ToolCircle && len(a.Points) == 2 {
		r := a.Points[0].Distance(a.Points[1])
		c := a.Points[0]
		return geometry.RectFromCorners(geometry.Pt(c.X-r, c.Y-r), geometry.Pt(c.X+r, c.Y+r))
	}
	return geometry.BoundingBox(a.Points)
}

// CloneAll deep-copies a list.
func CloneAll(list []Annotation) []Annotation {
	out := make([]Annotation, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

// StripHandles deep-copies a list without sticker handles, for history
// snapshots and persistence.
func StripHandles(list []Annotation) []Annotation {
	out := CloneAll(list)
	for i := range out {
		out[i].Sticker = nil
	}
	return out
}

// WithNewIDs deep-copies a list assigning fresh ids.
func WithNewIDs(list []Annotation) []Annotation {
	out := CloneAll(list)
	for i := range out {
		out[i].ID = NewID()
	}
	return out
}

// ResolveStickers attaches bitmap handles to every sticker annotation in
// list that lacks one. The list is modified in place.
func ResolveStickers(list []Annotation, r sticker.Resolver) {
	if r == nil {
		return
	}
	for i := range list {
		a := &list[i]
		if a.Tool == ToolSticker && a.Sticker == nil && a.StickerAsset != "" {
			a.Sticker = r.Resolve(a.StickerAsset)
		}
	}
}
