package interaction

import (
	"math"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/calibration"
	"ortho-annotator/pkg/geometry"
)

// PreviewID marks the transient annotation returned by Preview.
const PreviewID = "preview"

// Preview returns the in-progress interaction as an annotation drawn with
// the current style, or nil when nothing is in progress. Multi-click tools
// return partial point sets: a curve or angle with two points is a single
// segment, an angle with three points has no label yet.
func (s *Session) Preview() *annotation.Annotation {
	var (
		tool = s.tool
		pts  []geometry.Point
		text string
	)

	switch {
	case s.calib.active:
		switch {
		case s.calib.pending != nil:
			pts = []geometry.Point{s.calib.pending.Start, s.calib.pending.End}
		case s.calib.stage == StageAwaitingSecondPoint:
			pts = []geometry.Point{s.calib.first, s.mouse}
		}
		tool = annotation.ToolLine
	case s.drag.dragging:
		if tool == annotation.ToolPen {
			pts = s.drag.points
		} else {
			pts = []geometry.Point{s.drag.points[0], s.drag.points[len(s.drag.points)-1]}
		}
	case tool == annotation.ToolCurve:
		pts = s.curve.preview(s.mouse)
	case tool == annotation.ToolRuler && s.ruler.stage == StageAwaitingEndPoint:
		pts = []geometry.Point{s.ruler.start, s.mouse}
		text = calibration.FormatMm(calibration.MmDistance(pts[0].Distance(pts[1]), s.doc.Calibration()))
	case tool == annotation.ToolAngle:
		pts = s.angle.preview(s.mouse)
	}
	if len(pts) == 0 {
		return nil
	}

	p := &annotation.Annotation{
		ID:          PreviewID,
		Tool:        tool,
		Color:       s.style.Color,
		StrokeWidth: s.style.StrokeWidth,
		Opacity:     s.style.Opacity,
		Points:      append([]geometry.Point(nil), pts...),
		Text:        text,
	}
	if (tool == annotation.ToolRectangle || tool == annotation.ToolCircle) && len(pts) >= 2 {
		p.Width = math.Abs(pts[1].X - pts[0].X)
		p.Height = math.Abs(pts[1].Y - pts[0].Y)
	}
	return p
}
