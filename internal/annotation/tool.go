package annotation

import (
	"fmt"
)

// Tool identifies an editing tool. Every tool except Pan is also the
// discriminator of the annotations it produces.
type Tool string

const (
	ToolPen       Tool = "pen"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolCircle    Tool = "circle"
	ToolRectangle Tool = "rectangle"
	ToolCurve     Tool = "curve_advanced"
	ToolSticker   Tool = "sticker_bracket"
	ToolRuler     Tool = "ruler"
	ToolAngle     Tool = "angle_measurer"
	ToolPan       Tool = "pan"
)

// ToolInfo describes a tool for toolbars.
type ToolInfo struct {
	ID    Tool
	Label string
}

// Tools lists every tool in toolbar order.
var Tools = []ToolInfo{
	{ToolPen, "Pen"},
	{ToolLine, "Line"},
	{ToolArrow, "Arrow"},
	{ToolCircle, "Circle"},
	{ToolRectangle, "Rectangle"},
	{ToolCurve, "Curve"},
	{ToolSticker, "Bracket"},
	{ToolRuler, "Ruler"},
	{ToolAngle, "Angle"},
	{ToolPan, "Pan image"},
}

// ParseTool converts a tool id to a Tool.
func ParseTool(s string) (Tool, error) {
	t := Tool(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tool %q", s)
	}
	return t, nil
}

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	for _, info := range Tools {
		if info.ID == t {
			return true
		}
	}
	return false
}

// Label returns the display name of the tool, or its id if unknown.
func (t Tool) Label() string {
	for _, info := range Tools {
		if info.ID == t {
			return info.Label
		}
	}
	return string(t)
}

// IsDrag reports whether the tool draws by press-drag-release.
func (t Tool) IsDrag() bool {
	switch t {
	case ToolPen, ToolLine, ToolArrow, ToolCircle, ToolRectangle:
		return true
	}
	return false
}

// Annotates reports whether the tool produces annotations.
func (t Tool) Annotates() bool {
	return t.Valid() && t != ToolPan
}

// checkArity verifies the point count required by the tool.
func checkArity(t Tool, n int) error {
	var want int
	switch t {
	case ToolPen:
		if n < 1 {
			return fmt.Errorf("%s needs at least 1 point, got %d", t, n)
		}
		return nil
	case ToolLine, ToolArrow, ToolRectangle, ToolCircle, ToolRuler:
		want = 2
	case ToolCurve, ToolAngle:
		want = 3
	case ToolSticker:
		want = 1
	default:
		return fmt.Errorf("tool %q does not produce annotations", t)
	}
	if n != want {
		return fmt.Errorf("%s needs exactly %d points, got %d", t, want, n)
	}
	return nil
}
