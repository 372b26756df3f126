package interaction

import (
	"ortho-annotator/pkg/geometry"
)

// Stage is the position of a multi-click tool in its click sequence.
type Stage int

const (
	StageIdle Stage = iota
	StageAwaitingEndPoint
	StageAwaitingControlPoint
	StageAwaitingArm1End
	StageAwaitingArm2End
	StageAwaitingSecondPoint
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAwaitingEndPoint:
		return "awaiting_end_point"
	case StageAwaitingControlPoint:
		return "awaiting_control_point"
	case StageAwaitingArm1End:
		return "awaiting_arm1_end"
	case StageAwaitingArm2End:
		return "awaiting_arm2_end"
	case StageAwaitingSecondPoint:
		return "awaiting_second_point"
	}
	return "unknown"
}

// curveMachine: start, then end, then control.
type curveMachine struct {
	stage      Stage
	start, end geometry.Point
}

// click advances the machine and reports the committed points
// [start, control, end] on the third click.
func (m *curveMachine) click(p geometry.Point) ([]geometry.Point, bool) {
	switch m.stage {
	case StageIdle:
		m.start = p
		m.stage = StageAwaitingEndPoint
	case StageAwaitingEndPoint:
		m.end = p
		m.stage = StageAwaitingControlPoint
	case StageAwaitingControlPoint:
		pts := []geometry.Point{m.start, p, m.end}
		m.reset()
		return pts, true
	}
	return nil, false
}

func (m *curveMachine) preview(mouse geometry.Point) []geometry.Point {
	switch m.stage {
	case StageAwaitingEndPoint:
		return []geometry.Point{m.start, mouse}
	case StageAwaitingControlPoint:
		return []geometry.Point{m.start, mouse, m.end}
	}
	return nil
}

func (m *curveMachine) reset() { *m = curveMachine{} }

// rulerMachine: start, then end.
type rulerMachine struct {
	stage Stage
	start geometry.Point
}

func (m *rulerMachine) click(p geometry.Point) (geometry.Point, geometry.Point, bool) {
	if m.stage == StageIdle {
		m.start = p
		m.stage = StageAwaitingEndPoint
		return geometry.Point{}, geometry.Point{}, false
	}
	start := m.start
	m.reset()
	return start, p, true
}

func (m *rulerMachine) reset() { *m = rulerMachine{} }

// angleMachine: vertex, then first arm end, then second arm end.
type angleMachine struct {
	stage        Stage
	vertex, arm1 geometry.Point
}

func (m *angleMachine) click(p geometry.Point) ([3]geometry.Point, bool) {
	switch m.stage {
	case StageIdle:
		m.vertex = p
		m.stage = StageAwaitingArm1End
	case StageAwaitingArm1End:
		m.arm1 = p
		m.stage = StageAwaitingArm2End
	case StageAwaitingArm2End:
		pts := [3]geometry.Point{m.vertex, m.arm1, p}
		m.reset()
		return pts, true
	}
	return [3]geometry.Point{}, false
}

func (m *angleMachine) preview(mouse geometry.Point) []geometry.Point {
	switch m.stage {
	case StageAwaitingArm1End:
		return []geometry.Point{m.vertex, mouse}
	case StageAwaitingArm2End:
		return []geometry.Point{m.vertex, m.arm1, mouse}
	}
	return nil
}

func (m *angleMachine) reset() { *m = angleMachine{} }

// calibrationMachine collects the two points of a known distance. active is
// the isCalibrating flag; pending is set while the length prompt is open.
type calibrationMachine struct {
	active  bool
	stage   Stage
	first   geometry.Point
	pending *CalibrationRequest
}

func (m *calibrationMachine) reset() { *m = calibrationMachine{} }

// dragMachine tracks press-drag-release tools.
type dragMachine struct {
	dragging bool
	points   []geometry.Point // pen: every sample; others: start and current
}

func (m *dragMachine) begin(p geometry.Point) {
	m.dragging = true
	m.points = []geometry.Point{p}
}

func (m *dragMachine) move(p geometry.Point, freehand bool) {
	if !m.dragging {
		return
	}
	if freehand {
		if last := m.points[len(m.points)-1]; last != p {
			m.points = append(m.points, p)
		}
		return
	}
	m.points = []geometry.Point{m.points[0], p}
}

func (m *dragMachine) reset() { *m = dragMachine{} }
