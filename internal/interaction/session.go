// Package interaction turns pointer input on the canvas into committed
// annotations.
//
// A Session belongs to one document. It owns the transient state of every
// tool (multi-click stages, the drag in progress, the calibration measurement),
// converts screen positions through the viewport, and commits finished
// annotations to the document's history. Sessions are not safe for
// concurrent use; all input arrives on one goroutine.
package interaction

import (
	"fmt"
	"math"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/calibration"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/internal/viewport"
	"ortho-annotator/pkg/geometry"
)

// Button identifies the pointer button of a press.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// minDragExtent is the movement, in world units along either axis, a
// two-point drag must exceed to be committed.
const minDragExtent = 2.0

// CalibrationRequest asks for the real length of a measured segment.
type CalibrationRequest struct {
	Start, End geometry.Point
	Pixels     float64
	// Suggested is the length under the current factor, as a default answer.
	Suggested string
	Message   string
}

// Prompter asks the user for the millimetre length of a calibration
// segment. It must eventually call answer exactly once, on the input
// goroutine; ok=false means the prompt was cancelled.
type Prompter interface {
	AskLength(req CalibrationRequest, answer func(value string, ok bool))
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(req CalibrationRequest, answer func(value string, ok bool))

func (f PrompterFunc) AskLength(req CalibrationRequest, answer func(string, bool)) {
	f(req, answer)
}

// Hooks receive notifications from a session. Any field may be nil.
type Hooks struct {
	// Status receives a message after every meaningful interaction.
	Status func(msg string)
	// Changed is called after the document's annotations or calibration
	// change.
	Changed func()
	// Redraw is called when only transient state (preview, viewport) changed.
	Redraw func()
}

// Session is the editing state of one document.
type Session struct {
	doc      *document.Document
	vp       *viewport.Viewport
	stickers sticker.Resolver
	prompter Prompter
	hooks    Hooks

	tool  annotation.Tool
	style annotation.Style
	mouse geometry.Point // last pointer position, world units
	hover bool

	drag  dragMachine
	curve curveMachine
	ruler rulerMachine
	angle angleMachine
	calib calibrationMachine

	status string
}

// Option configures a Session.
type Option func(*Session)

func WithStickers(r sticker.Resolver) Option { return func(s *Session) { s.stickers = r } }
func WithPrompter(p Prompter) Option         { return func(s *Session) { s.prompter = p } }
func WithHooks(h Hooks) Option               { return func(s *Session) { s.hooks = h } }
func WithTool(t annotation.Tool) Option      { return func(s *Session) { s.tool = t } }
func WithStyle(st annotation.Style) Option   { return func(s *Session) { s.style = st } }

// New creates a session editing doc through vp.
func New(doc *document.Document, vp *viewport.Viewport, opts ...Option) *Session {
	s := &Session{
		doc:   doc,
		vp:    vp,
		tool:  annotation.ToolPen,
		style: annotation.DefaultStyle(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Document() *document.Document { return s.doc }
func (s *Session) Viewport() *viewport.Viewport { return s.vp }
func (s *Session) Tool() annotation.Tool        { return s.tool }
func (s *Session) Style() annotation.Style      { return s.style }
func (s *Session) Status() string               { return s.status }

// Calibrating reports whether the calibration measurement is active.
func (s *Session) Calibrating() bool { return s.calib.active }

// Stage returns the stage of the active multi-click tool, or of the
// calibration measurement when it is active.
func (s *Session) Stage() Stage {
	if s.calib.active {
		return s.calib.stage
	}
	switch s.tool {
	case annotation.ToolCurve:
		return s.curve.stage
	case annotation.ToolRuler:
		return s.ruler.stage
	case annotation.ToolAngle:
		return s.angle.stage
	}
	return StageIdle
}

// Drawing reports whether a drag or multi-click interaction is under way.
func (s *Session) Drawing() bool {
	return s.drag.dragging || s.Stage() != StageIdle
}

func (s *Session) setStatus(msg string) {
	s.status = msg
	if s.hooks.Status != nil {
		s.hooks.Status(msg)
	}
}

func (s *Session) changed() {
	if s.hooks.Changed != nil {
		s.hooks.Changed()
	}
}

func (s *Session) redraw() {
	if s.hooks.Redraw != nil {
		s.hooks.Redraw()
	}
}

// ready reports whether pointer input can be handled.
func (s *Session) ready() bool {
	return s.doc != nil && s.doc.Loaded() && s.calib.pending == nil
}

// SetTool switches tools. Any unfinished interaction, including a
// calibration measurement, is discarded.
func (s *Session) SetTool(t annotation.Tool) {
	s.resetTransient()
	s.tool = t
	s.setStatus("Selected tool: " + t.Label())
	s.redraw()
}

// SetStyle changes the settings copied onto future annotations.
func (s *Session) SetStyle(st annotation.Style) {
	s.style = st
	s.redraw()
}

func (s *Session) resetTransient() {
	s.drag.reset()
	s.curve.reset()
	s.ruler.reset()
	s.angle.reset()
	s.calib.reset()
	s.vp.EndPan()
}

// StartCalibration arms the calibration measurement. The next two clicks define
// a segment of known length regardless of the active tool.
func (s *Session) StartCalibration() {
	if s.doc == nil {
		s.setStatus("Select an image to calibrate.")
		return
	}
	s.drag.reset()
	s.calib = calibrationMachine{active: true}
	s.setStatus("Calibrating: click the start point of the known distance.")
	s.redraw()
}

// CancelCalibration disarms calibration without changing the factor.
func (s *Session) CancelCalibration() {
	if !s.calib.active {
		return
	}
	s.calib.reset()
	s.setStatus("Calibration cancelled or invalid value.")
	s.redraw()
}

// PointerDown handles a button press at a screen position.
func (s *Session) PointerDown(screen geometry.Point, button Button) {
	if !s.ready() {
		return
	}
	if (s.tool == annotation.ToolPan && !s.calib.active) || button == ButtonMiddle {
		s.vp.BeginPan(screen)
		s.setStatus("Panning image...")
		return
	}
	if button != ButtonPrimary {
		return
	}

	pos := s.vp.ScreenToWorld(screen)
	s.mouse = pos

	if s.calib.active {
		s.calibrationClick(pos)
		return
	}

	switch s.tool {
	case annotation.ToolCurve:
		pts, done := s.curve.click(pos)
		switch {
		case done:
			s.commitShape(annotation.ToolCurve, pts, "Curve added.")
		case s.curve.stage == StageAwaitingEndPoint:
			s.setStatus("Curve: click the end point.")
		default:
			s.setStatus("Curve: click the control point.")
		}
	case annotation.ToolRuler:
		start, end, done := s.ruler.click(pos)
		if !done {
			s.setStatus("Ruler: click the end point.")
			break
		}
		a, err := annotation.NewRuler(s.style, start, end, s.doc.Calibration())
		if s.commit(a, err) {
			s.setStatus(fmt.Sprintf("Ruler: %.1f mm.", *a.Distance))
		}
	case annotation.ToolAngle:
		pts, done := s.angle.click(pos)
		switch {
		case done:
			a, err := annotation.NewAngle(s.style, pts[0], pts[1], pts[2])
			if s.commit(a, err) {
				s.setStatus(fmt.Sprintf("Angle: %.1f°.", *a.Angle))
			}
		case s.angle.stage == StageAwaitingArm1End:
			s.setStatus("Angle: click the end of the first arm.")
		default:
			s.setStatus("Angle: click the end of the second arm.")
		}
	case annotation.ToolSticker:
		a, err := annotation.NewSticker(s.style, pos, sticker.Bracket)
		if s.commit(a, err) {
			s.setStatus("Bracket added.")
		}
	default:
		if !s.tool.IsDrag() {
			return
		}
		s.drag.begin(pos)
		s.setStatus(fmt.Sprintf("Drawing with %s...", s.tool.Label()))
	}
	s.redraw()
}

// PointerMove handles pointer motion at a screen position.
func (s *Session) PointerMove(screen geometry.Point) {
	s.hover = true
	if s.vp.PanTo(screen) {
		s.redraw()
		return
	}
	if s.doc == nil || !s.doc.Loaded() {
		return
	}
	pos := s.vp.ScreenToWorld(screen)
	s.mouse = pos
	if s.drag.dragging && !s.calib.active {
		s.drag.move(pos, s.tool == annotation.ToolPen)
	}
	if s.Drawing() {
		s.redraw()
	}
}

// PointerUp handles a button release at a screen position.
func (s *Session) PointerUp(screen geometry.Point) {
	if s.vp.EndPan() {
		s.setStatus("Pan finished.")
		return
	}
	if !s.drag.dragging || s.calib.active {
		return
	}
	s.drag.move(s.vp.ScreenToWorld(screen), s.tool == annotation.ToolPen)
	s.finishDrag()
	s.redraw()
}

// PointerLeave handles the pointer leaving the canvas. Drag tools finish
// as on release; multi-click tools keep their state.
func (s *Session) PointerLeave() {
	s.hover = false
	if s.vp.EndPan() {
		s.setStatus("Panning interrupted (pointer left).")
	}
	if s.drag.dragging && !s.calib.active && s.tool.IsDrag() {
		s.finishDrag()
		s.setStatus("Drawing finished (pointer left).")
	}
	s.redraw()
}

func (s *Session) finishDrag() {
	pts := s.drag.points
	tool := s.tool
	s.drag.reset()
	if len(pts) == 0 {
		return
	}

	var meaningful bool
	if tool == annotation.ToolPen {
		meaningful = len(pts) > 1
	} else {
		start, end := pts[0], pts[len(pts)-1]
		meaningful = math.Abs(end.X-start.X) > minDragExtent || math.Abs(end.Y-start.Y) > minDragExtent
		pts = []geometry.Point{start, end}
	}
	if !meaningful {
		s.setStatus("Drawing too small, not added.")
		return
	}
	s.commitShape(tool, pts, "Annotation added.")
}

func (s *Session) commitShape(tool annotation.Tool, pts []geometry.Point, msg string) {
	a, err := annotation.NewShape(tool, s.style, pts)
	if s.commit(a, err) {
		s.setStatus(msg)
	}
}

// commit adds a built annotation to the document. A build or validation
// failure is reported in the status line only.
func (s *Session) commit(a annotation.Annotation, buildErr error) bool {
	err := buildErr
	if err == nil {
		err = s.doc.Add(a, s.stickers)
	}
	if err != nil {
		logging.For("interaction").Warn("annotation rejected", "tool", a.Tool, "error", err)
		s.setStatus("Annotation not added: invalid geometry.")
		return false
	}
	logging.For("interaction").Debug("annotation committed", "tool", a.Tool, "id", a.ID, "document", s.doc.ID)
	s.changed()
	return true
}

func (s *Session) calibrationClick(pos geometry.Point) {
	if s.calib.stage == StageIdle {
		s.calib.first = pos
		s.calib.stage = StageAwaitingSecondPoint
		s.setStatus("Calibrating: click the end point of the known distance.")
		s.redraw()
		return
	}

	pixels := s.calib.first.Distance(pos)
	req := CalibrationRequest{
		Start:     s.calib.first,
		End:       pos,
		Pixels:    pixels,
		Suggested: calibration.Suggest(pixels, s.doc.Calibration()),
		Message:   calibration.Prompt(pixels),
	}
	if s.prompter == nil {
		s.resolveCalibration(req, "", false)
		return
	}
	pending := &req
	s.calib.pending = pending
	s.redraw()
	s.prompter.AskLength(req, func(value string, ok bool) {
		// A tool switch or a new measurement while the prompt was open wins.
		if s.calib.pending != pending {
			return
		}
		s.resolveCalibration(req, value, ok)
	})
}

func (s *Session) resolveCalibration(req CalibrationRequest, value string, ok bool) {
	s.calib.reset()
	defer s.redraw()

	if !ok {
		s.setStatus("Calibration cancelled or invalid value.")
		return
	}
	factor, err := calibration.FactorFromAnswer(req.Pixels, value)
	if err == nil {
		err = s.doc.SetCalibration(factor)
	}
	if err != nil {
		logging.For("interaction").Debug("calibration rejected", "answer", value, "error", err)
		s.setStatus("Calibration cancelled or invalid value.")
		return
	}
	logging.For("interaction").Info("calibration updated", "document", s.doc.ID, "factor", factor)
	s.setStatus(fmt.Sprintf("Calibration updated: %.2f px/mm.", factor))
	s.changed()
}

// Wheel zooms one step at the cursor. Positive deltaY zooms out.
func (s *Session) Wheel(screen geometry.Point, deltaY float64) {
	if s.doc == nil || !s.doc.Loaded() {
		return
	}
	s.vp.Wheel(screen, deltaY)
	s.setStatus(fmt.Sprintf("Zoom: %d%%", s.vp.Percent()))
	s.redraw()
}

// ZoomStep zooms in or out about the centre of a canvas of the given size.
func (s *Session) ZoomStep(canvas geometry.Size, in bool) {
	if s.doc == nil || !s.doc.Loaded() || canvas.Empty() {
		return
	}
	if _, changed := s.vp.Step(canvas, in); !changed {
		s.setStatus(fmt.Sprintf("Zoom: %d%% (limit reached)", s.vp.Percent()))
		return
	}
	s.setStatus(fmt.Sprintf("Zoom: %d%%", s.vp.Percent()))
	s.redraw()
}

// FitToView fits the image in a canvas of the given size.
func (s *Session) FitToView(canvas geometry.Size) {
	if s.doc == nil || !s.doc.Loaded() || canvas.Empty() {
		return
	}
	s.vp.FitToView(canvas, s.doc.ImageSize())
	s.setStatus("Zoom/Pan reset.")
	s.redraw()
}

// Undo reverts the last commit of the document.
func (s *Session) Undo() bool {
	if s.doc == nil || !s.doc.Undo(s.stickers) {
		return false
	}
	s.setStatus("Action undone.")
	s.changed()
	return true
}

// Redo re-applies the next commit of the document.
func (s *Session) Redo() bool {
	if s.doc == nil || !s.doc.Redo(s.stickers) {
		return false
	}
	s.setStatus("Action redone.")
	s.changed()
	return true
}

// Clear removes every annotation as one undoable step.
func (s *Session) Clear() {
	if s.doc == nil {
		return
	}
	if err := s.doc.Clear(); err != nil {
		logging.For("interaction").Warn("clear failed", "error", err)
		return
	}
	s.setStatus("Annotations cleared.")
	s.changed()
}

// CanUndo and CanRedo expose the history boundaries for toolbars.
func (s *Session) CanUndo() bool { return s.doc != nil && s.doc.CanUndo() }
func (s *Session) CanRedo() bool { return s.doc != nil && s.doc.CanRedo() }
