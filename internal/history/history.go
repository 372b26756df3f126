// Package history keeps the linear undo/redo stack of one document.
package history

import (
	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/logging"
)

// History is a sequence of annotation-list snapshots with a current step.
// 0 <= step < len(snapshots) always holds. Snapshots never carry sticker
// handles; callers re-resolve them after Undo and Redo.
type History struct {
	snapshots [][]annotation.Annotation
	step      int
}

// New creates a history whose only snapshot is initial.
func New(initial []annotation.Annotation) *History {
	return &History{snapshots: [][]annotation.Annotation{annotation.StripHandles(initial)}}
}

// Commit validates list and makes it the current snapshot, discarding any
// redo entries. A list containing a malformed annotation is rejected and
// the history is left unchanged.
func (h *History) Commit(list []annotation.Annotation) error {
	for _, a := range list {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	h.snapshots = append(h.snapshots[:h.step+1], annotation.StripHandles(list))
	h.step = len(h.snapshots) - 1
	logging.For("history").Debug("commit", "step", h.step, "annotations", len(list))
	return nil
}

// Undo steps back. It reports false at the oldest snapshot.
func (h *History) Undo() ([]annotation.Annotation, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.step--
	return h.Current(), true
}

// Redo steps forward. It reports false at the newest snapshot.
func (h *History) Redo() ([]annotation.Annotation, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.step++
	return h.Current(), true
}

// Current returns a copy of the snapshot at the current step.
func (h *History) Current() []annotation.Annotation {
	return annotation.CloneAll(h.snapshots[h.step])
}

func (h *History) CanUndo() bool { return h.step > 0 }
func (h *History) CanRedo() bool { return h.step < len(h.snapshots)-1 }
func (h *History) Step() int     { return h.step }
func (h *History) Len() int      { return len(h.snapshots) }
