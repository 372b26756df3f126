// Package document models a case: its metadata and the images (documents)
// being annotated, each with its own calibration and undo history.
package document

import (
	"fmt"
	"image"
	"strings"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/calibration"
	"ortho-annotator/internal/history"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/pkg/geometry"

	"github.com/google/uuid"
)

// DefaultTitle is used when a file name yields no title.
const DefaultTitle = "New image"

// Dimensions is the pixel size of the decoded image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Document is one image of a case.
type Document struct {
	ID                string                  `json:"id"`
	FileName          string                  `json:"fileName"`
	ImageRef          string                  `json:"imageRef"`
	Analysis          Analysis                `json:"analysis"`
	Annotations       []annotation.Annotation `json:"annotations"`
	CalibrationFactor float64                 `json:"calibrationFactor"`
	Dimensions        Dimensions              `json:"originalDimensions"`

	// Image is the decoded bitmap; nil until loaded.
	Image image.Image `json:"-"`

	history *history.History
}

// New creates a document for an uploaded file with an empty history and the
// default calibration.
func New(fileName, imageRef string) *Document {
	return &Document{
		ID:                uuid.NewString(),
		FileName:          fileName,
		ImageRef:          imageRef,
		Analysis:          Analysis{Title: TitleFromFileName(fileName)},
		Annotations:       []annotation.Annotation{},
		CalibrationFactor: calibration.DefaultFactor,
		history:           history.New(nil),
	}
}

// TitleFromFileName returns the file name up to its first dot.
func TitleFromFileName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	if strings.TrimSpace(name) == "" {
		return DefaultTitle
	}
	return name
}

// SetImage attaches the decoded bitmap and records its dimensions.
func (d *Document) SetImage(img image.Image) {
	d.Image = img
	if img != nil {
		b := img.Bounds()
		d.Dimensions = Dimensions{Width: b.Dx(), Height: b.Dy()}
	}
}

// Loaded reports whether the bitmap is available for drawing and input.
func (d *Document) Loaded() bool {
	return d.Image != nil
}

// ImageSize returns the image size in world units.
func (d *Document) ImageSize() geometry.Size {
	return geometry.NewSize(float64(d.Dimensions.Width), float64(d.Dimensions.Height))
}

// Name is the label used in status messages.
func (d *Document) Name() string {
	if d.FileName != "" {
		return d.FileName
	}
	return d.Analysis.Title
}

// History returns the document's undo history. Documents restored from
// storage start with their saved annotations as the only snapshot.
func (d *Document) History() *history.History {
	if d.history == nil {
		d.history = history.New(d.Annotations)
	}
	return d.history
}

// ResetHistory discards undo state, keeping the current annotations.
func (d *Document) ResetHistory() {
	d.history = history.New(d.Annotations)
}

// Commit records list as the new annotation state.
func (d *Document) Commit(list []annotation.Annotation, r sticker.Resolver) error {
	if err := d.History().Commit(list); err != nil {
		return err
	}
	d.Annotations = annotation.CloneAll(list)
	annotation.ResolveStickers(d.Annotations, r)
	return nil
}

// Add commits the current list plus a.
func (d *Document) Add(a annotation.Annotation, r sticker.Resolver) error {
	list := make([]annotation.Annotation, 0, len(d.Annotations)+1)
	list = append(list, d.Annotations...)
	list = append(list, a)
	return d.Commit(list, r)
}

// Clear commits an empty list. It can be undone.
func (d *Document) Clear() error {
	return d.Commit([]annotation.Annotation{}, nil)
}

// Undo restores the previous snapshot and re-resolves its stickers. The
// handles may still be loading when Undo returns.
func (d *Document) Undo(r sticker.Resolver) bool {
	list, ok := d.History().Undo()
	if !ok {
		return false
	}
	annotation.ResolveStickers(list, r)
	d.Annotations = list
	return true
}

// Redo re-applies the next snapshot and re-resolves its stickers.
func (d *Document) Redo(r sticker.Resolver) bool {
	list, ok := d.History().Redo()
	if !ok {
		return false
	}
	annotation.ResolveStickers(list, r)
	d.Annotations = list
	return true
}

func (d *Document) CanUndo() bool { return d.History().CanUndo() }
func (d *Document) CanRedo() bool { return d.History().CanRedo() }

// SetCalibration sets the pixels-per-millimetre factor.
func (d *Document) SetCalibration(factor float64) error {
	if !calibration.Valid(factor) {
		return apperr.NewInvalid("set calibration", fmt.Sprintf("factor %v must be positive", factor))
	}
	d.CalibrationFactor = factor
	return nil
}

// Calibration returns the factor, falling back to the default for documents
// saved without one.
func (d *Document) Calibration() float64 {
	if !calibration.Valid(d.CalibrationFactor) {
		return calibration.DefaultFactor
	}
	return d.CalibrationFactor
}

// Duplicate copies the document with fresh ids for it and its annotations.
// The copy shares the decoded image and starts a new history.
func (d *Document) Duplicate(r sticker.Resolver) *Document {
	title := d.Analysis.Title
	if title == "" {
		title = "Image"
	}
	dup := &Document{
		ID:                uuid.NewString(),
		FileName:          d.FileName,
		ImageRef:          d.ImageRef,
		Analysis:          d.Analysis,
		Annotations:       annotation.WithNewIDs(d.Annotations),
		CalibrationFactor: d.Calibration(),
		Dimensions:        d.Dimensions,
		Image:             d.Image,
	}
	dup.Analysis.Title = title + " (Copy)"
	dup.ResetHistory()
	annotation.ResolveStickers(dup.Annotations, r)
	return dup
}

// Restore prepares a document decoded from storage: fresh history seeded
// with its annotations and sticker handles resolved.
func (d *Document) Restore(r sticker.Resolver) {
	if d.Annotations == nil {
		d.Annotations = []annotation.Annotation{}
	}
	d.ResetHistory()
	annotation.ResolveStickers(d.Annotations, r)
}
