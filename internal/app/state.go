// Package app provides application state, events and the operations the
// front ends drive: uploading images, selecting documents, persistence and
// export.
package app

import (
	"context"
	"fmt"
	goimage "image"
	"io"
	"strings"
	"sync"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/imageio"
	"ortho-annotator/internal/interaction"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/render"
	"ortho-annotator/internal/report"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/internal/store"
	"ortho-annotator/internal/viewport"
	"ortho-annotator/pkg/geometry"
)

// ReadyStatus is the status line before anything happens.
const ReadyStatus = "Ready. Select a tool or load an image."

// State holds the open case, the active document's editing session and the
// tool settings shared by all documents.
type State struct {
	mu sync.RWMutex

	Case     *document.Case
	Modified bool

	store    store.Store
	stickers *sticker.Cache
	prompter interaction.Prompter
	renderer *render.Renderer

	viewport *viewport.Viewport
	session  *interaction.Session
	canvas   geometry.Size

	tool   annotation.Tool
	style  annotation.Style
	status string

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventCaseLoaded EventType = iota
	EventCaseSaved
	EventDocumentsChanged
	EventSelectionChanged
	EventAnnotationsChanged
	EventToolChanged
	EventStatus
	EventRedraw
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Option configures a State.
type Option func(*State)

// WithStore sets the persistence backend.
func WithStore(st store.Store) Option { return func(s *State) { s.store = st } }

// WithStickers sets the sticker cache shared by every document.
func WithStickers(c *sticker.Cache) Option { return func(s *State) { s.stickers = c } }

// WithPrompter sets how calibration lengths are asked for.
func WithPrompter(p interaction.Prompter) Option { return func(s *State) { s.prompter = p } }

// WithRenderer sets the renderer used for thumbnails and exports.
func WithRenderer(r *render.Renderer) Option { return func(s *State) { s.renderer = r } }

// WithStyle sets the initial tool settings.
func WithStyle(st annotation.Style) Option { return func(s *State) { s.style = st } }

// WithTool sets the initial tool.
func WithTool(t annotation.Tool) Option { return func(s *State) { s.tool = t } }

// NewState creates a new application state with an empty case.
func NewState(opts ...Option) *State {
	s := &State{
		Case:      document.NewCase(time.Now()),
		viewport:  viewport.New(),
		tool:      annotation.ToolPen,
		style:     annotation.DefaultStyle(),
		status:    ReadyStatus,
		listeners: make(map[EventType][]EventListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stickers == nil {
		s.stickers = sticker.NewCache(nil)
	}
	s.stickers.OnReady(func(string) { s.Emit(EventRedraw, nil) })
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the case as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// SetStatus updates the status line.
func (s *State) SetStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
	s.Emit(EventStatus, msg)
}

// Status returns the current status line.
func (s *State) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) Stickers() *sticker.Cache      { return s.stickers }
func (s *State) Viewport() *viewport.Viewport { return s.viewport }
func (s *State) Tool() annotation.Tool        { return s.tool }
func (s *State) Style() annotation.Style      { return s.style }

// Session returns the editing session of the active document, or nil.
func (s *State) Session() *interaction.Session { return s.session }

// Active returns the selected document, or nil.
func (s *State) Active() *document.Document { return s.Case.Active() }

// SetCanvasSize records the drawing area so selections can fit the image.
func (s *State) SetCanvasSize(size geometry.Size) {
	s.mu.Lock()
	s.canvas = size
	s.mu.Unlock()
}

// SetPrompter sets the calibration prompt used by sessions created from now
// on.
func (s *State) SetPrompter(p interaction.Prompter) { s.prompter = p }

// CanvasSize returns the last recorded drawing area.
func (s *State) CanvasSize() geometry.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

// SetTool switches the tool of the active session and of future sessions.
func (s *State) SetTool(t annotation.Tool) {
	s.tool = t
	if s.session != nil {
		s.session.SetTool(t)
	} else {
		s.SetStatus("Selected tool: " + t.Label())
	}
	s.Emit(EventToolChanged, t)
}

// SetStyle changes colour, stroke width and opacity for new annotations.
func (s *State) SetStyle(st annotation.Style) {
	s.style = st
	if s.session != nil {
		s.session.SetStyle(st)
	}
	s.Emit(EventToolChanged, s.tool)
}

// SetFilters adjusts brightness and contrast of the displayed image.
func (s *State) SetFilters(f viewport.Filters) {
	s.viewport.SetFilters(f)
	s.Emit(EventRedraw, nil)
}

// Upload decodes paths in parallel and appends every accepted image to the
// case. It returns the number of documents added.
func (s *State) Upload(ctx context.Context, paths []string) (int, error) {
	results, err := imageio.LoadAll(ctx, paths)
	if err != nil {
		return 0, err
	}

	var docs []*document.Document
	rejected := 0
	for _, r := range results {
		if r.Err != nil {
			rejected++
			continue
		}
		d := document.New(r.Decoded.Name, r.Path)
		d.SetImage(r.Decoded.Image)
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		s.SetStatus("No valid image was loaded.")
		return 0, nil
	}

	hadActive := s.Active() != nil
	s.Case.Add(docs...)
	s.Emit(EventDocumentsChanged, nil)
	if !hadActive {
		s.activate(s.Case.Active())
	}
	s.SetModified(true)
	if rejected > 0 {
		s.SetStatus(fmt.Sprintf("%d image(s) loaded, %d rejected.", len(docs), rejected))
	} else {
		s.SetStatus(fmt.Sprintf("%d image(s) loaded.", len(docs)))
	}
	return len(docs), nil
}

// Select makes the document with id active, resetting zoom, pan and filters.
func (s *State) Select(id string) error {
	d, err := s.Case.Select(id)
	if err != nil {
		return err
	}
	s.activate(d)
	s.SetStatus(fmt.Sprintf("Image %q selected.", d.Name()))
	return nil
}

// Duplicate copies the document with id and selects the copy.
func (s *State) Duplicate(id string) error {
	dup, err := s.Case.Duplicate(id, s.stickers)
	if err != nil {
		return err
	}
	s.Emit(EventDocumentsChanged, nil)
	s.activate(dup)
	s.SetModified(true)
	s.SetStatus(fmt.Sprintf("Image %q duplicated and selected.", dup.Analysis.Title))
	return nil
}

// Remove deletes the document with id from the case.
func (s *State) Remove(id string) error {
	wasActive := s.Case.ActiveID == id
	if err := s.Case.Remove(id); err != nil {
		return err
	}
	s.Emit(EventDocumentsChanged, nil)
	if wasActive {
		s.activate(s.Case.Active())
	}
	s.SetModified(true)
	return nil
}

// SetCaseInfo replaces the patient-level metadata.
func (s *State) SetCaseInfo(info document.CaseInfo) error {
	if err := info.Validate(); err != nil {
		return apperr.NewInvalid("set case info", err.Error())
	}
	s.Case.Info = info
	s.SetModified(true)
	return nil
}

// SetAnalysis replaces the analysis of the document with id.
func (s *State) SetAnalysis(id string, a document.Analysis) error {
	d := s.Case.Find(id)
	if d == nil {
		return apperr.NewNotFound("set analysis", id)
	}
	if err := a.Validate(); err != nil {
		return apperr.NewInvalid("set analysis", err.Error())
	}
	d.Analysis = a
	s.Emit(EventDocumentsChanged, nil)
	s.SetModified(true)
	s.SetStatus(fmt.Sprintf("Analysis of image %q saved (automatically).", d.Name()))
	return nil
}

// activate builds the session for d. A nil d clears the selection.
func (s *State) activate(d *document.Document) {
	s.viewport.Reset()
	if d == nil {
		s.session = nil
		s.Emit(EventSelectionChanged, nil)
		s.SetStatus("No image selected.")
		return
	}

	s.session = interaction.New(d, s.viewport,
		interaction.WithStickers(s.stickers),
		interaction.WithPrompter(s.prompter),
		interaction.WithTool(s.tool),
		interaction.WithStyle(s.style),
		interaction.WithHooks(interaction.Hooks{
			Status: s.SetStatus,
			Changed: func() {
				s.Emit(EventAnnotationsChanged, d.ID)
				s.SetModified(true)
			},
			Redraw: func() { s.Emit(EventRedraw, nil) },
		}),
	)
	if canvas := s.CanvasSize(); d.Loaded() && !canvas.Empty() {
		s.viewport.FitToView(canvas, d.ImageSize())
	}
	s.Emit(EventSelectionChanged, d.ID)
}

// LoadCase replaces the open case with the one in the store and decodes its
// images. A store without a case leaves an empty case open.
func (s *State) LoadCase(ctx context.Context) error {
	if s.store == nil {
		return apperr.NewInvalid("load case", "no store configured")
	}
	c, err := s.store.Load(ctx, s.stickers)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			logging.For("app").Info("no saved case, starting empty")
			return nil
		}
		return err
	}

	s.Case = c
	if err := s.LoadImages(ctx); err != nil {
		return err
	}
	s.activate(c.Active())
	s.SetModified(false)
	s.Emit(EventCaseLoaded, nil)
	return nil
}

// LoadImages decodes the image of every document that has none yet.
// Documents whose image cannot be read stay unloaded.
func (s *State) LoadImages(ctx context.Context) error {
	var pending []*document.Document
	var paths []string
	for _, d := range s.Case.Documents {
		if !d.Loaded() && d.ImageRef != "" {
			pending = append(pending, d)
			paths = append(paths, d.ImageRef)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	results, err := imageio.LoadAll(ctx, paths)
	if err != nil {
		return err
	}
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		pending[i].SetImage(r.Decoded.Image)
	}
	if failed > 0 {
		s.SetStatus(fmt.Sprintf("%d image(s) could not be loaded.", failed))
	}
	return nil
}

// SaveCase writes the open case to the store.
func (s *State) SaveCase(ctx context.Context) error {
	if s.store == nil {
		return apperr.NewInvalid("save case", "no store configured")
	}
	if err := s.store.Save(ctx, s.Case); err != nil {
		return err
	}
	s.SetModified(false)
	s.Emit(EventCaseSaved, nil)
	return nil
}

// Store returns the persistence backend, or nil.
func (s *State) Store() store.Store { return s.store }

// Export formats.
const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// Export writes the case report in format to w.
func (s *State) Export(w io.Writer, format string) error {
	rep, err := report.Build(s.Case)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		err = report.WriteJSON(w, rep)
	case FormatPDF:
		err = report.WritePDF(w, rep, s.reportThumbnail)
	default:
		return apperr.NewInvalid("export report", fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		return err
	}
	s.SetStatus(fmt.Sprintf("Case report exported as %s.", strings.ToUpper(format)))
	return nil
}

// ReportFileName suggests the export file name for the open case.
func (s *State) ReportFileName(format string) string {
	return report.FileName(s.Case.Info.PatientName, "."+format)
}

func (s *State) reportThumbnail(img report.ImageReport) (goimage.Image, error) {
	d := s.Case.Find(img.ID)
	if d == nil || !d.Loaded() {
		return nil, nil
	}
	return s.Thumbnail(d, 1200)
}

// Thumbnail renders d with its annotations, scaled so the longer side is at
// most maxSide pixels.
func (s *State) Thumbnail(d *document.Document, maxSide int) (goimage.Image, error) {
	if !d.Loaded() {
		return nil, apperr.NewInvalid("render thumbnail", "image not loaded")
	}
	if s.renderer == nil {
		r, err := render.New()
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}

	size := d.ImageSize()
	scale := 1.0
	if longest := max(size.Width, size.Height); longest > float64(maxSide) {
		scale = float64(maxSide) / longest
	}
	w, h := int(size.Width*scale+0.5), int(size.Height*scale+0.5)
	vp := viewport.New()
	vp.Zoom = scale

	return s.renderer.Render(w, h, render.Scene{
		HasDocument: true,
		Image:       d.Image,
		Viewport:    vp,
		Annotations: d.Annotations,
	}), nil
}

// Frame renders the active document at the given canvas size, including the
// in-progress preview.
func (s *State) Frame(w, h int) goimage.Image {
	if s.renderer == nil {
		r, err := render.New()
		if err != nil {
			logging.For("app").Error("renderer unavailable", "error", err)
			return goimage.NewRGBA(goimage.Rect(0, 0, w, h))
		}
		s.renderer = r
	}
	sc := render.Scene{Viewport: s.viewport}
	if d := s.Active(); d != nil {
		sc.HasDocument = true
		sc.Image = d.Image
		sc.Annotations = d.Annotations
		if s.session != nil {
			sc.Preview = s.session.Preview()
		}
	}
	return s.renderer.Render(w, h, sc)
}
