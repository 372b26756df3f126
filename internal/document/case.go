package document

import (
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/sticker"
)

// Case is the unit of persistence: metadata plus the ordered documents.
type Case struct {
	Info      CaseInfo    `json:"caseInfo"`
	Documents []*Document `json:"documents"`
	ActiveID  string      `json:"activeDocumentId,omitempty"`
}

// NewCase returns an empty case dated now.
func NewCase(now time.Time) *Case {
	return &Case{Info: NewCaseInfo(now), Documents: []*Document{}}
}

// Find returns the document with id, or nil.
func (c *Case) Find(id string) *Document {
	for _, d := range c.Documents {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// Index returns the position of the document with id, or -1.
func (c *Case) Index(id string) int {
	for i, d := range c.Documents {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// Active returns the selected document, or nil.
func (c *Case) Active() *Document {
	if c.ActiveID == "" {
		return nil
	}
	return c.Find(c.ActiveID)
}

// Select makes the document with id active.
func (c *Case) Select(id string) (*Document, error) {
	d := c.Find(id)
	if d == nil {
		return nil, apperr.NewNotFound("select document", id)
	}
	c.ActiveID = d.ID
	return d, nil
}

// Add appends documents. The first document added to an empty selection
// becomes active.
func (c *Case) Add(docs ...*Document) {
	c.Documents = append(c.Documents, docs...)
	if c.Active() == nil && len(docs) > 0 {
		c.ActiveID = docs[0].ID
	}
}

// Duplicate copies the document with id, appends the copy and selects it.
func (c *Case) Duplicate(id string, r sticker.Resolver) (*Document, error) {
	d := c.Find(id)
	if d == nil {
		return nil, apperr.NewNotFound("duplicate document", id)
	}
	dup := d.Duplicate(r)
	c.Documents = append(c.Documents, dup)
	c.ActiveID = dup.ID
	return dup, nil
}

// Remove deletes the document with id. If it was active, the next document
// (or the previous one, at the end of the list) becomes active.
func (c *Case) Remove(id string) error {
	i := c.Index(id)
	if i < 0 {
		return apperr.NewNotFound("remove document", id)
	}
	c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
	if c.ActiveID == id {
		c.ActiveID = ""
		switch {
		case i < len(c.Documents):
			c.ActiveID = c.Documents[i].ID
		case len(c.Documents) > 0:
			c.ActiveID = c.Documents[len(c.Documents)-1].ID
		}
	}
	return nil
}

// AnalysedCount returns the number of documents with a diagnosis.
func (c *Case) AnalysedCount() int {
	n := 0
	for _, d := range c.Documents {
		if d.Analysis.Analysed() {
			n++
		}
	}
	return n
}

// Restore prepares every document after decoding from storage.
func (c *Case) Restore(r sticker.Resolver) {
	if c.Documents == nil {
		c.Documents = []*Document{}
	}
	for _, d := range c.Documents {
		d.Restore(r)
	}
	if c.Active() == nil && len(c.Documents) > 0 {
		c.ActiveID = c.Documents[0].ID
	}
}

// Snapshot copies the case for persistence on another goroutine. Documents
// are copied with handle-free annotations; decoded images are shared and
// history is not part of the copy.
func (c *Case) Snapshot() *Case {
	out := &Case{
		Info:      c.Info,
		ActiveID:  c.ActiveID,
		Documents: make([]*Document, len(c.Documents)),
	}
	for i, d := range c.Documents {
		out.Documents[i] = &Document{
			ID:                d.ID,
			FileName:          d.FileName,
			ImageRef:          d.ImageRef,
			Analysis:          d.Analysis,
			Annotations:       annotation.StripHandles(d.Annotations),
			CalibrationFactor: d.CalibrationFactor,
			Dimensions:        d.Dimensions,
			Image:             d.Image,
		}
	}
	return out
}
