// Package report exports a case as a JSON or PDF report.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/document"
)

// Report is the exported view of a case.
type Report struct {
	CaseInfo document.CaseInfo `json:"caseInfo"`
	Images   []ImageReport     `json:"images"`
}

// ImageReport is one document's analysis and annotations.
type ImageReport struct {
	ID                   string                  `json:"-"`
	FileName             string                  `json:"fileName"`
	Title                string                  `json:"title"`
	AnalysisType         document.AnalysisType   `json:"analysisType"`
	ClinicalObservations string                  `json:"clinicalObservations"`
	Diagnosis            string                  `json:"diagnosis"`
	TreatmentPlan        string                  `json:"treatmentPlan"`
	Prognosis            document.Prognosis      `json:"prognosis"`
	Recommendations      string                  `json:"recommendations"`
	OriginalDimensions   document.Dimensions     `json:"originalDimensions"`
	Annotations          []annotation.Annotation `json:"annotations"`
	CalibrationFactor    float64                 `json:"calibrationFactor"`
}

// Measurements returns the labelled ruler and angle annotations.
func (r ImageReport) Measurements() []annotation.Annotation {
	var out []annotation.Annotation
	for _, a := range r.Annotations {
		if (a.Tool == annotation.ToolRuler || a.Tool == annotation.ToolAngle) && a.Text != "" {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks that c can be exported.
func Validate(c *document.Case) error {
	noName := strings.TrimSpace(c.Info.PatientName) == ""
	noImages := len(c.Documents) == 0
	switch {
	case noName && noImages:
		return apperr.NewInvalid("export report", "enter the patient name and load at least one image to export")
	case noName:
		return apperr.NewInvalid("export report", "enter the patient name to export")
	case noImages:
		return apperr.NewInvalid("export report", "load at least one image to export")
	}
	return nil
}

// Build converts c into a report. Sticker handles are not carried over.
func Build(c *document.Case) (*Report, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}
	rep := &Report{CaseInfo: c.Info, Images: make([]ImageReport, 0, len(c.Documents))}
	for _, d := range c.Documents {
		rep.Images = append(rep.Images, ImageReport{
			ID:                   d.ID,
			FileName:             d.FileName,
			Title:                d.Analysis.Title,
			AnalysisType:         d.Analysis.Type,
			ClinicalObservations: d.Analysis.ClinicalObservations,
			Diagnosis:            d.Analysis.Diagnosis,
			TreatmentPlan:        d.Analysis.TreatmentPlan,
			Prognosis:            d.Analysis.Prognosis,
			Recommendations:      d.Analysis.Recommendations,
			OriginalDimensions:   d.Dimensions,
			Annotations:          annotation.StripHandles(d.Annotations),
			CalibrationFactor:    d.Calibration(),
		})
	}
	return rep, nil
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return apperr.NewExportFailed("json", err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName suggests a report file name for the patient, with ext such as
// ".json" or ".pdf".
func FileName(patientName, ext string) string {
	safe := strings.ToLower(unsafeChars.ReplaceAllString(patientName, "_"))
	if safe == "" {
		safe = "case"
	}
	return fmt.Sprintf("ortho_report_%s%s", safe, ext)
}
