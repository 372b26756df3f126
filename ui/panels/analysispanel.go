package panels

import (
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/document"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// AnalysisPanel edits the clinical write-up of the active image. Every edit
// is applied to the document immediately.
type AnalysisPanel struct {
	state     *app.State
	container fyne.CanvasObject

	title           *widget.Entry
	analysisType    *widget.Select
	observations    *widget.Entry
	diagnosis       *widget.Entry
	treatmentPlan   *widget.Entry
	prognosis       *widget.Select
	recommendations *widget.Entry
	form            *widget.Form
	empty           *widget.Label

	docID   string
	syncing bool
}

// NewAnalysisPanel creates a new analysis panel.
func NewAnalysisPanel(state *app.State) *AnalysisPanel {
	ap := &AnalysisPanel{state: state}

	ap.title = widget.NewEntry()
	ap.analysisType = widget.NewSelect(enumStrings(document.AnalysisTypes), nil)
	ap.observations = multiline("Clinical observations")
	ap.diagnosis = multiline("Diagnosis")
	ap.treatmentPlan = multiline("Treatment plan")
	ap.prognosis = widget.NewSelect(enumStrings(document.Prognoses), nil)
	ap.recommendations = multiline("Recommendations")

	onChanged := func(string) { ap.apply() }
	for _, e := range []*widget.Entry{ap.title, ap.observations, ap.diagnosis, ap.treatmentPlan, ap.recommendations} {
		e.OnChanged = onChanged
	}
	ap.analysisType.OnChanged = onChanged
	ap.prognosis.OnChanged = onChanged

	ap.form = widget.NewForm(
		widget.NewFormItem("Title", ap.title),
		widget.NewFormItem("Type", ap.analysisType),
		widget.NewFormItem("Observations", ap.observations),
		widget.NewFormItem("Diagnosis", ap.diagnosis),
		widget.NewFormItem("Treatment plan", ap.treatmentPlan),
		widget.NewFormItem("Prognosis", ap.prognosis),
		widget.NewFormItem("Recommendations", ap.recommendations),
	)
	ap.empty = widget.NewLabel("Select an image to write its analysis.")
	ap.container = container.NewVScroll(container.NewVBox(ap.empty, ap.form))

	for _, ev := range []app.EventType{app.EventCaseLoaded, app.EventSelectionChanged} {
		state.On(ev, func(interface{}) { ap.sync() })
	}
	ap.sync()
	return ap
}

// Container returns the panel container.
func (ap *AnalysisPanel) Container() fyne.CanvasObject {
	return ap.container
}

func (ap *AnalysisPanel) sync() {
	d := ap.state.Active()
	if d == nil {
		ap.docID = ""
		ap.form.Hide()
		ap.empty.Show()
		return
	}
	ap.empty.Hide()
	ap.form.Show()
	if d.ID == ap.docID {
		return
	}
	ap.docID = d.ID

	a := d.Analysis
	ap.syncing = true
	ap.title.SetText(a.Title)
	ap.analysisType.SetSelected(string(a.Type))
	ap.observations.SetText(a.ClinicalObservations)
	ap.diagnosis.SetText(a.Diagnosis)
	ap.treatmentPlan.SetText(a.TreatmentPlan)
	ap.prognosis.SetSelected(string(a.Prognosis))
	ap.recommendations.SetText(a.Recommendations)
	ap.syncing = false
}

func (ap *AnalysisPanel) apply() {
	if ap.syncing || ap.docID == "" {
		return
	}
	a := document.Analysis{
		Title:                ap.title.Text,
		Type:                 document.AnalysisType(ap.analysisType.Selected),
		ClinicalObservations: ap.observations.Text,
		Diagnosis:            ap.diagnosis.Text,
		TreatmentPlan:        ap.treatmentPlan.Text,
		Prognosis:            document.Prognosis(ap.prognosis.Selected),
		Recommendations:      ap.recommendations.Text,
	}
	if err := ap.state.SetAnalysis(ap.docID, a); err != nil {
		ap.state.SetStatus(err.Error())
	}
}

func multiline(placeholder string) *widget.Entry {
	e := widget.NewMultiLineEntry()
	e.SetPlaceHolder(placeholder)
	e.Wrapping = fyne.TextWrapWord
	e.SetMinRowsVisible(3)
	return e
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
