package panels

import (
	"fmt"

	"ortho-annotator/internal/app"
	"ortho-annotator/internal/document"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// CasePanel edits the patient-level metadata of the open case.
type CasePanel struct {
	state     *app.State
	container fyne.CanvasObject

	patient  *widget.Entry
	dentist  *widget.Entry
	date     *widget.Entry
	status   *widget.Select
	analysed *widget.Label
	errLabel *widget.Label

	syncing bool
}

// NewCasePanel creates a new case panel.
func NewCasePanel(state *app.State) *CasePanel {
	cp := &CasePanel{state: state}

	cp.patient = widget.NewEntry()
	cp.patient.SetPlaceHolder("Patient name")
	cp.dentist = widget.NewEntry()
	cp.dentist.SetPlaceHolder("Dentist name")
	cp.date = widget.NewEntry()
	cp.date.SetPlaceHolder(document.EntryDateLayout)

	cp.status = widget.NewSelect(enumStrings(document.CaseStatuses), nil)

	cp.analysed = widget.NewLabel("")
	cp.errLabel = widget.NewLabel("")
	cp.errLabel.Importance = widget.DangerImportance
	cp.errLabel.Wrapping = fyne.TextWrapWord

	onChanged := func(string) { cp.apply() }
	cp.patient.OnChanged = onChanged
	cp.dentist.OnChanged = onChanged
	cp.date.OnChanged = onChanged
	cp.status.OnChanged = onChanged

	form := widget.NewForm(
		widget.NewFormItem("Patient", cp.patient),
		widget.NewFormItem("Dentist", cp.dentist),
		widget.NewFormItem("Entry date", cp.date),
		widget.NewFormItem("Status", cp.status),
	)
	cp.container = container.NewVBox(
		widget.NewCard("Case", "", form),
		cp.analysed,
		cp.errLabel,
	)

	for _, ev := range []app.EventType{app.EventCaseLoaded, app.EventDocumentsChanged} {
		state.On(ev, func(interface{}) { cp.sync() })
	}
	cp.sync()
	return cp
}

// Container returns the panel container.
func (cp *CasePanel) Container() fyne.CanvasObject {
	return cp.container
}

// sync copies the case metadata into the form.
func (cp *CasePanel) sync() {
	c := cp.state.Case
	cp.syncing = true
	cp.patient.SetText(c.Info.PatientName)
	cp.dentist.SetText(c.Info.DentistName)
	cp.date.SetText(c.Info.EntryDate)
	cp.status.SetSelected(string(c.Info.Status))
	cp.syncing = false
	cp.analysed.SetText(fmt.Sprintf("%d of %d image(s) analysed", c.AnalysedCount(), len(c.Documents)))
}

func (cp *CasePanel) apply() {
	if cp.syncing {
		return
	}
	info := document.CaseInfo{
		PatientName: cp.patient.Text,
		DentistName: cp.dentist.Text,
		EntryDate:   cp.date.Text,
		Status:      document.CaseStatus(cp.status.Selected),
	}
	if err := cp.state.SetCaseInfo(info); err != nil {
		cp.errLabel.SetText(err.Error())
		return
	}
	cp.errLabel.SetText("")
}
