// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"

	"ortho-annotator/internal/interaction"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// CalibrationDialog asks for the real length of a calibration segment. It
// implements interaction.Prompter.
type CalibrationDialog struct {
	window fyne.Window
}

var _ interaction.Prompter = (*CalibrationDialog)(nil)

// NewCalibrationDialog creates a prompter that shows its form over window.
func NewCalibrationDialog(window fyne.Window) *CalibrationDialog {
	return &CalibrationDialog{window: window}
}

// AskLength shows the form. answer is called once, with ok=false when the
// dialog is dismissed.
func (d *CalibrationDialog) AskLength(req interaction.CalibrationRequest, answer func(string, bool)) {
	entry := widget.NewEntry()
	entry.SetText(req.Suggested)
	entry.SetPlaceHolder("e.g. 10.5")

	items := []*widget.FormItem{
		widget.NewFormItem("Length (mm)", entry),
	}
	msg := widget.NewLabel(req.Message)
	msg.Wrapping = fyne.TextWrapWord
	info := widget.NewFormItem("", msg)
	info.HintText = fmt.Sprintf("Measured: %.1f px", req.Pixels)
	items = append([]*widget.FormItem{info}, items...)

	answered := false
	dlg := dialog.NewForm("Calibrate scale", "Apply", "Cancel", items, func(ok bool) {
		if answered {
			return
		}
		answered = true
		answer(entry.Text, ok)
	}, d.window)
	entry.OnSubmitted = func(string) { dlg.Submit() }
	dlg.Resize(fyne.NewSize(380, 220))
	dlg.Show()
	d.window.Canvas().Focus(entry)
}

// ConfirmRemove asks before an image and its annotations are removed from
// the case.
func ConfirmRemove(window fyne.Window, name string, onConfirm func()) {
	dialog.ShowConfirm("Remove image",
		fmt.Sprintf("Remove %q and all of its annotations from the case?", name),
		func(ok bool) {
			if ok {
				onConfirm()
			}
		}, window)
}
