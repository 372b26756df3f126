package panels

import (
	"fmt"

	"ortho-annotator/internal/app"
	"ortho-annotator/ui/dialogs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// ImagesPanel lists the documents of the case and manages the selection.
type ImagesPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	list     *widget.List
	summary  *widget.Label
	onAdd    func()
	selected int
	syncing  bool
}

// NewImagesPanel creates a new images panel.
func NewImagesPanel(state *app.State) *ImagesPanel {
	ip := &ImagesPanel{state: state, selected: -1}

	ip.list = widget.NewList(
		func() int { return len(state.Case.Documents) },
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.FileImageIcon()), widget.NewLabel("template"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(state.Case.Documents) {
				return
			}
			d := state.Case.Documents[id]
			row := obj.(*fyne.Container)
			icon := row.Objects[0].(*widget.Icon)
			label := row.Objects[1].(*widget.Label)
			if d.Analysis.Analysed() {
				icon.SetResource(theme.ConfirmIcon())
			} else {
				icon.SetResource(theme.FileImageIcon())
			}
			text := d.Analysis.Title
			if !d.Loaded() {
				text += " (not loaded)"
			}
			label.SetText(text)
		},
	)
	ip.list.OnSelected = func(id widget.ListItemID) {
		ip.selected = id
		if ip.syncing || id >= len(state.Case.Documents) {
			return
		}
		d := state.Case.Documents[id]
		if d.ID == state.Case.ActiveID {
			return
		}
		if err := state.Select(d.ID); err != nil {
			ip.showError(err)
		}
	}

	addBtn := widget.NewButtonWithIcon("Add images...", theme.ContentAddIcon(), func() {
		if ip.onAdd != nil {
			ip.onAdd()
		}
	})
	dupBtn := widget.NewButtonWithIcon("Duplicate", theme.ContentCopyIcon(), ip.onDuplicate)
	removeBtn := widget.NewButtonWithIcon("Remove", theme.DeleteIcon(), ip.onRemove)

	ip.summary = widget.NewLabel("")
	ip.container = container.NewBorder(
		container.NewVBox(addBtn, ip.summary),
		container.NewGridWithColumns(2, dupBtn, removeBtn),
		nil, nil,
		ip.list,
	)

	for _, ev := range []app.EventType{app.EventCaseLoaded, app.EventDocumentsChanged, app.EventSelectionChanged} {
		state.On(ev, func(interface{}) { ip.sync() })
	}
	ip.sync()
	return ip
}

// Container returns the panel container.
func (ip *ImagesPanel) Container() fyne.CanvasObject {
	return ip.container
}

// SetWindow sets the parent window for dialogs.
func (ip *ImagesPanel) SetWindow(w fyne.Window) {
	ip.window = w
}

// sync refreshes the list and moves its selection to the active document.
func (ip *ImagesPanel) sync() {
	c := ip.state.Case
	ip.summary.SetText(fmt.Sprintf("%d image(s), %d analysed", len(c.Documents), c.AnalysedCount()))
	ip.list.Refresh()

	ip.syncing = true
	defer func() { ip.syncing = false }()
	if i := c.Index(c.ActiveID); i >= 0 {
		ip.list.Select(i)
	} else {
		ip.list.UnselectAll()
		ip.selected = -1
	}
}

func (ip *ImagesPanel) onDuplicate() {
	d := ip.state.Active()
	if d == nil {
		return
	}
	if err := ip.state.Duplicate(d.ID); err != nil {
		ip.showError(err)
	}
}

func (ip *ImagesPanel) onRemove() {
	d := ip.state.Active()
	if d == nil {
		return
	}
	remove := func() {
		if err := ip.state.Remove(d.ID); err != nil {
			ip.showError(err)
		}
	}
	if ip.window == nil {
		remove()
		return
	}
	dialogs.ConfirmRemove(ip.window, d.Analysis.Title, remove)
}

func (ip *ImagesPanel) showError(err error) {
	if ip.window != nil {
		dialog.ShowError(err, ip.window)
		return
	}
	ip.state.SetStatus(err.Error())
}
