package panels

import (
	"fmt"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/viewport"
	"ortho-annotator/pkg/colorutil"
	"ortho-annotator/ui/canvas"
	"ortho-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ToolsPanel selects the drawing tool, its style and the image filters.
type ToolsPanel struct {
	state     *app.State
	canvas    *canvas.AnnotationCanvas
	prefs     *prefs.Prefs
	container fyne.CanvasObject

	tools       *widget.RadioGroup
	colors      *widget.Select
	swatch      *fynecanvas.Rectangle
	strokeWidth *widget.Slider
	strokeLabel *widget.Label
	opacity     *widget.Slider
	opacityLbl  *widget.Label
	brightness  *widget.Slider
	contrast    *widget.Slider
	filterLabel *widget.Label

	syncing bool
}

// NewToolsPanel creates a new tools panel.
func NewToolsPanel(state *app.State, cvs *canvas.AnnotationCanvas, pf *prefs.Prefs) *ToolsPanel {
	tp := &ToolsPanel{state: state, canvas: cvs, prefs: pf}

	labels := make([]string, len(annotation.Tools))
	for i, info := range annotation.Tools {
		labels[i] = info.Label
	}
	tp.tools = widget.NewRadioGroup(labels, func(label string) {
		if tp.syncing {
			return
		}
		for _, info := range annotation.Tools {
			if info.Label == label {
				tp.state.SetTool(info.ID)
				if tp.prefs != nil {
					tp.prefs.SetTool(info.ID)
				}
				return
			}
		}
	})
	tp.tools.Required = true

	names := make([]string, len(colorutil.Palette))
	for i, sw := range colorutil.Palette {
		names[i] = sw.Name
	}
	tp.colors = widget.NewSelect(names, func(string) { tp.applyStyle() })
	tp.swatch = fynecanvas.NewRectangle(colorutil.MustParse(colorutil.DefaultAnnotation))
	tp.swatch.SetMinSize(fyne.NewSize(24, 24))

	tp.strokeWidth = widget.NewSlider(1, 20)
	tp.strokeLabel = widget.NewLabel("")
	tp.strokeWidth.OnChanged = func(float64) { tp.applyStyle() }

	tp.opacity = widget.NewSlider(10, 100)
	tp.opacity.Step = 5
	tp.opacityLbl = widget.NewLabel("")
	tp.opacity.OnChanged = func(float64) { tp.applyStyle() }

	tp.brightness = widget.NewSlider(viewport.FilterMin, viewport.FilterMax)
	tp.contrast = widget.NewSlider(viewport.FilterMin, viewport.FilterMax)
	tp.filterLabel = widget.NewLabel("")
	tp.brightness.OnChanged = func(float64) { tp.applyFilters() }
	tp.contrast.OnChanged = func(float64) { tp.applyFilters() }

	calibrateBtn := widget.NewButton("Calibrate scale", func() {
		if sess := state.Session(); sess != nil {
			sess.StartCalibration()
		}
	})
	resetFiltersBtn := widget.NewButton("Reset filters", func() {
		state.SetFilters(viewport.DefaultFilters())
		tp.syncFilters()
	})

	tp.container = container.NewVScroll(container.NewVBox(
		widget.NewCard("Tool", "", tp.tools),
		widget.NewCard("Style", "", container.NewVBox(
			container.NewBorder(nil, nil, tp.swatch, nil, tp.colors),
			tp.strokeLabel, tp.strokeWidth,
			tp.opacityLbl, tp.opacity,
		)),
		widget.NewCard("Image", "", container.NewVBox(
			tp.filterLabel,
			widget.NewLabel("Brightness"), tp.brightness,
			widget.NewLabel("Contrast"), tp.contrast,
			resetFiltersBtn,
		)),
		widget.NewCard("View", "", container.NewVBox(
			calibrateBtn,
			widget.NewButton("Fit to view", tp.canvas.FitToView),
		)),
	))

	state.On(app.EventToolChanged, func(interface{}) { tp.sync() })
	state.On(app.EventSelectionChanged, func(interface{}) { tp.syncFilters() })
	tp.sync()
	tp.syncFilters()
	return tp
}

// Container returns the panel container.
func (tp *ToolsPanel) Container() fyne.CanvasObject {
	return tp.container
}

// sync copies the state's tool settings into the widgets.
func (tp *ToolsPanel) sync() {
	st := tp.state.Style()
	tp.syncing = true
	defer func() { tp.syncing = false }()

	tp.tools.SetSelected(tp.state.Tool().Label())
	tp.colors.SetSelected(swatchName(st.Color))
	tp.strokeWidth.SetValue(st.StrokeWidth)
	tp.opacity.SetValue(st.Opacity * 100)
	tp.updateStyleLabels(st)
}

func (tp *ToolsPanel) syncFilters() {
	f := tp.state.Viewport().Filters
	tp.syncing = true
	tp.brightness.SetValue(float64(f.Brightness))
	tp.contrast.SetValue(float64(f.Contrast))
	tp.syncing = false
	tp.filterLabel.SetText(fmt.Sprintf("Brightness %d%%, contrast %d%%", f.Brightness, f.Contrast))
}

func (tp *ToolsPanel) applyStyle() {
	if tp.syncing {
		return
	}
	st := tp.state.Style()
	for _, sw := range colorutil.Palette {
		if sw.Name == tp.colors.Selected {
			st.Color = sw.Value
		}
	}
	st.StrokeWidth = tp.strokeWidth.Value
	st.Opacity = tp.opacity.Value / 100
	tp.state.SetStyle(st)
	if tp.prefs != nil {
		tp.prefs.SetStyle(st)
	}
}

func (tp *ToolsPanel) updateStyleLabels(st annotation.Style) {
	if c, err := colorutil.Parse(st.Color); err == nil {
		tp.swatch.FillColor = c
		tp.swatch.Refresh()
	}
	tp.strokeLabel.SetText(fmt.Sprintf("Stroke width: %.0f px", st.StrokeWidth))
	tp.opacityLbl.SetText(fmt.Sprintf("Opacity: %.0f%%", st.Opacity*100))
}

func (tp *ToolsPanel) applyFilters() {
	if tp.syncing {
		return
	}
	f := viewport.Filters{Brightness: int(tp.brightness.Value), Contrast: int(tp.contrast.Value)}
	tp.state.SetFilters(f)
	tp.filterLabel.SetText(fmt.Sprintf("Brightness %d%%, contrast %d%%", f.Brightness, f.Contrast))
}

// swatchName returns the palette name of value, or "" for custom colours.
func swatchName(value string) string {
	for _, sw := range colorutil.Palette {
		if sw.Value == value {
			return sw.Name
		}
	}
	return ""
}
