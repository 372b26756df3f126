// Package panels provides UI panels for the application.
package panels

import (
	"ortho-annotator/internal/app"
	"ortho-annotator/ui/canvas"
	"ortho-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	casePanel     *CasePanel
	imagesPanel   *ImagesPanel
	analysisPanel *AnalysisPanel
	toolsPanel    *ToolsPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State, cvs *canvas.AnnotationCanvas, pf *prefs.Prefs) *SidePanel {
	sp := &SidePanel{state: state}

	sp.casePanel = NewCasePanel(state)
	sp.imagesPanel = NewImagesPanel(state)
	sp.analysisPanel = NewAnalysisPanel(state)
	sp.toolsPanel = NewToolsPanel(state, cvs, pf)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Tools", sp.toolsPanel.Container()),
		container.NewTabItem("Images", sp.imagesPanel.Container()),
		container.NewTabItem("Analysis", sp.analysisPanel.Container()),
		container.NewTabItem("Case", sp.casePanel.Container()),
	)
	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.imagesPanel.SetWindow(w)
}

// OnAddImages sets the action of the images panel's add button.
func (sp *SidePanel) OnAddImages(fn func()) {
	sp.imagesPanel.onAdd = fn
}

// Tools returns the tool settings panel.
func (sp *SidePanel) Tools() *ToolsPanel {
	return sp.toolsPanel
}
