// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/imageio"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/version"
	"ortho-annotator/ui/canvas"
	"ortho-annotator/ui/dialogs"
	"ortho-annotator/ui/panels"
	"ortho-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const appTitle = "Ortho Annotator"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	prefs     *prefs.Prefs
	canvas    *canvas.AnnotationCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	zoomLabel *widget.Label
	scaleLbl  *widget.Label

	autosaver *app.Autosaver
}

// New creates a new main window and installs its calibration prompt on
// state.
func New(fyneApp fyne.App, state *app.State, pf *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  pf,
	}
	state.SetPrompter(dialogs.NewCalibrationDialog(win))

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()

	w, h := pf.WindowSize(1280, 800)
	mw.Resize(fyne.NewSize(w, h))
	mw.SetCloseIntercept(mw.onClose)
	mw.SetOnDropped(mw.onDropped)
	return mw
}

// SetAutosaver registers the autosaver that is flushed when the window
// closes.
func (mw *MainWindow) SetAutosaver(a *app.Autosaver) {
	mw.autosaver = a
	if a == nil {
		return
	}
	a.OnSaved(func(err error) {
		if err != nil {
			mw.updateStatus("Autosave failed: " + err.Error())
		}
	})
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.New(mw.state)

	mw.sidePanel = panels.NewSidePanel(mw.state, mw.canvas, mw.prefs)
	mw.sidePanel.SetWindow(mw.Window)
	mw.sidePanel.OnAddImages(mw.onAddImages)

	mw.statusBar = widget.NewLabel(mw.state.Status())
	mw.statusBar.Truncation = fyne.TextTruncateEllipsis
	mw.zoomLabel = widget.NewLabel("")
	mw.scaleLbl = widget.NewLabel("")

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil,                // bottom
		nil,                // left
		nil,                // right
		mw.canvas,          // center
	)

	split := container.NewHSplit(mw.sidePanel.Container(), canvasArea)
	split.SetOffset(0.25)

	statusRow := container.NewBorder(nil, nil, nil,
		container.NewHBox(mw.scaleLbl, mw.zoomLabel),
		mw.statusBar,
	)
	mw.SetContent(container.NewBorder(nil, container.NewPadded(statusRow), nil, nil, split))
	mw.updateIndicators()
}

// createToolbar creates the toolbar with history and zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	return widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), mw.onAddImages),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), mw.onSaveCase),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), mw.onUndo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), mw.onRedo),
		widget.NewToolbarAction(theme.ContentClearIcon(), mw.onClear),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { mw.canvas.Zoom(true) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { mw.canvas.Zoom(false) }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), mw.canvas.FitToView),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentPrintIcon(), func() { mw.onExport(app.FormatPDF) }),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Add Images...", mw.onAddImages),
		fyne.NewMenuItem("Save Case", mw.onSaveCase),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Report (JSON)...", func() { mw.onExport(app.FormatJSON) }),
		fyne.NewMenuItem("Export Report (PDF)...", func() { mw.onExport(app.FormatPDF) }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", mw.onUndo),
		fyne.NewMenuItem("Redo", mw.onRedo),
		fyne.NewMenuItem("Clear Annotations", mw.onClear),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.canvas.Zoom(true) }),
		fyne.NewMenuItem("Zoom Out", func() { mw.canvas.Zoom(false) }),
		fyne.NewMenuItem("Fit to View", mw.canvas.FitToView),
	)

	toolItems := make([]*fyne.MenuItem, 0, len(annotation.Tools)+2)
	for _, info := range annotation.Tools {
		tool := info.ID
		toolItems = append(toolItems, fyne.NewMenuItem(info.Label, func() {
			mw.state.SetTool(tool)
			mw.prefs.SetTool(tool)
		}))
	}
	toolItems = append(toolItems, fyne.NewMenuItemSeparator(), fyne.NewMenuItem("Calibrate Scale", mw.onCalibrate))
	toolsMenu := fyne.NewMenu("Tools", toolItems...)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, toolsMenu, helpMenu))
}

// setupShortcuts binds keyboard shortcuts to the canvas.
func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onUndo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onRedo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift},
		func(fyne.Shortcut) { mw.onRedo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSaveCase() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			if sess := mw.state.Session(); sess != nil {
				sess.CancelCalibration()
			}
		}
	})
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventStatus, func(data interface{}) {
		if msg, ok := data.(string); ok {
			mw.updateStatus(msg)
		}
	})
	mw.state.On(app.EventModified, func(interface{}) { mw.updateTitle() })
	mw.state.On(app.EventCaseLoaded, func(interface{}) { mw.updateTitle() })
	for _, ev := range []app.EventType{app.EventRedraw, app.EventSelectionChanged, app.EventAnnotationsChanged} {
		mw.state.On(ev, func(interface{}) { mw.updateIndicators() })
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) updateTitle() {
	title := appTitle
	if name := strings.TrimSpace(mw.state.Case.Info.PatientName); name != "" {
		title += " - " + name
	}
	if mw.state.Modified {
		title += " *"
	}
	mw.SetTitle(title)
}

// updateIndicators shows zoom and calibration of the active image.
func (mw *MainWindow) updateIndicators() {
	d := mw.state.Active()
	if d == nil {
		mw.zoomLabel.SetText("")
		mw.scaleLbl.SetText("")
		return
	}
	mw.zoomLabel.SetText(fmt.Sprintf("Zoom: %d%%", mw.state.Viewport().Percent()))
	mw.scaleLbl.SetText(fmt.Sprintf("Scale: %.2f px/mm", d.Calibration()))
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
}

// Menu action handlers

func (mw *MainWindow) onAddImages() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		mw.upload([]string{path})
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(imageio.SupportedExtensions()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// onDropped uploads every file dropped on the window.
func (mw *MainWindow) onDropped(_ fyne.Position, uris []fyne.URI) {
	paths := make([]string, 0, len(uris))
	for _, u := range uris {
		if u.Scheme() == "file" {
			paths = append(paths, u.Path())
		}
	}
	if len(paths) > 0 {
		mw.upload(paths)
	}
}

func (mw *MainWindow) upload(paths []string) {
	if _, err := mw.state.Upload(context.Background(), paths); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveCase() {
	if mw.state.Store() == nil {
		mw.updateStatus("No case store configured.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mw.state.SaveCase(ctx); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Case saved.")
}

func (mw *MainWindow) onExport(format string) {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		mw.saveLastDir(writer.URI().Path())
		if err := mw.state.Export(writer, format); err != nil {
			logging.For("ui").Error("export failed", "format", format, "error", err)
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName(mw.state.ReportFileName(format))
	fd.SetFilter(storage.NewExtensionFileFilter([]string{"." + format}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onUndo() {
	if sess := mw.state.Session(); sess != nil {
		sess.Undo()
	}
}

func (mw *MainWindow) onRedo() {
	if sess := mw.state.Session(); sess != nil {
		sess.Redo()
	}
}

func (mw *MainWindow) onClear() {
	if sess := mw.state.Session(); sess != nil {
		sess.Clear()
	}
}

func (mw *MainWindow) onCalibrate() {
	if sess := mw.state.Session(); sess != nil {
		sess.StartCalibration()
		return
	}
	mw.updateStatus("Select an image to calibrate.")
}

// onClose flushes pending saves and preferences before the window closes.
func (mw *MainWindow) onClose() {
	size := mw.Canvas().Size()
	mw.prefs.SetWindowSize(size.Width, size.Height)
	if err := mw.prefs.Save(); err != nil {
		logging.For("ui").Warn("failed to save preferences", "path", mw.prefs.Path(), "error", err)
	}
	if mw.autosaver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mw.autosaver.Stop(ctx); err != nil {
			logging.For("ui").Error("final save failed", "error", err)
		}
		cancel()
	}
	mw.Close()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Annotation and measurement of orthodontic images.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
