// Package main provides the entry point for the Ortho Annotator application.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/config"
	"ortho-annotator/internal/imagefilter"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/render"
	"ortho-annotator/internal/store"
	"ortho-annotator/internal/version"
	"ortho-annotator/ui/mainwindow"
	"ortho-annotator/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/gogpu/gg"
)

func main() {
	if _, err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewText(os.Stderr, cfg.LogLevel)
	logging.SetLogger(logger)
	gg.SetLogger(logger.With("component", "gg"))
	log := logging.For("main")
	log.Info("starting", "version", version.String(), "store", cfg.StoreBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("case store unavailable, changes will not be saved", "error", err)
		st = nil
	}

	renderer, err := render.New(render.WithFilter(imagefilter.OpenCV{}))
	if err != nil {
		log.Error("failed to create renderer", "error", err)
		os.Exit(1)
	}

	appPrefs := prefs.Load()
	defaults := annotation.Style{
		Color:       cfg.DefaultColor,
		StrokeWidth: cfg.DefaultStrokeWidth,
		Opacity:     cfg.DefaultOpacity,
	}
	opts := []app.Option{
		app.WithRenderer(renderer),
		app.WithTool(appPrefs.Tool(annotation.ToolPen)),
		app.WithStyle(appPrefs.Style(defaults)),
	}
	if st != nil {
		opts = append(opts, app.WithStore(st))
		defer st.Close()
	}
	state := app.NewState(opts...)

	fyneApp := fyneapp.NewWithID("com.ortho-annotator.app")
	fyneApp.Settings().SetTheme(&app.OrthoTheme{})

	win := mainwindow.New(fyneApp, state, appPrefs)

	if st != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := state.LoadCase(ctx); err != nil {
			log.Error("failed to load case", "error", err)
		}
		cancel()

		autosaver := state.Autosave(cfg.AutosaveDelay)
		autosaver.Start()
		win.SetAutosaver(autosaver)
	}

	win.ShowAndRun()
}
