// Command annotate edits and exports annotation cases without the GUI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"ortho-annotator/internal/config"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/version"

	"github.com/alecthomas/kong"
)

// runContext is bound into every command's Run method.
type runContext struct {
	ctx context.Context
	out io.Writer
}

type cli struct {
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn" env:"ORTHO_LOG_LEVEL"`

	Import    importCmd    `cmd:"" help:"Add images to a case file, creating it if needed."`
	Render    renderCmd    `cmd:"" help:"Render an annotated image of a case to PNG."`
	Export    exportCmd    `cmd:"" help:"Export the case report as JSON or PDF."`
	Calibrate calibrateCmd `cmd:"" help:"Set the scale of an image from a segment of known length."`
	Measure   measureCmd   `cmd:"" help:"Measure a distance or an angle on an image."`
	List      listCmd      `cmd:"" help:"List the images of a case."`
	Version   versionCmd   `cmd:"" help:"Print version information."`
}

func main() {
	if _, err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	var args cli
	kctx := kong.Parse(&args,
		kong.Name("annotate"),
		kong.Description("Scripted access to ortho-annotator cases."),
		kong.UsageOnError(),
	)
	logging.SetLogger(logging.NewText(os.Stderr, args.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := kctx.Run(&runContext{ctx: ctx, out: os.Stdout})
	kctx.FatalIfErrorf(err)
}

type versionCmd struct{}

func (c *versionCmd) Run(rc *runContext) error {
	_, err := fmt.Fprintln(rc.out, version.String())
	return err
}
