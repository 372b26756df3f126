package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/app"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/calibration"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/imageio"
	"ortho-annotator/internal/logging"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/internal/store"
	"ortho-annotator/pkg/geometry"
)

// openCase loads the case file at path. When create is set a missing file
// yields a new empty case.
func openCase(rc *runContext, path string, create bool) (*store.FileStore, *document.Case, error) {
	fs := store.NewFileStore(path)
	c, err := fs.Load(rc.ctx, sticker.NewCache(nil))
	if err != nil {
		if create && apperr.Is(err, apperr.NotFound) {
			return fs, document.NewCase(time.Now()), nil
		}
		return nil, nil, err
	}
	return fs, c, nil
}

// loadState opens the case file into an app state with decoded images.
func loadState(rc *runContext, path string) (*app.State, error) {
	s := app.NewState(app.WithStore(store.NewFileStore(path)))
	if err := s.LoadCase(rc.ctx); err != nil {
		return nil, err
	}
	if len(s.Case.Documents) == 0 {
		return nil, apperr.NewNotFound("open case", path)
	}
	return s, nil
}

// findDocument resolves ref as a document id, a 1-based index, a file name
// or a title.
func findDocument(c *document.Case, ref string) (*document.Document, error) {
	if d := c.Find(ref); d != nil {
		return d, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(c.Documents) {
		return c.Documents[n-1], nil
	}
	for _, d := range c.Documents {
		if d.FileName == ref || d.Analysis.Title == ref {
			return d, nil
		}
	}
	return nil, apperr.NewNotFound("find image", ref)
}

// parsePoint reads "x,y".
func parsePoint(s string) (geometry.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.Point{}, fmt.Errorf("point %q must be x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("point %q: bad x: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("point %q: bad y: %w", s, err)
	}
	return geometry.Pt(x, y), nil
}

func parsePoints(specs ...string) ([]geometry.Point, error) {
	pts := make([]geometry.Point, len(specs))
	for i, s := range specs {
		p, err := parsePoint(s)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	return pts, nil
}

type importCmd struct {
	Case   string   `arg:"" type:"path" help:"Case file."`
	Images []string `arg:"" help:"Images to add (jpeg, png, tiff, dicom)."`
	UseDPI bool     `name:"use-dpi" help:"Calibrate TIFF images from their resolution tags."`
}

func (c *importCmd) Run(rc *runContext) error {
	fs, kase, err := openCase(rc, c.Case, true)
	if err != nil {
		return err
	}

	results, err := imageio.LoadAll(rc.ctx, c.Images)
	if err != nil {
		return err
	}
	added := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(rc.out, "skipped %s: %v\n", r.Path, r.Err)
			continue
		}
		abs, err := filepath.Abs(r.Path)
		if err != nil {
			abs = r.Path
		}
		d := document.New(r.Decoded.Name, abs)
		d.SetImage(r.Decoded.Image)
		if ppm := r.Decoded.PixelsPerMm(); c.UseDPI && ppm > 0 {
			if err := d.SetCalibration(ppm); err != nil {
				return err
			}
		}
		kase.Add(d)
		added++
		fmt.Fprintf(rc.out, "added %s (%dx%d, %.2f px/mm) as %s\n",
			d.FileName, d.Dimensions.Width, d.Dimensions.Height, d.Calibration(), d.ID)
	}
	if added == 0 {
		return apperr.NewInvalid("import", "no valid image was loaded")
	}
	return fs.Save(rc.ctx, kase)
}

type listCmd struct {
	Case string `arg:"" type:"existingfile" help:"Case file."`
}

func (c *listCmd) Run(rc *runContext) error {
	_, kase, err := openCase(rc, c.Case, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "patient: %s  status: %s  analysed: %d/%d\n",
		kase.Info.PatientName, kase.Info.Status, kase.AnalysedCount(), len(kase.Documents))
	for i, d := range kase.Documents {
		active := " "
		if d.ID == kase.ActiveID {
			active = "*"
		}
		fmt.Fprintf(rc.out, "%s%2d  %-36s  %-24s  %3d annotation(s)  %.2f px/mm\n",
			active, i+1, d.ID, d.Analysis.Title, len(d.Annotations), d.Calibration())
	}
	return nil
}

type renderCmd struct {
	Case    string `arg:"" type:"existingfile" help:"Case file."`
	Doc     string `arg:"" help:"Image id, 1-based index, file name or title."`
	Out     string `arg:"" type:"path" help:"Output PNG."`
	MaxSide int    `default:"2048" help:"Longest side of the output in pixels."`
}

func (c *renderCmd) Run(rc *runContext) error {
	s, err := loadState(rc, c.Case)
	if err != nil {
		return err
	}
	d, err := findDocument(s.Case, c.Doc)
	if err != nil {
		return err
	}
	img, err := s.Thumbnail(d, c.MaxSide)
	if err != nil {
		return err
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return apperr.NewExportFailed("png", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return apperr.NewExportFailed("png", err)
	}
	logging.For("annotate").Info("rendered", "image", d.Name(), "out", c.Out)
	return f.Close()
}

type exportCmd struct {
	Case   string `arg:"" type:"existingfile" help:"Case file."`
	Out    string `arg:"" type:"path" help:"Output report; '-' writes to stdout."`
	Format string `enum:"auto,json,pdf" default:"auto" help:"Report format; auto picks from the output extension."`
}

func (c *exportCmd) format() string {
	if c.Format != "auto" {
		return c.Format
	}
	if strings.EqualFold(filepath.Ext(c.Out), ".pdf") {
		return app.FormatPDF
	}
	return app.FormatJSON
}

func (c *exportCmd) Run(rc *runContext) error {
	s, err := loadState(rc, c.Case)
	if err != nil {
		return err
	}
	if c.Out == "-" {
		return s.Export(rc.out, c.format())
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return apperr.NewExportFailed(c.format(), err)
	}
	defer f.Close()
	if err := s.Export(f, c.format()); err != nil {
		os.Remove(c.Out)
		return err
	}
	if err := f.Close(); err != nil {
		return apperr.NewExportFailed(c.format(), err)
	}
	fmt.Fprintln(rc.out, s.Status())
	return nil
}

type calibrateCmd struct {
	Case   string `arg:"" type:"existingfile" help:"Case file."`
	Doc    string `arg:"" help:"Image id, 1-based index, file name or title."`
	Start  string `arg:"" help:"Segment start in image pixels, as x,y."`
	End    string `arg:"" help:"Segment end in image pixels, as x,y."`
	Length string `arg:"" help:"Real length of the segment in millimetres."`
}

func (c *calibrateCmd) Run(rc *runContext) error {
	fs, kase, err := openCase(rc, c.Case, false)
	if err != nil {
		return err
	}
	d, err := findDocument(kase, c.Doc)
	if err != nil {
		return err
	}
	pts, err := parsePoints(c.Start, c.End)
	if err != nil {
		return apperr.NewInvalid("calibrate", err.Error())
	}
	factor, err := calibration.FactorFromAnswer(pts[0].Distance(pts[1]), c.Length)
	if err != nil {
		return err
	}
	if err := d.SetCalibration(factor); err != nil {
		return err
	}
	if err := fs.Save(rc.ctx, kase); err != nil {
		return err
	}
	fmt.Fprintf(rc.out, "Calibration updated: %.2f px/mm.\n", factor)
	return nil
}

type measureCmd struct {
	Ruler measureRulerCmd `cmd:"" help:"Distance between two points in millimetres."`
	Angle measureAngleCmd `cmd:"" help:"Interior angle at a vertex in degrees."`
}

// measurement is what the measure subcommands share.
type measurement struct {
	casePath string
	doc      string
	add      bool
	color    string
}

// record prints the built annotation and, when requested, commits it to the
// document.
func (m measurement) record(rc *runContext, build func(d *document.Document, st annotation.Style) (annotation.Annotation, error)) error {
	fs, kase, err := openCase(rc, m.casePath, false)
	if err != nil {
		return err
	}
	d, err := findDocument(kase, m.doc)
	if err != nil {
		return err
	}
	st := annotation.DefaultStyle()
	st.Color = m.color
	a, err := build(d, st)
	if err != nil {
		return err
	}
	fmt.Fprintln(rc.out, a.Text)
	if !m.add {
		return nil
	}
	if err := d.Add(a, nil); err != nil {
		return err
	}
	return fs.Save(rc.ctx, kase)
}

type measureRulerCmd struct {
	Case  string `arg:"" type:"existingfile" help:"Case file."`
	Doc   string `arg:"" help:"Image id, 1-based index, file name or title."`
	Start string `arg:"" help:"Start point in image pixels, as x,y."`
	End   string `arg:"" help:"End point in image pixels, as x,y."`
	Add   bool   `help:"Add the ruler to the image's annotations."`
	Color string `default:"#ffc800" help:"Annotation colour when adding."`
}

func (c *measureRulerCmd) Run(rc *runContext) error {
	pts, err := parsePoints(c.Start, c.End)
	if err != nil {
		return apperr.NewInvalid("measure", err.Error())
	}
	m := measurement{casePath: c.Case, doc: c.Doc, add: c.Add, color: c.Color}
	return m.record(rc, func(d *document.Document, st annotation.Style) (annotation.Annotation, error) {
		return annotation.NewRuler(st, pts[0], pts[1], d.Calibration())
	})
}

type measureAngleCmd struct {
	Case   string `arg:"" type:"existingfile" help:"Case file."`
	Doc    string `arg:"" help:"Image id, 1-based index, file name or title."`
	Vertex string `arg:"" help:"Vertex in image pixels, as x,y."`
	Arm1   string `arg:"" help:"End of the first arm, as x,y."`
	Arm2   string `arg:"" help:"End of the second arm, as x,y."`
	Add    bool   `help:"Add the angle to the image's annotations."`
	Color  string `default:"#ffc800" help:"Annotation colour when adding."`
}

func (c *measureAngleCmd) Run(rc *runContext) error {
	pts, err := parsePoints(c.Vertex, c.Arm1, c.Arm2)
	if err != nil {
		return apperr.NewInvalid("measure", err.Error())
	}
	m := measurement{casePath: c.Case, doc: c.Doc, add: c.Add, color: c.Color}
	return m.record(rc, func(_ *document.Document, st annotation.Style) (annotation.Annotation, error) {
		return annotation.NewAngle(st, pts[0], pts[1], pts[2])
	})
}
