package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"
	"time"

	"ortho-annotator/internal/annotation"
	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/document"
	"ortho-annotator/internal/sticker"
	"ortho-annotator/pkg/geometry"
)

func exportCase(t *testing.T) *document.Case {
	t.Helper()
	c := document.NewCase(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	c.Info.PatientName = "João da Silva"
	c.Info.DentistName = "Dr. Reis"

	d := document.New("lateral.png", "/x/lateral.png")
	d.SetImage(image.NewGray(image.Rect(0, 0, 120, 80)))
	d.Analysis.Type = document.AnalysisLateral
	d.Analysis.Diagnosis = "Class II"
	d.Analysis.Prognosis = document.PrognosisGood

	ruler, err := annotation.NewRuler(annotation.DefaultStyle(), geometry.Pt(0, 0), geometry.Pt(30, 40), d.Calibration())
	if err != nil {
		t.Fatal(err)
	}
	angle, err := annotation.NewAngle(annotation.DefaultStyle(), geometry.Pt(0, 0), geometry.Pt(10, 0), geometry.Pt(0, 10))
	if err != nil {
		t.Fatal(err)
	}
	st, err := annotation.NewSticker(annotation.DefaultStyle(), geometry.Pt(5, 5), sticker.Bracket)
	if err != nil {
		t.Fatal(err)
	}
	st.Sticker = sticker.NewReadyHandle(sticker.Bracket, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	for _, a := range []annotation.Annotation{ruler, angle, st} {
		if err := d.Add(a, nil); err != nil {
			t.Fatal(err)
		}
	}
	c.Add(d)
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		patient string
		docs    int
		wantErr bool
	}{
		{"both missing", "", 0, true},
		{"no name", "  ", 1, true},
		{"no images", "Ana", 0, true},
		{"ok", "Ana", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := document.NewCase(time.Now())
			c.Info.PatientName = tt.patient
			for i := 0; i < tt.docs; i++ {
				c.Add(document.New("a.png", "a.png"))
			}
			err := Validate(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperr.Is(err, apperr.Invalid) {
				t.Errorf("error code = %q", apperr.CodeOf(err))
			}
		})
	}
}

func TestBuild(t *testing.T) {
	c := exportCase(t)
	rep, err := Build(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Images) != 1 {
		t.Fatalf("images = %d", len(rep.Images))
	}
	img := rep.Images[0]
	if img.Title != "lateral" || img.AnalysisType != document.AnalysisLateral || img.CalibrationFactor != 10 {
		t.Errorf("unexpected entry %+v", img)
	}
	if img.OriginalDimensions != (document.Dimensions{Width: 120, Height: 80}) {
		t.Errorf("dimensions = %v", img.OriginalDimensions)
	}
	for _, a := range img.Annotations {
		if a.Sticker != nil {
			t.Error("report kept a sticker handle")
		}
	}
	ms := img.Measurements()
	if len(ms) != 2 || ms[0].Text != "5.0 mm" || ms[1].Text != "90.0°" {
		t.Errorf("measurements = %+v", ms)
	}
	// The case itself keeps its handle.
	if c.Documents[0].Annotations[2].Sticker == nil {
		t.Error("Build stripped the live case")
	}
}

func TestWriteJSON(t *testing.T) {
	rep, err := Build(exportCase(t))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	info := raw["caseInfo"].(map[string]any)
	if info["patientName"] != "João da Silva" || info["caseStatus"] != "pending" {
		t.Errorf("caseInfo = %v", info)
	}
	images := raw["images"].([]any)
	first := images[0].(map[string]any)
	for _, key := range []string{"fileName", "title", "analysisType", "diagnosis", "originalDimensions", "annotations", "calibrationFactor"} {
		if _, ok := first[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := first["ID"]; ok {
		t.Error("internal id exported")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"João da Silva": "ortho_report_jo_o_da_silva.json",
		"ANA":           "ortho_report_ana.json",
		"":              "ortho_report_case.json",
	}
	for in, want := range tests {
		if got := FileName(in, ".json"); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWritePDF(t *testing.T) {
	rep, err := Build(exportCase(t))
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	thumb := func(img ImageReport) (image.Image, error) {
		calls++
		pic := image.NewRGBA(image.Rect(0, 0, 60, 40))
		pic.Set(3, 3, color.White)
		return pic, nil
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, rep, thumb); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-") {
		t.Error("output is not a PDF")
	}
	if calls != 1 {
		t.Errorf("thumbnailer called %d times", calls)
	}

	// A failing thumbnailer only drops the picture.
	buf.Reset()
	failing := func(ImageReport) (image.Image, error) { return nil, errors.New("no image") }
	if err := WritePDF(&buf, rep, failing); err != nil {
		t.Fatalf("WritePDF with failing thumbnails: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty PDF")
	}
}

func TestFitBox(t *testing.T) {
	w, h := fitBox(400, 200, 180, 110)
	if math.Abs(w-180) > 1e-9 || math.Abs(h-90) > 1e-9 {
		t.Errorf("wide: %v x %v", w, h)
	}
	w, h = fitBox(100, 400, 180, 110)
	if math.Abs(h-110) > 1e-9 || math.Abs(w-27.5) > 1e-9 {
		t.Errorf("tall: %v x %v", w, h)
	}
	if w, h := fitBox(0, 10, 1, 1); w != 0 || h != 0 {
		t.Error("empty image should fit to zero")
	}
}
