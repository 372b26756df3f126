package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/logging"

	"github.com/jung-kurt/gofpdf"
)

// Thumbnailer renders the annotated image of a report entry. Returning a
// nil image skips the picture.
type Thumbnailer func(img ImageReport) (image.Image, error)

const (
	pageMargin = 15.0
	thumbMaxW  = 180.0
	thumbMaxH  = 110.0
	lineHeight = 6.0
)

// WritePDF writes rep as an A4 PDF with one page per image.
func WritePDF(w io.Writer, rep *Report, thumb Thumbnailer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr("Orthodontic report"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 11)
	info := rep.CaseInfo
	field(pdf, tr, "Patient", info.PatientName)
	field(pdf, tr, "Dentist", info.DentistName)
	field(pdf, tr, "Entry date", info.EntryDate)
	field(pdf, tr, "Status", string(info.Status))
	field(pdf, tr, "Images", fmt.Sprintf("%d", len(rep.Images)))

	for i, img := range rep.Images {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%d. %s", i+1, img.Title)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  %dx%d px  %.2f px/mm",
			img.FileName, img.OriginalDimensions.Width, img.OriginalDimensions.Height, img.CalibrationFactor)),
			"", 1, "L", false, 0, "")
		pdf.Ln(2)

		if thumb != nil {
			if err := placeThumbnail(pdf, fmt.Sprintf("image-%d", i), img, thumb); err != nil {
				logging.For("report").Warn("thumbnail skipped", "image", img.FileName, "error", err)
			}
		}

		pdf.SetFont("Helvetica", "", 11)
		field(pdf, tr, "Analysis type", string(img.AnalysisType))
		paragraph(pdf, tr, "Clinical observations", img.ClinicalObservations)
		paragraph(pdf, tr, "Diagnosis", img.Diagnosis)
		paragraph(pdf, tr, "Treatment plan", img.TreatmentPlan)
		field(pdf, tr, "Prognosis", string(img.Prognosis))
		paragraph(pdf, tr, "Recommendations", img.Recommendations)

		if ms := img.Measurements(); len(ms) > 0 {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, lineHeight, tr("Measurements"), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			for n, m := range ms {
				pdf.CellFormat(0, 5, tr(fmt.Sprintf("%d. %s: %s", n+1, m.Tool.Label(), m.Text)), "", 1, "L", false, 0, "")
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return apperr.NewExportFailed("pdf", err)
	}
	return nil
}

func placeThumbnail(pdf *gofpdf.Fpdf, name string, img ImageReport, thumb Thumbnailer) error {
	pic, err := thumb(img)
	if err != nil || pic == nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, pic); err != nil {
		return err
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)
	if err := pdf.Error(); err != nil {
		return err
	}

	b := pic.Bounds()
	w, h := fitBox(float64(b.Dx()), float64(b.Dy()), thumbMaxW, thumbMaxH)
	x := (210 - w) / 2
	pdf.ImageOptions(name, x, pdf.GetY(), w, h, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + h + 4)
	return nil
}

// fitBox scales w x h to fit inside maxW x maxH, keeping the aspect ratio.
func fitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	s := min(maxW/w, maxH/h)
	return w * s, h * s
}

func field(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		value = "-"
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(45, lineHeight, tr(label+":"), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, tr(value), "", 1, "L", false, 0, "")
}

func paragraph(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		field(pdf, tr, label, "")
		return
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, lineHeight, tr(label+":"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5, tr(value), "", "L", false)
}
