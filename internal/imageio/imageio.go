// Package imageio decides which uploaded files are diagnostic images and
// decodes them.
package imageio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"ortho-annotator/internal/apperr"
	"ortho-annotator/internal/logging"
	"ortho-annotator/pkg/geometry"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	_ "golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"
)

// Format is a decodable image format.
type Format string

const (
	JPEG  Format = "jpeg"
	PNG   Format = "png"
	TIFF  Format = "tiff"
	DICOM Format = "dicom"
)

var mimeFormats = map[string]Format{
	"image/jpeg":        JPEG,
	"image/png":         PNG,
	"image/tiff":        TIFF,
	"image/dicom":       DICOM,
	"application/dicom": DICOM,
}

var extFormats = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".tif":  TIFF,
	".tiff": TIFF,
	".dcm":  DICOM,
}

// FormatOf classifies a file by MIME type, falling back to its extension.
func FormatOf(name, mimeType string) (Format, bool) {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		if f, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return f, true
		}
	}
	f, ok := extFormats[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Accepts reports whether a file would be taken by an upload.
func Accepts(name, mimeType string) bool {
	_, ok := FormatOf(name, mimeType)
	return ok
}

// SupportedExtensions returns the extensions offered in file dialogs.
func SupportedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".dcm"}
}

// FileFilter returns a file filter string for use in file dialogs.
func FileFilter() string {
	return "Images (*.jpg, *.jpeg, *.png, *.tif, *.tiff, *.dcm)"
}

// Decoded is a decoded upload.
type Decoded struct {
	Path   string
	Name   string
	Format Format
	Image  image.Image
	DPI    float64 // from TIFF resolution tags, 0 when unknown
}

// Size returns the image dimensions in pixels.
func (d *Decoded) Size() geometry.Size {
	if d.Image == nil {
		return geometry.Size{}
	}
	b := d.Image.Bounds()
	return geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
}

// PixelsPerMm converts the TIFF resolution into a calibration factor.
// It returns 0 when the file carried no resolution.
func (d *Decoded) PixelsPerMm() float64 {
	return d.DPI / 25.4
}

// Decode reads one file's bytes and decodes them according to its format.
func Decode(r io.Reader, name, mimeType string) (*Decoded, error) {
	format, ok := FormatOf(name, mimeType)
	if !ok {
		return nil, apperr.NewUnsupportedFormat(name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.NewDecodeFailed(name, err)
	}

	d := &Decoded{Name: filepath.Base(name), Format: format}
	switch format {
	case DICOM:
		d.Image, err = decodeDICOM(data)
	default:
		d.Image, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, apperr.NewDecodeFailed(name, err)
	}

	if format == TIFF {
		if dpi, err := extractTIFFDPI(bytes.NewReader(data)); err == nil {
			d.DPI = dpi
		}
	}
	return d, nil
}

// Load decodes the image at path.
func Load(path string) (*Decoded, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperr.NewDecodeFailed(path, fmt.Errorf("failed to open image: %w", err))
	}
	defer file.Close()

	d, err := Decode(file, path, mime.TypeByExtension(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, nil
}

// Result is the outcome of loading one path in LoadAll.
type Result struct {
	Path    string
	Decoded *Decoded
	Err     error
}

// LoadAll decodes paths in parallel, at most one per CPU. Results keep the
// order of paths;
// per-file failures are reported in Result.Err and do not stop the others.
func LoadAll(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		results[i].Path = p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := Load(p)
			if err != nil {
				logging.For("imageio").Warn("image rejected", "path", p, "error", err)
			}
			results[i].Decoded, results[i].Err = d, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeDICOM(data []byte) (image.Image, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DICOM: %w", err)
	}
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("DICOM has no pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, errors.New("DICOM has no frames")
	}
	fr := info.Frames[0]
	img, err := fr.GetImage()
	if err != nil {
		return nil, fmt.Errorf("failed to read DICOM frame: %w", err)
	}
	return normalize(img), nil
}

// normalize stretches 16-bit greyscale to the full 8-bit range. Radiographs
// rarely use the full 16-bit range and would otherwise display nearly black.
func normalize(img image.Image) image.Image {
	g16, ok := img.(*image.Gray16)
	if !ok {
		return img
	}
	b := g16.Bounds()
	lo, hi := uint16(0xffff), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g16.Gray16At(x, y).Y
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if hi <= lo {
		draw.Draw(out, out.Bounds(), g16, b.Min, draw.Src)
		return out
	}
	span := float64(hi - lo)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g16.Gray16At(x, y).Y
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = uint8(float64(v-lo)/span*255 + 0.5)
		}
	}
	return out
}

// extractTIFFDPI reads the resolution tags of the first IFD.
func extractTIFFDPI(r io.ReadSeeker) (float64, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := r.Seek(int64(ifdOffset), io.SeekStart); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(r, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // inches

	entry := make([]byte, 12)
	for i := uint16(0); i < numEntries; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return 0, err
		}

		tagID := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueOffset := byteOrder.Uint32(entry[8:12])

		switch tagID {
		case 282: // XResolution
			if fieldType == 5 {
				xRes = readTIFFRational(r, int64(valueOffset), byteOrder)
			}
		case 283: // YResolution
			if fieldType == 5 {
				yRes = readTIFFRational(r, int64(valueOffset), byteOrder)
			}
		case 296: // ResolutionUnit
			if fieldType == 3 {
				resUnit = byteOrder.Uint16(entry[8:10])
			}
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if dpi == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}
	if resUnit == 3 {
		dpi *= 2.54
	}
	return dpi, nil
}

// readTIFFRational reads a RATIONAL at offset and restores the read position.
func readTIFFRational(r io.ReadSeeker, offset int64, byteOrder binary.ByteOrder) float64 {
	current, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	defer r.Seek(current, io.SeekStart)

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0
	}
	var num, denom uint32
	if binary.Read(r, byteOrder, &num) != nil || binary.Read(r, byteOrder, &denom) != nil || denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
