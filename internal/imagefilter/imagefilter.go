// Package imagefilter applies the viewer's brightness and contrast
// adjustment to decoded images with OpenCV.
package imagefilter

import (
	"fmt"
	"image"
	"image/draw"

	"ortho-annotator/internal/viewport"

	"gocv.io/x/gocv"
)

// Coefficients returns the linear transform out = alpha*v + beta that
// brightness followed by contrast apply to a channel value v.
func Coefficients(f viewport.Filters) (alpha, beta float64) {
	b := float64(f.Brightness) / 100
	c := float64(f.Contrast) / 100
	return c * b, 127.5 * (1 - c)
}

// OpenCV is a render filter backed by gocv.
type OpenCV struct{}

// Apply returns a filtered opaque copy of img. Neutral filters return img.
func (OpenCV) Apply(img image.Image, f viewport.Filters) (image.Image, error) {
	f = f.Clamp()
	if f.Neutral() {
		return img, nil
	}
	return Apply(img, f)
}

// Apply runs the linear transform for f over every colour channel of img.
func Apply(img image.Image, f viewport.Filters) (*image.RGBA, error) {
	src, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	alpha, beta := Coefficients(f)
	adjusted := gocv.NewMat()
	defer adjusted.Close()
	src.ConvertToWithParams(&adjusted, gocv.MatTypeCV8UC3, float32(alpha), float32(beta))

	return matToImage(adjusted)
}

func imageToMat(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to wrap image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

func matToImage(mat gocv.Mat) (*image.RGBA, error) {
	rgba := gocv.NewMat()
	defer rgba.Close()
	gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA)

	out := image.NewRGBA(image.Rect(0, 0, rgba.Cols(), rgba.Rows()))
	pix := rgba.ToBytes()
	if len(pix) != len(out.Pix) {
		return nil, fmt.Errorf("unexpected filtered image size %d, want %d", len(pix), len(out.Pix))
	}
	copy(out.Pix, pix)
	return out, nil
}
