// Package calibration converts image pixel distances to millimetres.
package calibration

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ortho-annotator/internal/apperr"
)

// DefaultFactor is the pixels-per-millimetre factor of a new document.
const DefaultFactor = 10.0

// Valid reports whether factor can be used for conversion.
func Valid(factor float64) bool {
	return factor > 0 && !math.IsInf(factor, 0) && !math.IsNaN(factor)
}

// MmDistance converts a pixel distance with the given factor. An unusable
// factor falls back to DefaultFactor.
func MmDistance(pixels, factor float64) float64 {
	if !Valid(factor) {
		factor = DefaultFactor
	}
	return pixels / factor
}

// FormatMm renders a millimetre value the way ruler labels show it.
func FormatMm(mm float64) string {
	return fmt.Sprintf("%.1f mm", mm)
}

// Suggest returns the millimetre value offered as the default answer when
// asking for the true length of a measured segment.
func Suggest(pixels, factor float64) string {
	return fmt.Sprintf("%.1f", MmDistance(pixels, factor))
}

// Prompt is the question shown for a measured segment.
func Prompt(pixels float64) string {
	return fmt.Sprintf("Distance in pixels: %.2f. Enter the real length in mm:", pixels)
}

// FactorFromAnswer parses the user's millimetre answer for a segment of the
// given pixel length and returns the new factor. Empty, non-numeric and
// non-positive answers are rejected.
func FactorFromAnswer(pixels float64, answer string) (float64, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, apperr.NewInvalid("calibrate", "no length entered")
	}
	mm, err := strconv.ParseFloat(answer, 64)
	if err != nil || math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 0, apperr.NewInvalid("calibrate", fmt.Sprintf("%q is not a number", answer))
	}
	if mm <= 0 {
		return 0, apperr.NewInvalid("calibrate", "length must be positive")
	}
	if pixels <= 0 {
		return 0, apperr.NewInvalid("calibrate", "the two points coincide")
	}
	return pixels / mm, nil
}
