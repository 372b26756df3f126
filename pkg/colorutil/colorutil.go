// Package colorutil parses the CSS colour strings stored on annotations and
// provides the annotation palette.
package colorutil

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Default colours.
const (
	DefaultAnnotation = "oklch(0.80 0.10 85)"
	CanvasBackground  = "oklch(0.12 0.03 250)"
)

// Fixed overlay colours used by the renderer.
var (
	Black             = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	White             = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	StickerPending    = color.NRGBA{R: 200, G: 200, B: 0, A: 77}
	StickerFailed     = color.NRGBA{R: 255, G: 0, B: 0, A: 77}
	LoadingBackdrop   = color.NRGBA{R: 100, G: 100, B: 100, A: 128}
	fallbackHighlight = color.NRGBA{R: 255, G: 215, B: 0, A: 255}
)

// Swatch is a named palette entry.
type Swatch struct {
	Name  string
	Value string
}

// Palette is the set of colours offered by the tool settings.
var Palette = []Swatch{
	{Name: "Gold", Value: "oklch(0.80 0.10 85)"},
	{Name: "Strong red", Value: "oklch(0.70 0.22 25)"},
	{Name: "Bright green", Value: "oklch(0.70 0.20 130)"},
	{Name: "Bright blue", Value: "oklch(0.70 0.18 260)"},
	{Name: "Light grey", Value: "oklch(0.92 0.01 240)"},
	{Name: "Magenta", Value: "oklch(0.75 0.15 300)"},
	{Name: "Cyan", Value: "oklch(0.80 0.15 200)"},
	{Name: "Dark grey", Value: "oklch(0.4 0.01 250)"},
}

var named = map[string]color.NRGBA{
	"black":       Black,
	"white":       White,
	"red":         {R: 255, A: 255},
	"green":       {G: 128, A: 255},
	"blue":        {B: 255, A: 255},
	"yellow":      {R: 255, G: 255, A: 255},
	"transparent": {},
}

// Parse converts a CSS colour string into an NRGBA value.
// Supported forms are #rgb, #rrggbb, rgb(), rgba(), oklch() and a few names.
func Parse(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty colour")
	}
	if c, ok := named[s]; ok {
		return c, nil
	}

	switch {
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return toNRGBA(c, 1), nil
	case strings.HasPrefix(s, "rgb"):
		args, err := funcArgs(s, "rgba", "rgb")
		if err != nil {
			return color.NRGBA{}, err
		}
		if len(args) < 3 {
			return color.NRGBA{}, fmt.Errorf("parse %q: want 3 channels", s)
		}
		var ch [3]float64
		for i := 0; i < 3; i++ {
			v, err := number(args[i], 255)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
			}
			ch[i] = v / 255
		}
		alpha, err := alphaArg(args, 3)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return toNRGBA(colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, alpha), nil
	case strings.HasPrefix(s, "oklch"):
		args, err := funcArgs(s, "oklch")
		if err != nil {
			return color.NRGBA{}, err
		}
		if len(args) < 3 {
			return color.NRGBA{}, fmt.Errorf("parse %q: want L C H", s)
		}
		l, err := number(args[0], 1)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		c, err := number(args[1], 0.4)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		h, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "deg"), 64)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		alpha, err := alphaArg(args, 3)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return toNRGBA(colorful.OkLch(l, c, h), alpha), nil
	}
	return color.NRGBA{}, fmt.Errorf("unsupported colour %q", s)
}

// MustParse is like Parse but falls back to a visible highlight colour.
func MustParse(s string) color.NRGBA {
	c, err := Parse(s)
	if err != nil {
		return fallbackHighlight
	}
	return c
}

// Hex formats a colour as #rrggbb, dropping alpha.
func Hex(c color.Color) string {
	cf, _ := colorful.MakeColor(opaque(c))
	return cf.Hex()
}

func opaque(c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

func toNRGBA(c colorful.Color, alpha float64) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(clamp01(alpha) * 255))}
}

// funcArgs splits "name(a b c / d)" or "name(a, b, c, d)" into its arguments.
func funcArgs(s string, names ...string) ([]string, error) {
	body := ""
	for _, n := range names {
		if strings.HasPrefix(s, n+"(") && strings.HasSuffix(s, ")") {
			body = s[len(n)+1 : len(s)-1]
			break
		}
	}
	if body == "" {
		return nil, fmt.Errorf("malformed colour %q", s)
	}
	body = strings.NewReplacer(",", " ", "/", " ").Replace(body)
	return strings.Fields(body), nil
}

// number parses a plain or percentage value; percentages are relative to full.
func number(s string, full float64) (float64, error) {
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return v / 100 * full, nil
	}
	return strconv.ParseFloat(s, 64)
}

func alphaArg(args []string, idx int) (float64, error) {
	if len(args) <= idx {
		return 1, nil
	}
	return number(args[idx], 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
