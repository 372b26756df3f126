package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// OrthoTheme darkens the chrome around the image so radiographs read well.
type OrthoTheme struct{}

var _ fyne.Theme = (*OrthoTheme)(nil)

func (t *OrthoTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0xD4, G: 0xA8, B: 0x4B, A: 0xFF} // matches the default annotation gold
	case theme.ColorNameBackground:
		return color.NRGBA{R: 0x14, G: 0x19, B: 0x22, A: 0xFF}
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xD4, G: 0xA8, B: 0x4B, A: 0x60}
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *OrthoTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *OrthoTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *OrthoTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}
