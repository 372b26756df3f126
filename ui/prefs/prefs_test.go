package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"ortho-annotator/internal/annotation"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p := LoadFrom(path)
	p.SetTool(annotation.ToolRuler)
	p.SetStyle(annotation.Style{Color: "#00ff00", StrokeWidth: 4, Opacity: 0.5})
	p.SetWindowSize(1024, 700)
	p.SetBool("flag", true)
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}

	q := LoadFrom(path)
	if q.Tool(annotation.ToolPen) != annotation.ToolRuler {
		t.Errorf("tool = %v", q.Tool(annotation.ToolPen))
	}
	want := annotation.Style{Color: "#00ff00", StrokeWidth: 4, Opacity: 0.5}
	if got := q.Style(annotation.DefaultStyle()); got != want {
		t.Errorf("style = %+v, want %+v", got, want)
	}
	if w, h := q.WindowSize(800, 600); w != 1024 || h != 700 {
		t.Errorf("window = %vx%v", w, h)
	}
	if !q.Bool("flag", false) {
		t.Error("bool lost")
	}
}

func TestFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := LoadFrom(path)
	if p.Tool(annotation.ToolLine) != annotation.ToolLine {
		t.Error("corrupt file should fall back")
	}

	p.SetString(KeyTool, "laser")
	p.SetFloat(KeyOpacity, 3)
	p.SetFloat(KeyStrokeWidth, -1)
	if p.Tool(annotation.ToolLine) != annotation.ToolLine {
		t.Error("unknown tool should fall back")
	}
	def := annotation.DefaultStyle()
	if got := p.Style(def); got != def {
		t.Errorf("out-of-range style = %+v", got)
	}
	if w, h := p.WindowSize(800, 600); w != 800 || h != 600 {
		t.Errorf("window = %vx%v", w, h)
	}
}
