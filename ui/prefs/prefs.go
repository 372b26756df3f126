// Package prefs provides JSON-based application preferences.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"ortho-annotator/internal/annotation"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyTool         = "tool"
	KeyColor        = "color"
	KeyStrokeWidth  = "strokeWidth"
	KeyOpacity      = "opacity"
	KeyWindowWidth  = "windowWidth"
	KeyWindowHeight = "windowHeight"
	KeyLastDir      = "lastDir"
)

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from ~/.config/ortho-annotator/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(configDir, "ortho-annotator", prefsFile))
}

// LoadFrom reads preferences from path. An unreadable or corrupt file
// yields empty preferences that will be written back to path.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(data, &p.values); err != nil || p.values == nil {
		p.values = make(map[string]interface{})
	}
	return p
}

// Path returns the file the preferences are saved to.
func (p *Prefs) Path() string { return p.path }

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Float returns a float64 preference, or 0 if not set.
func (p *Prefs) Float(key string) float64 {
	return p.FloatWithFallback(key, 0)
}

// FloatWithFallback returns a float64 preference, or fallback if not set.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Bool returns a bool preference, or fallback if not set.
func (p *Prefs) Bool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.values[key].(bool); ok {
		return b
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Tool returns the last selected tool, or fallback if none or unknown.
func (p *Prefs) Tool(fallback annotation.Tool) annotation.Tool {
	t, err := annotation.ParseTool(p.String(KeyTool))
	if err != nil {
		return fallback
	}
	return t
}

// SetTool remembers the selected tool.
func (p *Prefs) SetTool(t annotation.Tool) {
	p.SetString(KeyTool, string(t))
}

// Style returns the remembered tool settings. Fields that are missing or out
// of range take the value from fallback.
func (p *Prefs) Style(fallback annotation.Style) annotation.Style {
	s := fallback
	if c := p.String(KeyColor); c != "" {
		s.Color = c
	}
	if w := p.Float(KeyStrokeWidth); w > 0 {
		s.StrokeWidth = w
	}
	if o := p.FloatWithFallback(KeyOpacity, -1); o >= 0 && o <= 1 {
		s.Opacity = o
	}
	return s
}

// SetStyle remembers the tool settings.
func (p *Prefs) SetStyle(s annotation.Style) {
	p.mu.Lock()
	p.values[KeyColor] = s.Color
	p.values[KeyStrokeWidth] = s.StrokeWidth
	p.values[KeyOpacity] = s.Opacity
	p.mu.Unlock()
}

// WindowSize returns the remembered window size, or the fallback.
func (p *Prefs) WindowSize(fallbackW, fallbackH float32) (float32, float32) {
	w := p.Float(KeyWindowWidth)
	h := p.Float(KeyWindowHeight)
	if w < 200 || h < 200 {
		return fallbackW, fallbackH
	}
	return float32(w), float32(h)
}

// SetWindowSize remembers the window size.
func (p *Prefs) SetWindowSize(w, h float32) {
	p.mu.Lock()
	p.values[KeyWindowWidth] = float64(w)
	p.values[KeyWindowHeight] = float64(h)
	p.mu.Unlock()
}
