package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ORTHO_STORE", "")
	t.Setenv("ORTHO_AUTOSAVE_MS", "")
	t.Setenv("ORTHO_DEFAULT_STROKE_WIDTH", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoreBackend != BackendFile {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.AutosaveDelay != 2500*time.Millisecond {
		t.Errorf("AutosaveDelay = %v", cfg.AutosaveDelay)
	}
	if cfg.DefaultStrokeWidth != 2 || cfg.DefaultOpacity != 1 {
		t.Errorf("tool defaults = %v/%v", cfg.DefaultStrokeWidth, cfg.DefaultOpacity)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ORTHO_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("ORTHO_DEFAULT_STROKE_WIDTH", "4.5")
	t.Setenv("ORTHO_AUTOSAVE_MS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoreBackend != BackendRedis || cfg.RedisURL != "redis://cache:6379/2" {
		t.Errorf("redis settings not applied: %+v", cfg)
	}
	if cfg.DefaultStrokeWidth != 4.5 {
		t.Errorf("DefaultStrokeWidth = %v", cfg.DefaultStrokeWidth)
	}
	if cfg.AutosaveDelay != 2500*time.Millisecond {
		t.Errorf("bad integer should fall back to default, got %v", cfg.AutosaveDelay)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreBackend:       BackendFile,
		StorePath:          "case.json",
		DefaultColor:       "#ffcc00",
		DefaultStrokeWidth: 2,
		DefaultOpacity:     1,
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "s3" }},
		{"missing path", func(c *Config) { c.StorePath = "" }},
		{"bad colour", func(c *Config) { c.DefaultColor = "nope" }},
		{"zero width", func(c *Config) { c.DefaultStrokeWidth = 0 }},
		{"opacity above one", func(c *Config) { c.DefaultOpacity = 1.5 }},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	ok, err := LoadDotEnv(filepath.Join(dir, "missing.env"))
	if err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}

	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("ORTHO_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORTHO_TEST_DOTENV", "")
	os.Unsetenv("ORTHO_TEST_DOTENV")

	ok, err = LoadDotEnv(path)
	if err != nil || !ok {
		t.Fatalf("LoadDotEnv: ok=%v err=%v", ok, err)
	}
	if got := os.Getenv("ORTHO_TEST_DOTENV"); got != "loaded" {
		t.Errorf("ORTHO_TEST_DOTENV = %q", got)
	}
}
