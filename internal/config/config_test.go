package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ember.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
time_slice_ms: 10
apps:
  - name: p3
    builtin: power_3
  - name: script
    lua: scripts/hello.lua
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.TimeSliceMs != 10 {
		t.Fatalf("cfg = %+v, want debug level and 10ms slice", cfg)
	}
	if cfg.LogFormat != "text" || cfg.RegionBytes != 16*1024 {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if len(cfg.Apps) != 2 || cfg.Apps[0].Builtin != "power_3" {
		t.Fatalf("apps = %+v", cfg.Apps)
	}
	if want := filepath.Join(filepath.Dir(path), "scripts/hello.lua"); cfg.Apps[1].Lua != want {
		t.Fatalf("lua path = %q, want %q", cfg.Apps[1].Lua, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() error = %v, want ErrNotExist", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "apps: [")); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad level", func(c *Config) { c.LogLevel = "verbose" }},
		{"empty level", func(c *Config) { c.LogLevel = "" }},
		{"small region", func(c *Config) { c.RegionBytes = 100 }},
		{"unnamed app", func(c *Config) { c.Apps = []AppConfig{{Builtin: "hello"}} }},
		{"duplicate app", func(c *Config) {
			c.Apps = []AppConfig{{Name: "a", Builtin: "hello"}, {Name: "a", Builtin: "sleep"}}
		}},
		{"both sources", func(c *Config) { c.Apps = []AppConfig{{Name: "a", Builtin: "hello", Lua: "x.lua"}} }},
		{"no source", func(c *Config) { c.Apps = []AppConfig{{Name: "a"}} }},
		{"too many apps", func(c *Config) {
			for i := 0; i < 17; i++ {
				c.Apps = append(c.Apps, AppConfig{Name: string(rune('a' + i)), Builtin: "hello"})
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}
