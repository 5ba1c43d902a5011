package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ember/internal/logging"
	"ember/kernel"
	"ember/user"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// AppConfig names one app to load. Exactly one of Builtin and Lua is set.
type AppConfig struct {
	Name    string `yaml:"name"`
	Builtin string `yaml:"builtin,omitempty"` // builtin image name, see `ember apps`
	Lua     string `yaml:"lua,omitempty"`     // path to a Lua script
}

// Config is the boot manifest.
type Config struct {
	LogLevel    string      `yaml:"log_level"`     // debug, info, warn, error
	LogFormat   string      `yaml:"log_format"`    // text, json
	TimeSliceMs uint64      `yaml:"time_slice_ms"` // 0 disables preemption at syscall return
	RegionBytes int         `yaml:"region_bytes"`  // user memory per app
	AcctPath    string      `yaml:"acct_path"`     // sqlite accounting journal, empty disables it
	Apps        []AppConfig `yaml:"apps"`          // empty boots the default set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		RegionBytes: 16 * 1024,
	}
}

// Load reads the YAML manifest at path over the defaults. Relative Lua paths
// are resolved against the manifest's directory.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range cfg.Apps {
		if p := cfg.Apps[i].Lua; p != "" && !filepath.IsAbs(p) {
			cfg.Apps[i].Lua = filepath.Join(dir, p)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the manifest.
func (c Config) Validate() error {
	if _, ok := logging.LookupLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if c.RegionBytes < user.MinRegionSize {
		return fmt.Errorf("%w: region_bytes %d below %d", ErrInvalid, c.RegionBytes, user.MinRegionSize)
	}
	if len(c.Apps) > kernel.MaxAppNum {
		return fmt.Errorf("%w: %d apps, at most %d", ErrInvalid, len(c.Apps), kernel.MaxAppNum)
	}

	seen := make(map[string]bool, len(c.Apps))
	for i, a := range c.Apps {
		if a.Name == "" {
			return fmt.Errorf("%w: apps[%d] has no name", ErrInvalid, i)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: duplicate app %q", ErrInvalid, a.Name)
		}
		seen[a.Name] = true
		if (a.Builtin == "") == (a.Lua == "") {
			return fmt.Errorf("%w: app %q needs exactly one of builtin and lua", ErrInvalid, a.Name)
		}
	}
	return nil
}
