package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory.
const FileName = "classpath-changes.toml"

// EnvPrefix prefixes environment overrides, e.g. CLASSPATH_CHANGES_PARALLELISM=8.
const EnvPrefix = "CLASSPATH_CHANGES_"

// Config holds all configuration for the application
type Config struct {
	Classpath   []string `koanf:"classpath"`
	Previous    string   `koanf:"previous"`
	Output      string   `koanf:"output"`
	Scratch     string   `koanf:"scratch"`
	Parallelism int      `koanf:"parallelism"`
	Format      string   `koanf:"format"`
	Watch       bool     `koanf:"watch"`
	Full        bool     `koanf:"full"`
	NoSnapshot  bool     `koanf:"no-snapshot"`
	LogJSON     bool     `koanf:"log-json"`
	Quiet       bool     `koanf:"quiet"`
	Color       bool     `koanf:"color"`
	Verbosity   string   `koanf:"verbosity"`
	VerboseCnt  int      `koanf:"verbose"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"classpath":   []string{},
		"previous":    "",
		"output":      "",
		"scratch":     os.TempDir(),
		"parallelism": 4,
		"format":      "text",
		"watch":       false,
		"full":        false,
		"no-snapshot": false,
		"log-json":    false,
		"quiet":       false,
		"color":       true,
		"verbosity":   "",
		"verbose":     0,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(FileName, f)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file (optional); a missing file is fine, a broken one is not
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	// CLASSPATH_CHANGES_CLASSPATH is split on the OS path list separator
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "classpath" {
			return key, splitClasspath(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed as flag types.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q (want text or json)", c.Format)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.Watch && c.NoSnapshot {
		return fmt.Errorf("watch mode needs classpath snapshots")
	}
	return nil
}

func splitClasspath(value string) []string {
	var out []string
	for _, p := range strings.Split(value, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
