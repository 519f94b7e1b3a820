package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Reference policies for deletes that would leave dangling ids.
const (
	PolicyReject  = "reject"
	PolicyCascade = "cascade"
	PolicyLeave   = "leave"
)

// Config models mpproj.yml.
type Config struct {
	Storage struct {
		Driver     string `yaml:"driver"`
		QuotaBytes int64  `yaml:"quota_bytes"`
	} `yaml:"storage"`
	History struct {
		Depth int `yaml:"depth"`
	} `yaml:"history"`
	Snapshots struct {
		Limit int `yaml:"limit"`
	} `yaml:"snapshots"`
	Autosave struct {
		Enabled  bool     `yaml:"enabled"`
		Interval Duration `yaml:"interval"`
	} `yaml:"autosave"`
	References struct {
		Policy string `yaml:"policy"`
	} `yaml:"references"`
	Archive struct {
		Platform string `yaml:"platform"`
	} `yaml:"archive"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Duration reads values such as "10m" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with mpp init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "fs":
	default:
		return fmt.Errorf("config.storage.driver must be memory, sqlite or fs, got %q", c.Storage.Driver)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("config.storage.quota_bytes must not be negative")
	}
	if c.History.Depth < 1 {
		return fmt.Errorf("config.history.depth must be at least 1")
	}
	if c.Snapshots.Limit < 1 {
		return fmt.Errorf("config.snapshots.limit must be at least 1")
	}
	if c.Autosave.Enabled && c.Autosave.Interval.Std() < time.Second {
		return fmt.Errorf("config.autosave.interval must be at least 1s")
	}
	switch c.References.Policy {
	case PolicyReject, PolicyCascade, PolicyLeave:
	default:
		return fmt.Errorf("config.references.policy must be reject, cascade or leave, got %q", c.References.Policy)
	}
	switch c.Archive.Platform {
	case "", "Windows", "macOS", "Linux", "Web":
	default:
		return fmt.Errorf("config.archive.platform %q is not a known platform", c.Archive.Platform)
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("config.log.level %q is not a known level", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config.log.format must be console or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "mpproj.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys the file
// omits keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `storage:
  # memory | sqlite | fs
  driver: sqlite
  # 0 disables the quota
  quota_bytes: 0

history:
  depth: 50

snapshots:
  limit: 50

autosave:
  enabled: true
  interval: 10m

references:
  # reject | cascade | leave
  policy: reject

archive:
  # empty records the host platform
  platform: ""

log:
  level: info
  format: console
`
