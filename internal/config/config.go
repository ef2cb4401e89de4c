package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config models demandas.yml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Calendar CalendarConfig `yaml:"calendar"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Report   ReportConfig   `yaml:"report"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

// CalendarConfig fixes the location in which planned dates and conclusion
// timestamps are bucketed into weeks.
type CalendarConfig struct {
	Timezone string `yaml:"timezone"`
}

type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	AllowActorHeader bool          `yaml:"allow_actor_header"`
	AllowDevLogin    bool          `yaml:"allow_dev_login"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ReportConfig struct {
	Chart ChartConfig `yaml:"chart"`
}

type ChartConfig struct {
	BarWidth int               `yaml:"bar_width"`
	Height   int               `yaml:"height"`
	Colors   map[string]string `yaml:"colors"`
}

const DefaultTimezone = "America/Sao_Paulo"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with dm init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
		return Default(), nil
	}
	return nil, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config.auth.token_ttl must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("config.log rotation limits must not be negative")
	}
	if c.Report.Chart.BarWidth < 0 || c.Report.Chart.Height < 0 {
		return fmt.Errorf("config.report.chart dimensions must not be negative")
	}
	for name, color := range c.Report.Chart.Colors {
		if !hexColor.MatchString(color) {
			return fmt.Errorf("config.report.chart.colors.%s %q is not a #rrggbb color", name, color)
		}
	}
	return nil
}

// Location resolves calendar.timezone, defaulting to America/Sao_Paulo.
func (c *Config) Location() (*time.Location, error) {
	name := c.Calendar.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config.calendar.timezone %q: %w", name, err)
	}
	return loc, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "demandas.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their defaults.
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

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

calendar:
  timezone: America/Sao_Paulo

auth:
  jwt_secret: ""
  allow_actor_header: false
  allow_dev_login: false
  token_ttl: 24h

log:
  level: info
  file: ""
  console: true
  max_size_mb: 20
  max_backups: 5
  max_age_days: 30

report:
  chart:
    bar_width: 48
    height: 240
    colors:
      high: "#2e7d32"
      medium: "#f9a825"
      low: "#c62828"
`
