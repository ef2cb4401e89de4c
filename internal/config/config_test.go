package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BasePath != "/v0" || cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.String() != DefaultTimezone {
		t.Fatalf("unexpected location %s", loc)
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("calendar:\n  timezone: UTC\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Calendar.Timezone != "UTC" {
		t.Fatalf("timezone not applied")
	}
	if cfg.Server.Addr == "" || cfg.Report.Chart.BarWidth == 0 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad timezone", "calendar:\n  timezone: Mars/Olympus\n", "timezone"},
		{"bad base path", "server:\n  base_path: v0\n", "base_path"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad color", "report:\n  chart:\n    colors:\n      high: green\n", "colors.high"},
		{"negative ttl", "auth:\n  token_ttl: -1h\n", "token_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "dm init") {
		t.Fatalf("expected missing config error, got %v", err)
	}
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("LoadOptional should fall back to defaults: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "demandas.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("generated default should load: %v", err)
	}
	if err := os.WriteFile(Path(dir), []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptional(dir); err == nil {
		t.Fatalf("broken yaml must not fall back to defaults")
	}
}
