package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.MinDelay != 3*time.Second || cfg.MaxDelay != 5*time.Second || cfg.MaxRetries != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.RequireScholarID(); err != ErrNoScholarID {
		t.Errorf("RequireScholarID() = %v, want ErrNoScholarID", err)
	}
	// No institution is assumed for the "During <label> appointment" line.
	if cfg.AppointmentLabel != "" {
		t.Errorf("AppointmentLabel = %q, want empty", cfg.AppointmentLabel)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/scholarsync/config.yml"
	if got := GlobalConfigPath(); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	content := `scholar_id: -rmRjqIAAAAJ
cv_last_update: "2025-10-05"
min_delay: 1s
max_delay: 2500ms
max_retries: 3
checkpoint_path: progress.db
bibliography_files:
  - my_cv.pdf
dedupe_strategy: strict
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, used, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != path {
		t.Errorf("Load() used %q, want %q", used, path)
	}
	if cfg.ScholarID != "-rmRjqIAAAAJ" || cfg.CVLastUpdate != "2025-10-05" {
		t.Errorf("identity fields = %q %q", cfg.ScholarID, cfg.CVLastUpdate)
	}
	if cfg.MinDelay != time.Second || cfg.MaxDelay != 2500*time.Millisecond {
		t.Errorf("delays = %v %v", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.MaxRetries != 3 || cfg.CheckpointPath != "progress.db" || cfg.DedupeStrategy != "strict" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.BibliographyFiles) != 1 || cfg.BibliographyFiles[0] != "my_cv.pdf" {
		t.Errorf("BibliographyFiles = %v", cfg.BibliographyFiles)
	}
	// Unset keys keep their defaults.
	if cfg.SettleWait != 5*time.Second || cfg.OutputJSON != "publications.json" {
		t.Errorf("defaults lost: settle %v, output %q", cfg.SettleWait, cfg.OutputJSON)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("Load() of missing explicit file should fail")
	}
}

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)

	cfg, used, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != "" {
		t.Errorf("Load() used %q, want none", used)
	}
	if cfg.MaxRetries != Default().MaxRetries {
		t.Errorf("Load() without file should return defaults")
	}
}

func TestLoad_GlobalFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(t.TempDir())

	global := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
	if err := os.MkdirAll(filepath.Dir(global), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(global, []byte("scholar_id: GLOBAL\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, used, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if used != global || cfg.ScholarID != "GLOBAL" {
		t.Errorf("Load() = (%q, %q), want global file", cfg.ScholarID, used)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte("min_delay: [not, a, duration]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Error("Load() should reject malformed YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvScholarID:       "ENVID",
		EnvProxy:           "socks5://10.0.0.1:9050",
		EnvControlPassword: "hunter2",
	}
	base := Default()
	cfg := base.ApplyEnv(func(k string) string { return env[k] })

	if cfg.ScholarID != "ENVID" || cfg.ProxyEndpoint != "socks5://10.0.0.1:9050" || cfg.ControlPassword != "hunter2" {
		t.Errorf("ApplyEnv() = %+v", cfg)
	}
	if cfg.ControlEndpoint != base.ControlEndpoint {
		t.Errorf("ControlEndpoint changed without env var")
	}
	if base.ScholarID != "" {
		t.Error("ApplyEnv() modified its receiver")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"min above max", func(c *Config) { c.MinDelay = 10 * time.Second }, "exceeds"},
		{"negative delay", func(c *Config) { c.MinDelay = -time.Second }, "negative"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries"},
		{"negative renew", func(c *Config) { c.CircuitRenewInterval = -1 }, "circuit_renew_interval"},
		{"bad proxy", func(c *Config) { c.ProxyEndpoint = "127.0.0.1:9050" }, "proxy_endpoint"},
		{"empty checkpoint", func(c *Config) { c.CheckpointPath = "" }, "checkpoint_path"},
		{"bad strategy", func(c *Config) { c.DedupeStrategy = "fuzzy" }, "dedupe_strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}

	direct := Default()
	direct.ProxyEndpoint = ""
	if err := direct.Validate(); err != nil {
		t.Errorf("empty proxy should be valid, got %v", err)
	}
}
