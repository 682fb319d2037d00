// Package config holds the run configuration.
//
// A Config is built once at startup from defaults, an optional YAML file,
// the environment and command-line flags, then passed by value to every
// component. Nothing reads process-wide settings after that.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable configuration of one run.
type Config struct {
	ScholarID    string `yaml:"scholar_id"`
	CVLastUpdate string `yaml:"cv_last_update"` // Date of the CV being updated, copied to the JSON output

	MinDelay   time.Duration `yaml:"min_delay"` // Pacing delay bounds after each accepted publication
	MaxDelay   time.Duration `yaml:"max_delay"`
	MaxRetries int           `yaml:"max_retries"` // Attempts per fetch, including the first

	CheckpointPath       string `yaml:"checkpoint_path"`
	CircuitRenewInterval int    `yaml:"circuit_renew_interval"` // Rotate identity every N items; 0 disables

	ProxyEndpoint   string        `yaml:"proxy_endpoint"` // SOCKS URL; empty connects directly
	ControlEndpoint string        `yaml:"control_endpoint"`
	ControlPassword string        `yaml:"control_password"`
	SettleWait      time.Duration `yaml:"settle_wait"` // Wait after a successful rotation
	ProbeAttempts   int           `yaml:"probe_attempts"`

	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	BibliographyFiles []string `yaml:"bibliography_files"`
	DedupeStrategy    string   `yaml:"dedupe_strategy"`

	OutputJSON       string `yaml:"output_json"`
	OutputText       string `yaml:"output_text"`
	AppointmentLabel string `yaml:"appointment_label"`

	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

const (
	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = "scholarsync.yml"
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "scholarsync"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables read by ApplyEnv.
const (
	EnvScholarID       = "SCHOLARSYNC_SCHOLAR_ID"
	EnvProxy           = "SCHOLARSYNC_PROXY"
	EnvCheckpoint      = "SCHOLARSYNC_CHECKPOINT"
	EnvControlAddr     = "TOR_CONTROL_ADDR"
	EnvControlPassword = "TOR_CONTROL_PASSWORD"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MinDelay:             3 * time.Second,
		MaxDelay:             5 * time.Second,
		MaxRetries:           5,
		CheckpointPath:       "scholarsync_checkpoint.json",
		CircuitRenewInterval: 10,
		ProxyEndpoint:        "socks5h://127.0.0.1:9050",
		ControlEndpoint:      "127.0.0.1:9051",
		SettleWait:           5 * time.Second,
		ProbeAttempts:        5,
		RequestTimeout:       30 * time.Second,
		RequestsPerSecond:    0.5,
		BibliographyFiles:    []string{"cv_draft.txt", "CV.txt", "vita.txt", "faculty_vita.txt"},
		DedupeStrategy:       "overlap",
		OutputJSON:           "publications.json",
		OutputText:           "cv_formatted.txt",
	}
}

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/scholarsync/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Load returns the defaults overlaid with a YAML file. An explicit path
// must exist; otherwise LocalConfigFile and then GlobalConfigPath are
// tried and a missing file is not an error. The second return value is
// the file used, empty when none was.
func Load(path string) (Config, string, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{LocalConfigFile, GlobalConfigPath()}
	}

	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) && path == "" {
				continue
			}
			return cfg, "", fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, "", fmt.Errorf("parsing config %s: %w", p, err)
		}
		return cfg, p, nil
	}

	return cfg, "", nil
}

// ApplyEnv returns c with environment overrides applied. getenv is usually
// os.Getenv.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if v := getenv(EnvScholarID); v != "" {
		c.ScholarID = v
	}
	if v := getenv(EnvProxy); v != "" {
		c.ProxyEndpoint = v
	}
	if v := getenv(EnvCheckpoint); v != "" {
		c.CheckpointPath = v
	}
	if v := getenv(EnvControlAddr); v != "" {
		c.ControlEndpoint = v
	}
	if v := getenv(EnvControlPassword); v != "" {
		c.ControlPassword = v
	}
	return c
}

// ErrNoScholarID is returned by Validate when no profile is configured.
var ErrNoScholarID = errors.New("scholar_id not configured")

// ValidDedupeStrategies lists the accepted dedupe_strategy values.
var ValidDedupeStrategies = []string{"overlap", "strict"}

// Validate checks option ranges. It does not require a scholar ID; use
// RequireScholarID for commands that fetch.
func (c Config) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative (min_delay %s, max_delay %s)", c.MinDelay, c.MaxDelay)
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("min_delay %s exceeds max_delay %s", c.MinDelay, c.MaxDelay)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.CircuitRenewInterval < 0 {
		return fmt.Errorf("circuit_renew_interval must not be negative, got %d", c.CircuitRenewInterval)
	}
	if c.ProbeAttempts < 0 {
		return fmt.Errorf("probe_attempts must not be negative, got %d", c.ProbeAttempts)
	}
	if c.CheckpointPath == "" {
		return errors.New("checkpoint_path must not be empty")
	}
	if c.ProxyEndpoint != "" {
		u, err := url.Parse(c.ProxyEndpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid proxy_endpoint: %q", c.ProxyEndpoint)
		}
	}
	valid := false
	for _, s := range ValidDedupeStrategies {
		if c.DedupeStrategy == s {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid dedupe_strategy: %s (valid: %v)", c.DedupeStrategy, ValidDedupeStrategies)
	}
	return nil
}

// RequireScholarID returns ErrNoScholarID when the profile is unset.
func (c Config) RequireScholarID() error {
	if c.ScholarID == "" {
		return ErrNoScholarID
	}
	return nil
}
