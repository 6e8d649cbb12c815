package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultPath is the settings file consulted when --config is not given.
const DefaultPath = "viewerswarm.yaml"

type Config struct {
	Stream struct {
		URL         string `yaml:"url"`
		BitrateKbps int    `yaml:"bitrate_kbps"`
	} `yaml:"stream"`

	Bandwidth struct {
		SafetyMargin float64 `yaml:"safety_margin"`
	} `yaml:"bandwidth"`

	Launch struct {
		StaggerDelay time.Duration `yaml:"stagger_delay"`
		MaxSessions  int           `yaml:"max_sessions"`
	} `yaml:"launch"`

	Monitor struct {
		PollInterval       time.Duration `yaml:"poll_interval"`
		BufferingThreshold time.Duration `yaml:"buffering_threshold"`
	} `yaml:"monitor"`

	Browser struct {
		Headless          bool          `yaml:"headless"`
		ViewportWidth     int           `yaml:"viewport_width"`
		ViewportHeight    int           `yaml:"viewport_height"`
		PageLoadTimeout   time.Duration `yaml:"page_load_timeout"`
		VideoStartTimeout time.Duration `yaml:"video_start_timeout"`
	} `yaml:"browser"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
// The stream URL is not checked here: it may legitimately arrive later from
// the CLI, and the entry point enforces it before any session work begins.
func (c *Config) Validate() error {
	if c.Stream.BitrateKbps <= 0 {
		return fmt.Errorf("stream.bitrate_kbps must be > 0")
	}
	if c.Bandwidth.SafetyMargin <= 0 || c.Bandwidth.SafetyMargin > 1 {
		return fmt.Errorf("bandwidth.safety_margin must be in (0,1]")
	}
	if c.Launch.StaggerDelay < 0 {
		return fmt.Errorf("launch.stagger_delay must be >= 0")
	}
	if c.Launch.MaxSessions < 0 {
		return fmt.Errorf("launch.max_sessions must be >= 0")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be > 0")
	}
	if c.Monitor.BufferingThreshold <= 0 {
		return fmt.Errorf("monitor.buffering_threshold must be > 0")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be > 0")
	}
	if c.Browser.PageLoadTimeout <= 0 {
		return fmt.Errorf("browser.page_load_timeout must be > 0")
	}
	if c.Browser.VideoStartTimeout <= 0 {
		return fmt.Errorf("browser.video_start_timeout must be > 0")
	}
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	return nil
}

// Load reads the settings file, applies defaults and env overrides. On first
// run, when the file does not exist, it is created with defaults; an existing
// file is never overwritten.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if data, err := yaml.Marshal(cfg); err == nil {
			// Best effort: a read-only working directory is not fatal.
			_ = os.WriteFile(path, data, 0o644)
		}
		cfg.applyEnvOverrides()
		// Env overrides can break the defaults, so the first-run path is
		// validated like any other.
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Stream.URL = "" // required, no default
	cfg.Stream.BitrateKbps = 2800

	cfg.Bandwidth.SafetyMargin = 0.8

	cfg.Launch.StaggerDelay = 1 * time.Second
	cfg.Launch.MaxSessions = 0 // 0 means estimate from bandwidth

	cfg.Monitor.PollInterval = 5 * time.Second
	cfg.Monitor.BufferingThreshold = 3 * time.Second

	cfg.Browser.Headless = false
	cfg.Browser.ViewportWidth = 640
	cfg.Browser.ViewportHeight = 360
	cfg.Browser.PageLoadTimeout = 30 * time.Second
	cfg.Browser.VideoStartTimeout = 15 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("VIEWERSWARM_STREAM_URL"); url != "" {
		c.Stream.URL = url
	}
	if v := os.Getenv("VIEWERSWARM_STREAM_BITRATE_KBPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Stream.BitrateKbps = n
		}
	}
	if v := os.Getenv("VIEWERSWARM_SAFETY_MARGIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Bandwidth.SafetyMargin = f
		}
	}
	if v := os.Getenv("VIEWERSWARM_STAGGER_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Launch.StaggerDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("VIEWERSWARM_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Launch.MaxSessions = n
		}
	}
	if v := os.Getenv("VIEWERSWARM_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Monitor.PollInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("VIEWERSWARM_BUFFERING_THRESHOLD_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Monitor.BufferingThreshold = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("VIEWERSWARM_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if level := os.Getenv("VIEWERSWARM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
