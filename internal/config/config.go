package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30m" or "12s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upload     UploadConfig     `yaml:"upload"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type UploadConfig struct {
	MaxSizeBytes int64    `yaml:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
	SessionTTL   Duration `yaml:"session_ttl"`
}

type JobsConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	MaxConcurrent  int      `yaml:"max_concurrent"`
	Timeout        Duration `yaml:"timeout"`
	BackoffInitial Duration `yaml:"backoff_initial"`
}

type SummarizerConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
	UseMock bool     `yaml:"use_mock"`
}

type StorageConfig struct {
	BlobDir      string `yaml:"blob_dir"`
	SnapshotPath string `yaml:"snapshot_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file, applies defaults and env overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SUMMARIZER_URL"); v != "" {
		c.Summarizer.URL = v
	}
	if os.Getenv("USE_MOCK_SUMMARIZER") == "true" {
		c.Summarizer.UseMock = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Upload.MaxSizeBytes == 0 {
		c.Upload.MaxSizeBytes = 500 << 20
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{
			"video/mp4", "video/quicktime", "video/x-msvideo",
			"audio/mpeg", "audio/wav", "audio/x-m4a",
		}
	}
	if c.Upload.SessionTTL == 0 {
		c.Upload.SessionTTL = Duration(30 * time.Minute)
	}
	if c.Jobs.MaxAttempts == 0 {
		c.Jobs.MaxAttempts = 3
	}
	if c.Jobs.MaxConcurrent == 0 {
		c.Jobs.MaxConcurrent = 4
	}
	if c.Jobs.Timeout == 0 {
		c.Jobs.Timeout = Duration(10 * time.Minute)
	}
	if c.Jobs.BackoffInitial == 0 {
		c.Jobs.BackoffInitial = Duration(2 * time.Second)
	}
	if c.Summarizer.Timeout == 0 {
		c.Summarizer.Timeout = Duration(12 * time.Second)
	}
	if c.Storage.BlobDir == "" {
		c.Storage.BlobDir = "data/blobs"
	}
	if c.Storage.SnapshotPath == "" {
		c.Storage.SnapshotPath = "data/state.json"
	}
	if !c.Summarizer.UseMock && c.Summarizer.URL == "" {
		return fmt.Errorf("summarizer.url is required unless use_mock is set")
	}
	return nil
}
