// Package config provides the configuration structure for the tts-gateway.
package config

import (
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the loaded configuration leaves a field unset.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8000
	DefaultMaxTextLength   = 5000
	DefaultLanguage        = "pt"
	DefaultCloudTimeoutSec = 10
	DefaultCloudRetries    = 1
	DefaultCloudBackoffMS  = 500
	DefaultLocalTimeoutSec = 30
	DefaultLocalBinary     = "espeak-ng"
	DefaultSampleRate      = 16000
	DefaultHealthBudgetSec = 2
)

// HTTPConfig holds the listen address of the REST surface.
type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TTSConfig holds request validation limits and voice defaults.
type TTSConfig struct {
	MaxTextLength   int    `toml:"max_text_length"`
	DefaultLanguage string `toml:"default_language"`
	DefaultVoice    string `toml:"default_voice"`
	SampleRate      int    `toml:"sample_rate"`
}

// CloudEngineConfig holds the remote TTS provider settings.
type CloudEngineConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
	BackoffMS      int    `toml:"backoff_ms"`
}

// LocalEngineConfig holds the local speech engine settings.
type LocalEngineConfig struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EnginesConfig groups the two engine adapters.
type EnginesConfig struct {
	Cloud CloudEngineConfig `toml:"cloud"`
	Local LocalEngineConfig `toml:"local"`
}

// PathsConfig holds the filesystem layout.
type PathsConfig struct {
	OutputDir   string `toml:"output_dir"`
	VoicesFile  string `toml:"voices_file"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// ArtifactsConfig holds the retention sweep and health probe settings. The
// sweep is off unless RetentionHours is positive.
type ArtifactsConfig struct {
	RetentionHours     int `toml:"retention_hours"`
	SweepIntervalMin   int `toml:"sweep_interval_minutes"`
	HealthBudgetSecond int `toml:"health_budget_seconds"`
}

// NATSConfig holds the optional messaging integration. Everything in this
// section is ignored when Enabled is false.
type NATSConfig struct {
	Enabled             bool   `toml:"enabled"`
	URL                 string `toml:"url"`
	JobsSubject         string `toml:"jobs_subject"`
	AudioCreatedSubject string `toml:"audio_created_subject"`
	MirrorBucket        string `toml:"mirror_bucket"`
}

// Config is the root configuration structure.
type Config struct {
	HTTP      HTTPConfig      `toml:"http"`
	TTS       TTSConfig       `toml:"tts"`
	Engines   EnginesConfig   `toml:"engines"`
	Paths     PathsConfig     `toml:"paths"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	NATS      NATSConfig      `toml:"nats"`
}

// Load loads the configuration for the tts-gateway and fills in defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills unset fields with the documented defaults. Exported so
// tests can build configurations without going through the configurator.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = DefaultHost
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}

	if c.TTS.MaxTextLength == 0 {
		c.TTS.MaxTextLength = DefaultMaxTextLength
	}

	if c.TTS.DefaultLanguage == "" {
		c.TTS.DefaultLanguage = DefaultLanguage
	}

	if c.TTS.SampleRate == 0 {
		c.TTS.SampleRate = DefaultSampleRate
	}

	if c.Engines.Cloud.TimeoutSeconds == 0 {
		c.Engines.Cloud.TimeoutSeconds = DefaultCloudTimeoutSec
	}

	if c.Engines.Cloud.Retries == 0 {
		c.Engines.Cloud.Retries = DefaultCloudRetries
	}

	if c.Engines.Cloud.BackoffMS == 0 {
		c.Engines.Cloud.BackoffMS = DefaultCloudBackoffMS
	}

	if c.Engines.Local.Binary == "" {
		c.Engines.Local.Binary = DefaultLocalBinary
	}

	if c.Engines.Local.TimeoutSeconds == 0 {
		c.Engines.Local.TimeoutSeconds = DefaultLocalTimeoutSec
	}

	if c.Artifacts.HealthBudgetSecond == 0 {
		c.Artifacts.HealthBudgetSecond = DefaultHealthBudgetSec
	}
}

// CloudTimeout returns the cloud engine request deadline.
func (c *Config) CloudTimeout() time.Duration {
	return time.Duration(c.Engines.Cloud.TimeoutSeconds) * time.Second
}

// CloudBackoff returns the delay before a transient-failure retry.
func (c *Config) CloudBackoff() time.Duration {
	return time.Duration(c.Engines.Cloud.BackoffMS) * time.Millisecond
}

// LocalTimeout returns the wall-clock deadline for local engine invocations.
func (c *Config) LocalTimeout() time.Duration {
	return time.Duration(c.Engines.Local.TimeoutSeconds) * time.Second
}

// HealthBudget returns the total time budget for one health report.
func (c *Config) HealthBudget() time.Duration {
	return time.Duration(c.Artifacts.HealthBudgetSecond) * time.Second
}

// ListenAddr returns the host:port pair for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
