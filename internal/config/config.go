package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kikiluvv/cuepoint/internal/cues"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings
var ErrInvalidConfig = errors.New("invalid config")

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	// Cue selection defaults, overridable per request
	Cues CuesConfig `yaml:"cues"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Analysis cache
	Cache CacheConfig `yaml:"cache"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// S3 sources
	AWS AWSConfig `yaml:"aws"`
}

type CuesConfig struct {
	FirstCue        float64  `yaml:"first_cue"`
	BetweenCues     float64  `yaml:"between_cues"`
	VolumeThreshold *float64 `yaml:"volume_threshold"`
	SearchRadius    float64  `yaml:"search_radius"`
}

type FFmpegConfig struct {
	BinaryPath     string  `yaml:"binary_path"`
	ProbePath      string  `yaml:"probe_path"`
	Threads        int     `yaml:"threads"`
	SceneThreshold float64 `yaml:"scene_threshold"`
	LoudnessWindow float64 `yaml:"loudness_window"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// LocalRoot is the only directory requests may read local files from.
	// Empty rejects local paths.
	LocalRoot string `yaml:"local_root"`
}

type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// Load reads configuration from file or returns defaults. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every numeric setting is usable
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if err := c.Selection().Validate(); err != nil {
		return fmt.Errorf("%w: cues: %v", ErrInvalidConfig, err)
	}
	if c.Cues.SearchRadius < 0 || math.IsNaN(c.Cues.SearchRadius) || math.IsInf(c.Cues.SearchRadius, 0) {
		return fmt.Errorf("%w: cues.search_radius must be a finite non-negative number", ErrInvalidConfig)
	}
	if t := c.FFmpeg.SceneThreshold; !(t > 0 && t < 1) {
		return fmt.Errorf("%w: ffmpeg.scene_threshold must be in (0, 1), got %v", ErrInvalidConfig, t)
	}
	if w := c.FFmpeg.LoudnessWindow; !(w > 0) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: ffmpeg.loudness_window must be positive, got %v", ErrInvalidConfig, w)
	}
	if c.FFmpeg.Threads < 0 {
		return fmt.Errorf("%w: ffmpeg.threads must not be negative", ErrInvalidConfig)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("%w: cache.path is required when the cache is enabled", ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	return nil
}

// Selection returns the configured cue selection defaults
func (c *Config) Selection() cues.SelectionConfig {
	sel := cues.SelectionConfig{
		FirstCue:    c.Cues.FirstCue,
		BetweenCues: c.Cues.BetweenCues,
	}
	if c.Cues.VolumeThreshold != nil {
		sel = sel.WithThreshold(*c.Cues.VolumeThreshold)
	}
	return sel
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		TempDir:     os.TempDir(),
		Concurrency: 4,
		Cues: CuesConfig{
			FirstCue:     cues.DefaultFirstCue,
			BetweenCues:  cues.DefaultBetweenCues,
			SearchRadius: cues.DefaultSearchRadius,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:     "ffmpeg",
			ProbePath:      "ffprobe",
			Threads:        0,
			SceneThreshold: 0.3,
			LoudnessWindow: 0.1,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir(), ".cuepoint", "cache.db"),
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
	}
}

// LogLevel returns the level requested through CUEPOINT_LOG_LEVEL, if any
func LogLevel() string {
	return strings.TrimSpace(os.Getenv("CUEPOINT_LOG_LEVEL"))
}

func (c *Config) applyEnv() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// DefaultPath is where `config init` writes and the last place Load looks
func DefaultPath() string {
	return filepath.Join(homeDir(), ".cuepoint", "config.yaml")
}

func findConfigFile() string {
	candidates := []string{
		"./cuepoint.yaml",
		"./cuepoint.yml",
		DefaultPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
