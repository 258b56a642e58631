package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/longform-ai/longform/pkg/models"
)

// Config holds all longform configuration.
type Config struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	DBPath   string `yaml:"db_path"`
	CacheDir string `yaml:"cache_dir"`
	LogDir   string `yaml:"log_dir"`
	Debug    bool   `yaml:"debug"`

	Generation GenerationConfig `yaml:"generation"`
	Cache      CacheConfig      `yaml:"cache"`
	Pools      PoolConfig       `yaml:"pools"`
	Throttle   ThrottleConfig   `yaml:"throttle"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// GenerationConfig controls the retry-and-score loop and the model call.
type GenerationConfig struct {
	Model          string        `yaml:"model"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	MaxAttempts    int           `yaml:"max_attempts"`
	TolerancePct   int           `yaml:"tolerance_pct"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
}

// Params returns the generation parameters that feed the cache fingerprint.
func (g GenerationConfig) Params() models.GenerationParams {
	return models.GenerationParams{
		Model:       g.Model,
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
	}
}

// CacheConfig controls the artifact cache.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	TTL         time.Duration `yaml:"ttl"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// PoolConfig sizes the two worker pools and their per-task timeouts.
type PoolConfig struct {
	Segments       int           `yaml:"segments"`
	Episodes       int           `yaml:"episodes"`
	SegmentTimeout time.Duration `yaml:"segment_timeout"`
	EpisodeTimeout time.Duration `yaml:"episode_timeout"`
}

// ThrottleConfig controls the advisory throttle predicate.
type ThrottleConfig struct {
	ErrorThreshold  int64         `yaml:"error_threshold"`
	CPUHighWater    float64       `yaml:"cpu_high_water"`
	MemoryHighWater float64       `yaml:"memory_high_water"`
	Cooldown        time.Duration `yaml:"cooldown"`
}

// HTTPConfig bounds the shared connection pool of the generation client.
type HTTPConfig struct {
	MaxConns     int           `yaml:"max_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		BaseURL:  "https://api.anthropic.com",
		DBPath:   "longform.db",
		CacheDir: ".cache/segments",
		LogDir:   "logs",
		Generation: GenerationConfig{
			Model:          "claude-sonnet-4-20250514",
			Temperature:    0.3,
			MaxTokens:      8000,
			MaxAttempts:    3,
			TolerancePct:   3,
			RateLimitDelay: 3 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:     true,
			TTL:         7 * 24 * time.Hour,
			LockTimeout: 2 * time.Second,
		},
		Pools: PoolConfig{
			Segments:       3,
			Episodes:       2,
			SegmentTimeout: 5 * time.Minute,
			EpisodeTimeout: 30 * time.Minute,
		},
		Throttle: ThrottleConfig{
			ErrorThreshold:  10,
			CPUHighWater:    95,
			MemoryHighWater: 90,
			Cooldown:        5 * time.Second,
		},
		HTTP: HTTPConfig{
			MaxConns:     10,
			MaxIdleConns: 5,
			Timeout:      180 * time.Second,
		},
	}
}

// Load reads a YAML config file, after loading .env if present, and expands
// environment variables in the file body.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LONGFORM_API_KEY")
	}

	return cfg, nil
}

// Validate checks parameter ranges. Violations are fatal at startup; nothing
// downstream retries a bad configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is not set (config or LONGFORM_API_KEY)"))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0,1]", c.Generation.Temperature))
	}
	if c.Generation.MaxTokens < 100 {
		errs = append(errs, fmt.Errorf("max_tokens %d too low (minimum 100)", c.Generation.MaxTokens))
	}
	if c.Generation.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts %d must be at least 1", c.Generation.MaxAttempts))
	}
	if c.Generation.TolerancePct < 0 || c.Generation.TolerancePct > 100 {
		errs = append(errs, fmt.Errorf("tolerance_pct %d out of range [0,100]", c.Generation.TolerancePct))
	}
	if c.Pools.Segments < 1 || c.Pools.Episodes < 1 {
		errs = append(errs, fmt.Errorf("pool sizes must be at least 1 (segments=%d episodes=%d)", c.Pools.Segments, c.Pools.Episodes))
	}

	return errors.Join(errs...)
}
