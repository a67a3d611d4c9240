package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the engine and its surfaces can be tuned with.
type Config struct {
	// DBPath is the SQLite file. Empty means store.DefaultDBPath.
	DBPath string `yaml:"db_path"`

	// LogMode selects the log encoder. Values: "dev", "prod".
	LogMode string `yaml:"log_mode"`

	Selection SelectionConfig `yaml:"selection"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
}

// SelectionConfig weights the score of a candidate question.
type SelectionConfig struct {
	QuestionWeight    float64 `yaml:"question_weight"`    // Default: 0.7
	TopicWeight       float64 `yaml:"topic_weight"`       // Default: 0.3
	ExplorationWeight float64 `yaml:"exploration_weight"` // Default: 0.3

	// Seed fixes the sampler. Zero seeds from the wall clock.
	Seed uint64 `yaml:"seed"`
}

// AnalyticsConfig holds the defaults used when a caller does not pass its own.
type AnalyticsConfig struct {
	MinAttempts   int     `yaml:"min_attempts"`
	WeakThreshold float64 `yaml:"weak_threshold"`
	BestLimit     int     `yaml:"best_limit"`
}

// CacheConfig enables the Redis stats cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogMode: "dev",
		Selection: SelectionConfig{
			QuestionWeight:    0.7,
			TopicWeight:       0.3,
			ExplorationWeight: 0.3,
		},
		Analytics: AnalyticsConfig{
			MinAttempts:   2,
			WeakThreshold: 0.6,
			BestLimit:     5,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MABQUIZ_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("MABQUIZ_LOG_MODE"); v != "" {
		c.LogMode = v
	}
	if v := os.Getenv("MABQUIZ_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("MABQUIZ_ADDR"); v != "" {
		c.Server.Addr = v
	}

	var errs []error
	floatEnv := func(name string, dst *float64) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = f
	}
	floatEnv("MABQUIZ_QUESTION_WEIGHT", &c.Selection.QuestionWeight)
	floatEnv("MABQUIZ_TOPIC_WEIGHT", &c.Selection.TopicWeight)
	floatEnv("MABQUIZ_EXPLORATION_WEIGHT", &c.Selection.ExplorationWeight)

	if v := os.Getenv("MABQUIZ_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MABQUIZ_SEED: %w", err))
		} else {
			c.Selection.Seed = seed
		}
	}
	if v := os.Getenv("MABQUIZ_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MABQUIZ_CACHE_TTL: %w", err))
		} else {
			c.Cache.TTL = ttl
		}
	}
	return errors.Join(errs...)
}

// Validate checks weights and thresholds are usable.
func (c Config) Validate() error {
	switch c.LogMode {
	case "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("unknown log mode: %q", c.LogMode)
	}

	s := c.Selection
	for name, w := range map[string]float64{
		"question weight":    s.QuestionWeight,
		"topic weight":       s.TopicWeight,
		"exploration weight": s.ExplorationWeight,
	} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%s must be a non-negative number, got %v", name, w)
		}
	}
	if s.QuestionWeight+s.TopicWeight == 0 {
		return fmt.Errorf("question and topic weights cannot both be zero")
	}

	a := c.Analytics
	if a.MinAttempts < 0 {
		return fmt.Errorf("min attempts must be >= 0, got %d", a.MinAttempts)
	}
	if a.WeakThreshold < 0 || a.WeakThreshold > 1 {
		return fmt.Errorf("weak threshold must be in [0,1], got %v", a.WeakThreshold)
	}
	if a.BestLimit < 1 {
		return fmt.Errorf("best limit must be >= 1, got %d", a.BestLimit)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be >= 0, got %s", c.Cache.TTL)
	}
	return nil
}
