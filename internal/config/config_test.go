package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Selection.QuestionWeight != 0.7 || cfg.Selection.TopicWeight != 0.3 {
		t.Errorf("weights = %v/%v, want 0.7/0.3", cfg.Selection.QuestionWeight, cfg.Selection.TopicWeight)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("ttl = %s, want 1h", cfg.Cache.TTL)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MABQUIZ_DB", "/tmp/x.db")
	t.Setenv("MABQUIZ_QUESTION_WEIGHT", "0.5")
	t.Setenv("MABQUIZ_TOPIC_WEIGHT", "0.5")
	t.Setenv("MABQUIZ_SEED", "42")
	t.Setenv("MABQUIZ_CACHE_TTL", "10m")
	t.Setenv("MABQUIZ_REDIS_ADDR", "localhost:6379")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Selection.QuestionWeight != 0.5 || cfg.Selection.TopicWeight != 0.5 {
		t.Errorf("weights = %v/%v", cfg.Selection.QuestionWeight, cfg.Selection.TopicWeight)
	}
	if cfg.Selection.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Selection.Seed)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("ttl = %s, want 10m", cfg.Cache.TTL)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Cache.RedisAddr)
	}
}

func TestConfigFromEnvBadValues(t *testing.T) {
	t.Setenv("MABQUIZ_SEED", "minus-one")
	t.Setenv("MABQUIZ_CACHE_TTL", "soon")

	_, err := ConfigFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"MABQUIZ_SEED", "MABQUIZ_CACHE_TTL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mabquiz.yaml")
	data := `
log_mode: prod
selection:
  question_weight: 0.6
  topic_weight: 0.4
  seed: 7
analytics:
  best_limit: 3
cache:
  ttl: 30m
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MABQUIZ_SEED", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogMode != "prod" {
		t.Errorf("log mode = %q", cfg.LogMode)
	}
	if cfg.Selection.QuestionWeight != 0.6 {
		t.Errorf("question weight = %v", cfg.Selection.QuestionWeight)
	}
	if cfg.Selection.ExplorationWeight != 0.3 {
		t.Errorf("unset field lost its default: %v", cfg.Selection.ExplorationWeight)
	}
	if cfg.Selection.Seed != 9 {
		t.Errorf("env should override file: seed = %d", cfg.Selection.Seed)
	}
	if cfg.Analytics.BestLimit != 3 {
		t.Errorf("best limit = %d", cfg.Analytics.BestLimit)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("ttl = %s", cfg.Cache.TTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Selection.TopicWeight = -0.1 }},
		{"zero weights", func(c *Config) { c.Selection.QuestionWeight, c.Selection.TopicWeight = 0, 0 }},
		{"threshold above one", func(c *Config) { c.Analytics.WeakThreshold = 1.5 }},
		{"zero best limit", func(c *Config) { c.Analytics.BestLimit = 0 }},
		{"bad log mode", func(c *Config) { c.LogMode = "loud" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
