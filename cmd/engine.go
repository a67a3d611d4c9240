package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/analytics"
	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/armsync"
	"github.com/abhisek/mabquiz/internal/cache"
	"github.com/abhisek/mabquiz/internal/config"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/posterior"
	"github.com/abhisek/mabquiz/internal/selection"
	"github.com/abhisek/mabquiz/internal/store"
)

// engine bundles everything a command needs, built from config and flags.
type engine struct {
	cfg        config.Config
	log        *logger.Logger
	store      *store.Store
	updater    *posterior.Updater
	selector   *selection.Selector
	projection *analytics.Projection
	reconciler *armsync.Reconciler

	closers []func() error
}

// openEngine loads configuration, opens the store and wires the components.
func openEngine(cmd *cobra.Command) (*engine, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if mode, _ := cmd.Flags().GetString("log-mode"); mode != "" {
		cfg.LogMode = mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e := &engine{cfg: cfg, log: log, store: st}
	e.closers = append(e.closers, st.Close)

	var stats cache.StatsCache = cache.NewMemory(cfg.Cache.TTL)
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(commandContext(cmd), cfg.Cache.RedisAddr, cfg.Cache.TTL, log)
		if err != nil {
			log.Warn("redis stats cache unavailable, using in-process cache", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			stats = rc
			e.closers = append(e.closers, rc.Close)
		}
	}

	sampler := selection.NewSampler()
	if cfg.Selection.Seed != 0 {
		sampler = selection.NewSeededSampler(cfg.Selection.Seed)
	}
	weights := selection.Weights{
		Question:    cfg.Selection.QuestionWeight,
		Topic:       cfg.Selection.TopicWeight,
		Exploration: cfg.Selection.ExplorationWeight,
	}

	repo := st.Arms()
	clock := arm.NewMonotonicClock(nil)
	e.updater = posterior.NewUpdater(repo, clock, stats, log)
	e.selector = selection.NewSelector(repo, sampler, weights, log)
	e.projection = analytics.NewProjection(repo, stats, log)
	e.reconciler = armsync.NewReconciler(repo, st.Checkpoints(), clock, stats, log)
	return e, nil
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn("close failed", "error", err)
		}
	}
	e.log.Sync()
}

// learnerID returns --learner, falling back to MABQUIZ_LEARNER.
func learnerID(cmd *cobra.Command) (string, error) {
	if l, _ := cmd.Flags().GetString("learner"); l != "" {
		return l, nil
	}
	if l := os.Getenv("MABQUIZ_LEARNER"); l != "" {
		return l, nil
	}
	return "", errors.New("no learner given: pass --learner or set MABQUIZ_LEARNER")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
