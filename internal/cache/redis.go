package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/mabquiz/internal/logger"
)

// Redis is a StatsCache shared by every process pointing at the same server.
type Redis struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection with a ping.
func NewRedis(ctx context.Context, addr string, ttl time.Duration, log *logger.Logger) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, ttl, log), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb goredis.UniversalClient, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{
		log:    log.With("service", "RedisStatsCache"),
		rdb:    rdb,
		prefix: "mabquiz:",
		ttl:    ttl,
	}
}

func (r *Redis) GetStats(ctx context.Context, learnerID string, dst any) (bool, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+statsKey(learnerID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get stats: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A corrupt entry is a miss; drop it so it gets rebuilt.
		r.log.Warn("dropping undecodable stats entry", "learner_id", learnerID, "error", err)
		_ = r.rdb.Del(ctx, r.prefix+statsKey(learnerID)).Err()
		return false, nil
	}
	return true, nil
}

func (r *Redis) genKey(learnerID string) string {
	return r.prefix + "gen:" + learnerID
}

func (r *Redis) Generation(ctx context.Context, learnerID string) (int64, error) {
	gen, err := r.rdb.Get(ctx, r.genKey(learnerID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) PutStats(ctx context.Context, learnerID string, gen int64, v any) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	genKey := r.genKey(learnerID)
	stored := false
	err = r.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, goredis.Nil) {
			cur, err = 0, nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, r.prefix+statsKey(learnerID), raw, r.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, goredis.TxFailedErr) {
		// Invalidated while writing.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set stats: %w", err)
	}
	return stored, nil
}

func (r *Redis) InvalidateLearner(ctx context.Context, learnerID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, r.genKey(learnerID))
		pipe.Del(ctx, r.prefix+statsKey(learnerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate stats: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
