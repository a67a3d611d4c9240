// Package cache holds learner-scoped caches of derived analytics. Every
// write path invalidates the learner's entry, so a hit is never older than
// the last write to that learner's arms.
//
// Invalidation also bumps a per-learner generation. A reader takes the
// generation before computing a value and hands it to PutStats, which
// drops the value if a write invalidated the learner in between.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// StatsCache stores one JSON document per learner.
type StatsCache interface {
	// GetStats decodes the cached value into dst. It reports false on a miss.
	GetStats(ctx context.Context, learnerID string, dst any) (bool, error)

	// Generation returns the learner's current invalidation count.
	Generation(ctx context.Context, learnerID string) (int64, error)

	// PutStats stores v only if the learner is still at generation gen.
	// It reports whether the value was stored.
	PutStats(ctx context.Context, learnerID string, gen int64, v any) (bool, error)

	InvalidateLearner(ctx context.Context, learnerID string) error
}

func statsKey(learnerID string) string {
	return "stats:" + learnerID
}

// Memory is an in-process StatsCache for a single session.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	gens    map[string]int64
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// NewMemory returns an empty cache. A zero ttl never expires entries.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		gens:    make(map[string]int64),
	}
}

func (m *Memory) GetStats(_ context.Context, learnerID string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[statsKey(learnerID)]
	if ok && m.ttl > 0 && m.now().After(e.expires) {
		delete(m.entries, statsKey(learnerID))
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.raw, dst)
}

func (m *Memory) Generation(_ context.Context, learnerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[learnerID], nil
}

func (m *Memory) PutStats(_ context.Context, learnerID string, gen int64, v any) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[learnerID] != gen {
		return false, nil
	}
	m.entries[statsKey(learnerID)] = memoryEntry{raw: raw, expires: m.now().Add(m.ttl)}
	return true, nil
}

func (m *Memory) InvalidateLearner(_ context.Context, learnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[learnerID]++
	delete(m.entries, statsKey(learnerID))
	return nil
}
