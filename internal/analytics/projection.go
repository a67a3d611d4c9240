// Package analytics answers read-only questions about a learner's arms:
// where they are weak, where they are strong, and how they are doing overall.
package analytics

import (
	"cmp"
	"context"
	"slices"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/cache"
	"github.com/abhisek/mabquiz/internal/logger"
)

// QuestionRow is one question arm as reported to analytics consumers.
type QuestionRow struct {
	QuestionID         string  `json:"questionId"`
	TopicKey           string  `json:"topicKey,omitempty"`
	Attempts           int     `json:"attempts"`
	Successes          int     `json:"successes"`
	Failures           int     `json:"failures"`
	SuccessRate        float64 `json:"successRate"`
	PosteriorMean      float64 `json:"posteriorMean"`
	MeanResponseTimeMs float64 `json:"meanResponseTimeMs"`
	UserConfidence     float64 `json:"userConfidence"`
	LastAttemptedAt    int64   `json:"lastAttemptedAt,omitempty"`
}

// TopicRow is one topic arm as reported to analytics consumers.
type TopicRow struct {
	TopicKey           string  `json:"topicKey"`
	Course             string  `json:"course,omitempty"`
	Topic              string  `json:"topic,omitempty"`
	KnowledgeType      string  `json:"knowledgeType,omitempty"`
	Attempts           int     `json:"attempts"`
	Successes          int     `json:"successes"`
	Failures           int     `json:"failures"`
	SuccessRate        float64 `json:"successRate"`
	PosteriorMean      float64 `json:"posteriorMean"`
	MeanResponseTimeMs float64 `json:"meanResponseTimeMs"`
}

// KindStats aggregates every arm of one kind.
type KindStats struct {
	Count     int `json:"count"`
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	// MeanSuccessRate averages over arms with at least one attempt.
	MeanSuccessRate float64 `json:"meanSuccessRate"`
}

type Stats struct {
	Questions KindStats `json:"questions"`
	Topics    KindStats `json:"topics"`
}

// Projection reads arm state and never writes it.
type Projection struct {
	store arm.Store
	stats cache.StatsCache
	log   *logger.Logger
}

// NewProjection builds a projection. stats may be nil.
func NewProjection(store arm.Store, stats cache.StatsCache, log *logger.Logger) *Projection {
	if log == nil {
		log = logger.Nop()
	}
	return &Projection{store: store, stats: stats, log: log.With("component", "analytics")}
}

// WeakQuestions returns questions with at least minAttempts attempts and a
// success rate below threshold, weakest first.
func (p *Projection) WeakQuestions(ctx context.Context, learnerID string, minAttempts int, threshold float64) ([]QuestionRow, error) {
	qs, err := p.store.QuestionsUpdatedSince(ctx, learnerID, 0)
	if err != nil {
		return nil, err
	}
	var rows []QuestionRow
	for _, q := range qs {
		if q.Attempts >= minAttempts && q.Attempts > 0 && q.SuccessRate() < threshold {
			rows = append(rows, questionRow(q))
		}
	}
	slices.SortFunc(rows, func(a, b QuestionRow) int {
		if c := cmp.Compare(a.SuccessRate, b.SuccessRate); c != 0 {
			return c
		}
		return cmp.Compare(a.QuestionID, b.QuestionID)
	})
	return rows, nil
}

// WeakTopics is WeakQuestions over topic arms.
func (p *Projection) WeakTopics(ctx context.Context, learnerID string, minAttempts int, threshold float64) ([]TopicRow, error) {
	ts, err := p.store.TopicsUpdatedSince(ctx, learnerID, 0)
	if err != nil {
		return nil, err
	}
	var rows []TopicRow
	for _, t := range ts {
		if t.Attempts >= minAttempts && t.Attempts > 0 && t.SuccessRate() < threshold {
			rows = append(rows, topicRow(t))
		}
	}
	slices.SortFunc(rows, func(a, b TopicRow) int {
		if c := cmp.Compare(a.SuccessRate, b.SuccessRate); c != 0 {
			return c
		}
		return cmp.Compare(a.TopicKey, b.TopicKey)
	})
	return rows, nil
}

// BestTopics returns at most limit topics with at least minAttempts
// attempts, strongest first.
func (p *Projection) BestTopics(ctx context.Context, learnerID string, minAttempts, limit int) ([]TopicRow, error) {
	ts, err := p.store.TopicsUpdatedSince(ctx, learnerID, 0)
	if err != nil {
		return nil, err
	}
	var rows []TopicRow
	for _, t := range ts {
		if t.Attempts >= minAttempts && t.Attempts > 0 {
			rows = append(rows, topicRow(t))
		}
	}
	slices.SortFunc(rows, func(a, b TopicRow) int {
		if c := cmp.Compare(b.SuccessRate, a.SuccessRate); c != 0 {
			return c
		}
		return cmp.Compare(a.TopicKey, b.TopicKey)
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// AggregateStats summarises both arm kinds. Results are served from the
// stats cache when one is configured.
func (p *Projection) AggregateStats(ctx context.Context, learnerID string) (Stats, error) {
	gen, cacheable := int64(0), false
	if p.stats != nil {
		var cached Stats
		hit, err := p.stats.GetStats(ctx, learnerID, &cached)
		if err != nil {
			p.log.Warn("stats cache read failed", "learner_id", learnerID, "error", err)
		} else if hit {
			return cached, nil
		}
		// Taken before reading the store; a write after this point makes
		// the value computed below unfit for the cache.
		gen, err = p.stats.Generation(ctx, learnerID)
		if err != nil {
			p.log.Warn("stats cache generation read failed", "learner_id", learnerID, "error", err)
		} else {
			cacheable = true
		}
	}

	qs, err := p.store.QuestionsUpdatedSince(ctx, learnerID, 0)
	if err != nil {
		return Stats{}, err
	}
	ts, err := p.store.TopicsUpdatedSince(ctx, learnerID, 0)
	if err != nil {
		return Stats{}, err
	}

	qc := make([]arm.Counters, len(qs))
	for i, q := range qs {
		qc[i] = q.Counters
	}
	tc := make([]arm.Counters, len(ts))
	for i, t := range ts {
		tc[i] = t.Counters
	}
	stats := Stats{Questions: aggregate(qc), Topics: aggregate(tc)}

	if cacheable {
		stored, err := p.stats.PutStats(ctx, learnerID, gen, stats)
		if err != nil {
			p.log.Warn("stats cache write failed", "learner_id", learnerID, "error", err)
		} else if !stored {
			p.log.Debug("stats changed while aggregating; not cached", "learner_id", learnerID)
		}
	}
	return stats, nil
}

// Question looks up a single question arm.
func (p *Projection) Question(ctx context.Context, learnerID, questionID string) (QuestionRow, error) {
	q, err := p.store.GetQuestion(ctx, learnerID, questionID)
	if err != nil {
		return QuestionRow{}, err
	}
	if q == nil {
		return QuestionRow{}, arm.ErrArmNotFound
	}
	return questionRow(q), nil
}

// Topic looks up a single topic arm.
func (p *Projection) Topic(ctx context.Context, learnerID, topicKey string) (TopicRow, error) {
	t, err := p.store.GetTopic(ctx, learnerID, topicKey)
	if err != nil {
		return TopicRow{}, err
	}
	if t == nil {
		return TopicRow{}, arm.ErrArmNotFound
	}
	return topicRow(t), nil
}

func aggregate(cs []arm.Counters) KindStats {
	var s KindStats
	var rateSum float64
	var attempted int
	for _, c := range cs {
		s.Count++
		s.Attempts += c.Attempts
		s.Successes += c.Successes
		s.Failures += c.Failures
		if c.Attempts > 0 {
			rateSum += c.SuccessRate()
			attempted++
		}
	}
	if attempted > 0 {
		s.MeanSuccessRate = rateSum / float64(attempted)
	}
	return s
}

func questionRow(q *arm.QuestionArm) QuestionRow {
	return QuestionRow{
		QuestionID:         q.QuestionID,
		TopicKey:           q.TopicKey,
		Attempts:           q.Attempts,
		Successes:          q.Successes,
		Failures:           q.Failures,
		SuccessRate:        q.SuccessRate(),
		PosteriorMean:      q.PosteriorMean(),
		MeanResponseTimeMs: q.MeanResponseTimeMs(),
		UserConfidence:     q.UserConfidence,
		LastAttemptedAt:    q.LastAttemptedAt,
	}
}

func topicRow(t *arm.TopicArm) TopicRow {
	return TopicRow{
		TopicKey:           t.TopicKey,
		Course:             t.Course,
		Topic:              t.Topic,
		KnowledgeType:      t.KnowledgeType,
		Attempts:           t.Attempts,
		Successes:          t.Successes,
		Failures:           t.Failures,
		SuccessRate:        t.SuccessRate(),
		PosteriorMean:      t.PosteriorMean(),
		MeanResponseTimeMs: t.MeanResponseTimeMs(),
	}
}
