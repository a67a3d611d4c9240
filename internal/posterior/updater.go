// Package posterior applies answered questions to the learner's question and
// topic arms. It is the only writer of counters outside of sync.
package posterior

import (
	"context"
	"strconv"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/cache"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/metrics"
)

// Updater records outcomes. Calls for the same learner must be serialized by
// the caller; each call counts as one answer.
type Updater struct {
	store arm.TxStore
	clock arm.Clock
	stats cache.StatsCache
	log   *logger.Logger
}

// NewUpdater wires an updater. stats may be nil.
func NewUpdater(store arm.TxStore, clock arm.Clock, stats cache.StatsCache, log *logger.Logger) *Updater {
	if clock == nil {
		clock = arm.NewMonotonicClock(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Updater{
		store: store,
		clock: clock,
		stats: stats,
		log:   log.With("component", "posterior"),
	}
}

// RecordOutcome applies one Bernoulli observation to the question arm and
// its topic arm, creating either at the uniform prior when missing. Both
// writes commit together or not at all.
func (u *Updater) RecordOutcome(ctx context.Context, o Outcome) (*arm.QuestionArm, *arm.TopicArm, error) {
	if err := o.Validate(); err != nil {
		if inv, ok := err.(*arm.ErrInvalidOutcome); ok {
			metrics.OutcomesRejected.WithLabelValues(inv.Field).Inc()
		}
		return nil, nil, err
	}
	topicKey := o.ResolvedTopicKey()
	confidence := arm.Clamp01(o.Confidence)

	var q *arm.QuestionArm
	var t, prev *arm.TopicArm
	err := u.store.InTx(ctx, func(tx arm.Store) error {
		var err error
		q, err = tx.GetQuestion(ctx, o.LearnerID, o.QuestionID)
		if err != nil {
			return err
		}
		t, err = tx.GetTopic(ctx, o.LearnerID, topicKey)
		if err != nil {
			return err
		}

		if q == nil {
			q = arm.NewQuestionArm(o.LearnerID, o.QuestionID)
		}
		if t == nil {
			t = arm.NewTopicArm(o.LearnerID, topicKey)
			ref := arm.ParseTopicKey(topicKey)
			if o.Topic != nil && !o.Topic.IsZero() {
				ref = *o.Topic
			}
			t.Course, t.Topic, t.KnowledgeType = ref.Course, ref.Topic, ref.KnowledgeType
		}

		// A question answered under a different topic moves its history
		// from the old topic arm to the new one.
		if q.TopicKey != "" && q.TopicKey != topicKey {
			prev, err = tx.GetTopic(ctx, o.LearnerID, q.TopicKey)
			if err != nil {
				return err
			}
			if prev != nil {
				prev.Release(q.Counters)
				prev.UpdatedAt = arm.NextStamp(u.clock, prev.UpdatedAt)
			}
			t.Absorb(q.Counters)
		}

		qStamp := arm.NextStamp(u.clock, q.UpdatedAt)
		q.Observe(o.Correct, o.ResponseTimeMs)
		q.TopicKey = topicKey
		q.UserConfidence = confidence
		q.LastAttemptedAt = qStamp
		if q.CreatedAt == 0 {
			q.CreatedAt = qStamp
		}
		q.UpdatedAt = qStamp

		tStamp := arm.NextStamp(u.clock, t.UpdatedAt)
		t.Observe(o.Correct, o.ResponseTimeMs)
		if t.CreatedAt == 0 {
			t.CreatedAt = tStamp
		}
		t.UpdatedAt = tStamp

		if err := tx.UpsertQuestion(ctx, q); err != nil {
			return err
		}
		if prev != nil {
			if err := tx.UpsertTopic(ctx, prev); err != nil {
				return err
			}
		}
		return tx.UpsertTopic(ctx, t)
	})
	if err != nil {
		if arm.IsStoreUnavailable(err) {
			metrics.StoreErrors.WithLabelValues("record_outcome").Inc()
		}
		u.log.Error("record outcome failed", "learner_id", o.LearnerID, "question_id", o.QuestionID, "error", err)
		return nil, nil, err
	}

	u.invalidate(ctx, o.LearnerID)
	if prev != nil {
		u.log.Info("question moved topic",
			"learner_id", o.LearnerID,
			"question_id", o.QuestionID,
			"from", prev.TopicKey,
			"to", topicKey,
		)
	}
	metrics.OutcomesRecorded.WithLabelValues(strconv.FormatBool(o.Correct)).Inc()
	u.log.Debug("outcome recorded",
		"learner_id", o.LearnerID,
		"question_id", o.QuestionID,
		"topic_key", topicKey,
		"correct", o.Correct,
		"alpha", q.Alpha,
		"beta", q.Beta,
	)
	return q, t, nil
}

// Reset deletes every question and topic arm of the learner.
func (u *Updater) Reset(ctx context.Context, learnerID string) error {
	if learnerID == "" {
		return &arm.ErrInvalidOutcome{Field: "learnerId", Reason: "is required"}
	}
	err := u.store.InTx(ctx, func(tx arm.Store) error {
		if err := tx.DeleteAll(ctx, arm.KindQuestion, learnerID); err != nil {
			return err
		}
		return tx.DeleteAll(ctx, arm.KindTopic, learnerID)
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("reset").Inc()
		return err
	}
	u.invalidate(ctx, learnerID)
	u.log.Info("learner arms reset", "learner_id", learnerID)
	return nil
}

func (u *Updater) invalidate(ctx context.Context, learnerID string) {
	if u.stats == nil {
		return
	}
	if err := u.stats.InvalidateLearner(ctx, learnerID); err != nil {
		u.log.Warn("stats cache invalidate failed", "learner_id", learnerID, "error", err)
	}
}
