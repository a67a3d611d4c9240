// Package selection picks the next question for a learner by sampling each
// candidate's question and topic posteriors and favouring the ones the
// learner is most likely to get wrong.
package selection

import (
	"cmp"
	"context"
	"slices"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/metrics"
)

// Weights tune the score. Question and Topic are normalised to sum to one;
// Exploration scales the bonus 1/(1+attempts) given to under-sampled
// questions.
type Weights struct {
	Question    float64
	Topic       float64
	Exploration float64
}

// DefaultWeights are used when a Selector is built with zero weights.
var DefaultWeights = Weights{Question: 0.7, Topic: 0.3, Exploration: 0.3}

func (w Weights) normalized() Weights {
	sum := w.Question + w.Topic
	if sum <= 0 {
		return DefaultWeights
	}
	return Weights{Question: w.Question / sum, Topic: w.Topic / sum, Exploration: w.Exploration}
}

// Candidate is an eligible question. An empty TopicKey is resolved from the
// stored question arm.
type Candidate struct {
	QuestionID string `json:"questionId"`
	TopicKey   string `json:"topicKey,omitempty"`
}

// Score is one candidate's draw and its parts.
type Score struct {
	QuestionID      string  `json:"questionId"`
	TopicKey        string  `json:"topicKey,omitempty"`
	QuestionSample  float64 `json:"questionSample"`
	TopicSample     float64 `json:"topicSample"`
	Exploration     float64 `json:"exploration"`
	Total           float64 `json:"total"`
	Attempts        int     `json:"attempts"`
	LastAttemptedAt int64   `json:"lastAttemptedAt,omitempty"`
}

// Selector only reads arm state.
type Selector struct {
	store   arm.Store
	sampler Sampler
	weights Weights
	log     *logger.Logger
}

// NewSelector builds a selector. A nil sampler is seeded from the clock.
func NewSelector(store arm.Store, sampler Sampler, w Weights, log *logger.Logger) *Selector {
	if sampler == nil {
		sampler = NewSampler()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{
		store:   store,
		sampler: sampler,
		weights: w.normalized(),
		log:     log.With("component", "selection"),
	}
}

// Weights returns the normalised weights in use.
func (s *Selector) Weights() Weights {
	return s.weights
}

// SelectNext returns the question id with the highest sampled score.
func (s *Selector) SelectNext(ctx context.Context, learnerID string, candidates []Candidate) (string, error) {
	ranked, err := s.Rank(ctx, learnerID, candidates)
	if err != nil {
		return "", err
	}
	metrics.Selections.Inc()
	metrics.SelectionCandidates.Observe(float64(len(ranked)))
	s.log.Debug("question selected",
		"learner_id", learnerID,
		"question_id", ranked[0].QuestionID,
		"score", ranked[0].Total,
		"candidates", len(ranked),
	)
	return ranked[0].QuestionID, nil
}

// SelectNextIDs is SelectNext for callers that only know question ids.
func (s *Selector) SelectNextIDs(ctx context.Context, learnerID string, questionIDs []string) (string, error) {
	candidates := make([]Candidate, len(questionIDs))
	for i, id := range questionIDs {
		candidates[i] = Candidate{QuestionID: id}
	}
	return s.SelectNext(ctx, learnerID, candidates)
}

// Rank draws a score for every candidate and returns them best first.
// Duplicate question ids keep their first occurrence. Equal scores fall back
// to the least recently attempted question, then the one with fewer
// attempts, then input order.
func (s *Selector) Rank(ctx context.Context, learnerID string, candidates []Candidate) ([]Score, error) {
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return nil, arm.ErrNoEligibleQuestions
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.QuestionID
	}
	questions, err := s.store.GetQuestions(ctx, learnerID, ids)
	if err != nil {
		return nil, err
	}

	topicKeys := make([]string, 0, len(candidates))
	for i := range candidates {
		if candidates[i].TopicKey == "" {
			if q := questions[candidates[i].QuestionID]; q != nil {
				candidates[i].TopicKey = q.TopicKey
			}
		}
		if candidates[i].TopicKey != "" && !slices.Contains(topicKeys, candidates[i].TopicKey) {
			topicKeys = append(topicKeys, candidates[i].TopicKey)
		}
	}
	topics, err := s.store.GetTopics(ctx, learnerID, topicKeys)
	if err != nil {
		return nil, err
	}

	w := s.weights
	topicDraws := make(map[string]float64, len(topicKeys))
	scores := make([]Score, len(candidates))
	for i, c := range candidates {
		qc := arm.NewCounters()
		var last int64
		if q := questions[c.QuestionID]; q != nil {
			qc = q.Counters
			last = q.LastAttemptedAt
		}
		sq := s.sampler.Beta(qc.Alpha, qc.Beta)

		st, ok := topicDraws[c.TopicKey]
		if !ok {
			tc := arm.NewCounters()
			if t := topics[c.TopicKey]; t != nil {
				tc = t.Counters
			}
			st = s.sampler.Beta(tc.Alpha, tc.Beta)
			topicDraws[c.TopicKey] = st
		}

		explore := w.Exploration / float64(1+qc.Attempts)
		scores[i] = Score{
			QuestionID:      c.QuestionID,
			TopicKey:        c.TopicKey,
			QuestionSample:  sq,
			TopicSample:     st,
			Exploration:     explore,
			Total:           w.Question*(1-sq) + w.Topic*(1-st) + explore,
			Attempts:        qc.Attempts,
			LastAttemptedAt: last,
		}
	}

	slices.SortStableFunc(scores, func(a, b Score) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(a.LastAttemptedAt, b.LastAttemptedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Attempts, b.Attempts)
	})
	return scores, nil
}

func dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.QuestionID == "" || seen[c.QuestionID] {
			continue
		}
		seen[c.QuestionID] = true
		out = append(out, c)
	}
	return out
}
