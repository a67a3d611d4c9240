package arm

import (
	"strings"
)

// Kind identifies which of the two arm tables a record belongs to.
type Kind string

const (
	KindQuestion Kind = "question"
	KindTopic    Kind = "topic"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindQuestion || k == KindTopic
}

// Uniform prior applied to every arm on first observation.
const (
	PriorAlpha = 1.0
	PriorBeta  = 1.0
)

// Counters holds the statistics shared by question and topic arms.
type Counters struct {
	Attempts            int     `json:"attempts"`
	Successes           int     `json:"successes"`
	Failures            int     `json:"failures"`
	TotalResponseTimeMs int64   `json:"totalResponseTimeMs"`
	Alpha               float64 `json:"alpha"`
	Beta                float64 `json:"beta"`
}

// NewCounters returns zeroed counters at the uniform prior.
func NewCounters() Counters {
	return Counters{Alpha: PriorAlpha, Beta: PriorBeta}
}

// Observe applies one Bernoulli trial to the counters.
func (c *Counters) Observe(correct bool, responseTimeMs int64) {
	c.Attempts++
	if correct {
		c.Successes++
		c.Alpha++
	} else {
		c.Failures++
		c.Beta++
	}
	c.TotalResponseTimeMs += responseTimeMs
}

// Absorb adds the observations recorded in o.
func (c *Counters) Absorb(o Counters) {
	c.Attempts += o.Attempts
	c.Successes += o.Successes
	c.Failures += o.Failures
	c.TotalResponseTimeMs += o.TotalResponseTimeMs
	c.Alpha += float64(o.Successes)
	c.Beta += float64(o.Failures)
}

// Release removes the observations recorded in o. Counters never drop below
// zero and the Beta parameters never drop below the prior.
func (c *Counters) Release(o Counters) {
	c.Successes = max(0, c.Successes-o.Successes)
	c.Failures = max(0, c.Failures-o.Failures)
	c.Attempts = c.Successes + c.Failures
	c.TotalResponseTimeMs = max(0, c.TotalResponseTimeMs-o.TotalResponseTimeMs)
	c.Alpha = max(PriorAlpha, c.Alpha-float64(o.Successes))
	c.Beta = max(PriorBeta, c.Beta-float64(o.Failures))
}

// SuccessRate returns successes/attempts, or 0 when nothing was attempted.
func (c Counters) SuccessRate() float64 {
	if c.Attempts == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Attempts)
}

// PosteriorMean is the expected probability of a correct answer.
func (c Counters) PosteriorMean() float64 {
	if c.Alpha+c.Beta == 0 {
		return 0
	}
	return c.Alpha / (c.Alpha + c.Beta)
}

// MeanResponseTimeMs returns the average latency per attempt.
func (c Counters) MeanResponseTimeMs() float64 {
	if c.Attempts == 0 {
		return 0
	}
	return float64(c.TotalResponseTimeMs) / float64(c.Attempts)
}

// QuestionArm is the per (learner, question) posterior.
type QuestionArm struct {
	LearnerID  string `json:"learnerId"`
	QuestionID string `json:"questionId"`
	// TopicKey is the topic the question was last answered under.
	TopicKey string `json:"topicKey,omitempty"`
	Counters
	UserConfidence  float64 `json:"userConfidence"`
	LastAttemptedAt int64   `json:"lastAttemptedAt,omitempty"`
	CreatedAt       int64   `json:"createdAt"`
	UpdatedAt       int64   `json:"updatedAt"`
}

// NewQuestionArm returns an unobserved arm at the prior.
func NewQuestionArm(learnerID, questionID string) *QuestionArm {
	return &QuestionArm{
		LearnerID:      learnerID,
		QuestionID:     questionID,
		Counters:       NewCounters(),
		UserConfidence: 0.5,
	}
}

// TopicArm aggregates every question of a learner that shares a topic key.
type TopicArm struct {
	LearnerID     string `json:"learnerId"`
	TopicKey      string `json:"topicKey"`
	Course        string `json:"course,omitempty"`
	Topic         string `json:"topic,omitempty"`
	KnowledgeType string `json:"knowledgeType,omitempty"`
	Counters
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// NewTopicArm returns an unobserved topic arm at the prior.
func NewTopicArm(learnerID, topicKey string) *TopicArm {
	return &TopicArm{
		LearnerID: learnerID,
		TopicKey:  topicKey,
		Counters:  NewCounters(),
	}
}

// TopicRef names a topic by its descriptive parts.
type TopicRef struct {
	Course        string `json:"course"`
	Topic         string `json:"topic"`
	KnowledgeType string `json:"knowledgeType"`
}

// Key derives the topic key. Equal refs always produce equal keys.
func (r TopicRef) Key() string {
	return strings.Join([]string{
		strings.TrimSpace(r.Course),
		strings.TrimSpace(r.Topic),
		strings.TrimSpace(r.KnowledgeType),
	}, ":")
}

// IsZero reports whether no part of the ref is set.
func (r TopicRef) IsZero() bool {
	return strings.TrimSpace(r.Course) == "" &&
		strings.TrimSpace(r.Topic) == "" &&
		strings.TrimSpace(r.KnowledgeType) == ""
}

// ParseTopicKey splits a key produced by TopicRef.Key. Keys that were not
// produced that way come back as the Topic part only.
func ParseTopicKey(key string) TopicRef {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return TopicRef{Topic: key}
	}
	return TopicRef{Course: parts[0], Topic: parts[1], KnowledgeType: parts[2]}
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
