package arm

import (
	"fmt"
	"math"
)

// Record is the flat, kind-tagged layout exchanged with sync and analytics
// consumers. Question-only fields are nil/empty on topic records.
type Record struct {
	Kind      Kind   `json:"kind"`
	LearnerID string `json:"learnerId"`
	EntityKey string `json:"entityKey"`

	// Question only.
	TopicKey        string   `json:"topicKey,omitempty"`
	UserConfidence  *float64 `json:"userConfidence,omitempty"`
	LastAttemptedAt *int64   `json:"lastAttemptedAt,omitempty"`

	// Topic only.
	Course        string `json:"course,omitempty"`
	Topic         string `json:"topic,omitempty"`
	KnowledgeType string `json:"knowledgeType,omitempty"`

	Attempts            int     `json:"attempts"`
	Successes           int     `json:"successes"`
	Failures            int     `json:"failures"`
	TotalResponseTimeMs int64   `json:"totalResponseTimeMs"`
	Alpha               float64 `json:"alpha"`
	Beta                float64 `json:"beta"`
	CreatedAt           int64   `json:"createdAt"`
	UpdatedAt           int64   `json:"updatedAt"`
}

// Record flattens the question arm.
func (q *QuestionArm) Record() Record {
	conf := q.UserConfidence
	r := Record{
		Kind:           KindQuestion,
		LearnerID:      q.LearnerID,
		EntityKey:      q.QuestionID,
		TopicKey:       q.TopicKey,
		UserConfidence: &conf,
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}
	if q.LastAttemptedAt > 0 {
		last := q.LastAttemptedAt
		r.LastAttemptedAt = &last
	}
	r.setCounters(q.Counters)
	return r
}

// Record flattens the topic arm.
func (t *TopicArm) Record() Record {
	r := Record{
		Kind:          KindTopic,
		LearnerID:     t.LearnerID,
		EntityKey:     t.TopicKey,
		Course:        t.Course,
		Topic:         t.Topic,
		KnowledgeType: t.KnowledgeType,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	r.setCounters(t.Counters)
	return r
}

func (r *Record) setCounters(c Counters) {
	r.Attempts = c.Attempts
	r.Successes = c.Successes
	r.Failures = c.Failures
	r.TotalResponseTimeMs = c.TotalResponseTimeMs
	r.Alpha = c.Alpha
	r.Beta = c.Beta
}

func (r Record) counters() Counters {
	return Counters{
		Attempts:            r.Attempts,
		Successes:           r.Successes,
		Failures:            r.Failures,
		TotalResponseTimeMs: r.TotalResponseTimeMs,
		Alpha:               r.Alpha,
		Beta:                r.Beta,
	}
}

// QuestionArm rebuilds a question arm from a question record.
func (r Record) QuestionArm() (*QuestionArm, error) {
	if r.Kind != KindQuestion {
		return nil, fmt.Errorf("record kind %q is not %q", r.Kind, KindQuestion)
	}
	q := &QuestionArm{
		LearnerID:      r.LearnerID,
		QuestionID:     r.EntityKey,
		TopicKey:       r.TopicKey,
		Counters:       r.counters(),
		UserConfidence: 0.5,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.UserConfidence != nil {
		q.UserConfidence = Clamp01(*r.UserConfidence)
	}
	if r.LastAttemptedAt != nil {
		q.LastAttemptedAt = *r.LastAttemptedAt
	}
	return q, nil
}

// TopicArm rebuilds a topic arm from a topic record.
func (r Record) TopicArm() (*TopicArm, error) {
	if r.Kind != KindTopic {
		return nil, fmt.Errorf("record kind %q is not %q", r.Kind, KindTopic)
	}
	return &TopicArm{
		LearnerID:     r.LearnerID,
		TopicKey:      r.EntityKey,
		Course:        r.Course,
		Topic:         r.Topic,
		KnowledgeType: r.KnowledgeType,
		Counters:      r.counters(),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

// Check verifies the structural invariants every stored arm satisfies.
func (r Record) Check() error {
	switch {
	case !r.Kind.Valid():
		return fmt.Errorf("unknown kind %q", r.Kind)
	case r.LearnerID == "":
		return fmt.Errorf("learner id is empty")
	case r.EntityKey == "":
		return fmt.Errorf("entity key is empty")
	case r.Attempts < 0 || r.Successes < 0 || r.Failures < 0:
		return fmt.Errorf("negative counters")
	case r.Attempts != r.Successes+r.Failures:
		return fmt.Errorf("attempts %d != successes %d + failures %d", r.Attempts, r.Successes, r.Failures)
	case r.TotalResponseTimeMs < 0:
		return fmt.Errorf("negative total response time")
	case math.IsNaN(r.Alpha) || math.IsNaN(r.Beta) || r.Alpha < PriorAlpha || r.Beta < PriorBeta:
		return fmt.Errorf("beta parameters (%v, %v) below the prior", r.Alpha, r.Beta)
	case r.UpdatedAt <= 0:
		return fmt.Errorf("missing updatedAt")
	case r.CreatedAt > r.UpdatedAt:
		return fmt.Errorf("createdAt %d after updatedAt %d", r.CreatedAt, r.UpdatedAt)
	}
	if r.Kind == KindTopic && (r.UserConfidence != nil || r.LastAttemptedAt != nil) {
		return fmt.Errorf("topic record carries question-only fields")
	}
	return nil
}
