package arm

import "context"

// Store is the persistence contract for arm state. Lookups return nil with
// no error when the arm does not exist. Implementations wrap their failures
// in ErrStoreUnavailable.
type Store interface {
	GetQuestion(ctx context.Context, learnerID, questionID string) (*QuestionArm, error)
	GetTopic(ctx context.Context, learnerID, topicKey string) (*TopicArm, error)

	// GetQuestions and GetTopics return the arms that exist, keyed by entity key.
	GetQuestions(ctx context.Context, learnerID string, questionIDs []string) (map[string]*QuestionArm, error)
	GetTopics(ctx context.Context, learnerID string, topicKeys []string) (map[string]*TopicArm, error)

	// UpsertQuestion and UpsertTopic overwrite by identity key.
	UpsertQuestion(ctx context.Context, q *QuestionArm) error
	UpsertTopic(ctx context.Context, t *TopicArm) error

	Delete(ctx context.Context, kind Kind, learnerID, entityKey string) error
	DeleteAll(ctx context.Context, kind Kind, learnerID string) error

	// QuestionsUpdatedSince and TopicsUpdatedSince return arms with
	// UpdatedAt strictly greater than since.
	QuestionsUpdatedSince(ctx context.Context, learnerID string, since int64) ([]*QuestionArm, error)
	TopicsUpdatedSince(ctx context.Context, learnerID string, since int64) ([]*TopicArm, error)
	CountUpdatedSince(ctx context.Context, kind Kind, learnerID string, since int64) (int, error)
}

// TxStore is a Store that can run a group of operations atomically. If fn
// returns an error none of its writes are committed.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(tx Store) error) error
}
