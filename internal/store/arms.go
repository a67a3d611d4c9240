package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mabquiz/internal/arm"
)

var questionArmFields = []string{
	"learner_id", "question_id", "topic_key",
	"attempts", "successes", "failures", "total_response_time_ms",
	"alpha", "beta", "user_confidence", "last_attempted_at",
	"created_at", "updated_at",
}

var topicArmFields = []string{
	"learner_id", "topic_key", "course", "topic", "knowledge_type",
	"attempts", "successes", "failures", "total_response_time_ms",
	"alpha", "beta",
	"created_at", "updated_at",
}

// ArmRepo implements arm.TxStore on top of the ent SQL driver. A repo
// returned by Store.Arms runs each call on its own; the repo handed to an
// InTx callback runs every call inside the transaction.
type ArmRepo struct {
	drv  dialect.Driver // nil when bound to a transaction
	conn dialect.ExecQuerier
}

var _ arm.TxStore = (*ArmRepo)(nil)

func storeErr(op string, err error) error {
	return &arm.ErrStoreUnavailable{Op: op, Err: err}
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func tableFor(kind arm.Kind) (table, keyColumn string, err error) {
	switch kind {
	case arm.KindQuestion:
		return QuestionArmsTable.Name, "question_id", nil
	case arm.KindTopic:
		return TopicArmsTable.Name, "topic_key", nil
	default:
		return "", "", fmt.Errorf("unknown arm kind %q", kind)
	}
}

// InTx runs fn inside a single database transaction. Calls on an ArmRepo that
// is already bound to a transaction join it.
func (r *ArmRepo) InTx(ctx context.Context, fn func(tx arm.Store) error) (err error) {
	if r.drv == nil {
		return fn(r)
	}
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return storeErr("begin tx", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(&ArmRepo{conn: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit tx", err)
	}
	return nil
}

func (r *ArmRepo) GetQuestion(ctx context.Context, learnerID, questionID string) (*arm.QuestionArm, error) {
	arms, err := r.queryQuestions(ctx, "get question arm", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.EQ("question_id", questionID),
	))
	if err != nil || len(arms) == 0 {
		return nil, err
	}
	return arms[0], nil
}

func (r *ArmRepo) GetTopic(ctx context.Context, learnerID, topicKey string) (*arm.TopicArm, error) {
	arms, err := r.queryTopics(ctx, "get topic arm", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.EQ("topic_key", topicKey),
	))
	if err != nil || len(arms) == 0 {
		return nil, err
	}
	return arms[0], nil
}

func (r *ArmRepo) GetQuestions(ctx context.Context, learnerID string, questionIDs []string) (map[string]*arm.QuestionArm, error) {
	out := make(map[string]*arm.QuestionArm, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	arms, err := r.queryQuestions(ctx, "get question arms", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.In("question_id", anySlice(questionIDs)...),
	))
	if err != nil {
		return nil, err
	}
	for _, q := range arms {
		out[q.QuestionID] = q
	}
	return out, nil
}

func (r *ArmRepo) GetTopics(ctx context.Context, learnerID string, topicKeys []string) (map[string]*arm.TopicArm, error) {
	out := make(map[string]*arm.TopicArm, len(topicKeys))
	if len(topicKeys) == 0 {
		return out, nil
	}
	arms, err := r.queryTopics(ctx, "get topic arms", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.In("topic_key", anySlice(topicKeys)...),
	))
	if err != nil {
		return nil, err
	}
	for _, t := range arms {
		out[t.TopicKey] = t
	}
	return out, nil
}

func (r *ArmRepo) UpsertQuestion(ctx context.Context, q *arm.QuestionArm) error {
	var lastAttempted any
	if q.LastAttemptedAt > 0 {
		lastAttempted = q.LastAttemptedAt
	}
	query, args := builder().Insert(QuestionArmsTable.Name).
		Columns(questionArmFields...).
		Values(
			q.LearnerID, q.QuestionID, q.TopicKey,
			q.Attempts, q.Successes, q.Failures, q.TotalResponseTimeMs,
			q.Alpha, q.Beta, q.UserConfidence, lastAttempted,
			q.CreatedAt, q.UpdatedAt,
		).
		OnConflict(
			entsql.ConflictColumns("learner_id", "question_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("upsert question arm", err)
	}
	return nil
}

func (r *ArmRepo) UpsertTopic(ctx context.Context, t *arm.TopicArm) error {
	query, args := builder().Insert(TopicArmsTable.Name).
		Columns(topicArmFields...).
		Values(
			t.LearnerID, t.TopicKey, t.Course, t.Topic, t.KnowledgeType,
			t.Attempts, t.Successes, t.Failures, t.TotalResponseTimeMs,
			t.Alpha, t.Beta,
			t.CreatedAt, t.UpdatedAt,
		).
		OnConflict(
			entsql.ConflictColumns("learner_id", "topic_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("upsert topic arm", err)
	}
	return nil
}

func (r *ArmRepo) Delete(ctx context.Context, kind arm.Kind, learnerID, entityKey string) error {
	table, keyColumn, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args := builder().Delete(table).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.EQ(keyColumn, entityKey),
		)).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("delete "+string(kind)+" arm", err)
	}
	return nil
}

func (r *ArmRepo) DeleteAll(ctx context.Context, kind arm.Kind, learnerID string) error {
	table, _, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args := builder().Delete(table).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("delete all "+string(kind)+" arms", err)
	}
	return nil
}

func (r *ArmRepo) QuestionsUpdatedSince(ctx context.Context, learnerID string, since int64) ([]*arm.QuestionArm, error) {
	return r.queryQuestions(ctx, "scan question arms", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.GT("updated_at", since),
	))
}

func (r *ArmRepo) TopicsUpdatedSince(ctx context.Context, learnerID string, since int64) ([]*arm.TopicArm, error) {
	return r.queryTopics(ctx, "scan topic arms", entsql.And(
		entsql.EQ("learner_id", learnerID),
		entsql.GT("updated_at", since),
	))
}

func (r *ArmRepo) CountUpdatedSince(ctx context.Context, kind arm.Kind, learnerID string, since int64) (int, error) {
	table, _, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query, args := builder().Select(entsql.Count("*")).
		From(entsql.Table(table)).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.GT("updated_at", since),
		)).
		Query()

	var rows entsql.Rows
	if err := r.conn.Query(ctx, query, args, &rows); err != nil {
		return 0, storeErr("count "+string(kind)+" arms", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, storeErr("count "+string(kind)+" arms", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, storeErr("count "+string(kind)+" arms", err)
	}
	return n, nil
}

func (r *ArmRepo) queryQuestions(ctx context.Context, op string, where *entsql.Predicate) ([]*arm.QuestionArm, error) {
	query, args := builder().Select(questionArmFields...).
		From(entsql.Table(QuestionArmsTable.Name)).
		Where(where).
		OrderBy("question_id").
		Query()

	var rows entsql.Rows
	if err := r.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []*arm.QuestionArm
	for rows.Next() {
		var (
			q             arm.QuestionArm
			lastAttempted sql.NullInt64
		)
		if err := rows.Scan(
			&q.LearnerID, &q.QuestionID, &q.TopicKey,
			&q.Attempts, &q.Successes, &q.Failures, &q.TotalResponseTimeMs,
			&q.Alpha, &q.Beta, &q.UserConfidence, &lastAttempted,
			&q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, storeErr(op, err)
		}
		if lastAttempted.Valid {
			q.LastAttemptedAt = lastAttempted.Int64
		}
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func (r *ArmRepo) queryTopics(ctx context.Context, op string, where *entsql.Predicate) ([]*arm.TopicArm, error) {
	query, args := builder().Select(topicArmFields...).
		From(entsql.Table(TopicArmsTable.Name)).
		Where(where).
		OrderBy("topic_key").
		Query()

	var rows entsql.Rows
	if err := r.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []*arm.TopicArm
	for rows.Next() {
		var t arm.TopicArm
		if err := rows.Scan(
			&t.LearnerID, &t.TopicKey, &t.Course, &t.Topic, &t.KnowledgeType,
			&t.Attempts, &t.Successes, &t.Failures, &t.TotalResponseTimeMs,
			&t.Alpha, &t.Beta,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
