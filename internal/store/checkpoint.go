package store

import (
	"context"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// CheckpointRepo remembers, per learner, the server time of the last
// successful sync so the next export only carries newer changes.
type CheckpointRepo interface {
	// Save stores the checkpoint, replacing any previous one.
	Save(ctx context.Context, learnerID string, checkpoint int64) error

	// Latest returns the stored checkpoint, or 0 and false if none exists.
	Latest(ctx context.Context, learnerID string) (int64, bool, error)

	// Delete forgets the learner's checkpoint.
	Delete(ctx context.Context, learnerID string) error
}

// checkpointRepo implements CheckpointRepo using the ent SQL driver.
type checkpointRepo struct {
	conn dialect.ExecQuerier
}

func (r *checkpointRepo) Save(ctx context.Context, learnerID string, checkpoint int64) error {
	query, args := builder().Insert(SyncCheckpointsTable.Name).
		Columns("learner_id", "checkpoint", "saved_at").
		Values(learnerID, checkpoint, time.Now().UTC().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("learner_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("save checkpoint", err)
	}
	return nil
}

func (r *checkpointRepo) Latest(ctx context.Context, learnerID string) (int64, bool, error) {
	query, args := builder().Select("checkpoint").
		From(entsql.Table(SyncCheckpointsTable.Name)).
		Where(entsql.EQ("learner_id", learnerID)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.conn.Query(ctx, query, args, &rows); err != nil {
		return 0, false, storeErr("query checkpoint", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, false, storeErr("query checkpoint", err)
		}
		return 0, false, nil
	}
	var cp int64
	if err := rows.Scan(&cp); err != nil {
		return 0, false, storeErr("scan checkpoint", err)
	}
	return cp, true, nil
}

func (r *checkpointRepo) Delete(ctx context.Context, learnerID string) error {
	query, args := builder().Delete(SyncCheckpointsTable.Name).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()
	if err := r.conn.Exec(ctx, query, args, nil); err != nil {
		return storeErr("delete checkpoint", err)
	}
	return nil
}
