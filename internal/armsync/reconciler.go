// Package armsync exchanges arm state with a remote peer. Deltas carry every
// arm written after a checkpoint; applying one keeps, per arm, whichever
// side wrote last. Counters are never merged.
package armsync

import (
	"context"
	"fmt"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/cache"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/metrics"
)

// Delta is a set of arms changed since a checkpoint.
type Delta struct {
	QuestionArms []*arm.QuestionArm `json:"questionArms"`
	TopicArms    []*arm.TopicArm    `json:"topicArms"`
}

// Len returns the number of arms in the delta.
func (d Delta) Len() int {
	return len(d.QuestionArms) + len(d.TopicArms)
}

// Records flattens the delta, questions first.
func (d Delta) Records() []arm.Record {
	out := make([]arm.Record, 0, d.Len())
	for _, q := range d.QuestionArms {
		out = append(out, q.Record())
	}
	for _, t := range d.TopicArms {
		out = append(out, t.Record())
	}
	return out
}

// DeltaFromRecords checks each record and splits them by kind.
func DeltaFromRecords(records []arm.Record) (Delta, error) {
	var d Delta
	for i, r := range records {
		if err := r.Check(); err != nil {
			return Delta{}, &ErrInvalidRecord{Index: i, Kind: r.Kind, EntityKey: r.EntityKey, Reason: err.Error()}
		}
		switch r.Kind {
		case arm.KindQuestion:
			q, err := r.QuestionArm()
			if err != nil {
				return Delta{}, &ErrInvalidRecord{Index: i, Kind: r.Kind, EntityKey: r.EntityKey, Reason: err.Error()}
			}
			d.QuestionArms = append(d.QuestionArms, q)
		case arm.KindTopic:
			t, err := r.TopicArm()
			if err != nil {
				return Delta{}, &ErrInvalidRecord{Index: i, Kind: r.Kind, EntityKey: r.EntityKey, Reason: err.Error()}
			}
			d.TopicArms = append(d.TopicArms, t)
		}
	}
	return d, nil
}

// ErrInvalidRecord rejects a remote batch before anything is written.
type ErrInvalidRecord struct {
	Index     int
	Kind      arm.Kind
	EntityKey string
	Reason    string
}

func (e *ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid %s record %d (%q): %s", e.Kind, e.Index, e.EntityKey, e.Reason)
}

// ApplyResult counts how each incoming arm was resolved.
type ApplyResult struct {
	Inserted int `json:"inserted"`
	Replaced int `json:"replaced"`
	Kept     int `json:"kept"`
}

// PendingCount is the number of arms a delta cut now would carry.
type PendingCount struct {
	QuestionArms int `json:"questionArms"`
	TopicArms    int `json:"topicArms"`
	Total        int `json:"total"`
}

// CheckpointStore persists the last sync time per learner.
type CheckpointStore interface {
	Save(ctx context.Context, learnerID string, checkpoint int64) error
	Latest(ctx context.Context, learnerID string) (int64, bool, error)
	Delete(ctx context.Context, learnerID string) error
}

// Reconciler produces and applies deltas.
type Reconciler struct {
	store       arm.TxStore
	checkpoints CheckpointStore
	clock       arm.Clock
	stats       cache.StatsCache
	log         *logger.Logger
}

// NewReconciler wires a reconciler. checkpoints and stats may be nil.
func NewReconciler(store arm.TxStore, checkpoints CheckpointStore, clock arm.Clock, stats cache.StatsCache, log *logger.Logger) *Reconciler {
	if clock == nil {
		clock = arm.NewMonotonicClock(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{
		store:       store,
		checkpoints: checkpoints,
		clock:       clock,
		stats:       stats,
		log:         log.With("component", "armsync"),
	}
}

// ChangesSince returns every arm of the learner written after checkpoint.
func (r *Reconciler) ChangesSince(ctx context.Context, learnerID string, checkpoint int64) (Delta, error) {
	qs, err := r.store.QuestionsUpdatedSince(ctx, learnerID, checkpoint)
	if err != nil {
		return Delta{}, err
	}
	ts, err := r.store.TopicsUpdatedSince(ctx, learnerID, checkpoint)
	if err != nil {
		return Delta{}, err
	}
	return Delta{QuestionArms: qs, TopicArms: ts}, nil
}

// PendingCount counts what ChangesSince would return without loading it.
func (r *Reconciler) PendingCount(ctx context.Context, learnerID string, checkpoint int64) (PendingCount, error) {
	nq, err := r.store.CountUpdatedSince(ctx, arm.KindQuestion, learnerID, checkpoint)
	if err != nil {
		return PendingCount{}, err
	}
	nt, err := r.store.CountUpdatedSince(ctx, arm.KindTopic, learnerID, checkpoint)
	if err != nil {
		return PendingCount{}, err
	}
	return PendingCount{QuestionArms: nq, TopicArms: nt, Total: nq + nt}, nil
}

// ApplyRemote merges a remote delta into local state. Absent arms are
// inserted; present arms are replaced only when the incoming arm was written
// strictly later. The whole delta commits in one transaction, so applying
// the same delta twice leaves the state unchanged.
func (r *Reconciler) ApplyRemote(ctx context.Context, learnerID string, d Delta) (ApplyResult, error) {
	if err := checkDelta(learnerID, d); err != nil {
		return ApplyResult{}, err
	}

	var res, qres, tres ApplyResult
	err := r.store.InTx(ctx, func(tx arm.Store) error {
		qres, tres = ApplyResult{}, ApplyResult{}
		if err := applyQuestions(ctx, tx, learnerID, d.QuestionArms, &qres); err != nil {
			return err
		}
		return applyTopics(ctx, tx, learnerID, d.TopicArms, &tres)
	})
	if err != nil {
		if arm.IsStoreUnavailable(err) {
			metrics.StoreErrors.WithLabelValues("apply_remote").Inc()
		}
		return ApplyResult{}, err
	}

	observe(arm.KindQuestion, qres)
	observe(arm.KindTopic, tres)
	res = ApplyResult{
		Inserted: qres.Inserted + tres.Inserted,
		Replaced: qres.Replaced + tres.Replaced,
		Kept:     qres.Kept + tres.Kept,
	}
	if res.Inserted+res.Replaced > 0 && r.stats != nil {
		if err := r.stats.InvalidateLearner(ctx, learnerID); err != nil {
			r.log.Warn("stats cache invalidate failed", "learner_id", learnerID, "error", err)
		}
	}
	r.log.Info("remote delta applied",
		"learner_id", learnerID,
		"inserted", res.Inserted,
		"replaced", res.Replaced,
		"kept", res.Kept,
	)
	return res, nil
}

func checkDelta(learnerID string, d Delta) error {
	if learnerID == "" {
		return &ErrInvalidRecord{Index: -1, Reason: "learner id is empty"}
	}
	for i, q := range d.QuestionArms {
		if err := checkRecord(learnerID, i, q.Record()); err != nil {
			return err
		}
	}
	for i, t := range d.TopicArms {
		if err := checkRecord(learnerID, len(d.QuestionArms)+i, t.Record()); err != nil {
			return err
		}
	}
	return nil
}

func checkRecord(learnerID string, index int, rec arm.Record) error {
	if err := rec.Check(); err != nil {
		return &ErrInvalidRecord{Index: index, Kind: rec.Kind, EntityKey: rec.EntityKey, Reason: err.Error()}
	}
	if rec.LearnerID != learnerID {
		return &ErrInvalidRecord{
			Index: index, Kind: rec.Kind, EntityKey: rec.EntityKey,
			Reason: fmt.Sprintf("belongs to learner %q", rec.LearnerID),
		}
	}
	return nil
}

func applyQuestions(ctx context.Context, tx arm.Store, learnerID string, incoming []*arm.QuestionArm, res *ApplyResult) error {
	if len(incoming) == 0 {
		return nil
	}
	ids := make([]string, len(incoming))
	for i, q := range incoming {
		ids[i] = q.QuestionID
	}
	local, err := tx.GetQuestions(ctx, learnerID, ids)
	if err != nil {
		return err
	}
	for _, q := range incoming {
		cur := local[q.QuestionID]
		switch {
		case cur == nil:
			res.Inserted++
		case q.UpdatedAt > cur.UpdatedAt:
			res.Replaced++
		default:
			res.Kept++
			continue
		}
		if err := tx.UpsertQuestion(ctx, q); err != nil {
			return err
		}
		local[q.QuestionID] = q
	}
	return nil
}

func applyTopics(ctx context.Context, tx arm.Store, learnerID string, incoming []*arm.TopicArm, res *ApplyResult) error {
	if len(incoming) == 0 {
		return nil
	}
	keys := make([]string, len(incoming))
	for i, t := range incoming {
		keys[i] = t.TopicKey
	}
	local, err := tx.GetTopics(ctx, learnerID, keys)
	if err != nil {
		return err
	}
	for _, t := range incoming {
		cur := local[t.TopicKey]
		switch {
		case cur == nil:
			res.Inserted++
		case t.UpdatedAt > cur.UpdatedAt:
			res.Replaced++
		default:
			res.Kept++
			continue
		}
		if err := tx.UpsertTopic(ctx, t); err != nil {
			return err
		}
		local[t.TopicKey] = t
	}
	return nil
}

func observe(kind arm.Kind, res ApplyResult) {
	if res.Inserted > 0 {
		metrics.SyncRecords.WithLabelValues(string(kind), "inserted").Add(float64(res.Inserted))
	}
	if res.Replaced > 0 {
		metrics.SyncRecords.WithLabelValues(string(kind), "replaced").Add(float64(res.Replaced))
	}
	if res.Kept > 0 {
		metrics.SyncRecords.WithLabelValues(string(kind), "kept").Add(float64(res.Kept))
	}
}

// Request is one side of a two-way exchange: the client's last sync time
// and everything it wrote since.
type Request struct {
	LastSyncTime int64
	Delta        Delta
}

// Response carries the server's view back. ServerTime is the client's next
// checkpoint.
type Response struct {
	ServerTime        int64
	Delta             Delta
	ConflictsResolved int
}

// Exchange applies the client's delta and returns every arm written after
// the client's last sync time, including the ones just applied.
func (r *Reconciler) Exchange(ctx context.Context, learnerID string, req Request) (Response, error) {
	serverTime := r.clock.NowMs()
	res, err := r.ApplyRemote(ctx, learnerID, req.Delta)
	if err != nil {
		return Response{}, err
	}
	out, err := r.ChangesSince(ctx, learnerID, req.LastSyncTime)
	if err != nil {
		return Response{}, err
	}
	return Response{ServerTime: serverTime, Delta: out, ConflictsResolved: res.Replaced}, nil
}

// Checkpoint returns the learner's last sync time, or 0 before the first sync.
func (r *Reconciler) Checkpoint(ctx context.Context, learnerID string) (int64, error) {
	if r.checkpoints == nil {
		return 0, nil
	}
	cp, _, err := r.checkpoints.Latest(ctx, learnerID)
	return cp, err
}

// MarkSynced records checkpoint as the learner's last sync time.
func (r *Reconciler) MarkSynced(ctx context.Context, learnerID string, checkpoint int64) error {
	if r.checkpoints == nil {
		return fmt.Errorf("no checkpoint store configured")
	}
	return r.checkpoints.Save(ctx, learnerID, checkpoint)
}

// ForgetCheckpoint drops the learner's checkpoint so the next delta carries
// everything.
func (r *Reconciler) ForgetCheckpoint(ctx context.Context, learnerID string) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.Delete(ctx, learnerID)
}
