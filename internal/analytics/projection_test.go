package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/cache"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/posterior"
	"github.com/abhisek/mabquiz/internal/store"
)

type fixture struct {
	repo    *store.ArmRepo
	updater *posterior.Updater
	proj    *Projection
	stats   *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	stats := cache.NewMemory(0)
	repo := s.Arms()
	return &fixture{
		repo:    repo,
		updater: posterior.NewUpdater(repo, arm.NewMonotonicClock(nil), stats, logger.Nop()),
		proj:    NewProjection(repo, stats, logger.Nop()),
		stats:   stats,
	}
}

func (f *fixture) answer(t *testing.T, qid, topic string, outcomes ...bool) {
	t.Helper()
	for _, ok := range outcomes {
		_, _, err := f.updater.RecordOutcome(context.Background(), posterior.Outcome{
			LearnerID: "l1", QuestionID: qid, TopicKey: topic, Correct: ok, ResponseTimeMs: 2000,
		})
		require.NoError(t, err)
	}
}

func TestWeakQuestions_Scenario(t *testing.T) {
	f := newFixture(t)
	f.answer(t, "Q1", "T1", true, false)

	rows, err := f.proj.WeakQuestions(context.Background(), "l1", 2, 0.6)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Q1", rows[0].QuestionID)
	assert.Equal(t, 0.5, rows[0].SuccessRate)
	assert.Equal(t, 0.5, rows[0].PosteriorMean)
	assert.Equal(t, 2000.0, rows[0].MeanResponseTimeMs)
}

func TestWeakQuestions_FiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	f.answer(t, "once", "T1", false)
	f.answer(t, "strong", "T1", true, true, true)
	f.answer(t, "weak", "T1", true, false, false)
	f.answer(t, "weakest", "T2", false, false, false)
	// 3/5 is not below the threshold.
	f.answer(t, "borderline", "T2", true, true, false, false, true)

	rows, err := f.proj.WeakQuestions(context.Background(), "l1", 2, 0.6)
	require.NoError(t, err)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.QuestionID)
	}
	assert.Equal(t, []string{"weakest", "weak"}, ids)
}

func TestTopics_WeakAndBest(t *testing.T) {
	f := newFixture(t)
	f.answer(t, "a", "good", true, true, true, true)
	f.answer(t, "b", "mid", true, false, true)
	f.answer(t, "c", "bad", false, false, true)
	f.answer(t, "d", "new", true)
	ctx := context.Background()

	weak, err := f.proj.WeakTopics(ctx, "l1", 2, 0.6)
	require.NoError(t, err)
	require.Len(t, weak, 1)
	assert.Equal(t, "bad", weak[0].TopicKey)

	best, err := f.proj.BestTopics(ctx, "l1", 2, 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "good", best[0].TopicKey)
	assert.Equal(t, "mid", best[1].TopicKey)

	all, err := f.proj.BestTopics(ctx, "l1", 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestAggregateStats(t *testing.T) {
	f := newFixture(t)
	f.answer(t, "q1", "t1", true, true)
	f.answer(t, "q2", "t1", false)

	// An arm with no attempts must not dilute the mean.
	empty := arm.NewQuestionArm("l1", "q3")
	empty.CreatedAt, empty.UpdatedAt = 1, 1
	require.NoError(t, f.repo.UpsertQuestion(context.Background(), empty))

	stats, err := f.proj.AggregateStats(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, KindStats{Count: 3, Attempts: 3, Successes: 2, Failures: 1, MeanSuccessRate: 0.5}, stats.Questions)
	assert.Equal(t, 1, stats.Topics.Count)
	assert.InDelta(t, 2.0/3, stats.Topics.MeanSuccessRate, 1e-9)
}

func TestAggregateStats_CachedUntilWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.answer(t, "q1", "t1", true)

	first, err := f.proj.AggregateStats(ctx, "l1")
	require.NoError(t, err)

	var cached Stats
	hit, err := f.stats.GetStats(ctx, "l1", &cached)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, first, cached)

	f.answer(t, "q1", "t1", false)
	second, err := f.proj.AggregateStats(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Questions.Attempts, "a write must invalidate the cached stats")
}

// writeDuringScan runs write once, right after the question scan.
type writeDuringScan struct {
	arm.Store
	write func()
}

func (s *writeDuringScan) QuestionsUpdatedSince(ctx context.Context, learnerID string, since int64) ([]*arm.QuestionArm, error) {
	qs, err := s.Store.QuestionsUpdatedSince(ctx, learnerID, since)
	if s.write != nil {
		w := s.write
		s.write = nil
		w()
	}
	return qs, err
}

func TestAggregateStats_WriteDuringComputeNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.answer(t, "q1", "t1", true)

	racing := NewProjection(&writeDuringScan{
		Store: f.repo,
		write: func() { f.answer(t, "q1", "t1", false) },
	}, f.stats, logger.Nop())

	stale, err := racing.AggregateStats(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Questions.Attempts)

	var cached Stats
	hit, err := f.stats.GetStats(ctx, "l1", &cached)
	require.NoError(t, err)
	assert.False(t, hit, "stats computed across a write must not be cached")

	fresh, err := f.proj.AggregateStats(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Questions.Attempts)
}

func TestLookups(t *testing.T) {
	f := newFixture(t)
	f.answer(t, "q1", "pharm:dosage:calc", true)
	ctx := context.Background()

	q, err := f.proj.Question(ctx, "l1", "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, q.Attempts)

	tp, err := f.proj.Topic(ctx, "l1", "pharm:dosage:calc")
	require.NoError(t, err)
	assert.Equal(t, "dosage", tp.Topic)

	_, err = f.proj.Question(ctx, "l1", "missing")
	assert.True(t, errors.Is(err, arm.ErrArmNotFound))
	_, err = f.proj.Topic(ctx, "l2", "pharm:dosage:calc")
	assert.True(t, errors.Is(err, arm.ErrArmNotFound))
}
