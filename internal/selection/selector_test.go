package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/logger"
	"github.com/abhisek/mabquiz/internal/store"
)

// constSampler returns the posterior mean instead of a random draw.
type constSampler struct{}

func (constSampler) Beta(alpha, beta float64) float64 { return alpha / (alpha + beta) }

func openTestStore(t *testing.T) *store.ArmRepo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.Arms()
}

func putQuestion(t *testing.T, repo *store.ArmRepo, id, topic string, outcomes []bool, lastAttempted int64) {
	t.Helper()
	q := arm.NewQuestionArm("l1", id)
	q.TopicKey = topic
	for _, ok := range outcomes {
		q.Observe(ok, 1000)
	}
	q.LastAttemptedAt = lastAttempted
	q.CreatedAt, q.UpdatedAt = 1, max(lastAttempted, 1)
	if err := repo.UpsertQuestion(context.Background(), q); err != nil {
		t.Fatal(err)
	}
}

func TestSelectNext_Empty(t *testing.T) {
	sel := NewSelector(openTestStore(t), NewSeededSampler(1), DefaultWeights, logger.Nop())
	_, err := sel.SelectNext(context.Background(), "l1", nil)
	if !errors.Is(err, arm.ErrNoEligibleQuestions) {
		t.Fatalf("err = %v, want ErrNoEligibleQuestions", err)
	}
	_, err = sel.SelectNextIDs(context.Background(), "l1", []string{""})
	if !errors.Is(err, arm.ErrNoEligibleQuestions) {
		t.Fatalf("blank ids: err = %v, want ErrNoEligibleQuestions", err)
	}
}

func TestSelectNext_DeterministicWithSeed(t *testing.T) {
	repo := openTestStore(t)
	putQuestion(t, repo, "q1", "t1", []bool{true, false}, 10)
	putQuestion(t, repo, "q2", "t1", []bool{true, true, true}, 20)
	putQuestion(t, repo, "q3", "t2", []bool{false}, 30)
	ids := []string{"q1", "q2", "q3", "q4"}
	ctx := context.Background()

	a := NewSelector(repo, NewSeededSampler(99), DefaultWeights, logger.Nop())
	b := NewSelector(repo, NewSeededSampler(99), DefaultWeights, logger.Nop())
	for i := 0; i < 50; i++ {
		x, err := a.SelectNextIDs(ctx, "l1", ids)
		if err != nil {
			t.Fatal(err)
		}
		y, err := b.SelectNextIDs(ctx, "l1", ids)
		if err != nil {
			t.Fatal(err)
		}
		if x != y {
			t.Fatalf("round %d: %s != %s", i, x, y)
		}
	}
}

func TestSelectNext_FavorsNeverAttempted(t *testing.T) {
	repo := openTestStore(t)
	putQuestion(t, repo, "Q1", "T1", []bool{true, false}, 10)
	sel := NewSelector(repo, NewSeededSampler(2024), DefaultWeights, logger.Nop())
	ctx := context.Background()
	candidates := []Candidate{{QuestionID: "Q1", TopicKey: "T1"}, {QuestionID: "Q2", TopicKey: "T1"}}

	wins := 0
	for i := 0; i < 1000; i++ {
		id, err := sel.SelectNext(ctx, "l1", candidates)
		if err != nil {
			t.Fatal(err)
		}
		if id == "Q2" {
			wins++
		}
	}
	if wins <= 600 || wins >= 1000 {
		t.Errorf("Q2 won %d/1000 draws, want a clear majority but not all", wins)
	}
}

func TestRank_TopicDrawnOncePerTopic(t *testing.T) {
	sel := NewSelector(openTestStore(t), NewSeededSampler(5), DefaultWeights, logger.Nop())
	ranked, err := sel.Rank(context.Background(), "l1", []Candidate{
		{QuestionID: "a", TopicKey: "t1"},
		{QuestionID: "b", TopicKey: "t2"},
		{QuestionID: "c", TopicKey: "t1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	byTopic := map[string][]float64{}
	for _, s := range ranked {
		byTopic[s.TopicKey] = append(byTopic[s.TopicKey], s.TopicSample)
	}
	if got := byTopic["t1"]; len(got) != 2 || got[0] != got[1] {
		t.Errorf("t1 samples = %v, want one shared draw", got)
	}
}

func TestRank_ResolvesTopicFromStoredArm(t *testing.T) {
	repo := openTestStore(t)
	putQuestion(t, repo, "q1", "pharm:dosage:calc", []bool{true}, 5)
	sel := NewSelector(repo, constSampler{}, DefaultWeights, logger.Nop())

	ranked, err := sel.Rank(context.Background(), "l1", []Candidate{{QuestionID: "q1"}})
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].TopicKey != "pharm:dosage:calc" {
		t.Errorf("topic key = %q", ranked[0].TopicKey)
	}
}

func TestRank_ScoreBreakdown(t *testing.T) {
	repo := openTestStore(t)
	putQuestion(t, repo, "q1", "t1", []bool{true, true, true}, 5) // Beta(4,1)
	sel := NewSelector(repo, constSampler{}, Weights{Question: 7, Topic: 3, Exploration: 0.3}, logger.Nop())

	ranked, err := sel.Rank(context.Background(), "l1", []Candidate{{QuestionID: "q1", TopicKey: "t1"}})
	if err != nil {
		t.Fatal(err)
	}
	s := ranked[0]
	// Topic t1 has no arm, so it samples at the prior mean 0.5.
	want := 0.7*(1-0.8) + 0.3*(1-0.5) + 0.3/4
	if d := s.Total - want; d > 1e-9 || d < -1e-9 {
		t.Errorf("total = %v, want %v", s.Total, want)
	}
	if w := sel.Weights(); w.Question != 0.7 || w.Topic != 0.3 {
		t.Errorf("weights not normalised: %+v", w)
	}
}

func TestRank_TieBreaks(t *testing.T) {
	ctx := context.Background()

	t.Run("input order", func(t *testing.T) {
		sel := NewSelector(openTestStore(t), constSampler{}, DefaultWeights, logger.Nop())
		id, err := sel.SelectNextIDs(ctx, "l1", []string{"b", "a", "c"})
		if err != nil {
			t.Fatal(err)
		}
		if id != "b" {
			t.Errorf("got %s, want b", id)
		}
	})

	t.Run("least recently attempted", func(t *testing.T) {
		repo := openTestStore(t)
		putQuestion(t, repo, "recent", "t1", []bool{true}, 200)
		putQuestion(t, repo, "stale", "t1", []bool{true}, 100)
		sel := NewSelector(repo, constSampler{}, DefaultWeights, logger.Nop())
		id, err := sel.SelectNextIDs(ctx, "l1", []string{"recent", "stale"})
		if err != nil {
			t.Fatal(err)
		}
		if id != "stale" {
			t.Errorf("got %s, want stale", id)
		}
	})

	t.Run("fewer attempts", func(t *testing.T) {
		repo := openTestStore(t)
		putQuestion(t, repo, "many", "t1", []bool{true, false, true, false}, 100)
		putQuestion(t, repo, "few", "t1", []bool{true, false}, 100)
		sel := NewSelector(repo, constSampler{}, Weights{Question: 0.7, Topic: 0.3}, logger.Nop())
		id, err := sel.SelectNextIDs(ctx, "l1", []string{"many", "few"})
		if err != nil {
			t.Fatal(err)
		}
		if id != "few" {
			t.Errorf("got %s, want few", id)
		}
	})
}

func TestRank_DedupesCandidates(t *testing.T) {
	sel := NewSelector(openTestStore(t), constSampler{}, DefaultWeights, logger.Nop())
	ranked, err := sel.Rank(context.Background(), "l1", []Candidate{{QuestionID: "a"}, {QuestionID: "a"}, {QuestionID: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 {
		t.Errorf("got %d scores, want 2", len(ranked))
	}
}
