// Package storetest holds the behaviour every app.AttemptStore must share.
// Backend packages run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/domain"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) app.AttemptStore

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises the full AttemptStore contract against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("OpenAndGet", func(t *testing.T) { testOpenAndGet(t, newStore(t)) })
	t.Run("SecondOpenConflicts", func(t *testing.T) { testSecondOpenConflicts(t, newStore(t)) })
	t.Run("LimitExceeded", func(t *testing.T) { testLimitExceeded(t, newStore(t)) })
	t.Run("GuestsExempt", func(t *testing.T) { testGuestsExempt(t, newStore(t)) })
	t.Run("SaveAnswer", func(t *testing.T) { testSaveAnswer(t, newStore(t)) })
	t.Run("ConcurrentAnswers", func(t *testing.T) { testConcurrentAnswers(t, newStore(t)) })
	t.Run("CompleteOnce", func(t *testing.T) { testCompleteOnce(t, newStore(t)) })
	t.Run("ListsMostRecentFirst", func(t *testing.T) { testLists(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ConcurrentOpen", func(t *testing.T) { testConcurrentOpen(t, newStore(t)) })
}

// NewAttempt builds an open attempt started offset after a fixed base time.
func NewAttempt(id, quizID, learnerID string, offset time.Duration) domain.Attempt {
	return domain.Attempt{
		ID:        id,
		QuizID:    quizID,
		LearnerID: learnerID,
		Seed:      1<<63 + uint64(len(id)),
		StartedAt: base.Add(offset),
		Answers:   []domain.Answer{},
	}
}

// Completed closes attempt one minute after it started with a fixed result.
func Completed(attempt domain.Attempt, points float64) domain.Attempt {
	completed := attempt.StartedAt.Add(time.Minute)
	pass := points >= 1
	attempt.CompletedAt = &completed
	attempt.Answers = []domain.Answer{{QuestionID: "q1", OptionIDs: []string{"o1"}}}
	attempt.Result = &domain.ScoreResult{
		TotalPoints: points,
		MaxPoints:   2,
		Percentage:  points / 2,
		Questions:   []domain.QuestionResult{{QuestionID: "q1", Correct: points > 0, Awarded: points, Possible: 2}},
		Pass:        &pass,
	}
	return attempt
}

func intPtr(v int) *int { return &v }

func mustOpen(t *testing.T, store app.AttemptStore, attempt domain.Attempt, limit *int) {
	t.Helper()
	if err := store.Open(context.Background(), attempt, limit); err != nil {
		t.Fatalf("open %s: %v", attempt.ID, err)
	}
}

func mustComplete(t *testing.T, store app.AttemptStore, attempt domain.Attempt) {
	t.Helper()
	if err := store.Complete(context.Background(), attempt); err != nil {
		t.Fatalf("complete %s: %v", attempt.ID, err)
	}
}

func testOpenAndGet(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	attempt := NewAttempt("a1", "quiz-1", "learner-1", 0)
	mustOpen(t, store, attempt, nil)

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a1" || got.QuizID != "quiz-1" || got.LearnerID != "learner-1" {
		t.Fatalf("unexpected attempt: %+v", got)
	}
	if got.Seed != attempt.Seed {
		t.Fatalf("expected seed %d, got %d", attempt.Seed, got.Seed)
	}
	if !got.StartedAt.Equal(attempt.StartedAt) || !got.Open() {
		t.Fatalf("expected open attempt started at %s, got %+v", attempt.StartedAt, got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testSecondOpenConflicts(t *testing.T, store app.AttemptStore) {
	mustOpen(t, store, NewAttempt("a1", "quiz-1", "learner-1", 0), nil)

	err := store.Open(context.Background(), NewAttempt("a2", "quiz-1", "learner-1", time.Second), nil)
	if !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// other quizzes and learners are unaffected
	mustOpen(t, store, NewAttempt("a3", "quiz-2", "learner-1", time.Second), nil)
	mustOpen(t, store, NewAttempt("a4", "quiz-1", "learner-2", time.Second), nil)
}

func testLimitExceeded(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	limit := intPtr(2)
	for i := 0; i < 2; i++ {
		attempt := NewAttempt(fmt.Sprintf("a%d", i), "quiz-1", "learner-1", time.Duration(i)*time.Hour)
		mustOpen(t, store, attempt, limit)
		mustComplete(t, store, Completed(attempt, 1))
	}

	count, err := store.CountCompleted(ctx, "quiz-1", "learner-1")
	if err != nil || count != 2 {
		t.Fatalf("expected 2 completed, got %d (%v)", count, err)
	}
	err = store.Open(ctx, NewAttempt("a3", "quiz-1", "learner-1", 3*time.Hour), limit)
	if !errors.Is(err, domain.ErrAttemptLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
	mustOpen(t, store, NewAttempt("a4", "quiz-1", "learner-1", 3*time.Hour), nil)
}

func testGuestsExempt(t *testing.T, store app.AttemptStore) {
	limit := intPtr(1)
	mustOpen(t, store, NewAttempt("g1", "quiz-1", "", 0), limit)
	mustOpen(t, store, NewAttempt("g2", "quiz-1", "", time.Second), limit)
}

func testSaveAnswer(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	attempt := NewAttempt("a1", "quiz-1", "learner-1", 0)
	mustOpen(t, store, attempt, nil)

	answers := []domain.Answer{
		{QuestionID: "q1", OptionIDs: []string{"o1"}},
		{QuestionID: "q2", Text: "Paris"},
		{QuestionID: "q1", OptionIDs: []string{"o1", "o2"}},
	}
	for _, answer := range answers {
		if err := store.SaveAnswer(ctx, "a1", answer); err != nil {
			t.Fatalf("save answer %s: %v", answer.QuestionID, err)
		}
	}
	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// the replaced answer keeps its position
	if len(got.Answers) != 2 || got.Answers[0].QuestionID != "q1" || len(got.Answers[0].OptionIDs) != 2 || got.Answers[1].Text != "Paris" {
		t.Fatalf("unexpected answers: %+v", got.Answers)
	}

	mustComplete(t, store, Completed(got, 2))
	if err := store.SaveAnswer(ctx, "a1", answers[0]); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	if err := store.SaveAnswer(ctx, "missing", answers[0]); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testConcurrentAnswers(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	mustOpen(t, store, NewAttempt("a1", "quiz-1", "learner-1", 0), nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answer := domain.Answer{QuestionID: fmt.Sprintf("q%d", i), OptionIDs: []string{"o1"}}
			errs[i] = store.SaveAnswer(ctx, "a1", answer)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Answers) != workers {
		t.Fatalf("expected %d answers, got %d: %+v", workers, len(got.Answers), got.Answers)
	}
}

func testCompleteOnce(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	attempt := NewAttempt("a1", "quiz-1", "learner-1", 0)
	mustOpen(t, store, attempt, nil)

	done := Completed(attempt, 2)
	mustComplete(t, store, done)

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Open() || !got.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("expected completion at %s, got %+v", done.CompletedAt, got.CompletedAt)
	}
	if got.Result == nil || got.Result.TotalPoints != 2 || got.Result.Pass == nil || !*got.Result.Pass {
		t.Fatalf("unexpected result: %+v", got.Result)
	}

	if err := store.Complete(ctx, Completed(attempt, 0)); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	if err := store.Complete(ctx, Completed(NewAttempt("missing", "quiz-1", "learner-1", 0), 0)); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// a completed attempt no longer blocks a new one
	mustOpen(t, store, NewAttempt("a2", "quiz-1", "learner-1", time.Hour), nil)
}

func testLists(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	first := NewAttempt("a1", "quiz-1", "learner-1", 0)
	mustOpen(t, store, first, nil)
	mustComplete(t, store, Completed(first, 1))
	mustOpen(t, store, NewAttempt("a2", "quiz-2", "learner-1", time.Hour), nil)
	mustOpen(t, store, NewAttempt("a3", "quiz-1", "learner-1", 2*time.Hour), nil)
	mustOpen(t, store, NewAttempt("a4", "quiz-1", "learner-2", 3*time.Hour), nil)

	byLearner, err := store.ListByLearner(ctx, "learner-1")
	if err != nil {
		t.Fatalf("list by learner: %v", err)
	}
	assertIDs(t, byLearner, "a3", "a2", "a1")

	byQuiz, err := store.ListByQuiz(ctx, "quiz-1", "learner-1")
	if err != nil {
		t.Fatalf("list by quiz: %v", err)
	}
	assertIDs(t, byQuiz, "a3", "a1")

	everyone, err := store.ListByQuiz(ctx, "quiz-1", "")
	if err != nil {
		t.Fatalf("list by quiz for everyone: %v", err)
	}
	assertIDs(t, everyone, "a4", "a3", "a1")

	none, err := store.ListByLearner(ctx, "nobody")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", none, err)
	}
	count, err := store.CountCompleted(ctx, "quiz-1", "learner-1")
	if err != nil || count != 1 {
		t.Fatalf("expected 1 completed, got %d (%v)", count, err)
	}
}

func testDelete(t *testing.T, store app.AttemptStore) {
	ctx := context.Background()
	attempt := NewAttempt("a1", "quiz-1", "learner-1", 0)
	mustOpen(t, store, attempt, intPtr(1))
	mustComplete(t, store, Completed(attempt, 1))

	if err := store.Delete(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "a1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected deleted attempt to be gone, got %v", err)
	}
	if err := store.Delete(ctx, "a1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	// removal frees the attempt it used
	mustOpen(t, store, NewAttempt("a2", "quiz-1", "learner-1", time.Hour), intPtr(1))
}

func testConcurrentOpen(t *testing.T, store app.AttemptStore) {
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt := NewAttempt(fmt.Sprintf("a%d", i), "quiz-1", "learner-1", time.Duration(i)*time.Millisecond)
			errs[i] = store.Open(context.Background(), attempt, intPtr(3))
		}(i)
	}
	wg.Wait()

	opened := 0
	for _, err := range errs {
		switch {
		case err == nil:
			opened++
		case errors.Is(err, domain.ErrAttemptInProgress):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if opened != 1 {
		t.Fatalf("expected exactly one open attempt, got %d", opened)
	}
}

func assertIDs(t *testing.T, attempts []domain.Attempt, ids ...string) {
	t.Helper()
	if len(attempts) != len(ids) {
		t.Fatalf("expected %v, got %d attempts", ids, len(attempts))
	}
	for i, id := range ids {
		if attempts[i].ID != id {
			t.Fatalf("expected %v, got %s at %d", ids, attempts[i].ID, i)
		}
	}
}
