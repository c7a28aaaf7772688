package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/infra/storetest"
)

func TestAttemptStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) app.AttemptStore {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("run miniredis: %v", err)
		}
		t.Cleanup(mr.Close)
		return NewAttemptStore(newClient(mr))
	})
}

func TestAttemptStoreKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()
	attempt := storetest.NewAttempt("a1", "quiz-1", "learner-1", 0)
	if err := store.Open(ctx, attempt, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, _ := mr.Get("attempts:open:6:quiz-1:learner-1"); got != "a1" {
		t.Fatalf("expected open marker for a1, got %q", got)
	}

	if err := store.Complete(ctx, storetest.Completed(attempt, 1)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if mr.Exists("attempts:open:6:quiz-1:learner-1") {
		t.Fatalf("expected open marker cleared on completion")
	}
	if got, _ := mr.Get("attempts:completed:6:quiz-1:learner-1"); got != "1" {
		t.Fatalf("expected completed counter 1, got %q", got)
	}
}

func TestAttemptStoreKeysDoNotCollide(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()
	one := 1
	first := storetest.NewAttempt("a1", "a:b", "c", 0)
	if err := store.Open(ctx, first, &one); err != nil {
		t.Fatalf("open first: %v", err)
	}
	if err := store.Complete(ctx, storetest.Completed(first, 1)); err != nil {
		t.Fatalf("complete first: %v", err)
	}
	if err := store.Open(ctx, storetest.NewAttempt("a2", "a", "b:c", time.Second), &one); err != nil {
		t.Fatalf("expected a different quiz and learner to be unaffected, got %v", err)
	}
	if err := store.Open(ctx, storetest.NewAttempt("a3", "a:b", "c", time.Minute), nil); err != nil {
		t.Fatalf("open third: %v", err)
	}

	byPair, err := store.ListByQuiz(ctx, "a", "b:c")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byPair) != 1 || byPair[0].ID != "a2" {
		t.Fatalf("expected only a2 for (a, b:c), got %+v", byPair)
	}
	count, err := store.CountCompleted(ctx, "a", "b:c")
	if err != nil || count != 0 {
		t.Fatalf("expected no completions for (a, b:c), got %d (%v)", count, err)
	}
}

func TestPendingAnswersClearedOnCompletion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()
	attempt := storetest.NewAttempt("a1", "quiz-1", "learner-1", 0)
	if err := store.Open(ctx, attempt, nil); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveAnswer(ctx, "a1", domain.Answer{QuestionID: "q1", OptionIDs: []string{"o1"}}); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	if !mr.Exists("attempt:a1:answers") || !mr.Exists("attempt:a1:answered") {
		t.Fatalf("expected pending answer keys")
	}
	if err := store.Complete(ctx, storetest.Completed(attempt, 1)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if mr.Exists("attempt:a1:answers") || mr.Exists("attempt:a1:answered") {
		t.Fatalf("expected pending answer keys removed on completion")
	}
}
