package app

import (
	"context"
	"errors"
	"log"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/presentation"
	"studyquiz-service/internal/scoring"
)

// Ledger is the append-only record of attempts. Learner attempts go to the
// durable store; guest attempts live in a scratch store and are never listed
// or counted.
type Ledger struct {
	store   AttemptStore
	guests  AttemptStore
	quizzes QuizRepository
	now     func() time.Time
}

func NewLedger(store, guests AttemptStore, quizzes QuizRepository) *Ledger {
	return NewLedgerWithClock(store, guests, quizzes, time.Now)
}

// NewLedgerWithClock allows deterministic timestamps in tests.
func NewLedgerWithClock(store, guests AttemptStore, quizzes QuizRepository, now func() time.Time) *Ledger {
	return &Ledger{store: store, guests: guests, quizzes: quizzes, now: now}
}

func (l *Ledger) storeFor(learnerID string) AttemptStore {
	if learnerID == "" {
		return l.guests
	}
	return l.store
}

// RecordStart appends a new open attempt with a fresh presentation seed.
func (l *Ledger) RecordStart(ctx context.Context, quizID, learnerID string) (domain.Attempt, error) {
	quiz, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		QuizID:    quiz.ID,
		LearnerID: learnerID,
		Seed:      presentation.NewSeed(),
		StartedAt: l.now().UTC().Truncate(time.Microsecond),
		Answers:   []domain.Answer{},
	}
	limit := quiz.Settings.MaxAttempts
	if learnerID == "" {
		limit = nil
	}
	if err := l.storeFor(learnerID).Open(ctx, attempt, limit); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// Get returns an attempt from either store.
func (l *Ledger) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	_, attempt, err := l.find(ctx, attemptID)
	return attempt, err
}

func (l *Ledger) find(ctx context.Context, attemptID string) (AttemptStore, domain.Attempt, error) {
	attempt, err := l.store.Get(ctx, attemptID)
	if err == nil {
		return l.store, attempt, nil
	}
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, domain.Attempt{}, err
	}
	attempt, err = l.guests.Get(ctx, attemptID)
	if err != nil {
		return nil, domain.Attempt{}, err
	}
	return l.guests, attempt, nil
}

// SaveAnswer records or replaces the answer to one question of an open attempt.
func (l *Ledger) SaveAnswer(ctx context.Context, attemptID string, answer domain.Answer) (domain.Attempt, error) {
	store, attempt, err := l.find(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !attempt.Open() {
		return domain.Attempt{}, domain.ErrAlreadyCompleted
	}
	quiz, err := l.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	answer = normalizeAnswer(answer)
	if _, ok := quiz.Question(answer.QuestionID); !ok {
		return domain.Attempt{}, domain.ErrQuestionNotFound
	}

	if err := store.SaveAnswer(ctx, attemptID, answer); err != nil {
		return domain.Attempt{}, err
	}
	return store.Get(ctx, attemptID)
}

// RecordCompletion scores answers and closes the attempt. Repeating the call
// with the same answers returns the stored attempt without re-scoring.
func (l *Ledger) RecordCompletion(ctx context.Context, attemptID string, answers []domain.Answer, completedAt time.Time) (domain.Attempt, error) {
	store, attempt, err := l.find(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	answers = NormalizeAnswers(answers)
	if !attempt.Open() {
		return replayCompletion(attempt, answers)
	}
	if completedAt.Before(attempt.StartedAt) {
		log.Printf("rejecting completion of attempt %s: completed at %s before start %s",
			attemptID, completedAt.Format(time.RFC3339Nano), attempt.StartedAt.Format(time.RFC3339Nano))
		return domain.Attempt{}, domain.ErrInvalidDuration
	}

	quiz, err := l.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	result := scoring.Score(quiz, answers)
	completed := completedAt.UTC().Truncate(time.Microsecond)
	attempt.Answers = answers
	attempt.CompletedAt = &completed
	attempt.Result = &result

	if err := store.Complete(ctx, attempt); err != nil {
		if !errors.Is(err, domain.ErrAlreadyCompleted) {
			return domain.Attempt{}, err
		}
		// lost a race with another completion of the same attempt
		stored, getErr := store.Get(ctx, attemptID)
		if getErr != nil {
			return domain.Attempt{}, getErr
		}
		return replayCompletion(stored, answers)
	}
	return attempt, nil
}

func replayCompletion(stored domain.Attempt, answers []domain.Answer) (domain.Attempt, error) {
	if sameAnswers(stored.Answers, answers) {
		return stored, nil
	}
	return domain.Attempt{}, domain.ErrAlreadyCompleted
}

// ListByLearner returns a learner's attempts, most recent first.
func (l *Ledger) ListByLearner(ctx context.Context, learnerID string) ([]domain.Attempt, error) {
	if learnerID == "" {
		return []domain.Attempt{}, nil
	}
	return l.store.ListByLearner(ctx, learnerID)
}

// ListByQuiz returns attempts on a quiz, most recent first. An empty
// learnerID lists every learner.
func (l *Ledger) ListByQuiz(ctx context.Context, quizID, learnerID string) ([]domain.Attempt, error) {
	return l.store.ListByQuiz(ctx, quizID, learnerID)
}

// CountCompleted counts completed attempts. Guests never accumulate any.
func (l *Ledger) CountCompleted(ctx context.Context, quizID, learnerID string) (int, error) {
	if learnerID == "" {
		return 0, nil
	}
	return l.store.CountCompleted(ctx, quizID, learnerID)
}

// Remove deletes an attempt. Administrative use only.
func (l *Ledger) Remove(ctx context.Context, attemptID string) error {
	store, _, err := l.find(ctx, attemptID)
	if err != nil {
		return err
	}
	return store.Delete(ctx, attemptID)
}

// NormalizeAnswers keeps one answer per question (the last one, at the
// position of the first), de-duplicates and sorts option ids and trims text.
func NormalizeAnswers(answers []domain.Answer) []domain.Answer {
	index := make(map[string]int, len(answers))
	out := make([]domain.Answer, 0, len(answers))
	for _, answer := range answers {
		answer = normalizeAnswer(answer)
		if answer.QuestionID == "" {
			continue
		}
		if i, ok := index[answer.QuestionID]; ok {
			out[i] = answer
			continue
		}
		index[answer.QuestionID] = len(out)
		out = append(out, answer)
	}
	return out
}

func normalizeAnswer(answer domain.Answer) domain.Answer {
	answer.QuestionID = strings.TrimSpace(answer.QuestionID)
	answer.Text = strings.TrimSpace(answer.Text)
	if len(answer.OptionIDs) == 0 {
		answer.OptionIDs = nil
		return answer
	}
	seen := make(map[string]struct{}, len(answer.OptionIDs))
	ids := make([]string, 0, len(answer.OptionIDs))
	for _, id := range answer.OptionIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		ids = nil
	}
	answer.OptionIDs = ids
	return answer
}

func sameAnswers(a, b []domain.Answer) bool {
	a, b = byQuestion(NormalizeAnswers(a)), byQuestion(NormalizeAnswers(b))
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func byQuestion(answers []domain.Answer) []domain.Answer {
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers
}
