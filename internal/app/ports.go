package app

import (
	"context"

	"studyquiz-service/internal/domain"
)

// QuizRepository loads quiz definitions (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// QuizWriter persists quiz definitions coming out of the editor.
type QuizWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error
}

// QuizCatalog is the authoritative definition store behind the cache.
type QuizCatalog interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	QuizWriter
}

// QuizCacheInvalidator drops cached copies of a quiz after it changes.
type QuizCacheInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// AttemptStore is the ledger's persistence channel (in-memory, Redis, Postgres).
//
// Open must check "no open attempt for (quiz, learner)" and "completed count
// below maxAttempts" and append the attempt as one atomic step, returning
// domain.ErrAttemptInProgress or domain.ErrAttemptLimitExceeded. Guest
// attempts (empty learner id) are exempt from both checks.
//
// SaveAnswer replaces the attempt's answer to answer.QuestionID in place, or
// appends it, as one atomic step on the stored attempt so concurrent answers
// to different questions are all kept.
//
// Complete must only succeed while the stored attempt is still open and
// returns domain.ErrAlreadyCompleted otherwise. Unknown ids yield
// domain.ErrAttemptNotFound. Lists are ordered most recent first.
type AttemptStore interface {
	Open(ctx context.Context, attempt domain.Attempt, maxAttempts *int) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	SaveAnswer(ctx context.Context, attemptID string, answer domain.Answer) error
	Complete(ctx context.Context, attempt domain.Attempt) error
	ListByLearner(ctx context.Context, learnerID string) ([]domain.Attempt, error)
	// ListByQuiz lists every learner's attempts when learnerID is empty.
	ListByQuiz(ctx context.Context, quizID, learnerID string) ([]domain.Attempt, error)
	CountCompleted(ctx context.Context, quizID, learnerID string) (int, error)
	Delete(ctx context.Context, attemptID string) error
}
