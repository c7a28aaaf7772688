package app

import (
	"context"
	"time"

	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/presentation"
)

// StartResult is what a learner receives when starting or resuming an attempt.
type StartResult struct {
	AttemptID string             `json:"attemptId"`
	StartedAt time.Time          `json:"startedAt"`
	Deadline  *time.Time         `json:"deadline,omitempty"`
	Order     presentation.Order `json:"order"`
	View      presentation.View  `json:"view"`
	Answers   []domain.Answer    `json:"answers"`
}

// AttemptService contains the attempt use cases exposed to transports.
type AttemptService struct {
	ledger        *Ledger
	participation *Participation
	quizzes       QuizRepository
	now           func() time.Time
}

func NewAttemptService(ledger *Ledger, quizzes QuizRepository) *AttemptService {
	return NewAttemptServiceWithClock(ledger, quizzes, time.Now)
}

// NewAttemptServiceWithClock is test-only for deterministic timestamps.
func NewAttemptServiceWithClock(ledger *Ledger, quizzes QuizRepository, now func() time.Time) *AttemptService {
	return &AttemptService{
		ledger:        ledger,
		participation: NewParticipationWithClock(ledger, quizzes, now),
		quizzes:       quizzes,
		now:           now,
	}
}

// StartAttempt opens a new attempt and returns its presentation.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, learnerID string) (StartResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if err := checkAccess(quiz, learnerID, s.now()); err != nil {
		return StartResult{}, err
	}

	attempt, err := s.ledger.RecordStart(ctx, quizID, learnerID)
	if err != nil {
		return StartResult{}, err
	}
	return startResult(quiz, attempt), nil
}

// ResumeAttempt returns the presentation of an open attempt in its original order.
func (s *AttemptService) ResumeAttempt(ctx context.Context, attemptID, learnerID string) (StartResult, error) {
	attempt, err := s.owned(ctx, attemptID, learnerID)
	if err != nil {
		return StartResult{}, err
	}
	if !attempt.Open() {
		return StartResult{}, domain.ErrAlreadyCompleted
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return StartResult{}, err
	}
	return startResult(quiz, attempt), nil
}

func startResult(quiz domain.QuizDefinition, attempt domain.Attempt) StartResult {
	order := presentation.DeriveOrder(quiz, attempt.Seed)
	result := StartResult{
		AttemptID: attempt.ID,
		StartedAt: attempt.StartedAt,
		Order:     order,
		View:      presentation.Present(quiz, order),
		Answers:   attempt.Answers,
	}
	if result.Answers == nil {
		result.Answers = []domain.Answer{}
	}
	if limit := quiz.Settings.TimeLimitSeconds; limit != nil && *limit > 0 {
		deadline := attempt.StartedAt.Add(time.Duration(*limit) * time.Second)
		result.Deadline = &deadline
	}
	return result
}

// SubmitAnswer records the answer to one question of an open attempt.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, learnerID string, answer domain.Answer) error {
	if _, err := s.owned(ctx, attemptID, learnerID); err != nil {
		return err
	}
	_, err := s.ledger.SaveAnswer(ctx, attemptID, answer)
	return err
}

// CompleteAttempt scores the answers recorded so far and closes the attempt.
func (s *AttemptService) CompleteAttempt(ctx context.Context, attemptID, learnerID string) (domain.ScoreResult, error) {
	attempt, err := s.owned(ctx, attemptID, learnerID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	completed, err := s.ledger.RecordCompletion(ctx, attemptID, attempt.Answers, s.now())
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return *completed.Result, nil
}

// SubmitAttempt completes an attempt with a final answer set in one call.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID, learnerID string, answers []domain.Answer) (domain.Attempt, error) {
	if _, err := s.owned(ctx, attemptID, learnerID); err != nil {
		return domain.Attempt{}, err
	}
	return s.ledger.RecordCompletion(ctx, attemptID, answers, s.now())
}

// GetStatus returns the learner's standing on a quiz.
func (s *AttemptService) GetStatus(ctx context.Context, quizID, learnerID string) (Snapshot, error) {
	return s.participation.Snapshot(ctx, quizID, learnerID)
}

// GetHistory lists the learner's attempts, most recent first.
func (s *AttemptService) GetHistory(ctx context.Context, learnerID string) ([]domain.Attempt, error) {
	return s.ledger.ListByLearner(ctx, learnerID)
}

// GetReview returns the graded attempt. Open attempts have nothing to review yet.
func (s *AttemptService) GetReview(ctx context.Context, attemptID, learnerID string) (presentation.ReviewView, error) {
	attempt, err := s.owned(ctx, attemptID, learnerID)
	if err != nil {
		return presentation.ReviewView{}, err
	}
	if attempt.Open() {
		return presentation.ReviewView{}, domain.ErrAttemptInProgress
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return presentation.ReviewView{}, err
	}
	return presentation.Review(quiz, attempt), nil
}

// GetAttempt returns a raw attempt owned by learnerID.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID, learnerID string) (domain.Attempt, error) {
	return s.owned(ctx, attemptID, learnerID)
}

// RemoveAttempt deletes an attempt. Callers check the admin role.
func (s *AttemptService) RemoveAttempt(ctx context.Context, attemptID string) error {
	return s.ledger.Remove(ctx, attemptID)
}

func (s *AttemptService) owned(ctx context.Context, attemptID, learnerID string) (domain.Attempt, error) {
	attempt, err := s.ledger.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.LearnerID != learnerID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}
