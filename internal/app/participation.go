package app

import (
	"context"
	"time"

	"studyquiz-service/internal/domain"
)

// DeriveStatus computes a learner's status from their attempts on one quiz,
// ordered most recent first. It is the only place status is decided.
func DeriveStatus(attempts []domain.Attempt) domain.ParticipationStatus {
	if len(attempts) == 0 {
		return domain.StatusNotJoined
	}
	if attempts[0].Open() {
		return domain.StatusInProgress
	}
	return domain.StatusSubmitted
}

// RemainingAttempts is nil when the quiz allows unlimited attempts.
func RemainingAttempts(settings domain.Settings, completed int) *int {
	if settings.MaxAttempts == nil {
		return nil
	}
	remaining := *settings.MaxAttempts - completed
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// checkAvailability rejects drafts and quizzes outside their window.
func checkAvailability(quiz domain.QuizDefinition, now time.Time) error {
	if quiz.Visibility == domain.VisibilityDraft {
		return domain.ErrQuizUnavailable
	}
	if quiz.Settings.OpensAt != nil && now.Before(*quiz.Settings.OpensAt) {
		return domain.ErrQuizUnavailable
	}
	if quiz.Settings.ClosesAt != nil && !now.Before(*quiz.Settings.ClosesAt) {
		return domain.ErrQuizUnavailable
	}
	return nil
}

func checkAccess(quiz domain.QuizDefinition, learnerID string, now time.Time) error {
	if err := checkAvailability(quiz, now); err != nil {
		return err
	}
	if learnerID == "" && quiz.Visibility != domain.VisibilityPublic {
		return domain.ErrGuestNotAllowed
	}
	return nil
}

// AttemptSummary is a compact view of a completed attempt.
type AttemptSummary struct {
	AttemptID   string        `json:"attemptId"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"durationNs"`
	TotalPoints float64       `json:"totalPoints"`
	MaxPoints   float64       `json:"maxPoints"`
	Percentage  float64       `json:"percentage"`
	Pass        *bool         `json:"pass"`
}

func summarize(attempt domain.Attempt) AttemptSummary {
	summary := AttemptSummary{AttemptID: attempt.ID, StartedAt: attempt.StartedAt, Duration: attempt.Duration()}
	if attempt.CompletedAt != nil {
		summary.CompletedAt = *attempt.CompletedAt
	}
	if attempt.Result != nil {
		summary.TotalPoints = attempt.Result.TotalPoints
		summary.MaxPoints = attempt.Result.MaxPoints
		summary.Percentage = attempt.Result.Percentage
		summary.Pass = attempt.Result.Pass
	}
	return summary
}

// Snapshot is a learner's standing on a quiz.
type Snapshot struct {
	QuizID            string                     `json:"quizId"`
	Status            domain.ParticipationStatus `json:"status"`
	RemainingAttempts *int                       `json:"remainingAttempts"`
	CanStart          bool                       `json:"canStart"`
	OpenAttemptID     string                     `json:"openAttemptId,omitempty"`
	BestAttempt       *AttemptSummary            `json:"bestAttempt,omitempty"`
	Attempts          []AttemptSummary           `json:"attempts"`
}

// Participation answers what a learner may do next on a quiz. It stores
// nothing; every answer is recomputed from the ledger and the definition.
type Participation struct {
	ledger  *Ledger
	quizzes QuizRepository
	now     func() time.Time
}

func NewParticipation(ledger *Ledger, quizzes QuizRepository) *Participation {
	return NewParticipationWithClock(ledger, quizzes, time.Now)
}

// NewParticipationWithClock allows deterministic availability checks in tests.
func NewParticipationWithClock(ledger *Ledger, quizzes QuizRepository, now func() time.Time) *Participation {
	return &Participation{ledger: ledger, quizzes: quizzes, now: now}
}

// CurrentStatus derives the learner's status. Guests are always NOT_JOINED.
func (p *Participation) CurrentStatus(ctx context.Context, quizID, learnerID string) (domain.ParticipationStatus, error) {
	snapshot, err := p.Snapshot(ctx, quizID, learnerID)
	return snapshot.Status, err
}

// RemainingAttempts is nil when attempts are unlimited.
func (p *Participation) RemainingAttempts(ctx context.Context, quizID, learnerID string) (*int, error) {
	snapshot, err := p.Snapshot(ctx, quizID, learnerID)
	return snapshot.RemainingAttempts, err
}

// CanStart reports whether a new attempt would be accepted right now.
func (p *Participation) CanStart(ctx context.Context, quizID, learnerID string) (bool, error) {
	snapshot, err := p.Snapshot(ctx, quizID, learnerID)
	return snapshot.CanStart, err
}

// Snapshot derives status, remaining attempts and start eligibility in one read.
func (p *Participation) Snapshot(ctx context.Context, quizID, learnerID string) (Snapshot, error) {
	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Snapshot{}, err
	}

	var attempts []domain.Attempt
	if learnerID != "" {
		attempts, err = p.ledger.ListByQuiz(ctx, quizID, learnerID)
		if err != nil {
			return Snapshot{}, err
		}
	}

	snapshot := Snapshot{
		QuizID:   quiz.ID,
		Status:   DeriveStatus(attempts),
		Attempts: []AttemptSummary{},
	}
	completed := 0
	for _, attempt := range attempts {
		if attempt.Open() {
			snapshot.OpenAttemptID = attempt.ID
			continue
		}
		completed++
		summary := summarize(attempt)
		snapshot.Attempts = append(snapshot.Attempts, summary)
		if snapshot.BestAttempt == nil || better(summary, *snapshot.BestAttempt) {
			best := summary
			snapshot.BestAttempt = &best
		}
	}
	snapshot.RemainingAttempts = RemainingAttempts(quiz.Settings, completed)
	snapshot.CanStart = canStart(snapshot, checkAccess(quiz, learnerID, p.now()))
	return snapshot, nil
}

func canStart(snapshot Snapshot, accessErr error) bool {
	if accessErr != nil {
		return false
	}
	switch snapshot.Status {
	case domain.StatusNotJoined:
		return snapshot.RemainingAttempts == nil || *snapshot.RemainingAttempts > 0
	case domain.StatusSubmitted:
		return snapshot.RemainingAttempts == nil || *snapshot.RemainingAttempts > 0
	default:
		return false
	}
}

// better prefers more points, then the earlier completion.
func better(a, b AttemptSummary) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	return a.CompletedAt.Before(b.CompletedAt)
}
