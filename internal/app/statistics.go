package app

import (
	"context"
	"errors"
	"math"
	"time"

	"studyquiz-service/internal/domain"
)

const recentAttempts = 5

// LearnerStats summarizes a learner's completed attempts.
type LearnerStats struct {
	LearnerID         string                `json:"learnerId"`
	AttemptsTaken     int                   `json:"attemptsTaken"`
	TotalPoints       float64               `json:"totalPoints"`
	AveragePercentage float64               `json:"averagePercentage"`
	TimeSpent         time.Duration         `json:"timeSpentNs"`
	BySubject         map[string]GroupStats `json:"bySubject"`
	ByDifficulty      map[string]GroupStats `json:"byDifficulty"`
	Recent            []AttemptSummary      `json:"recent"`
}

// GroupStats aggregates attempts sharing a subject or difficulty.
type GroupStats struct {
	Attempts          int     `json:"attempts"`
	AveragePercentage float64 `json:"averagePercentage"`
}

// QuizStats summarizes every learner's attempts on one quiz.
type QuizStats struct {
	QuizID            string        `json:"quizId"`
	TotalAttempts     int           `json:"totalAttempts"`
	CompletedAttempts int           `json:"completedAttempts"`
	CompletionRate    float64       `json:"completionRate"`
	AveragePercentage float64       `json:"averagePercentage"`
	AverageTime       time.Duration `json:"averageTimeNs"`
	PassRate          *float64      `json:"passRate"`
}

// Statistics aggregates the ledger for dashboards.
type Statistics struct {
	ledger  *Ledger
	quizzes QuizRepository
}

func NewStatistics(ledger *Ledger, quizzes QuizRepository) *Statistics {
	return &Statistics{ledger: ledger, quizzes: quizzes}
}

// Learner computes statistics over the learner's completed attempts.
// Attempts on quizzes that no longer exist are grouped under "unknown".
func (s *Statistics) Learner(ctx context.Context, learnerID string) (LearnerStats, error) {
	stats := LearnerStats{
		LearnerID:    learnerID,
		BySubject:    map[string]GroupStats{},
		ByDifficulty: map[string]GroupStats{},
		Recent:       []AttemptSummary{},
	}
	attempts, err := s.ledger.ListByLearner(ctx, learnerID)
	if err != nil {
		return LearnerStats{}, err
	}

	quizzes := map[string]domain.QuizDefinition{}
	var percentSum float64
	subjectSums := map[string]float64{}
	difficultySums := map[string]float64{}
	for _, attempt := range attempts {
		if attempt.Open() || attempt.Result == nil {
			continue
		}
		quiz, ok := quizzes[attempt.QuizID]
		if !ok {
			quiz, err = s.quizzes.GetQuiz(ctx, attempt.QuizID)
			if err != nil && !errors.Is(err, domain.ErrQuizNotFound) {
				return LearnerStats{}, err
			}
			quizzes[attempt.QuizID] = quiz
		}
		subject, difficulty := orUnknown(quiz.Subject), orUnknown(string(quiz.Difficulty))

		stats.AttemptsTaken++
		stats.TotalPoints += attempt.Result.TotalPoints
		stats.TimeSpent += attempt.Duration()
		percentSum += attempt.Result.Percentage

		group := stats.BySubject[subject]
		group.Attempts++
		stats.BySubject[subject] = group
		subjectSums[subject] += attempt.Result.Percentage

		group = stats.ByDifficulty[difficulty]
		group.Attempts++
		stats.ByDifficulty[difficulty] = group
		difficultySums[difficulty] += attempt.Result.Percentage

		if len(stats.Recent) < recentAttempts {
			stats.Recent = append(stats.Recent, summarize(attempt))
		}
	}

	if stats.AttemptsTaken > 0 {
		stats.AveragePercentage = round2(percentSum / float64(stats.AttemptsTaken))
	}
	for key, group := range stats.BySubject {
		group.AveragePercentage = round2(subjectSums[key] / float64(group.Attempts))
		stats.BySubject[key] = group
	}
	for key, group := range stats.ByDifficulty {
		group.AveragePercentage = round2(difficultySums[key] / float64(group.Attempts))
		stats.ByDifficulty[key] = group
	}
	return stats, nil
}

// Quiz computes statistics over every learner's attempts on quizID.
func (s *Statistics) Quiz(ctx context.Context, quizID string) (QuizStats, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizStats{}, err
	}
	attempts, err := s.ledger.ListByQuiz(ctx, quizID, "")
	if err != nil {
		return QuizStats{}, err
	}

	stats := QuizStats{QuizID: quiz.ID, TotalAttempts: len(attempts)}
	var percentSum float64
	var timeSum time.Duration
	passed := 0
	for _, attempt := range attempts {
		if attempt.Open() || attempt.Result == nil {
			continue
		}
		stats.CompletedAttempts++
		percentSum += attempt.Result.Percentage
		timeSum += attempt.Duration()
		if attempt.Result.Pass != nil && *attempt.Result.Pass {
			passed++
		}
	}
	if stats.TotalAttempts > 0 {
		stats.CompletionRate = round2(float64(stats.CompletedAttempts) / float64(stats.TotalAttempts))
	}
	if stats.CompletedAttempts > 0 {
		stats.AveragePercentage = round2(percentSum / float64(stats.CompletedAttempts))
		stats.AverageTime = timeSum / time.Duration(stats.CompletedAttempts)
		if quiz.Settings.PassingScore != nil {
			rate := round2(float64(passed) / float64(stats.CompletedAttempts))
			stats.PassRate = &rate
		}
	}
	return stats, nil
}

// round2 rounds fractions to four decimals, i.e. percentages to two.
func round2(f float64) float64 {
	return math.Round(f*10000) / 10000
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
