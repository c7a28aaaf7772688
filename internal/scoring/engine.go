// Package scoring grades a set of answers against a quiz answer key.
package scoring

import (
	"strings"

	"studyquiz-service/internal/domain"
)

// Score grades answers against quiz. It never fails: unanswered, unknown or
// malformed answers earn zero for their question only. Answers are expected
// in canonical question/option ids.
func Score(quiz domain.QuizDefinition, answers []domain.Answer) domain.ScoreResult {
	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, answer := range answers {
		// last write wins, matching how answers accumulate in an open attempt
		byQuestion[answer.QuestionID] = answer
	}

	result := domain.ScoreResult{
		Questions: make([]domain.QuestionResult, 0, len(quiz.Questions)),
	}
	for _, question := range quiz.Questions {
		possible := quiz.PointsFor(question)
		qr := domain.QuestionResult{QuestionID: question.ID, Possible: possible}
		if answer, ok := byQuestion[question.ID]; ok && isCorrect(question, answer) {
			qr.Correct = true
			qr.Awarded = possible
		}
		result.MaxPoints += possible
		result.TotalPoints += qr.Awarded
		result.Questions = append(result.Questions, qr)
	}

	if result.MaxPoints > 0 {
		result.Percentage = result.TotalPoints / result.MaxPoints
	}
	if quiz.Settings.PassingScore != nil {
		pass := result.TotalPoints >= *quiz.Settings.PassingScore
		result.Pass = &pass
	}
	return result
}

func isCorrect(question domain.Question, answer domain.Answer) bool {
	if question.Type == domain.QuestionShortAnswer {
		return matchesText(question, answer.Text)
	}
	return exactSetMatch(question, answer.OptionIDs)
}

// exactSetMatch awards credit only when the selected ids are exactly the
// correct ids. Selecting one of two correct options earns nothing.
func exactSetMatch(question domain.Question, selected []string) bool {
	correct := question.CorrectOptionIDs()
	if len(correct) == 0 || len(selected) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(correct))
	for _, id := range correct {
		want[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		if _, ok := want[id]; !ok {
			return false
		}
		got[id] = struct{}{}
	}
	return len(got) == len(want)
}

func matchesText(question domain.Question, text string) bool {
	given := normalizeText(text)
	if given == "" {
		return false
	}
	for _, opt := range question.Options {
		if opt.Correct && normalizeText(opt.Text) == given {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
