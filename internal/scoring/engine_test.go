package scoring

import (
	"reflect"
	"testing"

	"studyquiz-service/internal/domain"
)

func TestScoreThreeOfFourWithBlank(t *testing.T) {
	quiz := fourQuestionQuiz()
	answers := []domain.Answer{
		{QuestionID: "q1", OptionIDs: []string{"q1-b"}},
		{QuestionID: "q2", OptionIDs: []string{"q2-b"}},
		{QuestionID: "q3", OptionIDs: []string{"q3-b"}},
	}

	result := Score(quiz, answers)
	if result.TotalPoints != 30 || result.MaxPoints != 40 {
		t.Fatalf("expected 30/40, got %v/%v", result.TotalPoints, result.MaxPoints)
	}
	if result.Percentage != 0.75 {
		t.Fatalf("expected percentage 0.75, got %v", result.Percentage)
	}
	if result.Pass != nil {
		t.Fatalf("expected pass to be unset without passing score, got %v", *result.Pass)
	}
	if len(result.Questions) != 4 || result.Questions[3].Correct || result.Questions[3].Awarded != 0 {
		t.Fatalf("expected blank q4 to be incorrect with zero points, got %+v", result.Questions)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	quiz := fourQuestionQuiz()
	answers := []domain.Answer{
		{QuestionID: "q2", OptionIDs: []string{"q2-a"}},
		{QuestionID: "q1", OptionIDs: []string{"q1-b"}},
	}
	first := Score(quiz, answers)
	second := Score(quiz, answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestScoreNoPartialCreditForMultiCorrect(t *testing.T) {
	quiz := domain.QuizDefinition{
		ID: "multi",
		Questions: []domain.Question{{
			ID:   "q1",
			Type: domain.QuestionMultipleChoice,
			Options: []domain.Option{
				{ID: "a", Correct: true},
				{ID: "b", Correct: true},
				{ID: "c"},
			},
		}},
	}

	cases := []struct {
		name     string
		selected []string
		want     bool
	}{
		{"one of two", []string{"a"}, false},
		{"both", []string{"b", "a"}, true},
		{"both with duplicate", []string{"a", "b", "a"}, true},
		{"both plus wrong", []string{"a", "b", "c"}, false},
		{"unknown id", []string{"a", "zzz"}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(quiz, []domain.Answer{{QuestionID: "q1", OptionIDs: tc.selected}})
			if result.Questions[0].Correct != tc.want {
				t.Fatalf("expected correct=%v, got %+v", tc.want, result.Questions[0])
			}
			if !tc.want && result.TotalPoints != 0 {
				t.Fatalf("expected no points, got %v", result.TotalPoints)
			}
		})
	}
}

func TestScorePassBoundary(t *testing.T) {
	passing := 70.0
	quiz := domain.QuizDefinition{
		ID: "pass",
		Questions: []domain.Question{
			singleCorrect("q1", 69),
			singleCorrect("q2", 1),
			singleCorrect("q3", 30),
		},
		Settings: domain.Settings{PassingScore: &passing},
	}

	exact := Score(quiz, []domain.Answer{
		{QuestionID: "q1", OptionIDs: []string{"q1-b"}},
		{QuestionID: "q2", OptionIDs: []string{"q2-b"}},
	})
	if exact.MaxPoints != 100 || exact.TotalPoints != 70 {
		t.Fatalf("expected 70/100, got %v/%v", exact.TotalPoints, exact.MaxPoints)
	}
	if exact.Pass == nil || !*exact.Pass {
		t.Fatalf("expected 70 to pass")
	}

	below := Score(quiz, []domain.Answer{{QuestionID: "q1", OptionIDs: []string{"q1-b"}}})
	if below.TotalPoints != 69 {
		t.Fatalf("expected 69 points, got %v", below.TotalPoints)
	}
	if below.Pass == nil || *below.Pass {
		t.Fatalf("expected 69 to fail")
	}
}

func TestScorePointsFallback(t *testing.T) {
	perQuestion := 5.0
	own := 2.0
	quiz := domain.QuizDefinition{
		Questions: []domain.Question{
			{ID: "q1", Options: []domain.Option{{ID: "a", Correct: true}}, Points: &own},
			{ID: "q2", Options: []domain.Option{{ID: "a", Correct: true}}},
		},
		Settings: domain.Settings{PointsPerQuestion: &perQuestion},
	}
	if got := Score(quiz, nil).MaxPoints; got != 7 {
		t.Fatalf("expected max 7 with per-question fallback, got %v", got)
	}

	quiz.Settings.PointsPerQuestion = nil
	if got := Score(quiz, nil).MaxPoints; got != 3 {
		t.Fatalf("expected max 3 with default of 1, got %v", got)
	}
}

func TestScoreZeroMaxPoints(t *testing.T) {
	zero := 0.0
	quiz := domain.QuizDefinition{
		Questions: []domain.Question{{ID: "q1", Options: []domain.Option{{ID: "a", Correct: true}}, Points: &zero}},
	}
	result := Score(quiz, []domain.Answer{{QuestionID: "q1", OptionIDs: []string{"a"}}})
	if result.Percentage != 0 || result.MaxPoints != 0 {
		t.Fatalf("expected zero percentage for zero max points, got %+v", result)
	}
}

func TestScoreShortAnswer(t *testing.T) {
	quiz := domain.QuizDefinition{
		Questions: []domain.Question{{
			ID:   "q1",
			Type: domain.QuestionShortAnswer,
			Options: []domain.Option{
				{ID: "a", Text: "Ho Chi Minh City", Correct: true},
				{ID: "b", Text: "Saigon", Correct: true},
			},
		}},
	}
	for _, text := range []string{"saigon", "  ho chi   minh city "} {
		if !Score(quiz, []domain.Answer{{QuestionID: "q1", Text: text}}).Questions[0].Correct {
			t.Fatalf("expected %q to be accepted", text)
		}
	}
	if Score(quiz, []domain.Answer{{QuestionID: "q1", Text: "Hanoi"}}).Questions[0].Correct {
		t.Fatalf("expected wrong text to be rejected")
	}
}

func TestScoreIgnoresUnknownQuestions(t *testing.T) {
	quiz := fourQuestionQuiz()
	result := Score(quiz, []domain.Answer{{QuestionID: "nope", OptionIDs: []string{"x"}}})
	if result.TotalPoints != 0 || len(result.Questions) != 4 {
		t.Fatalf("expected zero score over 4 questions, got %+v", result)
	}
}

func fourQuestionQuiz() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID: "quiz-1",
		Questions: []domain.Question{
			singleCorrect("q1", 10),
			singleCorrect("q2", 10),
			singleCorrect("q3", 10),
			singleCorrect("q4", 10),
		},
	}
}

func singleCorrect(id string, points float64) domain.Question {
	return domain.Question{
		ID:   id,
		Type: domain.QuestionMultipleChoice,
		Options: []domain.Option{
			{ID: id + "-a", Text: "wrong"},
			{ID: id + "-b", Text: "right", Correct: true},
		},
		Points: &points,
	}
}
