package authoring

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"studyquiz-service/internal/domain"
)

func TestValidateAcceptsCompleteDraft(t *testing.T) {
	result := Validate(validDraft())
	if !result.Valid() {
		t.Fatalf("expected valid draft, got %+v", result.Errors)
	}
	if result.Err() != nil {
		t.Fatalf("expected nil error, got %v", result.Err())
	}

	quiz := result.Quiz
	if quiz.Title != "Fractions" || quiz.Difficulty != domain.DifficultyMedium || quiz.Visibility != domain.VisibilityPublic {
		t.Fatalf("unexpected normalized quiz header: %+v", quiz)
	}
	if quiz.EstimatedMinutes != 30 {
		t.Fatalf("expected default estimated time 30, got %d", quiz.EstimatedMinutes)
	}
	if quiz.Settings.MaxAttempts == nil || *quiz.Settings.MaxAttempts != 2 {
		t.Fatalf("expected maxAttempts 2, got %v", quiz.Settings.MaxAttempts)
	}
	if quiz.Questions[0].Points == nil || *quiz.Questions[0].Points != 5 {
		t.Fatalf("expected 5 points on first question")
	}
	if quiz.Questions[1].ID == "" || quiz.Questions[1].Options[0].ID == "" {
		t.Fatalf("expected generated ids for blank ids")
	}
}

func TestValidateReportsEveryStructuralProblem(t *testing.T) {
	draft := QuizDraft{
		Title:   "  ",
		Subject: "",
		Questions: []QuestionDraft{
			{Text: "", Options: []OptionDraft{{Text: "a"}, {Text: "b"}}},
			{Text: "No options"},
		},
	}

	result := Validate(draft)
	for _, field := range []string{
		"title",
		"subject",
		"questions[0].text",
		"questions[0].options",
		"questions[1].options",
	} {
		if !hasField(result, field) {
			t.Fatalf("expected error on %s, got %+v", field, result.Errors)
		}
	}

	var verr *domain.ValidationError
	if !errors.As(result.Err(), &verr) || domain.KindOf(result.Err()) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", result.Err())
	}
}

func TestValidateRequiresQuestions(t *testing.T) {
	draft := validDraft()
	draft.Questions = nil
	if !hasField(Validate(draft), "questions") {
		t.Fatalf("expected error for missing questions")
	}
}

func TestValidateNumericInputs(t *testing.T) {
	draft := validDraft()
	draft.EstimatedMinutes = "-5"
	draft.Questions[0].Points = "abc"
	draft.Settings.MaxAttempts = "0"
	draft.Settings.TimeLimitSeconds = "90.5"

	result := Validate(draft)
	cases := map[string]string{
		"estimatedMinutes":          "must not be negative",
		"questions[0].points":       "must be a number",
		"settings.maxAttempts":      "must allow at least one attempt",
		"settings.timeLimitSeconds": "must be a whole number",
	}
	for field, message := range cases {
		if !hasMessage(result, field, message) {
			t.Fatalf("expected %q on %s, got %+v", message, field, result.Errors)
		}
	}
	if result.Quiz.Settings.TimeLimitSeconds == nil || *result.Quiz.Settings.TimeLimitSeconds != 90 {
		t.Fatalf("expected time limit truncated to 90")
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	draft := validDraft()
	opens := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	closes := opens.Add(-time.Hour)
	draft.Settings.OpensAt = &opens
	draft.Settings.ClosesAt = &closes
	draft.Settings.PassingScore = "100"
	draft.Questions[1].ID = draft.Questions[0].ID

	result := Validate(draft)
	for _, field := range []string{"settings.closesAt", "settings.passingScore", "questions[1].id"} {
		if !hasField(result, field) {
			t.Fatalf("expected error on %s, got %+v", field, result.Errors)
		}
	}
}

func TestValidateTrueFalseShape(t *testing.T) {
	draft := validDraft()
	draft.Questions[1].Type = "true_false"
	draft.Questions[1].Options = []OptionDraft{{Text: "True", Correct: true}, {Text: "False", Correct: true}}
	if !hasMessage(Validate(draft), "questions[1].options", "true/false questions need exactly 1 correct option") {
		t.Fatalf("expected true/false correctness error")
	}
}

func TestValidateEnumerations(t *testing.T) {
	draft := validDraft()
	draft.Difficulty = "impossible"
	draft.Visibility = "secret"
	result := Validate(draft)
	if !hasField(result, "difficulty") || !hasField(result, "visibility") {
		t.Fatalf("expected enumeration errors, got %+v", result.Errors)
	}
}

func TestNumberInputDecodesNumbersAndStrings(t *testing.T) {
	var draft SettingsDraft
	payload := `{"maxAttempts": 3, "passingScore": "70", "timeLimitSeconds": null, "pointsPerQuestion": true}`
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if draft.MaxAttempts != "3" || draft.PassingScore != "70" || draft.TimeLimitSeconds != "" {
		t.Fatalf("unexpected decode: %+v", draft)
	}
	if !hasMessage(Validate(QuizDraft{Settings: draft}), "settings.pointsPerQuestion", "must be a number") {
		t.Fatalf("expected non-numeric input to be reported")
	}
}

func validDraft() QuizDraft {
	return QuizDraft{
		ID:      "quiz-fractions",
		Title:   " Fractions ",
		Subject: "Math",
		Questions: []QuestionDraft{
			{
				ID:     "q1",
				Text:   "1/2 + 1/4 = ?",
				Points: "5",
				Options: []OptionDraft{
					{ID: "a", Text: "3/4", Correct: true},
					{ID: "b", Text: "2/6"},
				},
			},
			{
				Text: "Which is larger?",
				Options: []OptionDraft{
					{Text: "1/3"},
					{Text: "1/2", Correct: true},
				},
			},
		},
		Settings: SettingsDraft{MaxAttempts: "2"},
	}
}

func hasField(result Result, field string) bool {
	for _, fe := range result.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func hasMessage(result Result, field, message string) bool {
	for _, fe := range result.Errors {
		if fe.Field == field && fe.Message == message {
			return true
		}
	}
	return false
}
