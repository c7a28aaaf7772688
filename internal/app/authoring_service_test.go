package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/authoring"
	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/infra/memory"
)

func publishableDraft() authoring.QuizDraft {
	return authoring.QuizDraft{
		ID:      "quiz-new",
		Title:   "Planets",
		Subject: "Science",
		Questions: []authoring.QuestionDraft{{
			ID:   "q1",
			Text: "Largest planet?",
			Options: []authoring.OptionDraft{
				{ID: "a", Text: "Jupiter", Correct: true},
				{ID: "b", Text: "Mars"},
			},
		}},
		Settings: authoring.SettingsDraft{MaxAttempts: "3"},
	}
}

func TestPublishStoresAndInvalidates(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	cache := memory.NewQuizRepository(catalog, time.Minute)
	service := app.NewAuthoringService(catalog, cache)
	ctx := context.Background()

	if _, err := cache.GetQuiz(ctx, "quiz-new"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz to be unknown before publishing, got %v", err)
	}
	draft := publishableDraft()
	published, err := service.Publish(ctx, draft)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.ID != "quiz-new" || published.Visibility != domain.VisibilityPublic {
		t.Fatalf("unexpected published quiz: %+v", published)
	}
	if _, err := cache.GetQuiz(ctx, "quiz-new"); err != nil {
		t.Fatalf("get published quiz: %v", err)
	}

	draft.Title = "Planets v2"
	if _, err := service.Publish(ctx, draft); err != nil {
		t.Fatalf("republish: %v", err)
	}
	quiz, err := cache.GetQuiz(ctx, "quiz-new")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Title != "Planets v2" {
		t.Fatalf("expected cache to serve the latest version, got %q", quiz.Title)
	}
}

func TestPublishRejectsInvalidDrafts(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	service := app.NewAuthoringService(catalog, nil)
	ctx := context.Background()

	draft := publishableDraft()
	draft.Questions[0].Options[0].Correct = false
	_, err := service.Publish(ctx, draft)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	draft = publishableDraft()
	draft.Visibility = "draft"
	if _, err := service.Publish(ctx, draft); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected draft visibility to be rejected, got %v", err)
	}
	if _, err := catalog.LoadQuiz(ctx, "quiz-new"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestSaveDraftKeepsQuizUnavailable(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	service := app.NewAuthoringService(catalog, nil)
	ctx := context.Background()

	draft := publishableDraft()
	draft.Subject = ""
	result, err := service.SaveDraft(ctx, draft)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if result.Valid() {
		t.Fatalf("expected the missing subject to be reported")
	}

	ledger := app.NewLedger(memory.NewAttemptStore(), memory.NewAttemptStore(), catalog)
	attempts := app.NewAttemptService(ledger, catalog)
	if _, err := attempts.StartAttempt(ctx, "quiz-new", "learner-1"); !errors.Is(err, domain.ErrQuizUnavailable) {
		t.Fatalf("expected draft to be unavailable, got %v", err)
	}
}

func TestPublishedQuizKeepsItsAnswerKey(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	cache := memory.NewQuizRepository(catalog, time.Minute)
	service := app.NewAuthoringService(catalog, cache)
	ctx := context.Background()

	if _, err := service.Publish(ctx, publishableDraft()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ledger := app.NewLedger(memory.NewAttemptStore(), memory.NewAttemptStore(), cache)
	attempts := app.NewAttemptService(ledger, cache)
	started, err := attempts.StartAttempt(ctx, "quiz-new", "learner-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	broken := publishableDraft()
	broken.Questions[0].Options[0].Correct = false
	result, err := service.SaveDraft(ctx, broken)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected saving a draft over a published quiz to fail, got %v (%+v)", err, result)
	}

	rekeyed := publishableDraft()
	rekeyed.Questions[0].Options[0].Correct = false
	rekeyed.Questions[0].Options[1].Correct = true
	if _, err := service.Publish(ctx, rekeyed); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected answer key change to be rejected, got %v", err)
	}

	extra := publishableDraft()
	extra.Questions = append(extra.Questions, authoring.QuestionDraft{
		ID:      "q2",
		Text:    "Smallest planet?",
		Options: []authoring.OptionDraft{{ID: "a", Text: "Mercury", Correct: true}},
	})
	if _, err := service.Publish(ctx, extra); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected added question to be rejected, got %v", err)
	}

	if err := attempts.SubmitAnswer(ctx, started.AttemptID, "learner-1", domain.Answer{QuestionID: "q1", OptionIDs: []string{"a"}}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	score, err := attempts.CompleteAttempt(ctx, started.AttemptID, "learner-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if score.TotalPoints != 1 || score.MaxPoints != 1 {
		t.Fatalf("expected the original answer key to score 1/1, got %v/%v", score.TotalPoints, score.MaxPoints)
	}
}

func TestRepublishMayChangeSettings(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	service := app.NewAuthoringService(catalog, nil)
	ctx := context.Background()

	if _, err := service.Publish(ctx, publishableDraft()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	draft := publishableDraft()
	draft.Settings.MaxAttempts = "5"
	draft.Settings.ShowCorrectAnswers = true
	if _, err := service.Publish(ctx, draft); err != nil {
		t.Fatalf("republish with new settings: %v", err)
	}
	quiz, err := catalog.LoadQuiz(ctx, "quiz-new")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.Settings.MaxAttempts == nil || *quiz.Settings.MaxAttempts != 5 || !quiz.Settings.ShowCorrectAnswers {
		t.Fatalf("expected updated settings, got %+v", quiz.Settings)
	}
}

func TestDraftsStayEditableUntilPublished(t *testing.T) {
	catalog := memory.NewStaticQuizLoader(nil)
	service := app.NewAuthoringService(catalog, nil)
	ctx := context.Background()

	draft := publishableDraft()
	if _, err := service.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	draft.Questions[0].Options[1].Correct = true
	if _, err := service.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("save draft again: %v", err)
	}
	draft.Questions = append(draft.Questions, authoring.QuestionDraft{
		ID:      "q2",
		Text:    "Smallest planet?",
		Options: []authoring.OptionDraft{{ID: "a", Text: "Mercury", Correct: true}},
	})
	published, err := service.Publish(ctx, draft)
	if err != nil {
		t.Fatalf("publish over draft: %v", err)
	}
	if len(published.Questions) != 2 {
		t.Fatalf("expected both questions published, got %d", len(published.Questions))
	}
}
