package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"

	"studyquiz-service/internal/authoring"
	"studyquiz-service/internal/domain"
)

// AuthoringService is the publish boundary between the quiz editor and the
// definition store. Once published, a quiz keeps its questions and answer key;
// republishing may only change settings and descriptive fields.
type AuthoringService struct {
	catalog QuizCatalog
	cache   QuizCacheInvalidator
}

// NewAuthoringService accepts a nil cache when nothing caches definitions.
func NewAuthoringService(catalog QuizCatalog, cache QuizCacheInvalidator) *AuthoringService {
	return &AuthoringService{catalog: catalog, cache: cache}
}

// Validate reports every problem in draft without storing anything.
func (s *AuthoringService) Validate(draft authoring.QuizDraft) authoring.Result {
	return authoring.Validate(draft)
}

// Publish stores a valid draft as a live quiz.
func (s *AuthoringService) Publish(ctx context.Context, draft authoring.QuizDraft) (domain.QuizDefinition, error) {
	result := authoring.Validate(draft)
	if err := result.Err(); err != nil {
		return domain.QuizDefinition{}, err
	}
	if result.Quiz.Visibility == domain.VisibilityDraft {
		return domain.QuizDefinition{}, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "visibility", Message: "must not be draft when publishing"},
		}}
	}
	existing, published, err := s.published(ctx, result.Quiz.ID)
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	if published {
		if fields := frozenChanges(existing, result.Quiz); len(fields) > 0 {
			return domain.QuizDefinition{}, &domain.ValidationError{Fields: fields}
		}
	}
	if err := s.store(ctx, result.Quiz); err != nil {
		return domain.QuizDefinition{}, err
	}
	log.Printf("published quiz %s (%d questions)", result.Quiz.ID, len(result.Quiz.Questions))
	return result.Quiz, nil
}

// SaveDraft stores work in progress with draft visibility. Validation errors
// are returned in the result but do not block saving. A published quiz can
// not be turned back into a draft.
func (s *AuthoringService) SaveDraft(ctx context.Context, draft authoring.QuizDraft) (authoring.Result, error) {
	result := authoring.Validate(draft)
	result.Quiz.Visibility = domain.VisibilityDraft
	_, published, err := s.published(ctx, result.Quiz.ID)
	if err != nil {
		return authoring.Result{}, err
	}
	if published {
		return authoring.Result{}, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "id", Message: "belongs to a published quiz"},
		}}
	}
	if err := s.store(ctx, result.Quiz); err != nil {
		return authoring.Result{}, err
	}
	return result, nil
}

func (s *AuthoringService) store(ctx context.Context, quiz domain.QuizDefinition) error {
	if err := s.catalog.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, quiz.ID); err != nil {
		log.Printf("invalidate quiz %s: %v", quiz.ID, err)
	}
	return nil
}

// published loads the stored version of quizID and reports whether takers can
// already see it.
func (s *AuthoringService) published(ctx context.Context, quizID string) (domain.QuizDefinition, bool, error) {
	existing, err := s.catalog.LoadQuiz(ctx, quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.QuizDefinition{}, false, nil
	}
	if err != nil {
		return domain.QuizDefinition{}, false, err
	}
	return existing, existing.Visibility != domain.VisibilityDraft, nil
}

// frozenChanges lists the questions of next that differ from the published
// version. Attempts are scored and reviewed against these.
func frozenChanges(published, next domain.QuizDefinition) []domain.FieldError {
	if len(published.Questions) != len(next.Questions) {
		return []domain.FieldError{{
			Field:   "questions",
			Message: fmt.Sprintf("cannot be added or removed once published (has %d)", len(published.Questions)),
		}}
	}
	var fields []domain.FieldError
	for i := range next.Questions {
		if !sameQuestion(published.Questions[i], next.Questions[i]) {
			fields = append(fields, domain.FieldError{
				Field:   fmt.Sprintf("questions[%d]", i),
				Message: "cannot change once published",
			})
		}
	}
	return fields
}

func sameQuestion(a, b domain.Question) bool {
	if len(a.Options) == 0 && len(b.Options) == 0 {
		a.Options, b.Options = nil, nil
	}
	return reflect.DeepEqual(a, b)
}
