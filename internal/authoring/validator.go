package authoring

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"studyquiz-service/internal/domain"
)

const defaultEstimatedMinutes = 30

// Result is the outcome of validating a draft. Quiz is always populated with
// the normalized definition, even when Errors is not empty.
type Result struct {
	Errors []domain.FieldError   `json:"errors"`
	Quiz   domain.QuizDefinition `json:"quiz"`
}

// Valid reports whether the draft can be published.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a VALIDATION_ERROR describing every field error, or nil.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &domain.ValidationError{Fields: r.Errors}
}

var structs = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks draft and builds the quiz definition it describes. It never
// panics and never stops at the first problem.
func Validate(draft QuizDraft) Result {
	c := &checker{}
	c.structErrors(structs.Struct(draft))

	quiz := domain.QuizDefinition{
		ID:          idOrNew(draft.ID),
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		Subject:     strings.TrimSpace(draft.Subject),
		Difficulty:  domain.Difficulty(orDefault(draft.Difficulty, string(domain.DifficultyMedium))),
		Visibility:  domain.Visibility(orDefault(draft.Visibility, string(domain.VisibilityPublic))),
		Tags:        draft.Tags,
	}
	quiz.EstimatedMinutes = defaultEstimatedMinutes
	if n, ok := c.wholeNumber("estimatedMinutes", draft.EstimatedMinutes); ok && n > 0 {
		quiz.EstimatedMinutes = n
	}

	quiz.Settings = c.settings(draft.Settings)

	questionIDs := make(map[string]bool, len(draft.Questions))
	for i, qd := range draft.Questions {
		question := c.question(fmt.Sprintf("questions[%d]", i), qd)
		if questionIDs[question.ID] {
			c.add(fmt.Sprintf("questions[%d].id", i), "duplicates another question id")
		}
		questionIDs[question.ID] = true
		quiz.Questions = append(quiz.Questions, question)
	}

	if quiz.Settings.PassingScore != nil && len(quiz.Questions) > 0 {
		var total float64
		for _, question := range quiz.Questions {
			total += quiz.PointsFor(question)
		}
		if *quiz.Settings.PassingScore > total {
			c.add("settings.passingScore", fmt.Sprintf("exceeds the maximum of %v points", total))
		}
	}

	return Result{Errors: c.errors, Quiz: quiz}
}

type checker struct {
	errors []domain.FieldError
}

func (c *checker) add(field, message string) {
	c.errors = append(c.errors, domain.FieldError{Field: field, Message: message})
}

func (c *checker) structErrors(err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.add("", err.Error())
		return
	}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		c.add(field, describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

func (c *checker) settings(sd SettingsDraft) domain.Settings {
	settings := domain.Settings{
		RandomizeQuestions: sd.RandomizeQuestions,
		RandomizeOptions:   sd.RandomizeOptions,
		ShowCorrectAnswers: sd.ShowCorrectAnswers,
		OpensAt:            sd.OpensAt,
		ClosesAt:           sd.ClosesAt,
	}
	if n, ok := c.wholeNumber("settings.maxAttempts", sd.MaxAttempts); ok {
		if n == 0 {
			c.add("settings.maxAttempts", "must allow at least one attempt")
			n = 1
		}
		settings.MaxAttempts = &n
	}
	if n, ok := c.wholeNumber("settings.passingScore", sd.PassingScore); ok {
		score := float64(n)
		settings.PassingScore = &score
	}
	if n, ok := c.wholeNumber("settings.timeLimitSeconds", sd.TimeLimitSeconds); ok && n > 0 {
		settings.TimeLimitSeconds = &n
	}
	if n, ok := c.wholeNumber("settings.pointsPerQuestion", sd.PointsPerQuestion); ok {
		points := float64(n)
		settings.PointsPerQuestion = &points
	}
	if sd.OpensAt != nil && sd.ClosesAt != nil && !sd.ClosesAt.After(*sd.OpensAt) {
		c.add("settings.closesAt", "must be after opensAt")
	}
	return settings
}

func (c *checker) question(path string, qd QuestionDraft) domain.Question {
	question := domain.Question{
		ID:          idOrNew(qd.ID),
		Text:        strings.TrimSpace(qd.Text),
		Type:        domain.QuestionType(orDefault(qd.Type, string(domain.QuestionMultipleChoice))),
		Explanation: strings.TrimSpace(qd.Explanation),
	}
	if n, ok := c.wholeNumber(path+".points", qd.Points); ok {
		points := float64(n)
		question.Points = &points
	}

	correct := 0
	optionIDs := make(map[string]bool, len(qd.Options))
	for j, od := range qd.Options {
		opt := domain.Option{ID: idOrNew(od.ID), Text: strings.TrimSpace(od.Text), Correct: od.Correct}
		if optionIDs[opt.ID] {
			c.add(fmt.Sprintf("%s.options[%d].id", path, j), "duplicates another option id")
		}
		optionIDs[opt.ID] = true
		if opt.Correct {
			correct++
		}
		question.Options = append(question.Options, opt)
	}

	if len(qd.Options) > 0 && correct == 0 {
		c.add(path+".options", "must mark at least one option as correct")
	}
	if question.Type == domain.QuestionTrueFalse {
		if len(qd.Options) != 2 {
			c.add(path+".options", "true/false questions need exactly 2 options")
		} else if correct != 1 {
			c.add(path+".options", "true/false questions need exactly 1 correct option")
		}
	}
	return question
}

// wholeNumber interprets a raw numeric input. Empty input yields ok=false.
// Anything else yields a non-negative integer; negatives are clamped to 0 and
// fractions truncated, and both are reported.
func (c *checker) wholeNumber(field string, raw NumberInput) (int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		c.add(field, "must be a number")
		return 0, false
	}
	if f < 0 {
		c.add(field, "must not be negative")
		return 0, true
	}
	if f != math.Trunc(f) {
		c.add(field, "must be a whole number")
	}
	if f > math.MaxInt32 {
		c.add(field, "is too large")
		return math.MaxInt32, true
	}
	return int(f), true
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
