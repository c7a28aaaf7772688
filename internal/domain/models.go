package domain

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityGroup  Visibility = "group"
	VisibilityDraft  Visibility = "draft"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Option represents a possible answer for a question. For short answer
// questions the text of each correct option is an accepted answer.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is stored in canonical order inside its quiz.
type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options"`
	Points      *float64     `json:"points,omitempty"` // falls back to Settings.PointsPerQuestion, then 1
	Explanation string       `json:"explanation,omitempty"`
}

// CorrectOptionIDs returns the ids of options flagged correct, in canonical order.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, 1)
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// Settings are the grading and delivery knobs chosen by the quiz author.
type Settings struct {
	RandomizeQuestions bool       `json:"randomizeQuestions"`
	RandomizeOptions   bool       `json:"randomizeOptions"`
	ShowCorrectAnswers bool       `json:"showCorrectAnswers"`
	MaxAttempts        *int       `json:"maxAttempts,omitempty"`
	PassingScore       *float64   `json:"passingScore,omitempty"`
	TimeLimitSeconds   *int       `json:"timeLimitSeconds,omitempty"`
	PointsPerQuestion  *float64   `json:"pointsPerQuestion,omitempty"`
	OpensAt            *time.Time `json:"opensAt,omitempty"`
	ClosesAt           *time.Time `json:"closesAt,omitempty"`
}

// QuizDefinition is a published (or draft) quiz with its answer key.
type QuizDefinition struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Subject          string     `json:"subject"`
	Difficulty       Difficulty `json:"difficulty"`
	Visibility       Visibility `json:"visibility"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	Tags             []string   `json:"tags,omitempty"`
	Questions        []Question `json:"questions"`
	Settings         Settings   `json:"settings"`
}

// Question looks up a question by id.
func (q QuizDefinition) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// PointsFor resolves the point value of a question.
func (q QuizDefinition) PointsFor(question Question) float64 {
	if question.Points != nil {
		return *question.Points
	}
	if q.Settings.PointsPerQuestion != nil {
		return *q.Settings.PointsPerQuestion
	}
	return 1
}

// Answer is a learner's selection for one question, always in canonical ids.
type Answer struct {
	QuestionID string   `json:"questionId"`
	OptionIDs  []string `json:"optionIds,omitempty"`
	Text       string   `json:"text,omitempty"`
}

// QuestionResult is the graded outcome of a single question.
type QuestionResult struct {
	QuestionID string  `json:"questionId"`
	Correct    bool    `json:"correct"`
	Awarded    float64 `json:"awarded"`
	Possible   float64 `json:"possible"`
}

// ScoreResult is computed on completion and embedded in the attempt.
// Pass is nil when the quiz has no passing score.
type ScoreResult struct {
	TotalPoints float64          `json:"totalPoints"`
	MaxPoints   float64          `json:"maxPoints"`
	Percentage  float64          `json:"percentage"`
	Questions   []QuestionResult `json:"questions"`
	Pass        *bool            `json:"pass"`
}

// Attempt is one learner's run through a quiz. An empty LearnerID marks a guest.
type Attempt struct {
	ID          string       `json:"id"`
	QuizID      string       `json:"quizId"`
	LearnerID   string       `json:"learnerId,omitempty"`
	Seed        uint64       `json:"seed"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	Answers     []Answer     `json:"answers"`
	Result      *ScoreResult `json:"result,omitempty"`
}

// Open reports whether the attempt is still in progress.
func (a Attempt) Open() bool {
	return a.CompletedAt == nil
}

// Duration is the time spent on a completed attempt, zero while open.
func (a Attempt) Duration() time.Duration {
	if a.CompletedAt == nil {
		return 0
	}
	return a.CompletedAt.Sub(a.StartedAt)
}

type ParticipationStatus string

const (
	StatusNotJoined  ParticipationStatus = "NOT_JOINED"
	StatusInProgress ParticipationStatus = "IN_PROGRESS"
	StatusSubmitted  ParticipationStatus = "SUBMITTED"
)
