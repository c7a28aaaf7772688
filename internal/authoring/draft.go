// Package authoring turns quiz drafts coming from the editor into quiz
// definitions, reporting every problem it finds instead of stopping at the
// first one.
package authoring

import (
	"encoding/json"
	"strings"
	"time"
)

// QuizDraft is the editor's view of a quiz. Numeric inputs arrive as raw form
// values and are only interpreted by Validate.
type QuizDraft struct {
	ID               string          `json:"id"`
	Title            string          `json:"title" validate:"notblank"`
	Description      string          `json:"description"`
	Subject          string          `json:"subject" validate:"notblank"`
	Difficulty       string          `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Visibility       string          `json:"visibility" validate:"omitempty,oneof=public group draft"`
	EstimatedMinutes NumberInput     `json:"estimatedMinutes"`
	Tags             []string        `json:"tags"`
	Questions        []QuestionDraft `json:"questions" validate:"min=1,dive"`
	Settings         SettingsDraft   `json:"settings"`
}

type QuestionDraft struct {
	ID          string        `json:"id"`
	Text        string        `json:"text" validate:"notblank"`
	Type        string        `json:"type" validate:"omitempty,oneof=multiple_choice true_false short_answer"`
	Points      NumberInput   `json:"points"`
	Explanation string        `json:"explanation"`
	Options     []OptionDraft `json:"options" validate:"min=1,dive"`
}

type OptionDraft struct {
	ID      string `json:"id"`
	Text    string `json:"text" validate:"notblank"`
	Correct bool   `json:"correct"`
}

type SettingsDraft struct {
	RandomizeQuestions bool        `json:"randomizeQuestions"`
	RandomizeOptions   bool        `json:"randomizeOptions"`
	ShowCorrectAnswers bool        `json:"showCorrectAnswers"`
	MaxAttempts        NumberInput `json:"maxAttempts"`
	PassingScore       NumberInput `json:"passingScore"`
	TimeLimitSeconds   NumberInput `json:"timeLimitSeconds"`
	PointsPerQuestion  NumberInput `json:"pointsPerQuestion"`
	OpensAt            *time.Time  `json:"opensAt"`
	ClosesAt           *time.Time  `json:"closesAt"`
}

// NumberInput holds a raw numeric form value. It accepts JSON strings and
// numbers alike and never fails to decode; bad values are reported by Validate.
type NumberInput string

func (n *NumberInput) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*n = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = NumberInput(s)
		return nil
	}
	*n = NumberInput(raw)
	return nil
}
