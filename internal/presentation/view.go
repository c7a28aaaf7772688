package presentation

import "studyquiz-service/internal/domain"

// View is what an in-progress attempt receives. None of its types carry
// answer key data.
type View struct {
	QuizID           string         `json:"quizId"`
	Title            string         `json:"title"`
	Subject          string         `json:"subject"`
	TimeLimitSeconds *int           `json:"timeLimitSeconds,omitempty"`
	Questions        []QuestionView `json:"questions"`
}

type QuestionView struct {
	Number  int                 `json:"number"`
	ID      string              `json:"id"`
	Text    string              `json:"text"`
	Type    domain.QuestionType `json:"type"`
	Points  float64             `json:"points"`
	Options []OptionView        `json:"options,omitempty"`
}

type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Present renders quiz in the given order. Short answer questions are sent
// without options since their options are the accepted answers.
func Present(quiz domain.QuizDefinition, order Order) View {
	view := View{
		QuizID:           quiz.ID,
		Title:            quiz.Title,
		Subject:          quiz.Subject,
		TimeLimitSeconds: quiz.Settings.TimeLimitSeconds,
		Questions:        make([]QuestionView, 0, len(order.QuestionOrder)),
	}
	for i, questionID := range order.QuestionOrder {
		question, ok := quiz.Question(questionID)
		if !ok {
			continue
		}
		view.Questions = append(view.Questions, questionView(quiz, question, order, i+1))
	}
	return view
}

func questionView(quiz domain.QuizDefinition, question domain.Question, order Order, number int) QuestionView {
	qv := QuestionView{
		Number: number,
		ID:     question.ID,
		Text:   question.Text,
		Type:   question.Type,
		Points: quiz.PointsFor(question),
	}
	if question.Type == domain.QuestionShortAnswer {
		return qv
	}
	texts := make(map[string]string, len(question.Options))
	for _, opt := range question.Options {
		texts[opt.ID] = opt.Text
	}
	for _, optionID := range order.OptionOrder[question.ID] {
		if text, ok := texts[optionID]; ok {
			qv.Options = append(qv.Options, OptionView{ID: optionID, Text: text})
		}
	}
	return qv
}

// ReviewView is sent for a completed attempt.
type ReviewView struct {
	AttemptID string             `json:"attemptId"`
	QuizID    string             `json:"quizId"`
	Result    domain.ScoreResult `json:"result"`
	Questions []ReviewQuestion   `json:"questions"`
}

type ReviewQuestion struct {
	QuestionView
	SelectedOptionIDs []string `json:"selectedOptionIds,omitempty"`
	AnswerText        string   `json:"answerText,omitempty"`
	Correct           bool     `json:"correct"`
	Awarded           float64  `json:"awarded"`
	CorrectOptionIDs  []string `json:"correctOptionIds,omitempty"`
	AcceptedAnswers   []string `json:"acceptedAnswers,omitempty"`
	Explanation       string   `json:"explanation,omitempty"`
}

// Review renders a completed attempt in the order the learner saw it. The
// answer key and explanations are attached only when the quiz shows correct
// answers.
func Review(quiz domain.QuizDefinition, attempt domain.Attempt) ReviewView {
	order := DeriveOrder(quiz, attempt.Seed)
	review := ReviewView{
		AttemptID: attempt.ID,
		QuizID:    quiz.ID,
		Questions: make([]ReviewQuestion, 0, len(order.QuestionOrder)),
	}
	if attempt.Result != nil {
		review.Result = *attempt.Result
	}

	answers := make(map[string]domain.Answer, len(attempt.Answers))
	for _, answer := range attempt.Answers {
		answers[answer.QuestionID] = answer
	}
	graded := make(map[string]domain.QuestionResult, len(review.Result.Questions))
	for _, qr := range review.Result.Questions {
		graded[qr.QuestionID] = qr
	}

	for i, questionID := range order.QuestionOrder {
		question, ok := quiz.Question(questionID)
		if !ok {
			continue
		}
		rq := ReviewQuestion{
			QuestionView:      questionView(quiz, question, order, i+1),
			SelectedOptionIDs: answers[questionID].OptionIDs,
			AnswerText:        answers[questionID].Text,
			Correct:           graded[questionID].Correct,
			Awarded:           graded[questionID].Awarded,
		}
		if quiz.Settings.ShowCorrectAnswers {
			if question.Type == domain.QuestionShortAnswer {
				rq.AcceptedAnswers = acceptedAnswers(question)
			} else {
				rq.CorrectOptionIDs = question.CorrectOptionIDs()
			}
			rq.Explanation = question.Explanation
		}
		review.Questions = append(review.Questions, rq)
	}
	return review
}

func acceptedAnswers(question domain.Question) []string {
	var texts []string
	for _, opt := range question.Options {
		if opt.Correct {
			texts = append(texts, opt.Text)
		}
	}
	return texts
}
