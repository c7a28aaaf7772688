package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyquiz-service/internal/app"
	"studyquiz-service/internal/authoring"
	"studyquiz-service/internal/domain"
	"studyquiz-service/internal/presentation"
)

// Handler translates REST requests into attempt, authoring and statistics calls.
type Handler struct {
	attempts  *app.AttemptService
	authoring *app.AuthoringService
	stats     *app.Statistics
}

type answerRequest struct {
	OptionIDs []string `json:"optionIds"`
	Text      string   `json:"text"`
}

type submitRequest struct {
	Answers []domain.Answer `json:"answers"`
}

type attemptResponse struct {
	Status  string                   `json:"status"`
	Attempt *app.StartResult         `json:"attempt,omitempty"`
	Review  *presentation.ReviewView `json:"review,omitempty"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var draft authoring.QuizDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	writeJSON(w, http.StatusOK, h.authoring.Validate(draft))
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	if !IdentityFromContext(r.Context()).CanAuthor() {
		writeError(w, domain.ErrForbidden)
		return
	}
	var draft authoring.QuizDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	quiz, err := h.authoring.Publish(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	if !IdentityFromContext(r.Context()).CanAuthor() {
		writeError(w, domain.ErrForbidden)
		return
	}
	var draft authoring.QuizDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	result, err := h.authoring.SaveDraft(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.attempts.GetStatus(r.Context(), chi.URLParam(r, "quizID"), LearnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	started, err := h.attempts.StartAttempt(r.Context(), chi.URLParam(r, "quizID"), LearnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

// GetAttempt resumes an open attempt or reviews a completed one.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attemptID, learnerID := chi.URLParam(r, "attemptID"), LearnerFromContext(ctx)
	attempt, err := h.attempts.GetAttempt(ctx, attemptID, learnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempt.Open() {
		resumed, err := h.attempts.ResumeAttempt(ctx, attemptID, learnerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, attemptResponse{Status: string(domain.StatusInProgress), Attempt: &resumed})
		return
	}
	review, err := h.attempts.GetReview(ctx, attemptID, learnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptResponse{Status: string(domain.StatusSubmitted), Review: &review})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answer := domain.Answer{QuestionID: chi.URLParam(r, "questionID"), OptionIDs: req.OptionIDs, Text: req.Text}
	if err := h.attempts.SubmitAnswer(r.Context(), chi.URLParam(r, "attemptID"), LearnerFromContext(r.Context()), answer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CompleteAttempt(w http.ResponseWriter, r *http.Request) {
	result, err := h.attempts.CompleteAttempt(r.Context(), chi.URLParam(r, "attemptID"), LearnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	attempt, err := h.attempts.SubmitAttempt(r.Context(), chi.URLParam(r, "attemptID"), LearnerFromContext(r.Context()), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) RemoveAttempt(w http.ResponseWriter, r *http.Request) {
	if IdentityFromContext(r.Context()).Role != RoleAdmin {
		writeError(w, domain.ErrForbidden)
		return
	}
	if err := h.attempts.RemoveAttempt(r.Context(), chi.URLParam(r, "attemptID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.attempts.GetHistory(r.Context(), LearnerFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) LearnerStatistics(w http.ResponseWriter, r *http.Request) {
	learnerID := LearnerFromContext(r.Context())
	if learnerID == "" {
		writeError(w, domain.ErrForbidden)
		return
	}
	stats, err := h.stats.Learner(r.Context(), learnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) QuizStatistics(w http.ResponseWriter, r *http.Request) {
	if !IdentityFromContext(r.Context()).CanAuthor() {
		writeError(w, domain.ErrForbidden)
		return
	}
	stats, err := h.stats.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
