package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"studyquiz-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindConflict, domain.KindAttemptLimitExceeded, domain.KindAlreadyCompleted:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidDuration:
		return http.StatusBadRequest
	case domain.KindUnavailable, domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a service error onto a status code and JSON body.
// Unclassified errors are logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	detail := errorDetail{Kind: string(kind), Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		detail.Fields = verr.Fields
	}
	if kind == domain.KindInternal {
		log.Printf("internal error: %v", err)
		detail.Message = "internal error"
	}
	writeJSON(w, statusFor(kind), errorBody{Error: detail})
}

func writeStatus(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeStatus(w, http.StatusBadRequest, "BAD_REQUEST", "bad json")
		return false
	}
	return true
}
