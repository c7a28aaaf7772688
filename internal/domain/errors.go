package domain

import "errors"

// Kind classifies errors crossing the service boundary.
type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindConflict             Kind = "CONFLICT"
	KindAttemptLimitExceeded Kind = "ATTEMPT_LIMIT_EXCEEDED"
	KindNotFound             Kind = "NOT_FOUND"
	KindAlreadyCompleted     Kind = "ALREADY_COMPLETED"
	KindInvalidDuration      Kind = "INVALID_DURATION"
	KindUnavailable          Kind = "QUIZ_UNAVAILABLE"
	KindForbidden            Kind = "FORBIDDEN"
	KindInternal             Kind = "INTERNAL"
)

// Error is a classified error. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = &Error{Kind: KindNotFound, Msg: "quiz not found"}
	// ErrAttemptNotFound is returned for unknown attempt ids and for attempts owned by someone else.
	ErrAttemptNotFound = &Error{Kind: KindNotFound, Msg: "attempt not found"}
	// ErrQuestionNotFound indicates a submitted question ID is not part of the quiz.
	ErrQuestionNotFound = &Error{Kind: KindNotFound, Msg: "question not found"}
	// ErrAttemptInProgress is returned when a learner already has an open attempt.
	ErrAttemptInProgress = &Error{Kind: KindConflict, Msg: "an attempt is already in progress, resume it"}
	// ErrAttemptLimitExceeded is returned once all allowed attempts are used.
	ErrAttemptLimitExceeded = &Error{Kind: KindAttemptLimitExceeded, Msg: "no attempts remaining for this quiz"}
	// ErrAlreadyCompleted guards completed attempts against changes.
	ErrAlreadyCompleted = &Error{Kind: KindAlreadyCompleted, Msg: "attempt already completed"}
	// ErrInvalidDuration rejects completions stamped before the attempt started.
	ErrInvalidDuration = &Error{Kind: KindInvalidDuration, Msg: "completion time precedes start time"}
	// ErrQuizUnavailable covers drafts and quizzes outside their availability window.
	ErrQuizUnavailable = &Error{Kind: KindUnavailable, Msg: "quiz is not open for attempts"}
	// ErrGuestNotAllowed is returned when a guest tries a quiz that is not public.
	ErrGuestNotAllowed = &Error{Kind: KindForbidden, Msg: "sign in to attempt this quiz"}
	// ErrForbidden is returned for administrative operations without the admin role.
	ErrForbidden = &Error{Kind: KindForbidden, Msg: "forbidden"}
)

// ValidationError carries the field errors of a rejected quiz draft.
type ValidationError struct {
	Fields []FieldError
}

// FieldError names the offending draft field using its JSON path, e.g. questions[0].text.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid quiz"
	}
	return "invalid quiz: " + e.Fields[0].Field + " " + e.Fields[0].Message
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindInternal
}
