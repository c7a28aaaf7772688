package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studyquiz-service/internal/app"
)

// Services are the use cases the HTTP surface translates to.
type Services struct {
	Attempts   *app.AttemptService
	Authoring  *app.AuthoringService
	Statistics *app.Statistics
}

// NewRouter wires the REST endpoints, the attempt websocket and health check.
func NewRouter(services Services, auth *Authenticator) http.Handler {
	h := &Handler{attempts: services.Attempts, authoring: services.Authoring, stats: services.Statistics}
	ws := NewWSHandler(services.Attempts, auth)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// websocket clients pass their token as a query parameter
	r.Get("/ws", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Route("/quizzes", func(r chi.Router) {
			r.Post("/", h.Publish)
			r.Post("/validate", h.Validate)
			r.Post("/drafts", h.SaveDraft)
			r.Get("/{quizID}/status", h.Status)
			r.Post("/{quizID}/attempts", h.StartAttempt)
			r.Get("/{quizID}/statistics", h.QuizStatistics)
		})
		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", h.GetAttempt)
			r.Delete("/", h.RemoveAttempt)
			r.Put("/answers/{questionID}", h.SubmitAnswer)
			r.Post("/complete", h.CompleteAttempt)
			r.Post("/submit", h.SubmitAttempt)
		})
		r.Get("/me/attempts", h.History)
		r.Get("/me/statistics", h.LearnerStatistics)
	})
	return r
}
