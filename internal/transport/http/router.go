package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizz-service/internal/app"
)

// NewRouter mounts every endpoint of the quiz service. requestTimeout bounds the
// request context of the JSON and CSV endpoints; the websocket feed is exempt.
func NewRouter(service *app.QuizService, requestTimeout time.Duration) http.Handler {
	h := NewHandler(service)
	ws := NewWSHandler(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws/progress", ws.ServeWS)

	r.Group(func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}
		r.Route("/sendings/{token}", func(r chi.Router) {
			r.Post("/answers", h.SubmitAnswer)
			r.Get("/next", h.NextQuestion)
			r.Get("/statistics", h.Statistics)
			r.Get("/export.csv", h.ExportCSV)
		})
		r.Get("/persons/{email}/history", h.History)
		r.Post("/reviews/{review}", h.SubmitReview)
	})
	return r
}
