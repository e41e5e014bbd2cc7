package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Handler   *Handler
	WSHandler *WSHandler
	Log       logrus.FieldLogger
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	h := cfg.Handler
	r.Route("/attempts", func(r chi.Router) {
		r.Post("/", h.StartAttempt)
		r.Get("/", h.RecentAttempts)
		r.Get("/{id}", h.GetAttempt)
		r.Post("/{id}/submit", h.SubmitAttempt)
		r.Post("/{id}/abandon", h.AbandonAttempt)
	})
	r.Get("/leaderboards/{type}", h.Leaderboard)
	r.Get("/quizzes/{id}/rankings", h.QuizRankings)
	r.Get("/users/{id}/stats", h.UserStats)
	r.Post("/users/{id}/login", h.RecordLogin)

	if cfg.WSHandler != nil {
		r.Get("/ws/leaderboards", cfg.WSHandler.ServeWS)
	}
	return r
}
