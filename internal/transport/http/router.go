package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter configures the tracker API routes. metrics may be nil.
func NewRouter(handler *Handler, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(handler.logRequests)

	r.HandleFunc("/healthz", handler.Health).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	r.HandleFunc("/api/uploads", handler.Upload).Methods("POST")
	r.HandleFunc("/api/jobs", handler.ListJobs).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", handler.GetJob).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", handler.DeleteJob).Methods("DELETE")
	r.HandleFunc("/api/jobs/{id}/poll", handler.ResumeJob).Methods("POST")
	r.HandleFunc("/api/jobs/{id}/artifacts/{feature}", handler.Artifact).Methods("GET")
	r.HandleFunc("/api/events", handler.Events).Methods("GET")

	r.HandleFunc("/api/chat", handler.ChatHistory).Methods("GET")
	r.HandleFunc("/api/chat", handler.SendChat).Methods("POST")
	r.HandleFunc("/api/chat/feedback", handler.ChatFeedback).Methods("POST")

	r.HandleFunc("/api/auth/login", handler.Login).Methods("POST")
	r.HandleFunc("/api/auth/register", handler.Register).Methods("POST")
	r.HandleFunc("/api/auth/logout", handler.Logout).Methods("POST")
	r.HandleFunc("/api/auth/session", handler.Session).Methods("GET")
	return r
}

// WithCORS wraps h for the given browser origins.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !containsWildcard(origins),
	}).Handler(h)
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}
