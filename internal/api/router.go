package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/presence", func(r chi.Router) {
			r.Get("/", s.handleGetPresence)
			r.Post("/", s.handlePostFrame)
			r.Post("/spoken", s.handleSpoken)
		})

		r.Post("/signals", s.handleSendSignal)

		r.Route("/robots", func(r chi.Router) {
			r.Get("/", s.handleListRobots)
			r.Post("/", s.handleAddRobot)
			r.Get("/serial-ports", s.handleSerialPorts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRobot)
				r.Delete("/", s.handleRemoveRobot)
				r.Put("/enabled", s.handleSetRobotEnabled)
				r.Post("/test", s.handleTestRobot)
			})
		})

		r.Route("/actuator", func(r chi.Router) {
			r.Get("/status", s.handleActuatorStatus)
			r.Get("/gestures", s.handleListGestures)
			r.Post("/gestures/{gesture}", s.handleTriggerGesture)
			r.Post("/custom", s.handleCustomSignal)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
