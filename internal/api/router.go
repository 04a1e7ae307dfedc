package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/_ping", s.handlePing)
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(s.requireHubMiddleware)

		r.Get("/hubs", s.handleListHubs)
		r.Get("/hubs_for_index", s.handleHubsForIndex)

		r.Route("/hubs/{hub}", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Put("/off", s.handleOff)
			r.Post("/start_activity", s.handleStartActivityByName)
			r.Get("/history", s.handleHistory)

			r.Get("/commands", s.handleCurrentCommands)
			r.Post("/commands/{command}", s.handleCurrentCommand)

			r.Route("/activities", func(r chi.Router) {
				r.Get("/", s.handleListActivities)
				r.Post("/{activity}", s.handleStartActivity)
				r.Get("/{activity}/commands", s.handleActivityCommands)
				r.Post("/{activity}/commands/{command}", s.handleActivityCommand)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{device}/commands", s.handleDeviceCommands)
				r.Post("/{device}/commands/{command}", s.handleDeviceCommand)
			})
		})

		// Single-hub routes acting on the default hub.
		r.Group(func(r chi.Router) {
			r.Use(s.defaultHubMiddleware)
			r.Get("/activities", s.handleListActivities)
			r.Get("/status", s.handleStatus)
			r.Put("/off", s.handleOff)
			r.Post("/start_activity", s.handleStartActivityByName)
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck // best effort
}
