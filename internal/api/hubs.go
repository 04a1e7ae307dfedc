package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maddox/harmony-api/internal/hub"
)

type ctxKeyDefaultHub struct{}

// defaultHubMiddleware resolves the default hub for the single-hub routes.
func (s *Server) defaultHubMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, err := s.hubs.DefaultHub()
		if err != nil {
			writeHubError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyDefaultHub{}, slug)))
	})
}

// hubParam returns the {hub} URL parameter, or the default hub on the
// single-hub routes.
func hubParam(r *http.Request) string {
	if slug := chi.URLParam(r, "hub"); slug != "" {
		return slug
	}
	slug, _ := r.Context().Value(ctxKeyDefaultHub{}).(string) //nolint:errcheck // absent means ""
	return slug
}

func (s *Server) handleListHubs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"hubs": s.hubs.Hubs()})
}

func (s *Server) handleHubsForIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"hubs": s.hubs.HubViews()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.hubs.Status(hubParam(r))
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.hubs.Activities(hubParam(r))
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.hubs.Devices(hubParam(r))
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (s *Server) handleActivityCommands(w http.ResponseWriter, r *http.Request) {
	s.writeCommands(w)(s.hubs.ActivityCommands(hubParam(r), chi.URLParam(r, "activity")))
}

func (s *Server) handleDeviceCommands(w http.ResponseWriter, r *http.Request) {
	s.writeCommands(w)(s.hubs.DeviceCommands(hubParam(r), chi.URLParam(r, "device")))
}

func (s *Server) handleCurrentCommands(w http.ResponseWriter, r *http.Request) {
	s.writeCommands(w)(s.hubs.CurrentActivityCommands(hubParam(r)))
}

func (s *Server) writeCommands(w http.ResponseWriter) func([]hub.CommandView, error) {
	return func(commands []hub.CommandView, err error) {
		if err != nil {
			writeHubError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commands": commands})
	}
}

func (s *Server) handleStartActivity(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, s.hubs.StartActivity(r.Context(), hubParam(r), chi.URLParam(r, "activity")))
}

// handleStartActivityByName starts an activity named by the activity_name
// form or query value.
func (s *Server) handleStartActivityByName(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadRequest(w, "invalid form body")
		return
	}
	name := strings.TrimSpace(r.FormValue("activity_name"))
	if name == "" {
		writeBadRequest(w, "activity_name is required")
		return
	}
	s.writeResult(w, s.hubs.StartActivityByName(r.Context(), hubParam(r), name))
}

func (s *Server) handleOff(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, s.hubs.TurnOff(r.Context(), hubParam(r)))
}

func (s *Server) handleActivityCommand(w http.ResponseWriter, r *http.Request) {
	target := hub.Target{Kind: hub.TargetActivity, Slug: chi.URLParam(r, "activity")}
	s.dispatch(w, r, target)
}

func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	target := hub.Target{Kind: hub.TargetDevice, Slug: chi.URLParam(r, "device")}
	s.dispatch(w, r, target)
}

func (s *Server) handleCurrentCommand(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, hub.Target{Kind: hub.TargetCurrentActivity})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, target hub.Target) {
	repeat := hub.ParseRepeat(r.URL.Query().Get("repeat"))
	err := s.hubs.Dispatch(r.Context(), hubParam(r), target, chi.URLParam(r, "command"), repeat)
	s.writeResult(w, err)
}

func (s *Server) writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

// handleHistory lists recorded activity transitions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is disabled")
		return
	}

	slug := hubParam(r)
	if _, err := s.hubs.Status(slug); err != nil {
		writeHubError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be a number")
			return
		}
		limit = n
	}

	entries, err := s.history.History(r.Context(), slug, limit)
	if err != nil {
		s.logger.Error("listing history failed", "hub", slug, "error", err)
		writeInternalError(w, "listing history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
