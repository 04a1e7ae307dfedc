package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maddox/harmony-api/internal/hub"
)

// Error is the JSON body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeNoHubAvailable = "no_hub_available"
	ErrCodeUpstream       = "upstream_error"
	ErrCodeInternal       = "internal_error"
)

// okResponse is the body of a successful command.
var okResponse = map[string]string{"message": "ok"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // connection may already be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeNoHub(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrCodeNoHubAvailable, "no hub available")
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeHubError maps a hub error to its response.
func writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrNoHubAvailable):
		writeNoHub(w)
	case errors.Is(err, hub.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, hub.ErrUpstream):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
