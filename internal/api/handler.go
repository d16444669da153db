// Package api provides HTTP handlers for the widget server.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/chatwidget/internal/store"
)

// SessionCounter reports how many widget sessions are live.
type SessionCounter interface {
	Count() int
}

// WidgetSettings is the browser-visible part of the configuration.
type WidgetSettings struct {
	StartOpen    bool
	IdleTips     bool
	IdleTipAfter time.Duration
	SocketPath   string
}

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	sessions SessionCounter
	settings WidgetSettings
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions SessionCounter, settings WidgetSettings) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		settings: settings,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
