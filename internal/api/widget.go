package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/chatwidget/internal/backend"
	"github.com/ashureev/chatwidget/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the widget API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/widget/config", h.GetWidgetConfig)
	})
}

// GetMe returns the current visitor's identity.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.VisitorID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	visitor, err := h.repo.GetVisitor(r.Context(), id.VisitorID)
	if err != nil || visitor == nil {
		Error(w, http.StatusUnauthorized, "visitor not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"visitor_id": visitor.VisitorID,
		"label":      visitor.Label,
		"tab_id":     id.TabID,
		"first_seen": visitor.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// GetWidgetConfig returns the settings the widget script needs at startup.
func (h *Handler) GetWidgetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"start_open":             h.settings.StartOpen,
		"idle_tips":              h.settings.IdleTips,
		"idle_tip_after_seconds": int64(h.settings.IdleTipAfter.Seconds()),
		"socket_path":            h.settings.SocketPath,
		"tab_header":             identity.TabHeaderName,
		"tab_query_param":        identity.TabQueryParam,
	})
}

// BackendProber checks the remote chat service.
type BackendProber interface {
	Health(ctx context.Context) (*backend.HealthStatus, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	h       *Handler
	prober  BackendProber
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. prober may be nil.
func NewHealthHandler(h *Handler, prober BackendProber, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{h: h, prober: prober, timeout: timeout}
}

// Health returns the health status of the server and its dependencies. The
// chat backend is reported but never degrades the status: the widget keeps
// answering from the fallback responder without it.
func (hh *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hh.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := hh.h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
		if n, err := hh.h.repo.CountVisitors(ctx); err == nil {
			status["visitors"] = n
		}
	}

	if hh.prober != nil {
		hs, err := hh.prober.Health(ctx)
		switch {
		case err != nil:
			checks["chat_backend"] = "unreachable"
		case !hs.OllamaConnected:
			checks["chat_backend"] = "model_runtime_missing"
		default:
			checks["chat_backend"] = "ok"
			status["current_model"] = hs.CurrentModel
		}
	}

	if hh.h.sessions != nil {
		status["live_sessions"] = hh.h.sessions.Count()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (hh *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", hh.Health)
}
