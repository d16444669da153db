package widget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/ashureev/chatwidget/internal/identity"
	"github.com/ashureev/chatwidget/internal/responder"
	"github.com/ashureev/chatwidget/internal/store"
	"github.com/ashureev/chatwidget/internal/transcript"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Inbound message types.
const (
	msgSubmit     = "submit"
	msgQuickReply = "quick_reply"
	msgToggle     = "toggle"
	msgClose      = "close"
	msgClear      = "clear"
	msgPing       = "ping"
)

// Config holds handler settings.
type Config struct {
	AllowedOrigins []string
	IsDev          bool
	StartOpen      bool
	IdleTips       bool
	IdleTipAfter   time.Duration
}

// inboundMessage is what the browser sends.
type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Handler serves /ws/chat. Each connection gets its own chat.Session.
type Handler struct {
	repo       store.Repository
	backend    chat.Backend
	responder  *responder.Responder
	registry   *Registry
	transcript transcript.Logger
	cfg        Config
	logger     *slog.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(repo store.Repository, backend chat.Backend, resp *responder.Responder, registry *Registry, log transcript.Logger, cfg Config, logger *slog.Logger) *Handler {
	if log == nil {
		log = transcript.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTipAfter <= 0 {
		cfg.IdleTipAfter = 30 * time.Second
	}
	return &Handler{
		repo:       repo,
		backend:    backend,
		responder:  resp,
		registry:   registry,
		transcript: log,
		cfg:        cfg,
		logger:     logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	visitorID, tabID := id.VisitorID, id.TabID
	logger := h.logger.With("visitor_id", visitorID, "tab_id", tabID)
	logger.Info("WebSocket connection request", "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := newPresenter(ctx, ws, h.transcript, logger, visitorID, tabID)
	sess, err := chat.NewSession(h.backend, h.responder,
		chat.Config{StartOpen: h.cfg.StartOpen},
		chat.WithRenderer(p),
		chat.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to create chat session", "error", err)
		p.send(Event{Type: EventError, Error: "session_unavailable"})
		return
	}

	h.registry.Register(visitorID, tabID, ws, sess)
	defer h.registry.Unregister(visitorID, tabID, ws)

	st := sess.Snapshot()
	p.RenderState(st)

	var wg sync.WaitGroup
	defer wg.Wait()
	// Cancel before waiting so in-flight remote calls are abandoned.
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.CheckConnection(ctx)
	}()

	var tipper *idleTipper
	if h.cfg.IdleTips {
		tipper = newIdleTipper(sess, h.responder.Pick, h.cfg.IdleTipAfter)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tipper.Run(ctx)
		}()
	}

	h.readLoop(ctx, ws, sess, p, tipper, &wg, logger, visitorID)
	logger.Info("Chat session ended", "turns", len(sess.History()))
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sess *chat.Session, p *presenter, tipper *idleTipper, wg *sync.WaitGroup, logger *slog.Logger, visitorID string) {
	for {
		var msg inboundMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			switch {
			case websocket.CloseStatus(err) != -1, errors.Is(err, context.Canceled):
				logger.Debug("WebSocket closed by client")
			default:
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		if tipper != nil {
			tipper.Touch()
		}

		switch msg.Type {
		case msgSubmit, msgQuickReply:
			h.submitAsync(ctx, sess, p, wg, msg.Text)
		case msgClear:
			h.submitAsync(ctx, sess, p, wg, "/clear")
		case msgToggle:
			sess.Toggle()
		case msgClose:
			sess.Close()
		case msgPing:
			p.send(Event{Type: EventPong})
		default:
			logger.Debug("Unknown widget message", "type", msg.Type)
			p.send(Event{Type: EventError, Error: "unknown_message_type"})
		}

		// Update last seen asynchronously with timeout.
		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, visitorID, time.Now()); err != nil {
				logger.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

// submitAsync runs a submit off the read loop so toggles stay responsive
// while a reply is pending.
func (h *Handler) submitAsync(ctx context.Context, sess *chat.Session, p *presenter, wg *sync.WaitGroup, text string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.Submit(ctx, text); errors.Is(err, chat.ErrBusy) {
			p.send(Event{Type: EventBusy})
		}
	}()
}
