// Package chat implements the widget's conversation session.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/chatwidget/internal/backend"
	"github.com/ashureev/chatwidget/internal/domain"
	"github.com/ashureev/chatwidget/internal/responder"
	"github.com/google/uuid"
)

// ErrBusy is returned when a submit arrives while another one is in flight.
var ErrBusy = errors.New("a message is already being answered")

// State is a point-in-time view of the session flags.
type State struct {
	Open            bool     `json:"open"`
	Thinking        bool     `json:"thinking"`
	Unread          int      `json:"unread"`
	Connected       bool     `json:"connected"`
	CurrentModel    string   `json:"current_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
}

// ConnectionStatus is the outcome of CheckConnection. Err is informational;
// CheckConnection itself never fails.
type ConnectionStatus struct {
	Connected       bool
	CurrentModel    string
	AvailableModels []string
	Err             error
}

// Config holds session configuration.
type Config struct {
	StartOpen bool
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{StartOpen: true}
}

// Session holds one widget's conversation and orchestrates replies.
type Session struct {
	backend   Backend
	responder *responder.Responder
	render    Renderer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	// renderMu serializes mutation+render pairs so renderers see changes in order.
	renderMu sync.Mutex

	mu              sync.Mutex
	open            bool
	thinking        bool
	unread          int
	history         []domain.Turn
	connected       bool
	currentModel    string
	availableModels []string
}

// Option configures a Session.
type Option func(*Session)

// WithRenderer sets the presentation callback.
func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		if r != nil {
			s.render = r
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the turn id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSession creates a session. backend and resp are required.
func NewSession(b Backend, resp *responder.Responder, cfg Config, opts ...Option) (*Session, error) {
	if b == nil {
		return nil, errors.New("chat: backend is required")
	}
	if resp == nil {
		return nil, errors.New("chat: responder is required")
	}

	s := &Session{
		backend:   b,
		responder: resp,
		render:    NopRenderer{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		open:      cfg.StartOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit handles one utterance. Whitespace-only input is ignored. The
// in-flight slot is held until every turn of the exchange is appended, so a
// concurrent Submit gets ErrBusy.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !s.beginThinking() {
		return ErrBusy
	}
	defer s.endThinking()

	s.appendTurn(domain.RoleUser, domain.TurnKindReply, text)

	if cmd, ok := responder.ParseCommand(text); ok {
		s.runCommand(ctx, cmd)
		return nil
	}

	reply, err := s.backend.Chat(ctx, text)
	if err == nil {
		s.setConnected(true)
		s.appendTurn(domain.RoleAssistant, domain.TurnKindReply, reply)
		return nil
	}

	if backend.IsTransport(err) {
		s.setConnected(false)
	}
	s.logger.Warn("Chat backend failed, using fallback responder",
		"error", err,
		"category", responder.Category(text),
	)
	s.appendTurn(domain.RoleAssistant, domain.TurnKindReply, s.responder.Respond(text))
	s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, failureNotice(err))
	return nil
}

func (s *Session) runCommand(ctx context.Context, cmd responder.Command) {
	s.logger.Info("Chat command", "command", string(cmd.Kind), "arg", cmd.Arg)

	switch cmd.Kind {
	case responder.CommandModels:
		s.listModels(ctx)
	case responder.CommandModel:
		s.switchModel(ctx, cmd.Arg)
	case responder.CommandClear:
		if err := s.ClearHistory(ctx); err != nil {
			s.logger.Debug("Clear command failed", "error", err)
		}
	case responder.CommandStatus:
		s.CheckConnection(ctx)
	}
}

func (s *Session) listModels(ctx context.Context) {
	models, err := s.backend.Models(ctx)
	if err != nil {
		s.logger.Warn("Listing models failed", "error", err)
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgModelsError)
		return
	}

	s.renderMu.Lock()
	s.mu.Lock()
	s.availableModels = append([]string(nil), models...)
	st := s.stateLocked()
	s.mu.Unlock()
	s.render.RenderState(st)
	s.renderMu.Unlock()

	if len(models) == 0 {
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgNoModels)
		return
	}
	s.appendTurn(domain.RoleAssistant, domain.TurnKindInfo, modelsNotice(models))
}

func (s *Session) switchModel(ctx context.Context, name string) {
	if name == "" {
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgModelUsage)
		return
	}

	err := s.backend.SetModel(ctx, name)
	if err != nil {
		s.logger.Warn("Switching model failed", "model", name, "error", err)
		if se, ok := backend.AsServiceError(err); ok && se.Message != "" {
			s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, modelSwitchFailedNotice(se.Message))
			return
		}
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgModelSwitchError)
		return
	}

	s.renderMu.Lock()
	s.mu.Lock()
	s.currentModel = name
	st := s.stateLocked()
	s.mu.Unlock()
	s.render.RenderState(st)
	s.renderMu.Unlock()

	s.appendTurn(domain.RoleAssistant, domain.TurnKindInfo, modelSwitchedNotice(name))
}

// ClearHistory asks the backend to forget the conversation. Local history
// is emptied only when the backend confirms; otherwise a warning is shown
// and the error returned.
func (s *Session) ClearHistory(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Warn("Clearing conversation failed", "error", err)
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgClearFailed)
		return err
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.history = nil
	st := s.stateLocked()
	s.mu.Unlock()

	s.render.RenderCleared(st)
	return nil
}

// CheckConnection probes the backend and records whether it is usable.
// Every outcome, success or not, is shown as a turn.
func (s *Session) CheckConnection(ctx context.Context) ConnectionStatus {
	status, err := s.backend.Health(ctx)
	if err != nil {
		s.logger.Warn("Backend health check failed", "error", err)
		s.setConnected(false)
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgServerDown)
		return ConnectionStatus{Err: err}
	}

	s.renderMu.Lock()
	s.mu.Lock()
	s.connected = status.OllamaConnected
	s.currentModel = status.CurrentModel
	s.availableModels = append([]string(nil), status.AvailableModels...)
	st := s.stateLocked()
	s.mu.Unlock()
	s.render.RenderState(st)
	s.renderMu.Unlock()

	result := ConnectionStatus{
		Connected:       status.OllamaConnected,
		CurrentModel:    status.CurrentModel,
		AvailableModels: append([]string(nil), status.AvailableModels...),
	}

	if !status.OllamaConnected {
		s.appendTurn(domain.RoleAssistant, domain.TurnKindWarning, msgRuntimeMissing)
		return result
	}

	s.logger.Info("Backend connected",
		"model", status.CurrentModel,
		"available_models", status.AvailableModels,
	)
	s.appendTurn(domain.RoleAssistant, domain.TurnKindInfo, connectedNotice(status.CurrentModel))
	return result
}

// AnnounceIfIdle appends an assistant turn that is not a reply to anything,
// but only while the panel is open and no submit is in flight. The check and
// the append happen under one lock, so the turn can never land between a
// user turn and its reply.
func (s *Session) AnnounceIfIdle(kind domain.TurnKind, text string) bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	if !s.open || s.thinking {
		s.mu.Unlock()
		return false
	}
	turn, st := s.appendLocked(domain.RoleAssistant, kind, text)
	s.mu.Unlock()

	s.render.RenderTurn(turn, st)
	return true
}

// Toggle flips the panel and returns the new open state. Opening clears
// the unread counter.
func (s *Session) Toggle() bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.open = !s.open
	if s.open {
		s.unread = 0
	}
	open := s.open
	st := s.stateLocked()
	s.mu.Unlock()

	s.render.RenderState(st)
	return open
}

// Close minimizes the panel.
func (s *Session) Close() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.open = false
	st := s.stateLocked()
	s.mu.Unlock()

	s.render.RenderState(st)
}

// Snapshot returns the current flags.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// History returns a copy of the conversation in insertion order.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.history...)
}

func (s *Session) beginThinking() bool {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	if s.thinking {
		s.mu.Unlock()
		return false
	}
	s.thinking = true
	st := s.stateLocked()
	s.mu.Unlock()

	s.render.RenderState(st)
	return true
}

func (s *Session) endThinking() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.thinking = false
	st := s.stateLocked()
	s.mu.Unlock()

	s.render.RenderState(st)
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *Session) appendTurn(role domain.Role, kind domain.TurnKind, text string) domain.Turn {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	turn, st := s.appendLocked(role, kind, text)
	s.mu.Unlock()

	s.render.RenderTurn(turn, st)
	return turn
}

// appendLocked must be called with renderMu and mu held.
func (s *Session) appendLocked(role domain.Role, kind domain.TurnKind, text string) (domain.Turn, State) {
	turn := domain.Turn{
		ID:        s.newID(),
		Role:      role,
		Kind:      kind,
		Text:      text,
		Timestamp: s.now(),
	}
	s.history = append(s.history, turn)
	if !s.open {
		s.unread++
	}
	return turn, s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Open:            s.open,
		Thinking:        s.thinking,
		Unread:          s.unread,
		Connected:       s.connected,
		CurrentModel:    s.currentModel,
		AvailableModels: append([]string(nil), s.availableModels...),
	}
}
