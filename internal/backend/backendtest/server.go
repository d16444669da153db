// Package backendtest provides an in-process fake of the remote chat service.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is a scriptable fake of the chat service. Zero-value knobs give a
// healthy service that echoes messages.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	connected     bool
	currentModel  string
	models        []string
	reply         func(message string) string
	chatStatus    int
	chatFailure   string
	rawChatBody   string
	delay         time.Duration
	clearFails    bool
	messages      []string
	modelSwitches []string
	clears        int
	block         chan struct{}
}

// NewServer starts a fake service. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		connected:    true,
		currentModel: "llama3",
		models:       []string{"llama3", "mistral"},
		reply:        func(message string) string { return "echo: " + message },
	}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/models", s.handleModels)
	r.Post("/model", s.handleModel)
	r.Post("/clear", s.handleClear)

	s.Server = httptest.NewServer(r)
	return s
}

// SetConnected controls ollama_connected in /health.
func (s *Server) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// SetModels replaces the model list.
func (s *Server) SetModels(models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

// SetReply replaces the reply generator.
func (s *Server) SetReply(fn func(message string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// FailChatStatus makes /chat answer with the given HTTP status.
func (s *Server) FailChatStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatStatus = status
}

// FailChat makes /chat answer success=false with msg.
func (s *Server) FailChat(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatFailure = msg
}

// SetRawChatBody makes /chat answer 200 with body verbatim.
func (s *Server) SetRawChatBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawChatBody = body
}

// SetDelay delays every response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailClear makes /clear answer success=false.
func (s *Server) FailClear(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearFails = fail
}

// BlockChat holds /chat requests until the returned function is called.
func (s *Server) BlockChat() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Messages returns every message received on /chat.
func (s *Server) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// ModelSwitches returns every model name received on /model.
func (s *Server) ModelSwitches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.modelSwitches...)
}

// CurrentModel returns the active model.
func (s *Server) CurrentModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentModel
}

// Clears returns how many times /clear was called.
func (s *Server) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

func (s *Server) wait(r *http.Request) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	s.mu.Lock()
	body := map[string]any{
		"status":           "ok",
		"ollama_connected": s.connected,
		"current_model":    s.currentModel,
		"available_models": s.models,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, req.Message)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-r.Context().Done():
			return
		}
	}
	s.wait(r)

	s.mu.Lock()
	status, failure, raw, reply := s.chatStatus, s.chatFailure, s.rawChatBody, s.reply
	s.mu.Unlock()

	switch {
	case status != 0:
		writeJSON(w, status, map[string]any{"error": http.StatusText(status)})
	case raw != "":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
	case failure != "":
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "response": failure})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply(req.Message)})
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	s.mu.Lock()
	models := append([]string{}, s.models...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid request body"})
		return
	}
	s.wait(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelSwitches = append(s.modelSwitches, req.Model)
	for _, m := range s.models {
		if m == req.Model {
			s.currentModel = m
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "model": m})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "model " + req.Model + " not found"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.wait(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	writeJSON(w, http.StatusOK, map[string]any{"success": !s.clearFails})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
