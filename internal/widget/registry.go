// Package widget serves the chat widget over WebSocket connections.
package widget

import (
	"log/slog"
	"sync"

	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/coder/websocket"
)

type liveSession struct {
	conn    *websocket.Conn
	session *chat.Session
}

// Registry tracks live widget connections per visitor and tab.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]liveSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]liveSession),
	}
}

// Register adds a connection. A previous connection for the same tab is
// closed, so a reloaded tab never has two live sessions.
func (m *Registry) Register(visitorID, tabID string, conn *websocket.Conn, session *chat.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]liveSession)
	}

	if existing, exists := m.active[visitorID][tabID]; exists && existing.conn != conn && existing.conn != nil {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[visitorID][tabID] = liveSession{conn: conn, session: session}
	slog.Info("Chat session registered", "visitor_id", visitorID, "tab_id", tabID)
}

// Unregister removes a connection if it is still the current one for its tab.
func (m *Registry) Unregister(visitorID, tabID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tabs, ok := m.active[visitorID]; ok {
		if current, exists := tabs[tabID]; exists && current.conn == conn {
			delete(tabs, tabID)
			if len(tabs) == 0 {
				delete(m.active, visitorID)
			}
			slog.Info("Chat session unregistered", "visitor_id", visitorID, "tab_id", tabID)
		}
	}
}

// CloseVisitor terminates every live connection for a visitor.
func (m *Registry) CloseVisitor(visitorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tabs, ok := m.active[visitorID]
	if !ok {
		return
	}

	for tid, live := range tabs {
		if live.conn != nil {
			_ = live.conn.Close(websocket.StatusNormalClosure, "visitor expired")
		}
		slog.Info("Chat session closed", "visitor_id", visitorID, "tab_id", tid)
	}
	delete(m.active, visitorID)
}

// Count returns the number of live sessions.
func (m *Registry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, tabs := range m.active {
		n += len(tabs)
	}
	return n
}
