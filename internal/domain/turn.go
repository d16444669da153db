// Package domain contains core domain types for the chat widget.
package domain

import (
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	// RoleUser marks text typed by the visitor.
	RoleUser Role = "user"
	// RoleAssistant marks text produced by the backend, the fallback responder, or the widget itself.
	RoleAssistant Role = "assistant"
)

// TurnKind categorizes assistant turns for presentation.
type TurnKind string

const (
	// TurnKindReply is an ordinary conversational turn.
	TurnKindReply TurnKind = "reply"
	// TurnKindWarning reports a failure the visitor should know about.
	TurnKindWarning TurnKind = "warning"
	// TurnKindInfo is a status notice such as a connection or model switch message.
	TurnKindInfo TurnKind = "info"
)

// Turn is one message exchanged in the conversation.
// Turns are never modified after they are appended to a session.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      TurnKind  `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the turn was typed by the visitor.
func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}
