package domain

import (
	"time"
)

// Visitor is an anonymous device that has loaded the widget.
// It carries no conversation content; sessions are never restored from it.
type Visitor struct {
	VisitorID  string    `json:"visitor_id"`
	Label      string    `json:"label"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
