// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/chatwidget/internal/domain"
)

// Repository defines the interface for persisting visitor records.
// Conversation content is never stored.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. A missing visitor is (nil, nil).
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// ListStaleVisitors returns visitors not seen within ttl.
	ListStaleVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error)

	// DeleteVisitor removes a visitor record.
	DeleteVisitor(ctx context.Context, visitorID string) error

	// CountVisitors returns the number of stored visitors.
	CountVisitors(ctx context.Context) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
