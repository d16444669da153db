package chat

import (
	"context"

	"github.com/ashureev/chatwidget/internal/backend"
	"github.com/ashureev/chatwidget/internal/domain"
)

// Backend defines the remote calls a session makes.
// This interface is implemented by the HTTP client.
type Backend interface {
	// Health reports service and model runtime status
	Health(ctx context.Context) (*backend.HealthStatus, error)

	// Chat sends a user message and returns the model reply
	Chat(ctx context.Context, message string) (string, error)

	// Models lists switchable model names
	Models(ctx context.Context) ([]string, error)

	// SetModel switches the active model
	SetModel(ctx context.Context, name string) error

	// Clear forgets the conversation on the service side
	Clear(ctx context.Context) error
}

// Ensure the HTTP client implements Backend.
var _ Backend = (*backend.Client)(nil)

// Renderer receives every visible change to a session. Calls are made
// without the session lock held, in the order the changes happened.
type Renderer interface {
	// RenderTurn shows a newly appended turn.
	RenderTurn(turn domain.Turn, state State)

	// RenderState shows open/thinking/unread/connection changes.
	RenderState(state State)

	// RenderCleared empties the visible log after a successful clear.
	RenderCleared(state State)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) RenderTurn(domain.Turn, State) {}
func (NopRenderer) RenderState(State)             {}
func (NopRenderer) RenderCleared(State)           {}
