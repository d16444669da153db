package widget

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/chatwidget/internal/backend"
	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/ashureev/chatwidget/internal/responder"
)

// offlineBackend fails every call the way an unreachable service does.
type offlineBackend struct{}

var errOffline = errors.New("offline")

func (offlineBackend) Health(context.Context) (*backend.HealthStatus, error) {
	return nil, errors.Join(backend.ErrTransport, errOffline)
}
func (offlineBackend) Chat(context.Context, string) (string, error) {
	return "", errors.Join(backend.ErrTransport, errOffline)
}
func (offlineBackend) Models(context.Context) ([]string, error) {
	return nil, errors.Join(backend.ErrTransport, errOffline)
}
func (offlineBackend) SetModel(context.Context, string) error {
	return errors.Join(backend.ErrTransport, errOffline)
}
func (offlineBackend) Clear(context.Context) error {
	return errors.Join(backend.ErrTransport, errOffline)
}

type firstSource struct{}

func (firstSource) IntN(int) int { return 0 }

func newNopSession(t *testing.T, opts ...chat.Option) *chat.Session {
	t.Helper()
	return newSessionWithConfig(t, chat.DefaultConfig(), opts...)
}

func newSessionWithConfig(t *testing.T, cfg chat.Config, opts ...chat.Option) *chat.Session {
	t.Helper()
	sess, err := chat.NewSession(offlineBackend{}, responder.New(responder.WithSource(firstSource{})), cfg, opts...)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return sess
}
