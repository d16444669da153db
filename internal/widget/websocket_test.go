package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/chatwidget/internal/backend"
	"github.com/ashureev/chatwidget/internal/backend/backendtest"
	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/ashureev/chatwidget/internal/domain"
	"github.com/ashureev/chatwidget/internal/identity"
	"github.com/ashureev/chatwidget/internal/responder"
	"github.com/ashureev/chatwidget/internal/store"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

type widgetServer struct {
	*httptest.Server
	registry *Registry
}

func newWidgetServer(t *testing.T, backendURL string, cfg Config) *widgetServer {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "widget.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	client, err := backend.NewClient(backend.ClientConfig{BaseURL: backendURL, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	registry := NewRegistry()
	h := NewHandler(repo, client, responder.New(responder.WithSource(firstSource{})), registry, nil, cfg, nil)

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	r.Get("/ws/chat", h.ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = repo.Close()
	})
	return &widgetServer{Server: srv, registry: registry}
}

func (s *widgetServer) dial(t *testing.T, tabID string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/chat?tab_id=" + tabID
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

func (s *widgetServer) mustDial(t *testing.T, tabID string) *websocket.Conn {
	t.Helper()
	conn, _, err := s.dial(t, tabID, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg inboundMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("write %s failed: %v", msg.Type, err)
	}
}

// readUntil reads events until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read failed before expected event: %v", err)
		}
		if match(ev) {
			return ev
		}
	}
}

func turnWithText(text string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Type == EventTurn && ev.Turn != nil && ev.Turn.Text == text
	}
}

func TestWidgetRemoteReply(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: true})
	conn := srv.mustDial(t, "tab-1")

	readUntil(t, conn, turnWithText("🤖 Connected to Ollama! Using model: llama3"))

	send(t, conn, inboundMessage{Type: msgSubmit, Text: "hello **world**"})
	user := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventTurn })
	if user.Turn.Role != domain.RoleUser || user.Turn.Text != "hello **world**" {
		t.Fatalf("expected user turn first, got %+v", user.Turn)
	}
	if user.Turn.HTML != "hello <strong>world</strong>" {
		t.Errorf("unexpected html %q", user.Turn.HTML)
	}

	reply := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventTurn })
	if reply.Turn.Text != "echo: hello **world**" {
		t.Errorf("unexpected reply %q", reply.Turn.Text)
	}

	if srv.registry.Count() != 1 {
		t.Errorf("expected one live session, got %d", srv.registry.Count())
	}
}

func TestWidgetFallbackWhenBackendDown(t *testing.T) {
	backendSrv := backendtest.NewServer()
	deadURL := backendSrv.URL
	backendSrv.Close()

	srv := newWidgetServer(t, deadURL, Config{StartOpen: true})
	conn := srv.mustDial(t, "tab-1")

	readUntil(t, conn, turnWithText("⚠️ Backend server not running. Using fallback responses."))

	send(t, conn, inboundMessage{Type: msgQuickReply, Text: "what is 2+2"})
	readUntil(t, conn, turnWithText("The answer is: 4"))
	warning := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventTurn })
	if warning.Turn.Kind != domain.TurnKindWarning {
		t.Errorf("expected warning after fallback, got %+v", warning.Turn)
	}
	if warning.State == nil || warning.State.Connected {
		t.Errorf("expected disconnected state, got %+v", warning.State)
	}
}

func TestWidgetRejectsSecondSubmitWhileBusy(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: true})
	conn := srv.mustDial(t, "tab-1")
	readUntil(t, conn, turnWithText("🤖 Connected to Ollama! Using model: llama3"))

	release := backendSrv.BlockChat()
	defer release()

	send(t, conn, inboundMessage{Type: msgSubmit, Text: "first"})
	readUntil(t, conn, turnWithText("first"))

	send(t, conn, inboundMessage{Type: msgSubmit, Text: "second"})
	readUntil(t, conn, func(ev Event) bool { return ev.Type == EventBusy })

	release()
	readUntil(t, conn, turnWithText("echo: first"))
	done := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventState })
	if done.State.Thinking {
		t.Error("expected thinking to clear after the reply")
	}
	if msgs := backendSrv.Messages(); len(msgs) != 1 || msgs[0] != "first" {
		t.Errorf("expected only the first message to reach the backend, got %v", msgs)
	}
}

func TestWidgetUnreadBadge(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: false})
	conn := srv.mustDial(t, "tab-1")

	notice := readUntil(t, conn, turnWithText("🤖 Connected to Ollama! Using model: llama3"))
	if notice.State == nil || notice.State.Unread != 1 || notice.State.Open {
		t.Fatalf("expected unread 1 while closed, got %+v", notice.State)
	}

	send(t, conn, inboundMessage{Type: msgToggle})
	opened := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventState })
	if !opened.State.Open || opened.State.Unread != 0 {
		t.Fatalf("expected open panel with badge reset, got %+v", opened.State)
	}

	send(t, conn, inboundMessage{Type: msgClose})
	closed := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventState })
	if closed.State.Open {
		t.Fatal("expected closed panel")
	}
}

func TestWidgetClear(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: true})
	conn := srv.mustDial(t, "tab-1")
	readUntil(t, conn, turnWithText("🤖 Connected to Ollama! Using model: llama3"))

	send(t, conn, inboundMessage{Type: msgClear})
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventCleared })
	if ev.Notice != chat.ClearedNotice {
		t.Errorf("unexpected notice %q", ev.Notice)
	}
	if backendSrv.Clears() != 1 {
		t.Errorf("expected one clear call, got %d", backendSrv.Clears())
	}
}

func TestWidgetPingAndUnknown(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: true})
	conn := srv.mustDial(t, "tab-1")

	send(t, conn, inboundMessage{Type: msgPing})
	readUntil(t, conn, func(ev Event) bool { return ev.Type == EventPong })

	send(t, conn, inboundMessage{Type: "resize"})
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	if ev.Error != "unknown_message_type" {
		t.Errorf("unexpected error %q", ev.Error)
	}
}

func TestWidgetReplacesConnectionForSameTab(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{StartOpen: true})

	first, resp, err := srv.dial(t, "tab-1", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = first.Close(websocket.StatusNormalClosure, "") }()
	readUntil(t, first, turnWithText("🤖 Connected to Ollama! Using model: llama3"))

	// Reuse the visitor cookie so both sockets belong to the same visitor.
	header := http.Header{}
	for _, c := range resp.Cookies() {
		header.Add("Cookie", c.Name+"="+c.Value)
	}
	second, _, err := srv.dial(t, "tab-1", header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = second.Close(websocket.StatusNormalClosure, "") }()
	readUntil(t, second, turnWithText("🤖 Connected to Ollama! Using model: llama3"))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var ev Event
		if err := wsjson.Read(ctx, first, &ev); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("expected normal closure of replaced socket, got %v", err)
			}
			break
		}
	}
	if srv.registry.Count() != 1 {
		t.Errorf("expected one live session after replacement, got %d", srv.registry.Count())
	}
}

func TestWidgetRejectsForeignOrigin(t *testing.T) {
	backendSrv := backendtest.NewServer()
	defer backendSrv.Close()
	srv := newWidgetServer(t, backendSrv.URL, Config{
		AllowedOrigins: []string{"https://shop.example"},
		StartOpen:      true,
	})

	// The identity middleware runs in dev mode; origin checks follow cfg.IsDev.
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := srv.dial(t, "tab-1", header)
	if err == nil {
		t.Fatal("expected dial to fail for foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}
