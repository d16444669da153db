package widget

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/ashureev/chatwidget/internal/domain"
	"github.com/ashureev/chatwidget/internal/transcript"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Outbound event types.
const (
	EventTurn    = "turn"
	EventState   = "state"
	EventCleared = "cleared"
	EventBusy    = "busy"
	EventPong    = "pong"
	EventError   = "error"
)

// TurnView is a turn as the browser renders it.
type TurnView struct {
	ID        string          `json:"id"`
	Role      domain.Role     `json:"role"`
	Kind      domain.TurnKind `json:"kind"`
	Text      string          `json:"text"`
	HTML      string          `json:"html"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event is one outbound WebSocket message.
type Event struct {
	Type   string      `json:"type"`
	Turn   *TurnView   `json:"turn,omitempty"`
	State  *chat.State `json:"state,omitempty"`
	Notice string      `json:"notice,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// presenter implements chat.Renderer for one WebSocket connection and
// mirrors every turn into the transcript log.
type presenter struct {
	ctx       context.Context
	conn      *websocket.Conn
	log       transcript.Logger
	logger    *slog.Logger
	visitorID string
	tabID     string
}

var _ chat.Renderer = (*presenter)(nil)

func newPresenter(ctx context.Context, conn *websocket.Conn, log transcript.Logger, logger *slog.Logger, visitorID, tabID string) *presenter {
	if log == nil {
		log = transcript.Nop()
	}
	return &presenter{
		ctx:       ctx,
		conn:      conn,
		log:       log,
		logger:    logger,
		visitorID: visitorID,
		tabID:     tabID,
	}
}

func (p *presenter) RenderTurn(turn domain.Turn, state chat.State) {
	p.send(Event{
		Type: EventTurn,
		Turn: &TurnView{
			ID:        turn.ID,
			Role:      turn.Role,
			Kind:      turn.Kind,
			Text:      turn.Text,
			HTML:      FormatHTML(turn.Text),
			Timestamp: turn.Timestamp,
		},
		State: &state,
	})

	direction, eventType := "outbound", "chat_assistant_"+string(turn.Kind)
	if turn.IsUser() {
		direction, eventType = "inbound", "chat_user_message"
	}
	p.log.Log(transcript.Event{
		Timestamp:  turn.Timestamp.UTC().Format(time.RFC3339Nano),
		VisitorID:  p.visitorID,
		TabID:      p.tabID,
		Channel:    "widget_ws",
		Direction:  direction,
		EventType:  eventType,
		TurnID:     turn.ID,
		ContentRaw: turn.Text,
	})
}

func (p *presenter) RenderState(state chat.State) {
	p.send(Event{Type: EventState, State: &state})
}

func (p *presenter) RenderCleared(state chat.State) {
	p.send(Event{Type: EventCleared, State: &state, Notice: chat.ClearedNotice})
	p.log.Log(transcript.Event{
		VisitorID: p.visitorID,
		TabID:     p.tabID,
		Channel:   "widget_ws",
		Direction: "outbound",
		EventType: "chat_cleared",
	})
}

func (p *presenter) send(ev Event) {
	if p.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, p.conn, ev); err != nil {
		// Closed connections are expected when the tab goes away.
		if p.ctx.Err() == nil {
			p.logger.Debug("WebSocket write error", "error", err, "event", ev.Type)
		}
	}
}
