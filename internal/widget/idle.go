package widget

import (
	"context"
	"time"

	"github.com/ashureev/chatwidget/internal/chat"
	"github.com/ashureev/chatwidget/internal/domain"
)

// IdleTips are shown after a period without visitor activity.
var IdleTips = []string{
	"💡 Tip: You can ask me about anything!",
	"🤖 Fun fact: I love helping people!",
	"✨ Did you know? I can help with math problems!",
	"🎯 Pro tip: Try asking me for a joke!",
	"🌟 I'm always here to chat and help!",
}

// idleTipper announces one tip each time the visitor goes quiet for the
// configured delay. It re-arms only on the next activity.
type idleTipper struct {
	session  *chat.Session
	pick     func([]string) string
	after    time.Duration
	activity chan struct{}
}

func newIdleTipper(session *chat.Session, pick func([]string) string, after time.Duration) *idleTipper {
	return &idleTipper{
		session:  session,
		pick:     pick,
		after:    after,
		activity: make(chan struct{}, 1),
	}
}

// Touch records visitor activity and restarts the countdown.
func (t *idleTipper) Touch() {
	select {
	case t.activity <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (t *idleTipper) Run(ctx context.Context) {
	timer := time.NewTimer(t.after)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.activity:
			timer.Reset(t.after)
		case <-timer.C:
			t.tip()
		}
	}
}

func (t *idleTipper) tip() {
	t.session.AnnounceIfIdle(domain.TurnKindInfo, t.pick(IdleTips))
}
