// Package identity gives every browser an anonymous visitor id and every
// widget instance a tab id.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/chatwidget/internal/domain"
	"github.com/ashureev/chatwidget/internal/store"
	"github.com/google/uuid"
)

const (
	VisitorCookieName = "chat_visitor_id"
	TabHeaderName     = "X-Chat-Tab-ID"
	TabQueryParam     = "tab_id"
	DefaultTabID      = "default"

	visitorCookieAge = 30 * 24 * time.Hour
	// touchAfter limits last_seen writes to one per visitor per interval.
	touchAfter = 5 * time.Minute
)

var (
	visitorIDPattern = regexp.MustCompile(`^v_[a-f0-9]{32}$`)
	tabIDPattern     = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Identity is who is talking to the server.
type Identity struct {
	VisitorID string
	Label     string
	TabID     string
}

type contextKey struct{}

// FromContext returns the identity stored by Middleware. A context without
// one yields an empty visitor on the default tab.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Identity{TabID: DefaultTabID}
}

// WithIdentity returns ctx carrying visitorID and a sanitized tabID.
func WithIdentity(ctx context.Context, visitorID, tabID string) context.Context {
	return context.WithValue(ctx, contextKey{}, Identity{
		VisitorID: visitorID,
		Label:     Label(visitorID),
		TabID:     sanitizeTabID(tabID),
	})
}

// Label is the short display name derived from a visitor id.
func Label(visitorID string) string {
	if len(visitorID) > 10 {
		return "visitor-" + visitorID[len(visitorID)-8:]
	}
	return "visitor"
}

func newVisitorID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate visitor id: %w", err)
	}
	return "v_" + strings.ReplaceAll(u.String(), "-", ""), nil
}

func sanitizeTabID(id string) string {
	id = strings.TrimSpace(id)
	if !tabIDPattern.MatchString(id) {
		return DefaultTabID
	}
	return id
}

// Middleware resolves the visitor from its cookie (issuing one when missing
// or forged), records the visitor, and stores the Identity on the request.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	cookies := cookieJar{secure: !isDev}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID, err := cookies.visitorID(w, r)
			if err != nil {
				slog.Error("Visitor id generation failed", "error", err)
				http.Error(w, `{"error":"failed to establish visitor identity"}`, http.StatusInternalServerError)
				return
			}

			if err := recordVisit(r.Context(), repo, visitorID, time.Now()); err != nil {
				slog.Error("Recording visitor failed", "visitor_id", visitorID, "error", err)
				http.Error(w, `{"error":"failed to initialize visitor"}`, http.StatusInternalServerError)
				return
			}

			tabID := r.Header.Get(TabHeaderName)
			if tabID == "" {
				// Browsers cannot set headers on a WebSocket upgrade.
				tabID = r.URL.Query().Get(TabQueryParam)
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), visitorID, tabID)))
		})
	}
}

// recordVisit creates the visitor on first sight and otherwise refreshes
// last_seen once it is older than touchAfter, so the sweeper keeps visitors
// that only use the HTTP endpoints.
func recordVisit(ctx context.Context, repo store.Repository, visitorID string, now time.Time) error {
	visitor, err := repo.GetVisitor(ctx, visitorID)
	if err != nil {
		return err
	}
	if visitor == nil {
		return repo.UpsertVisitor(ctx, &domain.Visitor{
			VisitorID:  visitorID,
			Label:      Label(visitorID),
			LastSeenAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if now.Sub(visitor.LastSeenAt) < touchAfter {
		return nil
	}
	return repo.UpdateLastSeen(ctx, visitorID, now)
}

// cookieJar issues the visitor cookie. The widget is embedded on other
// sites, so outside development the cookie is SameSite=None and Secure;
// browsers drop SameSite=None cookies that are not Secure.
type cookieJar struct {
	secure bool
}

func (c cookieJar) visitorID(w http.ResponseWriter, r *http.Request) (string, error) {
	id := ""
	if ck, err := r.Cookie(VisitorCookieName); err == nil && visitorIDPattern.MatchString(ck.Value) {
		id = ck.Value
	} else {
		var genErr error
		if id, genErr = newVisitorID(); genErr != nil {
			return "", genErr
		}
	}

	sameSite := http.SameSiteLaxMode
	if c.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieAge.Seconds()),
		Expires:  time.Now().Add(visitorCookieAge),
		HttpOnly: true,
		SameSite: sameSite,
		Secure:   c.secure,
	})
	return id, nil
}

// IPFromRequest returns the remote IP without its port.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
