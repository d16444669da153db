package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestHandlerServesWidgetScript(t *testing.T) {
	code, body := get(t, "/widget.js")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(body, "/ws/chat") {
		t.Error("expected widget script to open the chat socket")
	}
}

func TestHandlerFallsBackToIndex(t *testing.T) {
	for _, path := range []string{"/", "/products/42"} {
		code, body := get(t, path)
		if code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, code)
		}
		if !strings.Contains(body, `id="chat-panel"`) {
			t.Errorf("%s: expected index page", path)
		}
	}
}
