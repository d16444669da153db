package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(allowed []string, method, origin string) *httptest.ResponseRecorder {
	called := false
	h := CORS(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(method, "/api/widget/config", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if method != http.MethodOptions && !called {
		rec.Code = -1
	}
	return rec
}

func TestCORSExplicitOriginGetsCredentials(t *testing.T) {
	rec := serveCORS([]string{"https://shop.example"}, http.MethodGet, "https://shop.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials for explicit origin")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected request to reach handler, got %d", rec.Code)
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	rec := serveCORS([]string{"*"}, http.MethodGet, "https://any.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://any.example" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard origins must not get credentials")
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	rec := serveCORS([]string{"https://shop.example"}, http.MethodGet, "https://evil.example")

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not be echoed")
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serveCORS([]string{"https://shop.example"}, http.MethodOptions, "https://shop.example")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Chat-Tab-ID" {
		t.Errorf("unexpected allow-headers %q", got)
	}
}
