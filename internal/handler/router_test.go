package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleylabs/parley/internal/config"
	chatservice "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/internal/store"
)

func newTestRouter() http.Handler {
	cfg := &config.Config{
		Session: config.SessionConfig{HistoryLimit: 20, CookieMaxAge: 2592000},
		Store:   config.StoreConfig{Driver: "memory"},
	}
	chatSvc := chatservice.NewService(store.NewMemoryStore(), nil, cfg.Session.HistoryLimit)
	return NewRouter(chatSvc, cfg, false)
}

func TestHealth(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		OK       bool  `json:"ok"`
		HasAI    bool  `json:"hasAI"`
		HasStore bool  `json:"hasStore"`
		TS       int64 `json:"ts"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if !body.OK || body.HasAI || body.HasStore {
		t.Fatalf("unexpected health flags: %+v", body)
	}
	if body.TS == 0 {
		t.Fatal("expected a timestamp")
	}
}

func TestIndexSetsCookieAndServesPage(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(resp.Body.String(), "<html") {
		t.Fatal("expected the chat page")
	}

	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" {
		t.Fatalf("expected a session cookie, got %+v", cookies)
	}

	// A repeat visit with the cookie must not mint a new one.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if len(resp.Result().Cookies()) != 0 {
		t.Fatal("repeat visit should not set a cookie")
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestChatThroughRouter(t *testing.T) {
	r := newTestRouter()

	payload := []byte(`{"message":"round trip"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "round trip") {
		t.Fatalf("expected echo reply, got %s", resp.Body.String())
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
