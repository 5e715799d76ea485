package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/parleylabs/parley/internal/config"
	model "github.com/parleylabs/parley/internal/model/chat"
	chatservice "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/internal/session"
	"github.com/parleylabs/parley/internal/store"
)

type chunkGenerator struct {
	chunks []string
	err    error
}

func (g *chunkGenerator) Generate(_ context.Context, _ []model.Message) (*schema.Message, error) {
	return nil, errors.New("generate should not be used when streaming")
}

func (g *chunkGenerator) Stream(_ context.Context, _ []model.Message) (*schema.StreamReader[*schema.Message], error) {
	if g.err != nil {
		return nil, g.err
	}
	messages := make([]*schema.Message, 0, len(g.chunks))
	for _, chunk := range g.chunks {
		messages = append(messages, schema.AssistantMessage(chunk, nil))
	}
	return schema.StreamReaderFromArray(messages), nil
}

func (g *chunkGenerator) StreamingEnabled() bool { return true }

func newHandler(gen chatservice.Generator) *Handler {
	svc := chatservice.NewService(store.NewMemoryStore(), gen, 20)
	return New(svc, config.SessionConfig{HistoryLimit: 20, CookieMaxAge: 2592000})
}

func TestHandleStreamRequestEmitsDeltasAndEnd(t *testing.T) {
	h := newHandler(&chunkGenerator{chunks: []string{"Hel", "lo"}})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(req.Context(), resp, req, "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := resp.Body.String()
	for _, want := range []string{`"event":"start"`, `"event":"delta"`, `"event":"message"`, `"event":"end"`, "Hello"} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream body missing %q:\n%s", want, body)
		}
	}
}

func TestHandleStreamRequestSetsCookieForNewSession(t *testing.T) {
	h := newHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(req.Context(), resp, req, "hi"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("expected a session cookie on the stream response, got %+v", cookies)
	}
}

func TestHandleStreamRequestReportsUpstreamError(t *testing.T) {
	h := newHandler(&chunkGenerator{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil)
	resp := httptest.NewRecorder()

	if err := h.HandleStreamRequest(req.Context(), resp, req, "hi"); err == nil {
		t.Fatal("expected error from failing generator")
	}

	body := resp.Body.String()
	if !strings.Contains(body, `"event":"error"`) || !strings.Contains(body, "boom") {
		t.Fatalf("expected error frame with details:\n%s", body)
	}
}
