package stream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/parleylabs/parley/internal/config"
	chatservice "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/internal/session"
	"github.com/parleylabs/parley/pkg/utils"
)

// Handler streams chat replies over Server-Sent Events.
type Handler struct {
	chatSvc    *chatservice.Service
	sessionCfg config.SessionConfig
}

// New creates the SSE stream handler.
func New(chatSvc *chatservice.Service, sessionCfg config.SessionConfig) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		sessionCfg: sessionCfg,
	}
}

// StreamEvent is one streaming response frame.
type StreamEvent struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleStreamRequest runs one exchange, emitting delta frames as the reply
// arrives. The session cookie is attached before the stream opens because
// headers cannot be amended afterwards.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	sessionID, ok := session.FromRequest(r)
	if !ok {
		sessionID = session.NewToken()
		session.Set(w, sessionID, h.sessionCfg)
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamEvent{Event: "start"})

	reply, err := h.chatSvc.ExchangeStream(ctx, sessionID, userMessage, func(chunk string) {
		h.sendSSE(w, flusher, StreamEvent{Event: "delta", Content: chunk})
	})
	if err != nil {
		h.sendSSE(w, flusher, StreamEvent{Event: "error", Error: err.Error()})
		return err
	}

	h.sendSSE(w, flusher, StreamEvent{Event: "message", Content: reply})
	h.sendSSE(w, flusher, StreamEvent{Event: "end", Finished: true})
	return nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, event StreamEvent) {
	utils.SendSSEChunk(w, flusher, event)
}
