package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parleylabs/parley/internal/config"
	chatservice "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/internal/session"
)

// Handler runs chat exchanges over a WebSocket connection.
type Handler struct {
	chatSvc    *chatservice.Service
	sessionCfg config.SessionConfig
	upgrader   websocket.Upgrader
}

// New creates the WebSocket chat handler.
func New(chatSvc *chatservice.Service, sessionCfg config.SessionConfig) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		sessionCfg: sessionCfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := session.FromRequest(r)
	header := http.Header{}
	if !ok {
		sessionID = session.NewToken()
		header.Add("Set-Cookie", session.Cookie(sessionID, h.sessionCfg).String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	h.send(conn, outgoingMessage{Type: "session", SessionID: sessionID})

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] connection closed unexpectedly for session=%s: %v", sessionID, err)
			}
			return
		}

		switch in.Type {
		case "message":
			reply, err := h.chatSvc.Exchange(r.Context(), sessionID, in.Message)
			if err != nil {
				h.send(conn, outgoingMessage{Type: "error", SessionID: sessionID, Error: err.Error()})
				continue
			}
			h.send(conn, outgoingMessage{Type: "reply", SessionID: sessionID, Reply: reply})
		default:
			h.send(conn, outgoingMessage{Type: "error", SessionID: sessionID, Error: "unsupported message type"})
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] failed to write message: %v", err)
	}
}
