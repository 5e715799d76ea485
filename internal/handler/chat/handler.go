package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/session"
	chatservice "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/pkg/utils"
)

// Handler exposes the chat exchange and transcript endpoints.
type Handler struct {
	chatSvc    *chatservice.Service
	sessionCfg config.SessionConfig
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service, sessionCfg config.SessionConfig) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		sessionCfg: sessionCfg,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/history", h.handleHistory)
	r.Delete("/chat/history", h.handleClearHistory)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID, ok := session.FromRequest(r)
	minted := false
	if !ok {
		sessionID = session.NewToken()
		minted = true
	}

	reply, err := h.chatSvc.Exchange(r.Context(), sessionID, payload.Message)
	if err != nil {
		// The cookie is only attached on the success path, so a freshly
		// minted session that fails here hands out no cookie.
		respondExchangeError(w, err)
		return
	}

	if minted {
		session.Set(w, sessionID, h.sessionCfg)
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := session.FromRequest(r)
	if !ok {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": []any{}})
		return
	}

	history, err := h.chatSvc.History(r.Context(), sessionID)
	if err != nil {
		log.Printf("[chat] failed to load history for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := session.FromRequest(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.chatSvc.Clear(r.Context(), sessionID); err != nil {
		log.Printf("[chat] failed to clear history for session=%s: %v", sessionID, err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respondExchangeError maps exchange failures onto the HTTP error taxonomy:
// client input 400, upstream failures 502, everything else 500.
func respondExchangeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage), errors.Is(err, chatservice.ErrSessionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatservice.ErrEmptyReply):
		utils.RespondErrorDetail(w, http.StatusBadGateway, "model returned an empty reply", err.Error())
	case errors.Is(err, chatservice.ErrUpstream):
		utils.RespondErrorDetail(w, http.StatusBadGateway, "model request failed", err.Error())
	default:
		log.Printf("[chat] unexpected exchange error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
