package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parleylabs/parley/internal/config"
	chatHandler "github.com/parleylabs/parley/internal/handler/chat"
	streamHandler "github.com/parleylabs/parley/internal/handler/stream"
	wsHandler "github.com/parleylabs/parley/internal/handler/ws"
	middlewarePkg "github.com/parleylabs/parley/internal/middleware"
	chatService "github.com/parleylabs/parley/internal/service/chat"
	"github.com/parleylabs/parley/internal/session"
	"github.com/parleylabs/parley/pkg/utils"
	"github.com/parleylabs/parley/web"
)

// NewRouter wires HTTP routes to core services. hasAI reports whether a
// real inference backend is configured (false means dev echo replies).
func NewRouter(chatSvc *chatService.Service, cfg *config.Config, hasAI bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middlewarePkg.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(chatSvc, cfg.Session)
	streamH := streamHandler.New(chatSvc, cfg.Session)
	wsH := wsHandler.New(chatSvc, cfg.Session)

	hasStore := cfg.Store.Durable()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"hasAI":    hasAI,
			"hasStore": hasStore,
			"ts":       time.Now().UnixMilli(),
		})
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if _, ok := session.FromRequest(req); !ok {
			session.Set(w, session.NewToken(), cfg.Session)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(web.Index()); err != nil {
			log.Printf("failed to write index page: %v", err)
		}
	})

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		wsH.RegisterRoutes(api)

		api.Get("/chat/stream", func(w http.ResponseWriter, req *http.Request) {
			userMessage := req.URL.Query().Get("message")
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamH.HandleStreamRequest(req.Context(), w, req, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
