package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/junyaoz/solace/backend/internal/handler/chat"
	streamHandler "github.com/junyaoz/solace/backend/internal/handler/stream"
	wsHandler "github.com/junyaoz/solace/backend/internal/handler/ws"
	middlewarePkg "github.com/junyaoz/solace/backend/internal/middleware"
	"github.com/junyaoz/solace/backend/internal/session"
	"github.com/junyaoz/solace/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the session orchestrator.
func NewRouter(orchestrator *session.Orchestrator, sessionSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatH := chatHandler.New(orchestrator, sessionSecret)
	streamH := streamHandler.New(orchestrator)
	wsH := wsHandler.New(orchestrator)

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		wsH.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "validation", "message query parameter is required")
				return
			}

			if err := streamH.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
