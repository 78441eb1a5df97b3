package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arkanum/ai-server/internal/handler/chat"
	"github.com/arkanum/ai-server/internal/handler/stream"
	"github.com/arkanum/ai-server/internal/handler/ws"
	middlewarePkg "github.com/arkanum/ai-server/internal/middleware"
	chatService "github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/pkg/utils"
)

// Status describes the deployment facts reported by the root endpoint.
type Status struct {
	Provider      string
	MemoryBackend string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, frontendURL string, status Status) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(frontendURL))

	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":          "ok",
			"provider":        status.Provider,
			"memory":          status.MemoryBackend,
			"emotional_layer": "active",
			"security":        "cors-restricted",
		})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/stream/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
			conversationID := chi.URLParam(r, "conversationID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, conversationID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
