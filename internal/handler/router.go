package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foodloop/assistant/internal/handler/widget"
	middlewarePkg "github.com/foodloop/assistant/internal/middleware"
	chatService "github.com/foodloop/assistant/internal/service/chat"
	"github.com/foodloop/assistant/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	widgetHandler := widget.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Profile)
		widgetHandler.RegisterRoutes(api)
	})

	return r
}
