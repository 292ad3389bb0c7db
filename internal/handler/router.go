package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/vanguard/backend/internal/config"
	"github.com/zhouzirui/vanguard/backend/internal/handler/persona"
	"github.com/zhouzirui/vanguard/backend/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/vanguard/backend/internal/middleware"
	personaModel "github.com/zhouzirui/vanguard/backend/internal/model/persona"
	"github.com/zhouzirui/vanguard/backend/pkg/utils"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// NewRouter wires HTTP routes to core services.
func NewRouter(serverCfg config.ServerConfig, categories personaModel.Store, relaySvc relay.Relayer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	engine := serverCfg.EngineName
	if engine == "" {
		engine = "Vanguard Core"
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Engine: engine})
	})

	personaHandler := persona.New(categories)
	relayHandler := relay.New(relaySvc)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		relayHandler.RegisterRoutes(api)
	})

	return r
}
