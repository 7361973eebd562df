package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tablebank/internal/api/handler"
	"github.com/mcoot/tablebank/internal/api/middleware"
	"github.com/mcoot/tablebank/internal/api/response"
	"github.com/mcoot/tablebank/internal/dependencies/idgen"
	"github.com/mcoot/tablebank/internal/services/codegen"
	"github.com/mcoot/tablebank/internal/web/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Queries     handler.Queries
	Codes       codegen.CodeGenerator
	HubManager  *sse.HubManager
	ObserverIDs idgen.Generator
	WebSocket   http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	sessionHandler := handler.NewSessionHandler(cfg.Queries, cfg.HubManager, cfg.ObserverIDs, cfg.Logger)
	codeHandler := handler.NewCodeHandler(cfg.Codes)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// WebSocket endpoint for players
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/codes", codeHandler.Generate).Methods(http.MethodPost)

	sessions := api.PathPrefix("/sessions/{code}").Subrouter()
	sessions.HandleFunc("/lobby", sessionHandler.GetLobby).Methods(http.MethodGet)
	sessions.HandleFunc("/game", sessionHandler.GetGame).Methods(http.MethodGet)
	sessions.HandleFunc("/transactions", sessionHandler.GetTransactions).Methods(http.MethodGet)
	sessions.HandleFunc("/events", sessionHandler.Events).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
