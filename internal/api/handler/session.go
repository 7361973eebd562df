package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/tablebank/internal/api/response"
	"github.com/mcoot/tablebank/internal/dependencies/idgen"
	"github.com/mcoot/tablebank/internal/dispatch"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/lobby"
	"github.com/mcoot/tablebank/internal/web/sse"
)

// Queries is the read side of the dispatcher
type Queries interface {
	QueryLobby(ctx context.Context, code model.SessionCode) (dispatch.LobbyView, error)
	QueryGame(ctx context.Context, code model.SessionCode) (dispatch.GameView, error)
	QueryTransactions(ctx context.Context, code model.SessionCode) (dispatch.TransactionHistory, error)
}

// SessionHandler serves read-only session snapshots and the SSE event stream
type SessionHandler struct {
	queries     Queries
	hubManager  *sse.HubManager
	observerIDs idgen.Generator
	logger      *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(queries Queries, hubManager *sse.HubManager, observerIDs idgen.Generator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		queries:     queries,
		hubManager:  hubManager,
		observerIDs: observerIDs,
		logger:      logger,
	}
}

func sessionCode(r *http.Request) model.SessionCode {
	return lobby.NormalizeCode(mux.Vars(r)["code"])
}

// GetLobby handles GET /api/v1/sessions/{code}/lobby
func (h *SessionHandler) GetLobby(w http.ResponseWriter, r *http.Request) {
	view, err := h.queries.QueryLobby(r.Context(), sessionCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// GetGame handles GET /api/v1/sessions/{code}/game
func (h *SessionHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	view, err := h.queries.QueryGame(r.Context(), sessionCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// GetTransactions handles GET /api/v1/sessions/{code}/transactions
func (h *SessionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := h.queries.QueryTransactions(r.Context(), sessionCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, history)
}

// Events handles GET /api/v1/sessions/{code}/events
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	code := sessionCode(r)

	// Only stream sessions that exist
	if _, err := h.queries.QueryLobby(r.Context(), code); err != nil {
		WriteError(w, err)
		return
	}

	observerID := h.observerIDs.NewID()
	hub := h.hubManager.GetOrCreateHub(code)
	h.logger.Debug("sse observer connecting",
		slog.String("code", string(code)),
		slog.String("observer_id", observerID))

	sse.ServeSSE(w, r, hub, observerID, func() []sse.Event {
		return h.snapshot(r.Context(), code)
	})
}

// snapshot returns the current lobby and game (if started) as SSE events
func (h *SessionHandler) snapshot(ctx context.Context, code model.SessionCode) []sse.Event {
	var events []sse.Event

	lobbyView, err := h.queries.QueryLobby(ctx, code)
	if err != nil {
		return events
	}
	if data, err := json.Marshal(lobbyView); err == nil {
		events = append(events, sse.Event{Name: dispatch.TypeLobbyUpdated, Data: string(data)})
	}

	if lobbyView.State != model.LobbyStateStarted {
		return events
	}
	gameView, err := h.queries.QueryGame(ctx, code)
	if err != nil {
		return events
	}
	if data, err := json.Marshal(gameView); err == nil {
		events = append(events, sse.Event{Name: dispatch.TypeGameUpdated, Data: string(data)})
	}
	return events
}
