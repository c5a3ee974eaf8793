package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/blazers/internal/api/middleware"
	"github.com/mcoot/blazers/internal/api/response"
	"github.com/mcoot/blazers/internal/model"
)

// HistorySource returns a player's retained game states, oldest first
type HistorySource interface {
	History(ctx context.Context, player model.PlayerID) ([]model.GameState, error)
}

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	accounts Accounts
	history  HistorySource
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(accounts Accounts, history HistorySource) *PlayerHandler {
	return &PlayerHandler{
		accounts: accounts,
		history:  history,
	}
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())
	id, err := claims.PlayerID()
	if err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.accounts.GetPlayer(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.accounts.ListPlayers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := response.PlayerList{Players: make([]response.Player, len(players))}
	for i := range players {
		out.Players[i] = response.PublicPlayerFromModel(&players[i])
	}
	response.JSON(w, http.StatusOK, out)
}

// History handles GET /api/v1/players/{id}/history
func (h *PlayerHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParsePlayerID(mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}

	states, err := h.history.History(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.HistoryFromModel(id, states))
}
