package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/blazers/internal/api/response"
	"github.com/mcoot/blazers/internal/model"
)

// LobbyDirectory lists lobbies and their members
type LobbyDirectory interface {
	ListLobbies(ctx context.Context) ([]string, error)
	PlayersInLobby(ctx context.Context, name string) ([]model.PlayerID, error)
}

// LobbyHandler handles lobby-related endpoints
type LobbyHandler struct {
	lobbies LobbyDirectory
}

// NewLobbyHandler creates a new lobby handler
func NewLobbyHandler(lobbies LobbyDirectory) *LobbyHandler {
	return &LobbyHandler{lobbies: lobbies}
}

// List handles GET /api/v1/lobbies
func (h *LobbyHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.lobbies.ListLobbies(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.JSON(w, http.StatusOK, response.LobbyList{Lobbies: names})
}

// Players handles GET /api/v1/lobbies/{name}/players. An unknown lobby
// has no players.
func (h *LobbyHandler) Players(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ids, err := h.lobbies.PlayersInLobby(r.Context(), name)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.LobbyPlayersFromModel(name, ids))
}
