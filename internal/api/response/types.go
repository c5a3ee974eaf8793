package response

import (
	"time"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Authority string    `json:"authority"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:        p.ID.String(),
		Username:  p.Username,
		Email:     p.Email,
		Authority: p.Authority,
		CreatedAt: p.CreatedAt,
	}
}

// PublicPlayerFromModel converts a player without contact details
func PublicPlayerFromModel(p *model.Player) Player {
	out := PlayerFromModel(p)
	out.Email = ""
	return out
}

// PlayerList is the response for listing players
type PlayerList struct {
	Players []Player `json:"players"`
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	out := AuthResponse{
		Player:    PlayerFromModel(&s.Player),
		Token:     s.Token,
		TokenType: "Bearer",
	}
	if s.Claims != nil && s.Claims.ExpiresAt != nil {
		out.ExpiresAt = s.Claims.ExpiresAt.Time
	}
	return out
}

// Claims describes a verified token
type Claims struct {
	PlayerID  string    `json:"player_id"`
	Username  string    `json:"username"`
	Authority string    `json:"authority"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ClaimsFromToken converts verified token claims
func ClaimsFromToken(c *auth.Claims) Claims {
	out := Claims{
		PlayerID:  c.UUID,
		Username:  c.Username,
		Authority: c.AuthorityLevel,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// LobbyList is the response for listing lobbies
type LobbyList struct {
	Lobbies []string `json:"lobbies"`
}

// LobbyPlayers is the response for listing a lobby's members
type LobbyPlayers struct {
	LobbyName string   `json:"lobby_name"`
	Players   []string `json:"players"`
}

// LobbyPlayersFromModel converts a lobby's member ids
func LobbyPlayersFromModel(name string, ids []model.PlayerID) LobbyPlayers {
	players := make([]string, len(ids))
	for i, id := range ids {
		players[i] = id.String()
	}
	return LobbyPlayers{LobbyName: name, Players: players}
}

// History is the response for a player's recent game states
type History struct {
	PlayerID string            `json:"player_id"`
	States   []model.GameState `json:"states"`
}

// HistoryFromModel converts retained snapshots, oldest first
func HistoryFromModel(id model.PlayerID, states []model.GameState) History {
	if states == nil {
		states = []model.GameState{}
	}
	return History{PlayerID: id.String(), States: states}
}

// Health is the response for the health check
type Health struct {
	Status        string `json:"status"`
	Storage       string `json:"storage"`
	Connections   int    `json:"connections"`
	Authenticated int    `json:"authenticated"`
}
