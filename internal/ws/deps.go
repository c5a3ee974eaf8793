package ws

import (
	"context"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
	"github.com/mcoot/blazers/internal/services/session"
)

// Sessions is the session state coordinator as seen by a connection
type Sessions interface {
	Attach(ctx context.Context, conn model.ConnectionID, r session.Recipient) error
	RegisterConnection(ctx context.Context, conn model.ConnectionID, player model.PlayerID) error
	CheckExistingConnection(ctx context.Context, conn model.ConnectionID, player model.PlayerID) (bool, error)
	Transition(ctx context.Context, conn model.ConnectionID, ev model.UserEvent) (model.SessionState, error)
	GetState(ctx context.Context, conn model.ConnectionID) (model.SessionState, bool, error)
	RecordGameState(ctx context.Context, conn model.ConnectionID, snapshot model.GameState) (model.SessionState, error)
	Deliver(ctx context.Context, players []model.PlayerID, exclude model.PlayerID, frame []byte) (int, error)
	Disconnect(ctx context.Context, conn model.ConnectionID) (model.SessionState, bool)
}

// Lobbies is the lobby registry as seen by a connection
type Lobbies interface {
	CreateAndJoin(ctx context.Context, name string, player model.PlayerID) (model.LobbyID, error)
	AddPlayer(ctx context.Context, player model.PlayerID, name string) (model.LobbyID, error)
	RemovePlayer(ctx context.Context, player model.PlayerID, name string) error
	PlayersInLobby(ctx context.Context, name string) ([]model.PlayerID, error)
}

// TokenDecoder verifies access tokens
type TokenDecoder interface {
	Decode(token string) (*auth.Claims, error)
}
