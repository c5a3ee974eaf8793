package storage

import (
	"context"

	"github.com/mcoot/blazers/internal/model"
)

// Storage defines the interface for player account persistence
type Storage interface {
	// CreatePlayer stores a new account. It fails with
	// model.ErrUsernameExists or model.ErrEmailExists on a conflict.
	CreatePlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.RegisteredPlayer, error)
	GetPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)
	GetPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error)
	// ListPlayers returns every account ordered by username
	ListPlayers(ctx context.Context) ([]model.Player, error)

	// Reset removes every account
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
