package model

import "time"

// Authority levels carried in access tokens
const (
	AuthorityPlayer = "player"
	AuthorityAdmin  = "admin"
)

// Player is a registered account
type Player struct {
	ID        PlayerID
	Username  string // login username (immutable)
	Email     string
	Authority string
	CreatedAt time.Time
}

// RegisteredPlayer extends Player with authentication data
// Stored separately so the hash never travels with a session
type RegisteredPlayer struct {
	Player
	PasswordHash string // bcrypt hash
	UpdatedAt    time.Time
}
