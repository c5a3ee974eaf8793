package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignup      = errors.New("invalid signup")
)

// Session is the result of a successful login
type Session struct {
	Token  string
	Player model.Player
	Claims *Claims
}

// Service handles accounts and access tokens
type Service struct {
	storage    storage.Storage
	tokens     *Tokens
	clock      clock.Clock
	bcryptCost int
	admins     []string
}

// Config holds configuration for the auth service
type Config struct {
	Token      TokenConfig
	BcryptCost int
	// AdminUsernames are granted the admin authority on signup
	AdminUsernames []string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Token:      DefaultTokenConfig(),
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		storage:    storage,
		tokens:     NewTokens(cfg.Token, clock),
		clock:      clock,
		bcryptCost: cfg.BcryptCost,
		admins:     cfg.AdminUsernames,
	}
}

// Tokens returns the token issuer used by the service
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Signup creates an account
func (s *Service) Signup(ctx context.Context, username, email, password string) (*model.Player, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || password == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidSignup
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rp := &model.RegisteredPlayer{
		Player: model.Player{
			ID:        model.NewPlayerID(),
			Username:  username,
			Email:     email,
			Authority: s.authorityFor(username),
			CreatedAt: now,
		},
		PasswordHash: string(hash),
		UpdatedAt:    now,
	}
	if err := s.storage.CreatePlayer(ctx, rp); err != nil {
		return nil, err
	}
	return &rp.Player, nil
}

func (s *Service) authorityFor(username string) string {
	for _, admin := range s.admins {
		if admin == username {
			return model.AuthorityAdmin
		}
	}
	return model.AuthorityPlayer
}

// Login checks the password of the account named by identifier, which is
// either an email address or a username, and issues a token
func (s *Service) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		rp  *model.RegisteredPlayer
		err error
	)
	if strings.Contains(identifier, "@") {
		rp, err = s.storage.GetPlayerByEmail(ctx, strings.ToLower(identifier))
	} else {
		rp, err = s.storage.GetPlayerByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(rp.Player)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Player: rp.Player, Claims: claims}, nil
}

// Verify decodes token and returns its claims
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Decode(token)
}

// GetPlayer returns the account with the given id
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	rp, err := s.storage.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rp.Player, nil
}

// ListPlayers returns every account
func (s *Service) ListPlayers(ctx context.Context) ([]model.Player, error) {
	return s.storage.ListPlayers(ctx)
}

// Reset removes every account
func (s *Service) Reset(ctx context.Context) error {
	return s.storage.Reset(ctx)
}
