package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/model"
)

// Claims is the payload of an access token. The subject is the account email.
type Claims struct {
	Username       string `json:"username"`
	AuthorityLevel string `json:"authority_level"`
	UUID           string `json:"uuid"`
	jwt.RegisteredClaims
}

// PlayerID parses the player id carried in the claims
func (c *Claims) PlayerID() (model.PlayerID, error) {
	return model.ParsePlayerID(c.UUID)
}

// TokenConfig holds access token settings
type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// DefaultTokenConfig returns default token settings. The secret must be
// supplied by configuration.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		TTL: 30 * time.Minute,
	}
}

// Tokens issues and verifies HS256 access tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokens creates a token issuer
func NewTokens(cfg TokenConfig, clock clock.Clock) *Tokens {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenConfig().TTL
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		clock:  clock,
	}
}

// Issue creates a signed token for player
func (t *Tokens) Issue(player model.Player) (string, error) {
	now := t.clock.Now()
	claims := Claims{
		Username:       player.Username,
		AuthorityLevel: player.Authority,
		UUID:           player.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   player.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns its claims. A scheme prefix such as
// "Bearer " is ignored; only the last space separated part is used.
func (t *Tokens) Decode(token string) (*Claims, error) {
	parts := strings.Fields(token)
	if len(parts) == 0 {
		return nil, model.ErrTokenMalformed
	}
	raw := parts[len(parts)-1]

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, model.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	default:
		return nil, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}

	if _, err := claims.PlayerID(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}
	return claims, nil
}
