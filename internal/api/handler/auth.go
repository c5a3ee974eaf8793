package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcoot/blazers/internal/api/middleware"
	"github.com/mcoot/blazers/internal/api/request"
	"github.com/mcoot/blazers/internal/api/response"
	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
)

// Accounts is the account service as used by the HTTP handlers
type Accounts interface {
	Signup(ctx context.Context, username, email, password string) (*model.Player, error)
	Login(ctx context.Context, identifier, password string) (*auth.Session, error)
	Verify(token string) (*auth.Claims, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	Reset(ctx context.Context) error
}

// AuthHandler handles signup, login and token verification
type AuthHandler struct {
	accounts Accounts
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Email == "" {
		WriteError(w, NewInvalidRequestError("email is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	player, err := h.accounts.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.Created(w, response.PlayerFromModel(player))
}

// Login handles POST /api/v1/auth/login. The token is returned in the
// body, the Authorization header and the jwt cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Identifier() == "" {
		WriteError(w, NewInvalidRequestError("username or email is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Identifier(), req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	body := response.AuthResponseFromSession(session)
	w.Header().Set("Authorization", "Bearer "+session.Token)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  body.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	response.JSON(w, http.StatusOK, body)
}

// Verify handles GET /api/v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())
	response.JSON(w, http.StatusOK, response.ClaimsFromToken(claims))
}

// Reset handles POST /api/v1/admin/reset
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Reset(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
