package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/blazers/internal/api/apierr"
	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// TokenCookie is the cookie the web client stores its access token in
const TokenCookie = "jwt"

// TokenVerifier decodes access tokens
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth creates authentication middleware
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose token lacks the admin authority.
// It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil || claims.AuthorityLevel != model.AuthorityAdmin {
			apierr.WriteError(w, apierr.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken returns the access token carried by the request. The
// Authorization header wins over the cookie, which wins over the token
// query parameter used by browser websocket clients.
func ExtractToken(r *http.Request) string {
	token, _ := TokenFromRequest(r)
	return token
}

// TokenFromRequest is ExtractToken that also reports whether the token
// came from the cookie, which browsers attach to cross-site requests
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), false
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return r.URL.Query().Get("token"), false
}

// GetClaims returns the verified token claims from the request context
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// MustGetClaims returns the verified claims or panics
func MustGetClaims(ctx context.Context) *auth.Claims {
	claims := GetClaims(ctx)
	if claims == nil {
		panic("no claims in context - auth middleware not applied?")
	}
	return claims
}
