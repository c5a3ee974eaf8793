package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/api/apierr"
	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
	"github.com/mcoot/blazers/internal/testutil"
)

type stubVerifier map[string]*auth.Claims

func (s stubVerifier) Verify(token string) (*auth.Claims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, model.ErrTokenInvalid
	}
	return claims, nil
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestExtractTokenPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/lobby?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(req))

	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", ExtractToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(req))

	assert.Empty(t, ExtractToken(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestTokenFromRequestReportsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/lobby?token=from-query", nil)
	_, fromCookie := TokenFromRequest(req)
	assert.False(t, fromCookie)

	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: "from-cookie"})
	token, fromCookie := TokenFromRequest(req)
	assert.Equal(t, "from-cookie", token)
	assert.True(t, fromCookie)

	req.Header.Set("Authorization", "Bearer from-header")
	token, fromCookie = TokenFromRequest(req)
	assert.Equal(t, "from-header", token)
	assert.False(t, fromCookie)
}

func TestAuthStoresClaims(t *testing.T) {
	alice := &auth.Claims{Username: "alice", AuthorityLevel: model.AuthorityPlayer}
	verifier := stubVerifier{"good": alice}

	var seen *auth.Claims
	h := Auth(verifier)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = MustGetClaims(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, alice, seen)
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	h := Auth(stubVerifier{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierr.CodeUnauthorized, decodeCode(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierr.CodeInvalidToken, decodeCode(t, rec))
}

func TestRequireAdmin(t *testing.T) {
	verifier := stubVerifier{
		"admin":  {Username: "root", AuthorityLevel: model.AuthorityAdmin},
		"player": {Username: "alice", AuthorityLevel: model.AuthorityPlayer},
	}
	h := Auth(verifier)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		token string
		want  int
	}{
		{"admin", http.StatusNoContent},
		{"player", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecoveryWritesJSONError(t *testing.T) {
	h := Recovery(testutil.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apierr.CodeInternalError, decodeCode(t, rec))
}
