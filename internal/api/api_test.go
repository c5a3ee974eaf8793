package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/api/apierr"
	"github.com/mcoot/blazers/internal/api/response"
	"github.com/mcoot/blazers/internal/factory"
	"github.com/mcoot/blazers/internal/model"
)

// testServer wraps a started TestApp
type testServer struct {
	app *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	app.Start(t.Context())
	t.Cleanup(func() { _ = app.Shutdown() })

	return &testServer{app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.app.Router.ServeHTTP(rr, req)
	return rr
}

func signup(t *testing.T, ts *testServer, username string) response.Player {
	t.Helper()
	body := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	}
	rr := ts.request(http.MethodPost, "/api/v1/auth/signup", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var player response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &player))
	return player
}

func login(t *testing.T, ts *testServer, username string) string {
	t.Helper()
	body := map[string]string{"username": username, "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/auth/login", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Storage)
	assert.Zero(t, resp.Connections)
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	player := signup(t, ts, "alice")
	assert.Equal(t, "alice", player.Username)
	assert.Equal(t, model.AuthorityPlayer, player.Authority)

	body := map[string]string{"email": "alice@example.com", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/auth/login", body, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, player.ID, resp.Player.ID)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer "+resp.Token, rr.Header().Get("Authorization"))
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "jwt="+resp.Token)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestSignupConflicts(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "x",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameExists, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"username": "alicia", "email": "alice@example.com", "password": "x",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeEmailExists, decodeError(t, rr).Code)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing username", map[string]string{"email": "a@example.com", "password": "x"}},
		{"missing email", map[string]string{"username": "a", "password": "x"}},
		{"missing password", map[string]string{"username": "a", "email": "a@example.com"}},
		{"bad email", map[string]string{"username": "a", "email": "nope", "password": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/auth/signup", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "alice", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, decodeError(t, rr).Code)
}

func TestVerifyAndGetMe(t *testing.T) {
	ts := newTestServer(t)
	player := signup(t, ts, "alice")
	token := login(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/auth/verify", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var claims response.Claims
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &claims))
	assert.Equal(t, player.ID, claims.PlayerID)
	assert.Equal(t, "alice", claims.Username)

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var me response.Player
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/v1/auth/verify",
		"/api/v1/players/me",
		"/api/v1/players",
		"/api/v1/lobbies",
	} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidToken, decodeError(t, rr).Code)
}

func TestExpiredToken(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")
	token := login(t, ts, "alice")

	ts.app.MockClock.Advance(time.Hour)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeTokenExpired, decodeError(t, rr).Code)
}

func TestListPlayersHidesEmail(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")
	signup(t, ts, "bob")
	token := login(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/players", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.PlayerList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Players, 2)
	for _, p := range resp.Players {
		assert.Empty(t, p.Email)
	}
}

func TestLobbyRoutes(t *testing.T) {
	ts := newTestServer(t)
	alice := signup(t, ts, "alice")
	token := login(t, ts, "alice")
	aliceID, err := model.ParsePlayerID(alice.ID)
	require.NoError(t, err)

	_, err = ts.app.Lobbies.CreateAndJoin(t.Context(), "alpha", aliceID)
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/lobbies", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var list response.LobbyList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, []string{"alpha"}, list.Lobbies)

	rr = ts.request(http.MethodGet, "/api/v1/lobbies/alpha/players", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var players response.LobbyPlayers
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	assert.Equal(t, []string{alice.ID}, players.Players)

	rr = ts.request(http.MethodGet, "/api/v1/lobbies/nowhere/players", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &players))
	assert.Empty(t, players.Players)
}

func TestPlayerHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := signup(t, ts, "alice")
	token := login(t, ts, "alice")
	aliceID, err := model.ParsePlayerID(alice.ID)
	require.NoError(t, err)

	conn := model.NewConnectionID()
	require.NoError(t, ts.app.Sessions.RegisterConnection(t.Context(), conn, aliceID))
	for i := uint(1); i <= 6; i++ {
		_, err := ts.app.Sessions.RecordGameState(t.Context(), conn, model.GameState{PlayerID: aliceID, PositionX: i})
		require.NoError(t, err)
	}

	rr := ts.request(http.MethodGet, "/api/v1/players/"+alice.ID+"/history", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.History
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.States, 5)
	assert.Equal(t, uint(2), resp.States[0].PositionX)
	assert.Equal(t, uint(6), resp.States[4].PositionX)

	rr = ts.request(http.MethodGet, "/api/v1/players/not-an-id/history", nil, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/players/"+model.NewPlayerID().String()+"/history", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.States)
}

func TestAdminReset(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")
	signup(t, ts, "admin")
	playerToken := login(t, ts, "alice")
	adminToken := login(t, ts, "admin")

	rr := ts.request(http.MethodPost, "/api/v1/admin/reset", nil, playerToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/admin/reset", nil, adminToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	players, err := ts.app.AuthService.ListPlayers(t.Context())
	require.NoError(t, err)
	assert.Empty(t, players)
}

func TestLobbySocketThroughRouter(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "alice")
	token := login(t, ts, "alice")

	srv := httptest.NewServer(ts.app.Router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/lobby"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer garbage"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Cookie": []string{"jwt=" + token}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type  string             `json:"type"`
		State model.SessionState `json:"state"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "SynchronizeState", frame.Type)
	assert.Equal(t, model.StateAuthenticated, frame.State.Kind)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	var health response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, 1, health.Authenticated)
}
