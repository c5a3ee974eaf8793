package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/model"
)

func TestDecodeEachFrameType(t *testing.T) {
	player := model.NewPlayerID()

	tests := []struct {
		name string
		raw  string
		want Frame
	}{
		{"auth", `{"type":"Auth","jwt":"abc"}`, Auth{JWT: "abc"}},
		{
			"game state",
			fmt.Sprintf(`{"type":"GameState","position_x":3,"position_y":4,"player_id":%q,"timestamp":"t1"}`, player),
			GameState{PositionX: 3, PositionY: 4, PlayerID: player.String(), Timestamp: "t1"},
		},
		{"create lobby", `{"type":"CreateLobby","lobby_name":"alpha"}`, CreateLobby{LobbyName: "alpha"}},
		{"join lobby", `{"type":"JoinLobby","lobby_name":"alpha","player_id":"p"}`, JoinLobby{LobbyName: "alpha", PlayerID: "p"}},
		{"leave lobby", `  {"type":"LeaveLobby","lobby_name":"alpha"}`, LeaveLobby{LobbyName: "alpha"}},
		{"start game", `{"type":"StartGame"}`, StartGame{}},
		{"leave game", `{"type":"LeaveGame"}`, LeaveGame{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame)
			assert.Equal(t, tt.want.FrameType(), frame.FrameType())
		})
	}
}

func TestDecodeIgnoresNonJSONText(t *testing.T) {
	for _, raw := range []string{"", "hello", "[1,2]", "   "} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrNotJSON, raw)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		`{"type":`,
		`{"lobby_name":"alpha"}`,
		`{"type":"GameState","position_x":-1}`,
		`{"type":"JoinLobby","lobby_name":7}`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedFrame, raw)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownFrameType)
}

func TestGameStateSnapshot(t *testing.T) {
	player := model.NewPlayerID()

	gs, err := GameState{PositionX: 1, PositionY: 2, PlayerID: player.String(), Timestamp: "t"}.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, model.GameState{PlayerID: player, PositionX: 1, PositionY: 2, Timestamp: "t"}, gs)

	_, err = GameState{PlayerID: "nope"}.Snapshot()
	assert.ErrorIs(t, err, model.ErrInvalidID)
}

func TestEncodeSynchronizeState(t *testing.T) {
	player := model.NewPlayerID()

	data, err := EncodeSynchronizeState(model.Authenticated(player))
	require.NoError(t, err)

	var decoded SynchronizeState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeSynchronizeState, decoded.Type)
	assert.Equal(t, model.Authenticated(player), decoded.State)
}

func TestEncodeGameStateFlattensSnapshot(t *testing.T) {
	player := model.NewPlayerID()

	data, err := EncodeGameState(model.GameState{PlayerID: player, PositionX: 5, PositionY: 6, Timestamp: "t"})
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, GameState{PositionX: 5, PositionY: 6, PlayerID: player.String(), Timestamp: "t"}, frame)
}

func TestEncodeErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: alpha", model.ErrLobbyAlreadyExists), CodeLobbyAlreadyExists},
		{model.ErrLobbyDoesNotExist, CodeLobbyNotFound},
		{model.ErrPlayerIsNotInLobby, CodeNotInLobby},
		{model.ErrInvalidTransition, CodeInvalidTransition},
		{model.ErrDuplicateLogin, CodeDuplicateLogin},
		{model.ErrNotAuthenticated, CodeNotAuthenticated},
		{model.ErrInvalidID, CodeInvalidRequest},
		{model.ErrTokenExpired, CodeTokenExpired},
		{model.ErrTokenInvalid, CodeInvalidToken},
		{errors.New("database on fire"), CodeInternal},
	}

	for _, tt := range tests {
		var decoded Error
		require.NoError(t, json.Unmarshal(EncodeError(TypeJoinLobby, tt.err), &decoded))
		assert.Equal(t, TypeError, decoded.Type)
		assert.Equal(t, tt.code, decoded.Code, tt.err.Error())
		assert.Equal(t, TypeJoinLobby, decoded.Request)
	}
}

func TestEncodeErrorHidesInternalDetail(t *testing.T) {
	var decoded Error
	require.NoError(t, json.Unmarshal(EncodeError("", errors.New("secret")), &decoded))
	assert.Equal(t, "internal error", decoded.Message)
}

func TestEncodeRoundTripsThroughDecode(t *testing.T) {
	frames := []Frame{
		Auth{JWT: "abc"},
		CreateLobby{LobbyName: "alpha"},
		JoinLobby{LobbyName: "alpha", PlayerID: "p"},
		LeaveLobby{LobbyName: "alpha"},
		StartGame{},
		LeaveGame{},
	}

	for _, f := range frames {
		t.Run(f.FrameType(), func(t *testing.T) {
			data, err := Encode(f)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, f, decoded)
		})
	}
}
