// Package protocol defines the JSON frames exchanged over a lobby socket.
//
// Every inbound frame is an object whose "type" field selects its shape:
//
//	{"type":"Auth","jwt":"..."}
//	{"type":"GameState","position_x":1,"position_y":2,"player_id":"...","timestamp":"..."}
//	{"type":"CreateLobby","lobby_name":"alpha"}
//	{"type":"JoinLobby","lobby_name":"alpha"}
//	{"type":"LeaveLobby","lobby_name":"alpha"}
//	{"type":"StartGame"}
//	{"type":"LeaveGame"}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/blazers/internal/model"
)

// Inbound frame types
const (
	TypeAuth        = "Auth"
	TypeGameState   = "GameState"
	TypeCreateLobby = "CreateLobby"
	TypeJoinLobby   = "JoinLobby"
	TypeLeaveLobby  = "LeaveLobby"
	TypeStartGame   = "StartGame"
	TypeLeaveGame   = "LeaveGame"
)

var (
	// ErrNotJSON marks text that is not a JSON object. Such frames are ignored.
	ErrNotJSON = errors.New("frame is not a JSON object")
	// ErrMalformedFrame marks a JSON frame that does not match its type
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownFrameType marks a frame whose type has no handler
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// Frame is a decoded inbound message
type Frame interface {
	FrameType() string
}

// Auth authenticates a connection that was opened without a token
type Auth struct {
	JWT string `json:"jwt"`
}

// GameState reports the sender's current position
type GameState struct {
	PositionX uint   `json:"position_x"`
	PositionY uint   `json:"position_y"`
	PlayerID  string `json:"player_id"`
	Timestamp string `json:"timestamp"`
}

// CreateLobby creates a lobby and joins it
type CreateLobby struct {
	LobbyName string `json:"lobby_name"`
	PlayerID  string `json:"player_id,omitempty"`
}

// JoinLobby joins an existing lobby
type JoinLobby struct {
	LobbyName string `json:"lobby_name"`
	PlayerID  string `json:"player_id,omitempty"`
}

// LeaveLobby leaves a lobby
type LeaveLobby struct {
	LobbyName string `json:"lobby_name"`
	PlayerID  string `json:"player_id,omitempty"`
}

// StartGame moves an authenticated player into a new game
type StartGame struct{}

// LeaveGame leaves the current game
type LeaveGame struct{}

func (Auth) FrameType() string        { return TypeAuth }
func (GameState) FrameType() string   { return TypeGameState }
func (CreateLobby) FrameType() string { return TypeCreateLobby }
func (JoinLobby) FrameType() string   { return TypeJoinLobby }
func (LeaveLobby) FrameType() string  { return TypeLeaveLobby }
func (StartGame) FrameType() string   { return TypeStartGame }
func (LeaveGame) FrameType() string   { return TypeLeaveGame }

// Snapshot converts the frame into a model.GameState
func (g GameState) Snapshot() (model.GameState, error) {
	player, err := model.ParsePlayerID(g.PlayerID)
	if err != nil {
		return model.GameState{}, err
	}
	return model.GameState{
		PlayerID:  player,
		PositionX: g.PositionX,
		PositionY: g.PositionY,
		Timestamp: g.Timestamp,
	}, nil
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one text frame
func Decode(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotJSON
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var frame Frame
	switch env.Type {
	case TypeAuth:
		frame = &Auth{}
	case TypeGameState:
		frame = &GameState{}
	case TypeCreateLobby:
		frame = &CreateLobby{}
	case TypeJoinLobby:
		frame = &JoinLobby{}
	case TypeLeaveLobby:
		frame = &LeaveLobby{}
	case TypeStartGame:
		return StartGame{}, nil
	case TypeLeaveGame:
		return LeaveGame{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, env.Type)
	}

	if err := json.Unmarshal(trimmed, frame); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
	}

	switch f := frame.(type) {
	case *Auth:
		return *f, nil
	case *GameState:
		return *f, nil
	case *CreateLobby:
		return *f, nil
	case *JoinLobby:
		return *f, nil
	case *LeaveLobby:
		return *f, nil
	}
	return frame, nil
}

// Encode builds the wire form of an inbound frame
func Encode(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, err := json.Marshal(f.FrameType())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}
