package protocol

import (
	"encoding/json"
	"errors"

	"github.com/mcoot/blazers/internal/model"
)

// Outbound frame types
const (
	TypeSynchronizeState = "SynchronizeState"
	TypeError            = "Error"
)

// SynchronizeState tells a client its authoritative session state
type SynchronizeState struct {
	Type  string             `json:"type"`
	State model.SessionState `json:"state"`
}

// GameStateBroadcast relays one player's snapshot to the rest of a lobby
type GameStateBroadcast struct {
	Type string `json:"type"`
	model.GameState
}

// Error reports why a frame was rejected
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeDuplicateLogin     = "DUPLICATE_LOGIN"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodePlayerMismatch     = "PLAYER_MISMATCH"
	CodeLobbyAlreadyExists = "LOBBY_ALREADY_EXISTS"
	CodeLobbyNotFound      = "LOBBY_NOT_FOUND"
	CodeNotInLobby         = "NOT_IN_LOBBY"
	CodeInvalidLobbyName   = "INVALID_LOBBY_NAME"
	CodeInternal           = "INTERNAL_ERROR"
)

// EncodeSynchronizeState builds a SynchronizeState frame
func EncodeSynchronizeState(state model.SessionState) ([]byte, error) {
	return json.Marshal(SynchronizeState{Type: TypeSynchronizeState, State: state})
}

// EncodeGameState builds the frame relayed to lobby peers
func EncodeGameState(gs model.GameState) ([]byte, error) {
	return json.Marshal(GameStateBroadcast{Type: TypeGameState, GameState: gs})
}

// EncodeError builds an Error frame for err raised while handling request
func EncodeError(request string, err error) []byte {
	code, message := errorCode(err)
	data, _ := json.Marshal(Error{Type: TypeError, Code: code, Message: message, Request: request})
	return data
}

func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, ErrMalformedFrame),
		errors.Is(err, ErrUnknownFrameType),
		errors.Is(err, model.ErrInvalidID):
		return CodeInvalidRequest, err.Error()
	case errors.Is(err, model.ErrNotAuthenticated),
		errors.Is(err, model.ErrConnectionNotRegistered):
		return CodeNotAuthenticated, "authenticate first"
	case errors.Is(err, model.ErrTokenExpired):
		return CodeTokenExpired, "token expired"
	case errors.Is(err, model.ErrTokenMalformed),
		errors.Is(err, model.ErrTokenInvalid):
		return CodeInvalidToken, "invalid token"
	case errors.Is(err, model.ErrDuplicateLogin):
		return CodeDuplicateLogin, err.Error()
	case errors.Is(err, model.ErrInvalidTransition):
		return CodeInvalidTransition, err.Error()
	case errors.Is(err, model.ErrPlayerMismatch):
		return CodePlayerMismatch, err.Error()
	case errors.Is(err, model.ErrLobbyAlreadyExists):
		return CodeLobbyAlreadyExists, err.Error()
	case errors.Is(err, model.ErrLobbyDoesNotExist):
		return CodeLobbyNotFound, err.Error()
	case errors.Is(err, model.ErrPlayerIsNotInLobby):
		return CodeNotInLobby, err.Error()
	case errors.Is(err, model.ErrInvalidLobbyName):
		return CodeInvalidLobbyName, err.Error()
	default:
		return CodeInternal, "internal error"
	}
}
