package model

import (
	"encoding/json"
	"fmt"
)

// StateKind tags the variant held by a SessionState
type StateKind string

const (
	StateAuthenticated StateKind = "Authenticated"
	StateInLobby       StateKind = "InLobby"
	StateInGame        StateKind = "InGame"
)

// SessionState is the per-connection state. Every variant carries the
// player; InLobby adds the lobby and InGame the game.
type SessionState struct {
	Kind      StateKind
	PlayerID  PlayerID
	LobbyID   LobbyID // InLobby only
	LobbyName string  // InLobby only
	GameID    GameID  // InGame only
}

// Authenticated builds the state a connection enters on login
func Authenticated(player PlayerID) SessionState {
	return SessionState{Kind: StateAuthenticated, PlayerID: player}
}

// InLobby builds the state of a player who is a member of a lobby
func InLobby(player PlayerID, lobby LobbyID, name string) SessionState {
	return SessionState{Kind: StateInLobby, PlayerID: player, LobbyID: lobby, LobbyName: name}
}

// InGame builds the state of a player inside a running game
func InGame(player PlayerID, game GameID) SessionState {
	return SessionState{Kind: StateInGame, PlayerID: player, GameID: game}
}

// Valid reports whether the state is one of the known variants with a player
func (s SessionState) Valid() bool {
	switch s.Kind {
	case StateAuthenticated, StateInLobby, StateInGame:
		return !s.PlayerID.IsZero()
	}
	return false
}

func (s SessionState) String() string {
	switch s.Kind {
	case StateInLobby:
		return fmt.Sprintf("InLobby(%s, %s)", s.PlayerID, s.LobbyName)
	case StateInGame:
		return fmt.Sprintf("InGame(%s, %s)", s.PlayerID, s.GameID)
	default:
		return fmt.Sprintf("%s(%s)", s.Kind, s.PlayerID)
	}
}

// EventKind tags a UserEvent
type EventKind string

const (
	EventLogin     EventKind = "Login"
	EventJoinLobby EventKind = "JoinLobby"
	EventStartGame EventKind = "StartGame"
	EventExit      EventKind = "Exit"
)

// UserEvent drives transitions of a SessionState
type UserEvent struct {
	Kind      EventKind
	PlayerID  PlayerID // Login
	LobbyID   LobbyID  // JoinLobby
	LobbyName string   // JoinLobby
	GameID    GameID   // StartGame
}

// Login is raised when a connection authenticates as player
func Login(player PlayerID) UserEvent {
	return UserEvent{Kind: EventLogin, PlayerID: player}
}

// JoinLobby is raised after the registry accepted the player into a lobby
func JoinLobby(lobby LobbyID, name string) UserEvent {
	return UserEvent{Kind: EventJoinLobby, LobbyID: lobby, LobbyName: name}
}

// StartGame is raised when the player enters a game
func StartGame(game GameID) UserEvent {
	return UserEvent{Kind: EventStartGame, GameID: game}
}

// Exit leaves the current lobby or game
func Exit() UserEvent {
	return UserEvent{Kind: EventExit}
}

func (e UserEvent) String() string {
	switch e.Kind {
	case EventLogin:
		return fmt.Sprintf("Login(%s)", e.PlayerID)
	case EventJoinLobby:
		return fmt.Sprintf("JoinLobby(%s)", e.LobbyName)
	case EventStartGame:
		return fmt.Sprintf("StartGame(%s)", e.GameID)
	default:
		return string(e.Kind)
	}
}

// Apply returns the state that results from ev. Pairs outside the
// transition table return the receiver unchanged with ErrInvalidTransition.
// Login is not part of the table: it creates a state rather than moving one.
//
//	Authenticated + JoinLobby -> InLobby
//	Authenticated + StartGame -> InGame
//	InLobby       + Exit      -> Authenticated
//	InGame        + Exit      -> Authenticated
func (s SessionState) Apply(ev UserEvent) (SessionState, error) {
	switch {
	case s.Kind == StateAuthenticated && ev.Kind == EventJoinLobby:
		return InLobby(s.PlayerID, ev.LobbyID, ev.LobbyName), nil
	case s.Kind == StateAuthenticated && ev.Kind == EventStartGame:
		return InGame(s.PlayerID, ev.GameID), nil
	case s.Kind == StateInLobby && ev.Kind == EventExit,
		s.Kind == StateInGame && ev.Kind == EventExit:
		return Authenticated(s.PlayerID), nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

type authenticatedJSON struct {
	PlayerID PlayerID `json:"player_id"`
}

type inLobbyJSON struct {
	PlayerID  PlayerID `json:"player_id"`
	LobbyID   LobbyID  `json:"lobby_id"`
	LobbyName string   `json:"lobby_name"`
}

type inGameJSON struct {
	PlayerID PlayerID `json:"player_id"`
	GameID   GameID   `json:"game_id"`
}

// MarshalJSON encodes the state as an object keyed by its variant name,
// e.g. {"InLobby":{"player_id":"...","lobby_id":"...","lobby_name":"..."}}
func (s SessionState) MarshalJSON() ([]byte, error) {
	var body any
	switch s.Kind {
	case StateAuthenticated:
		body = authenticatedJSON{PlayerID: s.PlayerID}
	case StateInLobby:
		body = inLobbyJSON{PlayerID: s.PlayerID, LobbyID: s.LobbyID, LobbyName: s.LobbyName}
	case StateInGame:
		body = inGameJSON{PlayerID: s.PlayerID, GameID: s.GameID}
	default:
		return nil, fmt.Errorf("unknown session state kind %q", s.Kind)
	}
	return json.Marshal(map[StateKind]any{s.Kind: body})
}

// UnmarshalJSON decodes the variant-keyed form produced by MarshalJSON
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var raw map[StateKind]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("session state must have exactly one variant, got %d", len(raw))
	}
	for kind, body := range raw {
		switch kind {
		case StateAuthenticated:
			var v authenticatedJSON
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			*s = Authenticated(v.PlayerID)
		case StateInLobby:
			var v inLobbyJSON
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			*s = InLobby(v.PlayerID, v.LobbyID, v.LobbyName)
		case StateInGame:
			var v inGameJSON
			if err := json.Unmarshal(body, &v); err != nil {
				return err
			}
			*s = InGame(v.PlayerID, v.GameID)
		default:
			return fmt.Errorf("unknown session state kind %q", kind)
		}
	}
	return nil
}
