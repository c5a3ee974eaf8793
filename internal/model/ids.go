package model

import (
	"fmt"

	"github.com/google/uuid"
)

// PlayerID uniquely identifies a player across the system
type PlayerID uuid.UUID

// ConnectionID identifies one live socket; a new one is minted for every connection
type ConnectionID uuid.UUID

// LobbyID is minted when a lobby is created
type LobbyID uuid.UUID

// GameID is minted when a game is started
type GameID uuid.UUID

// NewPlayerID generates a random PlayerID
func NewPlayerID() PlayerID { return PlayerID(uuid.New()) }

// NewConnectionID generates a random ConnectionID
func NewConnectionID() ConnectionID { return ConnectionID(uuid.New()) }

// NewLobbyID generates a random LobbyID
func NewLobbyID() LobbyID { return LobbyID(uuid.New()) }

// NewGameID generates a random GameID
func NewGameID() GameID { return GameID(uuid.New()) }

// ParsePlayerID parses the textual form of a PlayerID
func ParsePlayerID(s string) (PlayerID, error) {
	id, err := parseUUID(s)
	return PlayerID(id), err
}

// ParseConnectionID parses the textual form of a ConnectionID
func ParseConnectionID(s string) (ConnectionID, error) {
	id, err := parseUUID(s)
	return ConnectionID(id), err
}

// ParseLobbyID parses the textual form of a LobbyID
func ParseLobbyID(s string) (LobbyID, error) {
	id, err := parseUUID(s)
	return LobbyID(id), err
}

// ParseGameID parses the textual form of a GameID
func ParseGameID(s string) (GameID, error) {
	id, err := parseUUID(s)
	return GameID(id), err
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

func (id PlayerID) String() string     { return uuid.UUID(id).String() }
func (id ConnectionID) String() string { return uuid.UUID(id).String() }
func (id LobbyID) String() string      { return uuid.UUID(id).String() }
func (id GameID) String() string       { return uuid.UUID(id).String() }

// IsZero reports whether the id is the nil UUID
func (id PlayerID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id PlayerID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ConnectionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id LobbyID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id GameID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *PlayerID) UnmarshalText(b []byte) error {
	parsed, err := ParsePlayerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ConnectionID) UnmarshalText(b []byte) error {
	parsed, err := ParseConnectionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LobbyID) UnmarshalText(b []byte) error {
	parsed, err := ParseLobbyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *GameID) UnmarshalText(b []byte) error {
	parsed, err := ParseGameID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
