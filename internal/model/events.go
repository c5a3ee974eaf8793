package model

import "time"

// EventType identifies the type of lobby event
type EventType string

const (
	EventLobbyCreated EventType = "lobby_created"
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventLobbyPruned  EventType = "lobby_pruned"
)

// Event records a change to lobby membership
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	LobbyID   LobbyID   `json:"lobby_id"`
	LobbyName string    `json:"lobby_name"`
	PlayerID  *PlayerID `json:"player_id,omitempty"`
}
