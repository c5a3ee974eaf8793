package model

// GameState is a position snapshot reported by a player. The server does
// not interpret it beyond recording and relaying.
type GameState struct {
	PlayerID  PlayerID `json:"player_id"`
	PositionX uint     `json:"position_x"`
	PositionY uint     `json:"position_y"`
	Timestamp string   `json:"timestamp"`
}
