package redis

import (
	"fmt"

	"github.com/mcoot/blazers/internal/model"
)

// Key prefix for all account data
const keyPrefix = "blazers"

// playerKey returns the Redis key for a RegisteredPlayer
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> player_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// playersSetKey returns the Redis key for the SET of all player ids
func playersSetKey() string {
	return fmt.Sprintf("%s:players", keyPrefix)
}
