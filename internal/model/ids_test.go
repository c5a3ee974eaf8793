package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayerID(t *testing.T) {
	id := NewPlayerID()

	parsed, err := ParsePlayerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePlayerID("player-1")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestIDsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewConnectionID(), NewConnectionID())
	assert.NotEqual(t, NewLobbyID(), NewLobbyID())
}

func TestIDJSONUsesCanonicalText(t *testing.T) {
	id := NewGameID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var decoded GameID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestZeroPlayerID(t *testing.T) {
	var id PlayerID
	assert.True(t, id.IsZero())
	assert.False(t, NewPlayerID().IsZero())
}
