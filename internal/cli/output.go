package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Claims:
		o.printClaims(v)
	case PlayerList:
		o.printPlayerList(v)
	case LobbyList:
		o.printLobbyList(v)
	case LobbyPlayers:
		o.printLobbyPlayers(v)
	case History:
		o.printHistory(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Authority string    `json:"authority"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player    Player    `json:"player"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims response type
type Claims struct {
	PlayerID  string    `json:"player_id"`
	Username  string    `json:"username"`
	Authority string    `json:"authority"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlayerList response type
type PlayerList struct {
	Players []Player `json:"players"`
}

// LobbyList response type
type LobbyList struct {
	Lobbies []string `json:"lobbies"`
}

// LobbyPlayers response type
type LobbyPlayers struct {
	LobbyName string   `json:"lobby_name"`
	Players   []string `json:"players"`
}

// GameState response type
type GameState struct {
	PlayerID  string `json:"player_id"`
	PositionX uint   `json:"position_x"`
	PositionY uint   `json:"position_y"`
	Timestamp string `json:"timestamp"`
}

// History response type
type History struct {
	PlayerID string      `json:"player_id"`
	States   []GameState `json:"states"`
}

// HealthResult response type
type HealthResult struct {
	Status        string `json:"status"`
	Storage       string `json:"storage"`
	Connections   int    `json:"connections"`
	Authenticated int    `json:"authenticated"`
}

func (o *Output) printPlayer(p Player) {
	fmt.Printf("Player: %s (%s)\n", p.Username, p.ID)
	if p.Email != "" {
		fmt.Printf("Email: %s\n", p.Email)
	}
	fmt.Printf("Authority: %s\n", p.Authority)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Token: %s\n", a.Token)
	if !a.ExpiresAt.IsZero() {
		fmt.Printf("Expires: %s\n", a.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func (o *Output) printClaims(c Claims) {
	fmt.Printf("Player: %s (%s)\n", c.Username, c.PlayerID)
	fmt.Printf("Authority: %s\n", c.Authority)
	if !c.ExpiresAt.IsZero() {
		fmt.Printf("Expires: %s\n", c.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func (o *Output) printPlayerList(l PlayerList) {
	fmt.Printf("Players (%d):\n", len(l.Players))
	for _, p := range l.Players {
		fmt.Printf("  - %s (%s) %s\n", p.Username, p.ID, p.Authority)
	}
}

func (o *Output) printLobbyList(l LobbyList) {
	if len(l.Lobbies) == 0 {
		fmt.Println("No open lobbies")
		return
	}
	fmt.Printf("Lobbies (%d):\n", len(l.Lobbies))
	for _, name := range l.Lobbies {
		fmt.Printf("  - %s\n", name)
	}
}

func (o *Output) printLobbyPlayers(l LobbyPlayers) {
	fmt.Printf("Lobby: %s\n", l.LobbyName)
	fmt.Printf("Players (%d):\n", len(l.Players))
	for _, id := range l.Players {
		fmt.Printf("  - %s\n", id)
	}
}

func (o *Output) printHistory(h History) {
	fmt.Printf("Player: %s\n", h.PlayerID)
	if len(h.States) == 0 {
		fmt.Println("No recorded states")
		return
	}
	for _, s := range h.States {
		stamp := s.Timestamp
		if stamp == "" {
			stamp = "-"
		}
		fmt.Printf("  (%d, %d) at %s\n", s.PositionX, s.PositionY, stamp)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Storage: %s\n", h.Storage)
	fmt.Printf("Connections: %d (%d authenticated)\n", h.Connections, h.Authenticated)
}
