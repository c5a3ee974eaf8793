package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/blazers/internal/protocol"
)

// errQuit ends an interactive session without sending a frame
var errQuit = errors.New("quit")

func newConnectCmd() *cobra.Command {
	var create, join string
	var linger time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive lobby socket",
		Long: `Open the lobby socket and print every frame the server sends.

Each line read from stdin is sent as one frame. Raw JSON objects are sent
as typed. The following shorthands are also understood:

  auth <jwt>           authenticate the connection
  create <lobby>       create a lobby and join it
  join <lobby>         join an existing lobby
  leave <lobby>        leave a lobby
  start                start a game
  leave-game           leave the current game
  pos <x> <y>          report a position
  quit                 close the connection`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if create != "" && join != "" {
				return fmt.Errorf("--create and --join cannot be combined")
			}

			var initial [][]byte
			switch {
			case create != "":
				frame, err := protocol.Encode(protocol.CreateLobby{LobbyName: create})
				if err != nil {
					return err
				}
				initial = append(initial, frame)
			case join != "":
				frame, err := protocol.Encode(protocol.JoinLobby{LobbyName: join})
				if err != nil {
					return err
				}
				initial = append(initial, frame)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runConnect(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), connectOptions{
				initial:    initial,
				linger:     linger,
				jsonOutput: jsonOutput || cfg.Output == "json",
			})
		},
	}

	cmd.Flags().StringVar(&create, "create", "", "Create and join this lobby once connected")
	cmd.Flags().StringVar(&join, "join", "", "Join this lobby once connected")
	cmd.Flags().DurationVar(&linger, "linger", time.Second, "How long to keep printing frames after stdin closes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print frames as raw JSON lines")

	return cmd
}

type connectOptions struct {
	initial    [][]byte
	linger     time.Duration
	jsonOutput bool
}

func runConnect(ctx context.Context, in io.Reader, out io.Writer, opts connectOptions) error {
	socketURL, err := cfg.SocketURL()
	if err != nil {
		return err
	}

	conn, err := dialLobby(ctx, socketURL, cfg.Token)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if cfg.Verbose {
		_, _ = fmt.Fprintf(os.Stderr, "Connected to %s\n", socketURL)
	}

	var writeMu sync.Mutex
	send := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	received := make(chan error, 1)
	go func() {
		received <- printFrames(conn, out, opts.jsonOutput)
	}()

	for _, frame := range opts.initial {
		if err := send(frame); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return closeSocket(conn, &writeMu, received, 0)
		case err := <-received:
			return err
		case line, ok := <-lines:
			if !ok {
				return closeSocket(conn, &writeMu, received, opts.linger)
			}
			frame, err := parseLine(line)
			if errors.Is(err, errQuit) {
				return closeSocket(conn, &writeMu, received, 0)
			}
			if err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				continue
			}
			if frame == nil {
				continue
			}
			if err := send(frame); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func dialLobby(ctx context.Context, socketURL, token string) (*websocket.Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, socketURL, header)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(resp.Body)
			var errResp ErrorResponse
			if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Code != "" {
				return nil, fmt.Errorf("%s", errResp.Error.String())
			}
			return nil, fmt.Errorf("HTTP %d: connection refused", resp.StatusCode)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return conn, nil
}

// closeSocket sends a close frame and keeps reading until the server closes
// or the linger period ends
func closeSocket(conn *websocket.Conn, writeMu *sync.Mutex, received <-chan error, linger time.Duration) error {
	if linger > 0 {
		select {
		case err := <-received:
			return err
		case <-time.After(linger):
		}
	}

	writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	writeMu.Unlock()
	if err != nil {
		return nil
	}

	select {
	case <-received:
	case <-time.After(time.Second):
	}
	return nil
}

func printFrames(conn *websocket.Conn, out io.Writer, jsonOutput bool) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("server closed connection: %s", closeErr.Text)
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		_, _ = fmt.Fprintln(out, formatFrame(data, jsonOutput))
	}
}

func formatFrame(data []byte, jsonOutput bool) string {
	trimmed := bytes.TrimSpace(data)
	if jsonOutput || len(trimmed) == 0 || trimmed[0] != '{' {
		return string(trimmed)
	}

	var env struct {
		Type    string          `json:"type"`
		State   json.RawMessage `json:"state"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Request string          `json:"request"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return string(trimmed)
	}

	switch env.Type {
	case protocol.TypeSynchronizeState:
		return "state: " + string(env.State)
	case protocol.TypeError:
		if env.Request != "" {
			return fmt.Sprintf("error: %s (%s) in response to %s", env.Message, env.Code, env.Request)
		}
		return fmt.Sprintf("error: %s (%s)", env.Message, env.Code)
	default:
		return string(trimmed)
	}
}

// parseLine turns one stdin line into a frame. Blank lines produce no frame.
func parseLine(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.HasPrefix(line, "{") {
		if !json.Valid([]byte(line)) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return []byte(line), nil
	}

	fields := strings.Fields(line)
	verb, rest := fields[0], fields[1:]

	arg := func() (string, error) {
		if len(rest) != 1 {
			return "", fmt.Errorf("usage: %s <lobby>", verb)
		}
		return rest[0], nil
	}

	switch verb {
	case "quit", "exit":
		return nil, errQuit
	case "auth":
		if len(rest) != 1 {
			return nil, fmt.Errorf("usage: auth <jwt>")
		}
		return protocol.Encode(protocol.Auth{JWT: rest[0]})
	case "create":
		name, err := arg()
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.CreateLobby{LobbyName: name})
	case "join":
		name, err := arg()
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.JoinLobby{LobbyName: name})
	case "leave":
		name, err := arg()
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.LeaveLobby{LobbyName: name})
	case "start":
		return protocol.Encode(protocol.StartGame{})
	case "leave-game":
		return protocol.Encode(protocol.LeaveGame{})
	case "pos":
		if len(rest) != 2 {
			return nil, fmt.Errorf("usage: pos <x> <y>")
		}
		x, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid x: %w", err)
		}
		y, err := strconv.ParseUint(rest[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid y: %w", err)
		}
		return protocol.Encode(protocol.GameState{
			PositionX: uint(x),
			PositionY: uint(y),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}
