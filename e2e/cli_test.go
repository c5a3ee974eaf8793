package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/blazers/internal/api"
	"github.com/mcoot/blazers/internal/factory"
	"github.com/mcoot/blazers/internal/services/auth"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	projectRoot := findProjectRoot(t)

	binaryPath := filepath.Join(t.TempDir(), "blazers-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/blazers")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

// withTokenFile returns a runner sharing the binary with its own token file
func (r *cliRunner) withTokenFile(t *testing.T) *cliRunner {
	return &cliRunner{
		binaryPath: r.binaryPath,
		serverURL:  r.serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) args(args ...string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(r.binaryPath, r.args(args...)...)
	cmd.Env = cliEnv()
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = cliEnv()
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// socketSession is a running `connect` command
type socketSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string
}

func (r *cliRunner) connect(t *testing.T, args ...string) *socketSession {
	t.Helper()

	cmd := exec.Command(r.binaryPath, r.args(append([]string{"connect", "--linger", "200ms"}, args...)...)...)
	cmd.Env = cliEnv()
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	s := &socketSession{cmd: cmd, stdin: stdin, lines: make(chan string, 64)}
	go func() {
		defer close(s.lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			s.lines <- scanner.Text()
		}
	}()

	t.Cleanup(func() {
		_ = s.stdin.Close()
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	})
	return s
}

func (s *socketSession) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(s.stdin, line+"\n")
	require.NoError(t, err)
}

// expect waits for an output line containing want
func (s *socketSession) expect(t *testing.T, want string) string {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				t.Fatalf("connection ended before %q", want)
			}
			if strings.Contains(line, want) {
				return line
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

// finish closes stdin and waits for the command to exit
func (s *socketSession) finish(t *testing.T) {
	t.Helper()
	require.NoError(t, s.stdin.Close())

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not exit after stdin closed")
	}
}

func cliEnv() []string {
	env := []string{}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "BLAZERS_") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	authCfg := auth.DefaultConfig()
	authCfg.Token.Secret = factory.TestJWTSecret
	authCfg.BcryptCost = 4

	ctx := context.Background()
	app, err := factory.New(ctx, factory.Config{
		AuthConfig: authCfg,
		Logger:     logger,
	})
	require.NoError(t, err)
	app.Start(ctx)

	server := api.NewServer(app.Router, api.DefaultServerConfig(), logger)
	server.OnShutdown(func() {
		_ = app.LobbySocket.Shutdown(context.Background())
	})

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type playerResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Authority string `json:"authority"`
}

type authResponse struct {
	Player playerResponse `json:"player"`
	Token  string         `json:"token"`
}

type claimsResponse struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

type playerListResponse struct {
	Players []playerResponse `json:"players"`
}

type lobbyListResponse struct {
	Lobbies []string `json:"lobbies"`
}

type lobbyPlayersResponse struct {
	LobbyName string   `json:"lobby_name"`
	Players   []string `json:"players"`
}

type historyResponse struct {
	PlayerID string `json:"player_id"`
	States   []struct {
		PositionX uint `json:"position_x"`
		PositionY uint `json:"position_y"`
	} `json:"states"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func signupAndLogin(t *testing.T, cli *cliRunner, username string) authResponse {
	t.Helper()

	output, err := cli.run("signup", "--user", username, "--email", username+"@example.com", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("login", "--user", username, "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	var resp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_AccountCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("signup", "--user", "alice", "--email", "alice@example.com", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	var player playerResponse
	require.NoError(t, json.Unmarshal([]byte(output), &player))
	assert.Equal(t, "alice", player.Username)
	assert.Equal(t, "alice@example.com", player.Email)

	// Login by email saves the token for later commands
	output, err = cli.run("login", "--email", "alice@example.com", "--pass", "hunter22")
	require.NoError(t, err, "output: %s", output)

	var authResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &authResp))
	assert.Equal(t, player.ID, authResp.Player.ID)

	saved, err := os.ReadFile(cli.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, authResp.Token, string(saved))

	output, err = cli.run("whoami")
	require.NoError(t, err, "output: %s", output)
	var me playerResponse
	require.NoError(t, json.Unmarshal([]byte(output), &me))
	assert.Equal(t, player.ID, me.ID)

	output, err = cli.run("whoami", "--verify")
	require.NoError(t, err, "output: %s", output)
	var claims claimsResponse
	require.NoError(t, json.Unmarshal([]byte(output), &claims))
	assert.Equal(t, player.ID, claims.PlayerID)
	assert.Equal(t, "alice", claims.Username)

	output, err = cli.run("players")
	require.NoError(t, err, "output: %s", output)
	var list playerListResponse
	require.NoError(t, json.Unmarshal([]byte(output), &list))
	require.Len(t, list.Players, 1)
	assert.Empty(t, list.Players[0].Email)
}

func TestCLI_LobbyOverSocket(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	aliceCLI := newCLIRunner(t, ts.addr)
	bobCLI := aliceCLI.withTokenFile(t)

	signupAndLogin(t, aliceCLI, "alice")
	bob := signupAndLogin(t, bobCLI, "bob")

	// Alice opens a socket and creates a lobby
	alice := aliceCLI.connect(t, "--create", "alpha")
	alice.expect(t, `"Authenticated"`)
	alice.expect(t, `"InLobby"`)

	output, err := aliceCLI.run("lobby", "list")
	require.NoError(t, err, "output: %s", output)
	var lobbies lobbyListResponse
	require.NoError(t, json.Unmarshal([]byte(output), &lobbies))
	assert.Equal(t, []string{"alpha"}, lobbies.Lobbies)

	// Bob joins, reports a position and disconnects
	bobSocket := bobCLI.connect(t, "--join", "alpha")
	bobSocket.expect(t, `"InLobby"`)
	bobSocket.send(t, "pos 4 9")

	alice.expect(t, "bob joined lobby alpha")
	relayed := alice.expect(t, `"GameState"`)
	assert.Contains(t, relayed, bob.Player.ID)
	assert.Contains(t, relayed, `"position_x":4`)

	output, err = aliceCLI.run("lobby", "players", "alpha")
	require.NoError(t, err, "output: %s", output)
	var members lobbyPlayersResponse
	require.NoError(t, json.Unmarshal([]byte(output), &members))
	assert.Len(t, members.Players, 2)
	assert.Contains(t, members.Players, bob.Player.ID)

	output, err = aliceCLI.run("history", bob.Player.ID)
	require.NoError(t, err, "output: %s", output)
	var history historyResponse
	require.NoError(t, json.Unmarshal([]byte(output), &history))
	require.Len(t, history.States, 1)
	assert.Equal(t, uint(4), history.States[0].PositionX)
	assert.Equal(t, uint(9), history.States[0].PositionY)

	bobSocket.finish(t)
	alice.expect(t, "bob left lobby alpha")

	// Alice moves on to a game
	alice.send(t, "start")
	alice.expect(t, "INVALID_TRANSITION")
	alice.send(t, "leave alpha")
	alice.expect(t, `"Authenticated"`)
	alice.send(t, "start")
	alice.expect(t, `"InGame"`)
	alice.send(t, "leave-game")
	alice.expect(t, `"Authenticated"`)
	alice.finish(t)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("whoami")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	output, err = cli.runWithToken("not-a-token", "connect")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid_token")

	signupAndLogin(t, cli, "alice")

	// unknown lobbies have no members rather than failing
	output, err = cli.run("lobby", "players", "missing")
	require.NoError(t, err, "output: %s", output)
	var members lobbyPlayersResponse
	require.NoError(t, json.Unmarshal([]byte(output), &members))
	assert.Equal(t, "missing", members.LobbyName)
	assert.Empty(t, members.Players)

	output, err = cli.run("history", "not-a-player-id")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid_request")

	output, err = cli.run("login", "--user", "alice", "--pass", "wrong-password")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid_credentials")
}
