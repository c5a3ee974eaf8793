package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/blazers/internal/middleware"
	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/protocol"
	"github.com/mcoot/blazers/internal/services/session"
)

// Connection is the session of one live socket. It owns the socket, runs
// the heartbeat and forwards decoded frames to the dispatcher. Its cached
// state is a copy; the session coordinator holds the authoritative one.
type Connection struct {
	id     model.ConnectionID
	conn   *websocket.Conn
	srv    *Server
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	openedAt  time.Time

	mu           sync.Mutex
	lastSeen     time.Time
	state        model.SessionState
	hasState     bool
	username     string
	authFailures int
}

var _ session.Recipient = (*Connection)(nil)

func newConnection(srv *Server, conn *websocket.Conn) *Connection {
	id := model.NewConnectionID()
	now := srv.clock.Now()
	return &Connection{
		id:       id,
		conn:     conn,
		srv:      srv,
		logger:   srv.logger.With(slog.String("connection_id", id.String())),
		send:     make(chan []byte, srv.cfg.SendBuffer),
		done:     make(chan struct{}),
		openedAt: now,
		lastSeen: now,
	}
}

// ID returns the connection id
func (c *Connection) ID() model.ConnectionID {
	return c.id
}

// Send queues a text frame. It never blocks; a full queue drops the frame.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.log().Warn("outbound frame dropped, send buffer full")
		return false
	}
}

// Close stops the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// State returns the cached session state
func (c *Connection) State() (model.SessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.hasState
}

func (c *Connection) cache(state model.SessionState, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok && (!c.hasState || c.state.PlayerID != state.PlayerID) {
		c.logger = c.logger.With(slog.String("player_id", state.PlayerID.String()))
	}
	c.state, c.hasState = state, ok
}

func (c *Connection) log() *slog.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

func (c *Connection) touch() {
	now := c.srv.clock.Now()
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Connection) idle() time.Duration {
	c.mu.Lock()
	last := c.lastSeen
	c.mu.Unlock()
	return c.srv.clock.Since(last)
}

func (c *Connection) setUsername(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

// displayName is the name used in peer notices
func (c *Connection) displayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.username != "" {
		return c.username
	}
	if c.hasState {
		return c.state.PlayerID.String()
	}
	return c.id.String()
}

func (c *Connection) authFailed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authFailures++
	return c.authFailures
}

// sync caches state and sends it to the client
func (c *Connection) sync(state model.SessionState) {
	c.cache(state, true)
	frame, err := protocol.EncodeSynchronizeState(state)
	if err != nil {
		c.log().Error("failed to encode state", slog.String("error", err.Error()))
		return
	}
	c.Send(frame)
}

// serve runs the connection until the socket closes. player is the id
// resolved from the upgrade request, or nil when the client must send an
// Auth frame first.
func (c *Connection) serve(ctx context.Context, player *model.PlayerID) {
	defer c.conn.Close()
	c.log().Info("connection opened", slog.Bool("pre_authenticated", player != nil))

	if err := c.start(ctx, player); err != nil {
		c.log().Warn("connection rejected", slog.String("error", err.Error()))
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait))
		_ = c.conn.WriteMessage(websocket.TextMessage, protocol.EncodeError(protocol.TypeAuth, err))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rejected"))
		c.stop(ctx)
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if !middleware.Guard(c.log(), "write pump", func() { c.writePump(ctx) }) {
			c.Close()
		}
	}()

	c.readPump(ctx)
	c.Close()
	<-writerDone
	c.stop(ctx)
}

func (c *Connection) start(ctx context.Context, player *model.PlayerID) error {
	if err := c.srv.sessions.Attach(ctx, c.id, c); err != nil {
		return err
	}
	if player == nil {
		return nil
	}

	found, err := c.srv.sessions.CheckExistingConnection(ctx, c.id, *player)
	if err != nil {
		return err
	}
	if found {
		state, ok, err := c.srv.sessions.GetState(ctx, c.id)
		if err != nil {
			return err
		}
		c.log().Info("reconnected, session migrated")
		if ok {
			c.sync(state)
		}
		return nil
	}

	if err := c.srv.sessions.RegisterConnection(ctx, c.id, *player); err != nil {
		return err
	}
	c.sync(model.Authenticated(*player))
	return nil
}

// stop releases everything the coordinators hold for this connection. It
// runs after the request context may already be cancelled.
func (c *Connection) stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.srv.cfg.CleanupTimeout)
	defer cancel()

	state, ok := c.srv.sessions.Disconnect(ctx, c.id)
	if ok && state.Kind == model.StateInLobby {
		if err := c.srv.lobbies.RemovePlayer(ctx, state.PlayerID, state.LobbyName); err != nil {
			c.log().Debug("lobby cleanup skipped", slog.String("error", err.Error()))
		} else {
			c.srv.announce(ctx, state.LobbyName, state.PlayerID, c.displayName()+" left lobby "+state.LobbyName)
		}
	}
	c.log().Info("connection closed", slog.Duration("connection_duration", c.srv.clock.Since(c.openedAt)))
}

func (c *Connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.srv.cfg.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	c.conn.SetPingHandler(func(data string) error {
		c.touch()
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.srv.cfg.WriteWait))
		if err != nil {
			c.log().Debug("failed to answer ping", slog.String("error", err.Error()))
		}
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				c.log().Warn("connection closed unexpectedly", slog.String("error", err.Error()))
			} else {
				c.log().Debug("read loop finished", slog.String("error", err.Error()))
			}
			return
		}
		c.touch()

		switch msgType {
		case websocket.TextMessage:
			c.srv.dispatcher.Dispatch(ctx, c, data)
		case websocket.BinaryMessage:
			c.log().Warn("unexpected binary frame ignored", slog.Int("size", len(data)))
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.srv.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log().Debug("write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if !c.heartbeat() {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.srv.cfg.WriteWait))
			return
		case <-ctx.Done():
			return
		}
	}
}

// flush writes frames queued before the connection was closed
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// heartbeat pings a live client and resends its state. It reports false
// when the client has been silent past the timeout or the socket failed.
func (c *Connection) heartbeat() bool {
	if idle := c.idle(); idle > c.srv.cfg.ClientTimeout {
		c.log().Info("heartbeat timed out, closing connection", slog.Duration("idle", idle))
		c.Close()
		return false
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.srv.cfg.WriteWait)); err != nil {
		c.log().Debug("ping failed", slog.String("error", err.Error()))
		return false
	}
	if state, ok := c.State(); ok {
		frame, err := protocol.EncodeSynchronizeState(state)
		if err == nil {
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return false
			}
		}
	}
	return true
}

func (c *Connection) write(msgType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(msgType, data)
}
