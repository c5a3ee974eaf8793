// Package ws serves the lobby websocket. Each accepted socket becomes a
// Connection that authenticates, heartbeats and dispatches protocol frames
// against the session coordinator and the lobby registry.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mcoot/blazers/internal/api/apierr"
	"github.com/mcoot/blazers/internal/api/middleware"
	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/model"
)

// Server upgrades HTTP requests to lobby connections
type Server struct {
	cfg        Config
	sessions   Sessions
	lobbies    Lobbies
	tokens     TokenDecoder
	clock      clock.Clock
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	dispatcher *Dispatcher

	mu     sync.Mutex
	active map[model.ConnectionID]*Connection
	wg     sync.WaitGroup
}

// NewServer creates a lobby socket server
func NewServer(cfg Config, sessions Sessions, lobbies Lobbies, tokens TokenDecoder, clock clock.Clock, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		lobbies:  lobbies,
		tokens:   tokens,
		clock:    clock,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		dispatcher: NewDispatcher(sessions),
		active:     make(map[model.ConnectionID]*Connection),
	}
	s.routes()
	return s
}

// ServeHTTP upgrades the request and serves the connection until it
// closes. A token on the request authenticates the connection up front;
// without one the client must send an Auth frame. A token taken from the
// cookie is only accepted from the server's own or an allowed origin.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		player   *model.PlayerID
		username string
	)
	token, fromCookie := middleware.TokenFromRequest(r)
	if fromCookie && !s.originAllowed(r) {
		s.logger.Warn("lobby upgrade with cookie from foreign origin", slog.String("origin", r.Header.Get("Origin")))
		apierr.WriteError(w, apierr.NewOriginNotAllowedError())
		return
	}
	if token != "" {
		claims, err := s.tokens.Decode(token)
		if err != nil {
			s.logger.Warn("lobby upgrade with invalid token", slog.String("error", err.Error()))
			apierr.WriteError(w, err)
			return
		}
		id, err := claims.PlayerID()
		if err != nil {
			apierr.WriteError(w, err)
			return
		}
		player = &id
		username = claims.Username
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newConnection(s, conn)
	c.setUsername(username)

	s.track(c)
	defer s.untrack(c)
	c.serve(r.Context(), player)
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[c.ID()] = c
	s.wg.Add(1)
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	delete(s.active, c.ID())
	s.mu.Unlock()
	s.wg.Done()
}

// ActiveConnections returns the number of open sockets
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown closes every open socket and waits for their sessions to be
// cleaned up or for ctx to end. Hijacked sockets are not covered by
// http.Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.active {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
