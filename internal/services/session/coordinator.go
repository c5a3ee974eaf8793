// Package session owns the authoritative per-connection session state.
//
// The Coordinator is a single goroutine that processes one request at a time
// from its mailbox. Every map it holds is touched only from that goroutine, so
// each operation observes the effects of every operation accepted before it.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/blazers/internal/history"
	"github.com/mcoot/blazers/internal/model"
)

// Recipient is the outbound side of a live connection
type Recipient interface {
	// Send queues a text frame without blocking. It returns false if the
	// frame was dropped.
	Send(frame []byte) bool
	// Close stops the connection. Used when a reconnect supersedes it.
	Close()
}

// Config holds coordinator settings
type Config struct {
	HistorySize int
	MailboxSize int
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		HistorySize: history.DefaultSize,
		MailboxSize: 256,
	}
}

// Stats summarises what the coordinator currently tracks
type Stats struct {
	Connections   int `json:"connections"`
	Authenticated int `json:"authenticated"`
}

type request struct {
	fn   func()
	done chan struct{}
}

// Coordinator serialises all reads and writes of session state
type Coordinator struct {
	cfg     Config
	logger  *slog.Logger
	mailbox chan request
	stopped chan struct{}

	// Owned by the Run goroutine
	states     map[model.ConnectionID]model.SessionState
	byPlayer   map[model.PlayerID]model.ConnectionID
	recipients map[model.ConnectionID]Recipient
	histories  map[model.PlayerID]*history.Ring[model.GameState]
}

// New creates a Coordinator. Call Run to start processing.
func New(cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = history.DefaultSize
	}
	return &Coordinator{
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "session")),
		mailbox:    make(chan request, cfg.MailboxSize),
		stopped:    make(chan struct{}),
		states:     make(map[model.ConnectionID]model.SessionState),
		byPlayer:   make(map[model.PlayerID]model.ConnectionID),
		recipients: make(map[model.ConnectionID]Recipient),
		histories:  make(map[model.PlayerID]*history.Ring[model.GameState]),
	}
}

// Run processes requests until ctx is cancelled
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)
	c.logger.Info("session coordinator started")
	for {
		select {
		case req := <-c.mailbox:
			req.fn()
			close(req.done)
		case <-ctx.Done():
			c.logger.Info("session coordinator stopped")
			return
		}
	}
}

// do enqueues fn and waits for it to run. Once accepted a request always
// runs to completion; ctx only bounds the wait for mailbox space.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case c.mailbox <- req:
	case <-c.stopped:
		return model.ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-c.stopped:
		return model.ErrCoordinatorStopped
	}
}

// Attach records the outbound handle of a new connection. A connection
// may be attached before it is authenticated.
func (c *Coordinator) Attach(ctx context.Context, conn model.ConnectionID, r Recipient) error {
	return c.do(ctx, func() {
		c.recipients[conn] = r
	})
}

// RegisterConnection creates the Authenticated state for conn. Registering
// the same connection again overwrites its state. A player already held by
// another connection is refused with ErrDuplicateLogin.
func (c *Coordinator) RegisterConnection(ctx context.Context, conn model.ConnectionID, player model.PlayerID) error {
	var err error
	doErr := c.do(ctx, func() {
		err = c.register(conn, player)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (c *Coordinator) register(conn model.ConnectionID, player model.PlayerID) error {
	if holder, ok := c.byPlayer[player]; ok && holder != conn {
		c.logger.Warn("refusing registration, player held by another connection",
			slog.String("connection_id", conn.String()),
			slog.String("player_id", player.String()),
			slog.String("holder", holder.String()),
		)
		return model.ErrDuplicateLogin
	}
	if prev, ok := c.states[conn]; ok {
		c.logger.Info("overwriting state for registered connection",
			slog.String("connection_id", conn.String()),
			slog.String("previous", prev.String()),
		)
		if prev.PlayerID != player && c.byPlayer[prev.PlayerID] == conn {
			delete(c.byPlayer, prev.PlayerID)
			delete(c.histories, prev.PlayerID)
		}
	}
	c.states[conn] = model.Authenticated(player)
	c.byPlayer[player] = conn
	if _, ok := c.histories[player]; !ok {
		c.histories[player] = history.NewRing[model.GameState](c.cfg.HistorySize)
	}
	c.logger.Debug("connection registered",
		slog.String("connection_id", conn.String()),
		slog.String("player_id", player.String()),
	)
	return nil
}

// CheckExistingConnection looks for a session already held by player on a
// different connection. If one exists its state moves to conn, the stale
// connection is closed and true is returned.
func (c *Coordinator) CheckExistingConnection(ctx context.Context, conn model.ConnectionID, player model.PlayerID) (bool, error) {
	var (
		found  bool
		refuse error
	)
	err := c.do(ctx, func() {
		if current, ok := c.states[conn]; ok && current.PlayerID != player {
			refuse = fmt.Errorf("%w: connection already holds %s", model.ErrInvalidTransition, current)
			return
		}
		old, ok := c.byPlayer[player]
		if !ok {
			return
		}
		found = true
		if old == conn {
			return
		}

		c.states[conn] = c.states[old]
		c.byPlayer[player] = conn
		delete(c.states, old)
		if stale, ok := c.recipients[old]; ok {
			delete(c.recipients, old)
			stale.Close()
		}
		c.logger.Info("session migrated to new connection",
			slog.String("player_id", player.String()),
			slog.String("from", old.String()),
			slog.String("to", conn.String()),
			slog.String("state", c.states[conn].String()),
		)
	})
	if err != nil {
		return false, err
	}
	return found, refuse
}

// Transition applies ev to the state of conn and returns the resulting
// state. Login creates the Authenticated state and is refused if conn
// already has a state or the player is held elsewhere. Rejected
// transitions leave the state unchanged.
func (c *Coordinator) Transition(ctx context.Context, conn model.ConnectionID, ev model.UserEvent) (model.SessionState, error) {
	var (
		next model.SessionState
		err  error
	)
	doErr := c.do(ctx, func() {
		next, err = c.transition(conn, ev)
	})
	if doErr != nil {
		return model.SessionState{}, doErr
	}
	return next, err
}

func (c *Coordinator) transition(conn model.ConnectionID, ev model.UserEvent) (model.SessionState, error) {
	logger := c.logger.With(
		slog.String("connection_id", conn.String()),
		slog.String("event", ev.String()),
	)

	current, ok := c.states[conn]
	if ev.Kind == model.EventLogin {
		if ok {
			logger.Warn("login rejected, connection already has state", slog.String("state", current.String()))
			return current, fmt.Errorf("%w: %s on %s", model.ErrInvalidTransition, ev, current)
		}
		if holder, held := c.byPlayer[ev.PlayerID]; held && holder != conn {
			logger.Warn("login rejected, player held by another connection", slog.String("holder", holder.String()))
			return model.SessionState{}, model.ErrDuplicateLogin
		}
		if err := c.register(conn, ev.PlayerID); err != nil {
			return model.SessionState{}, err
		}
		return c.states[conn], nil
	}

	if !ok {
		logger.Warn("transition for unregistered connection dropped")
		return model.SessionState{}, model.ErrConnectionNotRegistered
	}

	next, err := current.Apply(ev)
	if err != nil {
		logger.Warn("transition rejected", slog.String("state", current.String()))
		return current, err
	}
	c.states[conn] = next
	logger.Debug("transition applied",
		slog.String("from", current.String()),
		slog.String("to", next.String()),
	)
	return next, nil
}

// GetState returns the state of conn, if it has one
func (c *Coordinator) GetState(ctx context.Context, conn model.ConnectionID) (model.SessionState, bool, error) {
	var (
		state model.SessionState
		ok    bool
	)
	err := c.do(ctx, func() {
		state, ok = c.states[conn]
	})
	return state, ok, err
}

// SetState overwrites the state of a registered connection. The new
// state must belong to the same player.
func (c *Coordinator) SetState(ctx context.Context, conn model.ConnectionID, state model.SessionState) error {
	var err error
	doErr := c.do(ctx, func() {
		current, ok := c.states[conn]
		if !ok {
			c.logger.Warn("set state for unregistered connection", slog.String("connection_id", conn.String()))
			err = model.ErrConnectionNotRegistered
			return
		}
		if !state.Valid() || state.PlayerID != current.PlayerID {
			err = fmt.Errorf("%w: cannot replace %s with %s", model.ErrPlayerMismatch, current, state)
			return
		}
		c.states[conn] = state
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// DeleteState removes the state of conn and the player's history. The
// connection stays attached and may log in again.
func (c *Coordinator) DeleteState(ctx context.Context, conn model.ConnectionID) error {
	var err error
	doErr := c.do(ctx, func() {
		state, ok := c.states[conn]
		if !ok {
			err = model.ErrStateNotRegistered
			return
		}
		c.forget(conn, state)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Disconnect removes everything held for conn and returns the state it had.
// It never fails; an unknown connection is a no-op.
func (c *Coordinator) Disconnect(ctx context.Context, conn model.ConnectionID) (model.SessionState, bool) {
	var (
		state model.SessionState
		ok    bool
	)
	err := c.do(ctx, func() {
		delete(c.recipients, conn)
		state, ok = c.states[conn]
		if ok {
			c.forget(conn, state)
		}
	})
	if err != nil {
		c.logger.Warn("disconnect not processed",
			slog.String("connection_id", conn.String()),
			slog.String("error", err.Error()),
		)
		return model.SessionState{}, false
	}
	return state, ok
}

func (c *Coordinator) forget(conn model.ConnectionID, state model.SessionState) {
	delete(c.states, conn)
	if c.byPlayer[state.PlayerID] == conn {
		delete(c.byPlayer, state.PlayerID)
		delete(c.histories, state.PlayerID)
	}
	c.logger.Debug("session removed",
		slog.String("connection_id", conn.String()),
		slog.String("state", state.String()),
	)
}

// RecordGameState appends snapshot to the history of the player
// authenticated on conn and returns that connection's state. The snapshot
// must name the same player.
func (c *Coordinator) RecordGameState(ctx context.Context, conn model.ConnectionID, snapshot model.GameState) (model.SessionState, error) {
	var (
		state model.SessionState
		err   error
	)
	doErr := c.do(ctx, func() {
		var ok bool
		state, ok = c.states[conn]
		if !ok {
			err = model.ErrNotAuthenticated
			return
		}
		if snapshot.PlayerID != state.PlayerID {
			err = model.ErrPlayerMismatch
			return
		}
		ring, ok := c.histories[state.PlayerID]
		if !ok {
			ring = history.NewRing[model.GameState](c.cfg.HistorySize)
			c.histories[state.PlayerID] = ring
		}
		ring.Push(snapshot)
	})
	if doErr != nil {
		return model.SessionState{}, doErr
	}
	return state, err
}

// History returns the retained snapshots of player from oldest to newest
func (c *Coordinator) History(ctx context.Context, player model.PlayerID) ([]model.GameState, error) {
	var out []model.GameState
	err := c.do(ctx, func() {
		if ring, ok := c.histories[player]; ok {
			out = ring.Recent()
		}
	})
	return out, err
}

// HistorySlots returns the raw ring contents of player in slot order
func (c *Coordinator) HistorySlots(ctx context.Context, player model.PlayerID) ([]*model.GameState, error) {
	var out []*model.GameState
	err := c.do(ctx, func() {
		if ring, ok := c.histories[player]; ok {
			out = ring.Snapshot()
		}
	})
	return out, err
}

// Deliver sends frame to the live connection of each player except
// exclude and returns how many connections accepted it. Players without a
// live connection are skipped.
func (c *Coordinator) Deliver(ctx context.Context, players []model.PlayerID, exclude model.PlayerID, frame []byte) (int, error) {
	var delivered int
	err := c.do(ctx, func() {
		for _, p := range players {
			if p == exclude {
				continue
			}
			conn, ok := c.byPlayer[p]
			if !ok {
				continue
			}
			r, ok := c.recipients[conn]
			if !ok {
				continue
			}
			if r.Send(frame) {
				delivered++
			} else {
				c.logger.Warn("frame dropped for slow connection",
					slog.String("connection_id", conn.String()),
					slog.String("player_id", p.String()),
				)
			}
		}
	})
	return delivered, err
}

// Stats reports the number of attached and authenticated connections
func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.do(ctx, func() {
		st = Stats{Connections: len(c.recipients), Authenticated: len(c.states)}
	})
	return st, err
}
