package ws

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/protocol"
)

// Handler processes one decoded frame. state is the connection's current
// session state, or the zero value for an unauthenticated connection.
type Handler func(ctx context.Context, c *Connection, state model.SessionState, frame protocol.Frame) error

type route struct {
	handle Handler
	// public routes run before the connection is authenticated
	public bool
}

// Dispatcher routes inbound frames to handlers by frame type
type Dispatcher struct {
	sessions Sessions
	routes   map[string]route
}

// NewDispatcher creates a dispatcher with no routes
func NewDispatcher(sessions Sessions) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		routes:   make(map[string]route),
	}
}

// Handle registers h for frames of type t that require authentication
func (d *Dispatcher) Handle(t string, h Handler) {
	d.routes[t] = route{handle: h}
}

// HandlePublic registers h for frames of type t that may arrive before
// authentication
func (d *Dispatcher) HandlePublic(t string, h Handler) {
	d.routes[t] = route{handle: h, public: true}
}

// Dispatch decodes data and runs the matching handler. Failures are
// reported to the client as error frames and never end the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Connection, data []byte) {
	logger := c.log()

	frame, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrNotJSON) {
			logger.Debug("ignoring non-JSON text frame", slog.Int("size", len(data)))
			return
		}
		logger.Warn("dropping unparseable frame", slog.String("error", err.Error()))
		c.Send(protocol.EncodeError("", err))
		return
	}

	t := frame.FrameType()
	r, ok := d.routes[t]
	if !ok {
		logger.Warn("no handler for frame", slog.String("frame_type", t))
		c.Send(protocol.EncodeError(t, protocol.ErrUnknownFrameType))
		return
	}

	state, authenticated, err := d.sessions.GetState(ctx, c.ID())
	if err != nil {
		logger.Error("failed to read session state", slog.String("error", err.Error()))
		c.Send(protocol.EncodeError(t, err))
		return
	}
	if !authenticated && !r.public {
		logger.Warn("frame from unauthenticated connection rejected", slog.String("frame_type", t))
		c.Send(protocol.EncodeError(t, model.ErrNotAuthenticated))
		return
	}
	c.cache(state, authenticated)

	if err := r.handle(ctx, c, state, frame); err != nil {
		logger.Warn("frame handling failed",
			slog.String("frame_type", t),
			slog.String("error", err.Error()),
		)
		c.Send(protocol.EncodeError(t, err))
	}
}
