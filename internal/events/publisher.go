// Package events publishes lobby membership changes to observers outside
// the process.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/blazers/internal/model"
)

// Publisher delivers lobby events. Implementations must not block for long;
// they are called from the lobby registry's processing loop.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// LogPublisher writes each event to a structured logger
type LogPublisher struct {
	logger *slog.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With(slog.String("component", "events"))}
}

// Publish logs the event at info level
func (p *LogPublisher) Publish(_ context.Context, event model.Event) error {
	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.String("lobby", event.LobbyName),
		slog.String("lobby_id", event.LobbyID.String()),
	}
	if event.PlayerID != nil {
		attrs = append(attrs, slog.String("player_id", event.PlayerID.String()))
	}
	p.logger.Info("lobby event", attrs...)
	return nil
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

var _ Publisher = (*Recorder)(nil)

// Publish appends the event
func (r *Recorder) Publish(_ context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns the recorded events in publish order
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}
