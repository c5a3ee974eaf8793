// Package lobby keeps the set of named lobbies and their members.
package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/events"
	"github.com/mcoot/blazers/internal/model"
)

// MaxNameLength bounds lobby names
const MaxNameLength = 64

type lobby struct {
	id      model.LobbyID
	name    string
	members map[model.PlayerID]struct{}
}

type request struct {
	fn   func()
	done chan struct{}
}

// Registry owns every lobby. Like the session coordinator it is a single
// goroutine draining a mailbox, so membership changes apply in arrival order.
type Registry struct {
	logger    *slog.Logger
	clock     clock.Clock
	publisher events.Publisher
	mailbox   chan request
	stopped   chan struct{}

	// Owned by the Run goroutine
	lobbies map[string]*lobby
}

// NewRegistry creates a Registry. Call Run to start processing.
func NewRegistry(publisher events.Publisher, clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With(slog.String("component", "lobby")),
		clock:     clock,
		publisher: publisher,
		mailbox:   make(chan request, 256),
		stopped:   make(chan struct{}),
		lobbies:   make(map[string]*lobby),
	}
}

// Run processes requests until ctx is cancelled
func (r *Registry) Run(ctx context.Context) {
	defer close(r.stopped)
	r.logger.Info("lobby registry started")
	for {
		select {
		case req := <-r.mailbox:
			req.fn()
			close(req.done)
		case <-ctx.Done():
			r.logger.Info("lobby registry stopped")
			return
		}
	}
}

func (r *Registry) do(ctx context.Context, fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case r.mailbox <- req:
	case <-r.stopped:
		return model.ErrCoordinatorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-r.stopped:
		return model.ErrCoordinatorStopped
	}
}

// ValidateName checks a lobby name before it reaches the registry
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q", model.ErrInvalidLobbyName, name)
	}
	return nil
}

// NewLobby creates an empty lobby called name
func (r *Registry) NewLobby(ctx context.Context, name string) (model.LobbyID, error) {
	if err := ValidateName(name); err != nil {
		return model.LobbyID{}, err
	}
	var (
		id  model.LobbyID
		err error
	)
	doErr := r.do(ctx, func() {
		id, err = r.create(name)
	})
	if doErr != nil {
		return model.LobbyID{}, doErr
	}
	return id, err
}

// CreateAndJoin creates the lobby and adds player in one step, so the new
// lobby cannot be pruned as empty before its creator joins
func (r *Registry) CreateAndJoin(ctx context.Context, name string, player model.PlayerID) (model.LobbyID, error) {
	if err := ValidateName(name); err != nil {
		return model.LobbyID{}, err
	}
	var (
		id  model.LobbyID
		err error
	)
	doErr := r.do(ctx, func() {
		id, err = r.create(name)
		if err == nil {
			_, err = r.add(player, name)
		}
	})
	if doErr != nil {
		return model.LobbyID{}, doErr
	}
	return id, err
}

func (r *Registry) create(name string) (model.LobbyID, error) {
	if _, ok := r.lobbies[name]; ok {
		r.logger.Info("lobby already exists", slog.String("lobby", name))
		return model.LobbyID{}, fmt.Errorf("%w: %s", model.ErrLobbyAlreadyExists, name)
	}
	l := &lobby{
		id:      model.NewLobbyID(),
		name:    name,
		members: make(map[model.PlayerID]struct{}),
	}
	r.lobbies[name] = l
	r.logger.Info("lobby created", slog.String("lobby", name), slog.String("lobby_id", l.id.String()))
	r.publish(model.EventLobbyCreated, l, nil)
	return l.id, nil
}

// AddPlayer adds player to the lobby called name and returns its id
func (r *Registry) AddPlayer(ctx context.Context, player model.PlayerID, name string) (model.LobbyID, error) {
	var (
		id  model.LobbyID
		err error
	)
	doErr := r.do(ctx, func() {
		id, err = r.add(player, name)
	})
	if doErr != nil {
		return model.LobbyID{}, doErr
	}
	return id, err
}

func (r *Registry) add(player model.PlayerID, name string) (model.LobbyID, error) {
	l, ok := r.lobbies[name]
	if !ok {
		return model.LobbyID{}, fmt.Errorf("%w: %s", model.ErrLobbyDoesNotExist, name)
	}
	if _, member := l.members[player]; !member {
		l.members[player] = struct{}{}
		r.publish(model.EventPlayerJoined, l, &player)
	}
	return l.id, nil
}

// RemovePlayer removes player from the lobby called name. The lobby is
// kept even when it becomes empty; ListLobbies prunes it later.
func (r *Registry) RemovePlayer(ctx context.Context, player model.PlayerID, name string) error {
	var err error
	doErr := r.do(ctx, func() {
		l, ok := r.lobbies[name]
		if !ok {
			err = fmt.Errorf("%w: %s", model.ErrLobbyDoesNotExist, name)
			return
		}
		if _, member := l.members[player]; !member {
			err = fmt.Errorf("%w: %s", model.ErrPlayerIsNotInLobby, name)
			return
		}
		delete(l.members, player)
		r.publish(model.EventPlayerLeft, l, &player)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// ListLobbies removes every empty lobby and returns the remaining names
// in sorted order
func (r *Registry) ListLobbies(ctx context.Context) ([]string, error) {
	var names []string
	err := r.do(ctx, func() {
		r.removeEmpty()
		names = make([]string, 0, len(r.lobbies))
		for name := range r.lobbies {
			names = append(names, name)
		}
	})
	sort.Strings(names)
	return names, err
}

func (r *Registry) removeEmpty() {
	for name, l := range r.lobbies {
		if len(l.members) > 0 {
			continue
		}
		r.logger.Info("removing empty lobby", slog.String("lobby", name))
		delete(r.lobbies, name)
		r.publish(model.EventLobbyPruned, l, nil)
	}
}

// PlayersInLobby returns the members of the lobby called name in a stable
// order. An unknown lobby has no players.
func (r *Registry) PlayersInLobby(ctx context.Context, name string) ([]model.PlayerID, error) {
	var players []model.PlayerID
	err := r.do(ctx, func() {
		l, ok := r.lobbies[name]
		if !ok {
			return
		}
		players = make([]model.PlayerID, 0, len(l.members))
		for p := range l.members {
			players = append(players, p)
		}
	})
	sort.Slice(players, func(i, j int) bool {
		return players[i].String() < players[j].String()
	})
	if players == nil {
		players = []model.PlayerID{}
	}
	return players, err
}

func (r *Registry) publish(t model.EventType, l *lobby, player *model.PlayerID) {
	event := model.Event{
		Type:      t,
		Timestamp: r.clock.Now(),
		LobbyID:   l.id,
		LobbyName: l.name,
		PlayerID:  player,
	}
	if err := r.publisher.Publish(context.Background(), event); err != nil {
		r.logger.Warn("failed to publish lobby event",
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
	}
}
