package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players       map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex map[string]model.PlayerID
	emailIndex    map[string]model.PlayerID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:       make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex: make(map[string]model.PlayerID),
		emailIndex:    make(map[string]model.PlayerID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreatePlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernameIndex[rp.Username]; ok {
		return model.ErrUsernameExists
	}
	if _, ok := s.emailIndex[rp.Email]; ok {
		return model.ErrEmailExists
	}
	stored := *rp
	s.players[rp.ID] = &stored
	s.usernameIndex[rp.Username] = rp.ID
	s.emailIndex[rp.Email] = rp.ID
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Storage) GetPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.get(id)
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.get(id)
}

func (s *Storage) get(id model.PlayerID) (*model.RegisteredPlayer, error) {
	rp, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	out := *rp
	return &out, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Player, 0, len(s.players))
	for _, rp := range s.players {
		out = append(out, rp.Player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[model.PlayerID]*model.RegisteredPlayer)
	s.usernameIndex = make(map[string]model.PlayerID)
	s.emailIndex = make(map[string]model.PlayerID)
	return nil
}

func (s *Storage) Ping(ctx context.Context) error { return nil }

func (s *Storage) Close() error { return nil }
