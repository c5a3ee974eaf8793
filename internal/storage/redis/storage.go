package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// CreatePlayer claims the username and email indexes before writing the
// record, releasing any claim it made if a later step fails.
func (s *Storage) CreatePlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}
	id := rp.ID.String()

	ok, err := s.client.SetNX(ctx, usernameIndexKey(rp.Username), id, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUsernameExists
	}

	ok, err = s.client.SetNX(ctx, emailIndexKey(rp.Email), id, 0).Result()
	if err != nil || !ok {
		_ = s.client.Del(ctx, usernameIndexKey(rp.Username)).Err()
		if err != nil {
			return err
		}
		return model.ErrEmailExists
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(rp.ID), data, 0)
	pipe.SAdd(ctx, playersSetKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		_ = s.client.Del(ctx, usernameIndexKey(rp.Username), emailIndexKey(rp.Email)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getByIndex(ctx, usernameIndexKey(username))
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.RegisteredPlayer, error) {
	return s.getByIndex(ctx, emailIndexKey(email))
}

func (s *Storage) getByIndex(ctx context.Context, key string) (*model.RegisteredPlayer, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	id, err := model.ParsePlayerID(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt index %s: %w", key, err)
	}
	return s.GetPlayer(ctx, id)
}

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	ids, err := s.client.SMembers(ctx, playersSetKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Player{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := model.ParsePlayerID(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, playerKey(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		var rp model.RegisteredPlayer
		if err := json.Unmarshal([]byte(str), &rp); err != nil {
			return nil, err
		}
		players = append(players, rp.Player)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Username < players[j].Username })
	return players, nil
}

// Reset deletes every key under the blazers prefix
func (s *Storage) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
