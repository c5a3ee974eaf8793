package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mcoot/blazers/internal/api"
	"github.com/mcoot/blazers/internal/config"
	"github.com/mcoot/blazers/internal/dependencies/clock"
	"github.com/mcoot/blazers/internal/events"
	"github.com/mcoot/blazers/internal/services/auth"
	"github.com/mcoot/blazers/internal/services/lobby"
	"github.com/mcoot/blazers/internal/services/session"
	"github.com/mcoot/blazers/internal/storage"
	"github.com/mcoot/blazers/internal/storage/memory"
	pgstorage "github.com/mcoot/blazers/internal/storage/postgres"
	redisstorage "github.com/mcoot/blazers/internal/storage/redis"
	"github.com/mcoot/blazers/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	Publisher events.Publisher

	// Services
	AuthService *auth.Service
	Sessions    *session.Coordinator
	Lobbies     *lobby.Registry
	LobbySocket *ws.Server

	// Router serves the REST API and the /lobby websocket
	Router http.Handler

	logger  *slog.Logger
	closers []io.Closer
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If the token secret is empty, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// NATSURL enables publishing lobby events to NATS (optional)
	NATSURL string
	// SessionConfig configures the session coordinator (optional)
	SessionConfig session.Config
	// SocketConfig configures lobby connections (optional)
	SocketConfig ws.Config
}

// FromConfig builds a factory Config from loaded server settings
func FromConfig(cfg config.Config, logger *slog.Logger) Config {
	authCfg := auth.DefaultConfig()
	authCfg.Token.Secret = cfg.Auth.JWTSecret
	authCfg.Token.TTL = cfg.Auth.JWTTTL
	authCfg.BcryptCost = cfg.Auth.BcryptCost
	authCfg.AdminUsernames = cfg.Auth.AdminUsernames

	sessionCfg := session.DefaultConfig()
	sessionCfg.HistorySize = cfg.Session.HistorySize

	socketCfg := ws.DefaultConfig()
	socketCfg.HeartbeatInterval = cfg.Session.HeartbeatInterval
	socketCfg.ClientTimeout = cfg.Session.ClientTimeout
	socketCfg.AllowedOrigins = cfg.Session.AllowedOrigins

	out := Config{
		AuthConfig:    authCfg,
		Logger:        logger,
		StorageType:   cfg.Storage.Type,
		NATSURL:       cfg.Events.NATSURL,
		SessionConfig: sessionCfg,
		SocketConfig:  socketCfg,
	}
	switch cfg.Storage.Type {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		out.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = cfg.Storage.DatabaseURL
		out.PostgresConfig = &pgCfg
	}
	return out
}

// New creates a new application with all dependencies wired. Call Start
// before serving and Close when done.
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer
	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, store)

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("publishing lobby events to nats", slog.String("url", cfg.NATSURL))
		publisher = np
		closers = append(closers, np)
	}

	authCfg := cfg.AuthConfig
	if authCfg.Token.Secret == "" {
		authCfg = auth.DefaultConfig()
		authCfg.Token.Secret = "insecure-development-secret"
		logger.Warn("no jwt secret configured, using an insecure development secret")
	}

	app := newWithDependencies(store, clock.New(), publisher, authCfg, cfg.SessionConfig, cfg.SocketConfig, logger)
	app.closers = closers
	return app, nil
}

func newStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		store, err := pgstorage.New(ctx, *cfg.PostgresConfig, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	publisher events.Publisher,
	authCfg auth.Config,
	sessionCfg session.Config,
	socketCfg ws.Config,
	logger *slog.Logger,
) *App {
	if sessionCfg.HistorySize == 0 {
		sessionCfg = session.DefaultConfig()
	}
	if socketCfg.HeartbeatInterval == 0 {
		socketCfg = ws.DefaultConfig()
	}

	authService := auth.New(store, clk, authCfg)
	sessions := session.New(sessionCfg, logger)
	lobbies := lobby.NewRegistry(publisher, clk, logger)
	socket := ws.NewServer(socketCfg, sessions, lobbies, authService.Tokens(), clk, logger.With(slog.String("component", "ws")))

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Accounts:    authService,
		Storage:     store,
		Sessions:    sessions,
		Lobbies:     lobbies,
		LobbySocket: socket,
	})

	return &App{
		Storage:     store,
		Clock:       clk,
		Publisher:   publisher,
		AuthService: authService,
		Sessions:    sessions,
		Lobbies:     lobbies,
		LobbySocket: socket,
		Router:      router,
		logger:      logger,
	}
}

// Start runs the session coordinator and lobby registry until Close
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.running.Add(2)
	go func() {
		defer a.running.Done()
		a.Sessions.Run(ctx)
	}()
	go func() {
		defer a.running.Done()
		a.Lobbies.Run(ctx)
	}()
}

// Close disconnects every socket, stops the actors and releases storage
// and event connections
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.LobbySocket.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close sockets: %w", err))
	}
	if a.cancel != nil {
		a.cancel()
		a.running.Wait()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
