package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/blazers/internal/api/handler"
	"github.com/mcoot/blazers/internal/api/middleware"
	"github.com/mcoot/blazers/internal/services/lobby"
	"github.com/mcoot/blazers/internal/services/session"
	"github.com/mcoot/blazers/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Accounts handler.Accounts
	Storage  storage.Storage
	Sessions *session.Coordinator
	Lobbies  *lobby.Registry
	// LobbySocket serves the /lobby websocket. Omitted in tests that only
	// exercise the REST routes.
	LobbySocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.Accounts)
	playerHandler := handler.NewPlayerHandler(cfg.Accounts, cfg.Sessions)
	lobbyHandler := handler.NewLobbyHandler(cfg.Lobbies)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Sessions, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Accounts)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	if cfg.LobbySocket != nil {
		r.Handle("/lobby", cfg.LobbySocket).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Account routes (no auth required for signup/login)
	api.HandleFunc("/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.Handle("/auth/verify", authMiddleware(http.HandlerFunc(authHandler.Verify))).Methods(http.MethodGet)

	// Player routes
	players := api.PathPrefix("/players").Subrouter()
	players.Use(authMiddleware)
	players.HandleFunc("", playerHandler.List).Methods(http.MethodGet)
	players.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	players.HandleFunc("/{id}/history", playerHandler.History).Methods(http.MethodGet)

	// Lobby routes
	lobbies := api.PathPrefix("/lobbies").Subrouter()
	lobbies.Use(authMiddleware)
	lobbies.HandleFunc("", lobbyHandler.List).Methods(http.MethodGet)
	lobbies.HandleFunc("/{name}/players", lobbyHandler.Players).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware, middleware.RequireAdmin)
	admin.HandleFunc("/reset", authHandler.Reset).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	return r
}
