package model

import "errors"

// Common errors used across the application
var (
	// Identifier errors
	ErrInvalidID = errors.New("invalid identifier")

	// Token errors
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already registered")

	// Lobby registry errors
	ErrLobbyAlreadyExists = errors.New("lobby already exists")
	ErrLobbyDoesNotExist  = errors.New("lobby does not exist")
	ErrPlayerIsNotInLobby = errors.New("player is not in lobby")
	ErrInvalidLobbyName   = errors.New("invalid lobby name")

	// Session state errors
	ErrConnectionNotRegistered = errors.New("connection is not registered")
	ErrStateNotRegistered      = errors.New("no state registered for connection")
	ErrInvalidTransition       = errors.New("invalid state transition")
	ErrDuplicateLogin          = errors.New("player is already logged in on another connection")
	ErrNotAuthenticated        = errors.New("connection is not authenticated")
	ErrPlayerMismatch          = errors.New("player does not match the authenticated session")

	// Coordinator lifecycle
	ErrCoordinatorStopped = errors.New("coordinator stopped")
)
