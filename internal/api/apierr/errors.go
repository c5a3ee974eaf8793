package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/blazers/internal/model"
	"github.com/mcoot/blazers/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeLobbyNotFound      = "LOBBY_NOT_FOUND"
	CodeLobbyAlreadyExists = "LOBBY_ALREADY_EXISTS"
	CodeNotInLobby         = "NOT_IN_LOBBY"
	CodeInvalidLobbyName   = "INVALID_LOBBY_NAME"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Map model errors
	case errors.Is(err, model.ErrInvalidID):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}
	case errors.Is(err, model.ErrEmailExists):
		return &httpError{http.StatusConflict, APIError{CodeEmailExists, "Email already registered"}}
	case errors.Is(err, model.ErrLobbyDoesNotExist):
		return &httpError{http.StatusNotFound, APIError{CodeLobbyNotFound, "Lobby not found"}}
	case errors.Is(err, model.ErrLobbyAlreadyExists):
		return &httpError{http.StatusConflict, APIError{CodeLobbyAlreadyExists, "Lobby already exists"}}
	case errors.Is(err, model.ErrPlayerIsNotInLobby):
		return &httpError{http.StatusNotFound, APIError{CodeNotInLobby, "Not in this lobby"}}
	case errors.Is(err, model.ErrInvalidLobbyName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidLobbyName, "Invalid lobby name"}}
	case errors.Is(err, model.ErrCoordinatorStopped):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeUnavailable, "Service is shutting down"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSignup):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}
	case errors.Is(err, model.ErrTokenExpired):
		return &httpError{http.StatusUnauthorized, APIError{CodeTokenExpired, "Token expired"}}
	case errors.Is(err, model.ErrTokenMalformed), errors.Is(err, model.ErrTokenInvalid):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidToken, "Invalid token"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError() error {
	return &httpError{http.StatusForbidden, APIError{CodeForbidden, "Admin authority required"}}
}

// NewOriginNotAllowedError rejects a cookie-authenticated request from a
// foreign origin
func NewOriginNotAllowedError() error {
	return &httpError{http.StatusForbidden, APIError{CodeForbidden, "Origin not allowed"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
