package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/blazers/internal/api/apierr"
	"github.com/mcoot/blazers/internal/middleware"
)

// Recovery answers a panicking request with a JSON INTERNAL_ERROR body
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}

// Logging logs every API request and lobby socket upgrade
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}
