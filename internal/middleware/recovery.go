package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicHandler is a function that handles panics and writes an error response
type PanicHandler func(w http.ResponseWriter, r *http.Request, err any)

// Recovery creates panic recovery middleware with a custom panic handler.
// The handler is skipped when the connection has already been hijacked,
// since an upgraded socket can no longer carry an HTTP response.
func Recovery(logger *slog.Logger, handler PanicHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked, ok := w.(*ResponseWriter)
			if !ok {
				tracked = &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
			}

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(err)
				}

				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("upgraded", tracked.hijacked),
				)

				if !tracked.hijacked {
					handler(tracked, r, err)
				}
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}

// DefaultPanicHandler returns a simple 500 Internal Server Error
func DefaultPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// Guard runs fn on the calling goroutine and logs a panic instead of
// letting it crash the process. It reports whether fn returned normally.
func Guard(logger *slog.Logger, name string, fn func()) (ok bool) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error("panic recovered",
				slog.String("goroutine", name),
				slog.Any("error", err),
				slog.String("stack", string(debug.Stack())),
			)
			ok = false
		}
	}()

	fn()
	return true
}
