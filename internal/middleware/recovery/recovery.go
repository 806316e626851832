// Package recovery turns handler panics into a generic 500 response.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"masjid/internal/log"
)

// Middleware recovers from panics in next. onPanic writes the response and
// may be nil, in which case a plain-text 500 is sent.
func Middleware(onPanic func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let net/http handle its own abort signal.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "Panic while serving request",
					log.FieldComponent, log.ComponentRecovery,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				if onPanic != nil {
					onPanic(w, r)
					return
				}
				http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
