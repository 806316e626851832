package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"masjid/internal/auth"
	"masjid/internal/log"
)

const sessionCookie = "masjid_session"

func isAPIPath(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

type pendingKey struct{}

// isPending reports whether the request carries a valid token for an account
// that still awaits approval.
func isPending(ctx context.Context) bool {
	v, _ := ctx.Value(pendingKey{}).(bool)
	return v
}

// loadSession resolves the session cookie, if present, into the request
// context. An invalid token clears the cookie.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := s.auth.Resume(r.Context(), c.Value)
		switch {
		case errors.Is(err, auth.ErrPendingApproval):
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), pendingKey{}, true)))
			return
		case errors.Is(err, auth.ErrInvalidToken):
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		case err != nil:
			s.logger.WarnContext(r.Context(), "Session resume failed", log.FieldError, err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireSession gates a handler on an approved signed-in operator.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.SessionFrom(r.Context()); ok {
			next(w, r)
			return
		}
		target := "/auth/login"
		if isPending(r.Context()) {
			target = "/auth/pending-approval"
		}
		switch {
		case isHTMX(r):
			w.Header().Set("HX-Redirect", target)
			w.WriteHeader(http.StatusUnauthorized)
		case isAPIPath(r) || wantsJSON(r):
			writeJSON(w, http.StatusUnauthorized, jsonError{Success: false, Error: "Unauthorized"})
		default:
			http.Redirect(w, r, target, http.StatusSeeOther)
		}
	})
}

// requireAdmin additionally requires the operator's phone to be an admin.
func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := auth.SessionFrom(r.Context())
		if !sess.Admin {
			s.logger.WarnContext(r.Context(), "Non-admin tried admin route",
				log.FieldUID, sess.UID,
				log.FieldPath, r.URL.Path)
			s.respondStatus(w, r, http.StatusForbidden, "Administrator access required")
			return
		}
		next(w, r)
	})
}
