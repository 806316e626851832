package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"masjid/internal/auth"
	"masjid/internal/log"
)

type authPage struct {
	pageData
	Error string
	Name  string
	Phone string
}

// parseBody parses a bounded request body, writing the error response itself
// when parsing fails.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondStatus(w, r, http.StatusRequestEntityTooLarge, "Request body is too large")
		} else {
			s.respondStatus(w, r, http.StatusBadRequest, "Invalid request body")
		}
		return nil, false
	}
	return p, true
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", authPage{pageData: s.page(r, "Sign in")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	phone := p.Get("phone")

	ctx, cancel := storeContext(r)
	defer cancel()
	_, token, err := s.auth.Login(ctx, phone, p.Get("password"))
	switch {
	case errors.Is(err, auth.ErrPendingApproval):
		s.redirect(w, r, "/auth/pending-approval", map[string]any{"success": false, "pending": true})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, jsonError{Success: false, Error: err.Error()})
			return
		}
		s.render(w, r, http.StatusUnauthorized, "login.html", authPage{
			pageData: s.page(r, "Sign in"),
			Error:    "Invalid phone number or password",
			Phone:    phone,
		})
		return
	case err != nil:
		s.respondError(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.logins, 1)
	s.setSessionCookie(w, token)
	s.redirect(w, r, "/", map[string]any{"success": true, "token": token})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "register.html", authPage{pageData: s.page(r, "Register")})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	name, phone, password := p.Get("name"), p.Get("phone"), p.Get("password")

	formError := func(status int, msg string) {
		if wantsJSON(r) {
			writeJSON(w, status, jsonError{Success: false, Error: msg})
			return
		}
		s.render(w, r, status, "register.html", authPage{
			pageData: s.page(r, "Register"),
			Error:    msg,
			Name:     name,
			Phone:    phone,
		})
	}

	if confirm := p.Get("confirm_password"); confirm != "" && confirm != password {
		formError(http.StatusUnprocessableEntity, "Passwords do not match")
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	acc, err := s.auth.Register(ctx, name, phone, password)
	if err != nil {
		status, msg := classifyError(err)
		if status >= http.StatusInternalServerError {
			s.respondError(w, r, err)
			return
		}
		formError(status, msg)
		return
	}

	s.logger.InfoContext(r.Context(), "Operator registered",
		log.FieldUID, acc.UID,
		"approved", acc.Approved)

	if !acc.Approved {
		s.redirect(w, r, "/auth/pending-approval", map[string]any{"success": true, "pending": true})
		return
	}
	// Pre-approved administrators are signed in straight away.
	_, token, err := s.auth.Login(ctx, phone, password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.logins, 1)
	s.setSessionCookie(w, token)
	s.redirect(w, r, "/", map[string]any{"success": true, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	s.redirect(w, r, "/auth/login", map[string]any{"success": true})
}

func (s *Server) handlePendingApproval(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFrom(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "pending.html", s.page(r, "Awaiting approval"))
}

// redirect sends the client to target: HX-Redirect for htmx, a JSON body
// for API clients, 303 otherwise.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string, jsonBody map[string]any) {
	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
	case wantsJSON(r):
		jsonBody["redirect"] = target
		writeJSON(w, http.StatusOK, jsonBody)
	default:
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}
