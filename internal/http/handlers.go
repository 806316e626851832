package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"masjid/internal/auth"
	"masjid/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["ledger"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ledger"] = "ok"
		}
	} else {
		checks["ledger"] = "ok"
	}

	// Messaging is optional; a broken broker degrades but does not fail readiness.
	switch {
	case s.messagingHealthy == nil:
		checks["messaging"] = "not_configured"
	case s.messagingHealthy():
		checks["messaging"] = "ok"
	default:
		checks["messaging"] = "degraded"
	}

	checks["cache"] = map[string]interface{}{
		"snapshot_entries": s.snapshots.Size(),
		"status":           "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	ledgerWrites := atomic.LoadInt64(&s.appMetrics.ledgerWrites)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	uploads := atomic.LoadInt64(&s.appMetrics.uploads)
	reports := atomic.LoadInt64(&s.appMetrics.reports)
	logins := atomic.LoadInt64(&s.appMetrics.logins)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP ledger_writes_total Successful ledger writes\n")
	fmt.Fprintf(w, "# TYPE ledger_writes_total counter\n")
	fmt.Fprintf(w, "ledger_writes_total %d\n\n", ledgerWrites)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"snapshot\"} %d\n\n", s.snapshots.Size())

	fmt.Fprintf(w, "# HELP uploads_total Images uploaded\n")
	fmt.Fprintf(w, "# TYPE uploads_total counter\n")
	fmt.Fprintf(w, "uploads_total %d\n\n", uploads)

	fmt.Fprintf(w, "# HELP reports_total PDF reports rendered\n")
	fmt.Fprintf(w, "# TYPE reports_total counter\n")
	fmt.Fprintf(w, "reports_total %d\n\n", reports)

	fmt.Fprintf(w, "# HELP logins_total Successful logins\n")
	fmt.Fprintf(w, "# TYPE logins_total counter\n")
	fmt.Fprintf(w, "logins_total %d\n\n", logins)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

// pageData is embedded by every full-page template model.
type pageData struct {
	Title   string
	Session *auth.Session
	Flash   string
}

func (s *Server) page(r *http.Request, title string) pageData {
	p := pageData{Title: title}
	if sess, ok := auth.SessionFrom(r.Context()); ok {
		p.Session = &sess
	}
	return p
}

// render executes a named template into a buffer so that a template error
// never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldPath, r.URL.Path,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	pageData
	Status  int
	Message string
}

// respondError writes err in the representation the client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classifyError(err)
	s.respondStatus(w, r, status, msg)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	} else {
		s.logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
}

func (s *Server) respondStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	switch {
	case isHTMX(r):
		ErrorResponse(status, msg).Write(w)
	case wantsJSON(r) || isAPIPath(r):
		writeJSON(w, status, jsonError{Success: false, Error: msg})
	default:
		s.render(w, r, status, "error.html", errorPage{
			pageData: s.page(r, http.StatusText(status)),
			Status:   status,
			Message:  msg,
		})
	}
}

// renderPanic is the recovery fallback.
func (s *Server) renderPanic(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

func (s *Server) renderRateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, r, http.StatusTooManyRequests, "Too many requests. Please wait a minute and try again.")
}

// storeContext bounds a ledger round trip.
func storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}

// renderFragment writes an htmx response whose body is the named template.
// On a template error the triggers still fire but nothing is swapped.
func (s *Server) renderFragment(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err)
		resp.Header("HX-Reswap", "none").Write(w)
		return
	}
	resp.Header("Content-Type", "text/html; charset=utf-8").Body(buf.Bytes()).Write(w)
}
