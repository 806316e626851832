package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"masjid/internal/auth"
	"masjid/internal/cache"
	"masjid/internal/core"
	"masjid/internal/log"
	"masjid/internal/media"
	"masjid/internal/middleware/ratelimit"
	"masjid/internal/middleware/recovery"
	"masjid/internal/middleware/security"
	"masjid/internal/middleware/trace"
	"masjid/internal/report"
	"masjid/internal/services"
	appweb "masjid/web"
)

const (
	snapshotCacheSize = 48
	snapshotCacheTTL  = 5 * time.Minute
	storeTimeout      = 7 * time.Second
)

// Deps are the collaborators the server needs. Ready and MessagingHealthy
// may be nil.
type Deps struct {
	Balance *services.BalanceService
	Auth    *auth.Service
	Reports *report.Renderer
	Media   *media.Store
	Logger  *log.Logger

	SessionTTL    time.Duration
	SecureCookies bool

	// Ready checks the store for /readyz.
	Ready func(ctx context.Context) error
	// MessagingHealthy reports the AMQP connection state for /readyz.
	MessagingHealthy func() bool
}

type appMetrics struct {
	uptime       time.Time
	ledgerWrites int64
	cacheHits    int64
	cacheMisses  int64
	uploads      int64
	reports      int64
	logins       int64
}

type Server struct {
	http.Server
	templates *template.Template

	balance *services.BalanceService
	auth    *auth.Service
	reports *report.Renderer
	media   *media.Store
	logger  *log.Logger

	ready            func(ctx context.Context) error
	messagingHealthy func() bool
	sessionTTL       time.Duration
	secureCookies    bool

	snapshots        *cache.LRUCache[core.MonthSnapshot]
	cacheManager     *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	now          func() time.Time
	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	// decimal renders an amount for an input field, e.g. "1500.50".
	"decimal": func(m core.Money) string { return m.Decimal().StringFixed(2) },
	"negative": func(m core.Money) bool { return m.Cents < 0 },
	"date": func(d core.Date) string {
		if d.IsEmpty() {
			return ""
		}
		return d.Format("02 Jan 2006")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("02 Jan 2006 15:04")
	},
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Balance == nil || deps.Auth == nil || deps.Media == nil {
		return nil, errors.New("balance, auth and media dependencies are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Reports == nil {
		deps.Reports = report.NewRenderer(report.DefaultOptions())
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 7 * 24 * time.Hour
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:        tmpl,
		balance:          deps.Balance,
		auth:             deps.Auth,
		reports:          deps.Reports,
		media:            deps.Media,
		logger:           deps.Logger.WithComponent(log.ComponentHTTP),
		ready:            deps.Ready,
		messagingHealthy: deps.MessagingHealthy,
		sessionTTL:       deps.SessionTTL,
		secureCookies:    deps.SecureCookies,
		snapshots:        cache.NewLRUCache[core.MonthSnapshot](snapshotCacheSize, snapshotCacheTTL),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
		now:              time.Now,
	}
	s.traceMiddleware = trace.NewMiddleware(deps.Logger, s.securityDetector.ExtractClientIP)
	s.cacheManager.Register(s.snapshots)
	s.cacheManager.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
	uploads := http.StripPrefix(strings.TrimSuffix(media.URLPrefix, "/"), http.FileServer(http.Dir(s.media.Dir())))
	mux.Handle("GET "+media.URLPrefix, security.StaticAssetMiddleware(86400)(noDirectoryListing(uploads)))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /auth/login", s.handleLoginPage)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/register", s.handleRegisterPage)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/pending-approval", s.handlePendingApproval)

	mux.HandleFunc("GET /showcase", s.handleShowcase)
	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.Handle("POST /api/upload", s.requireSession(s.handleUpload))

	mux.Handle("GET /{$}", s.requireSession(s.handleIndex))
	mux.Handle("GET /ui/month", s.requireSession(s.handleMonthPartial))
	mux.Handle("GET /api/months", s.requireSession(s.handleListMonths))
	mux.Handle("GET /api/months/{month}", s.requireSession(s.handleMonthJSON))
	mux.Handle("GET /months/{month}/report.pdf", s.requireSession(s.handleReport))
	mux.Handle("POST /months/{month}/donations", s.requireSession(s.handleAddDonation))
	mux.Handle("POST /months/{month}/expenses", s.requireSession(s.handleAddExpense))
	mux.Handle("POST /months/{month}/bill-book", s.requireSession(s.handleSetBillBook))
	mux.Handle("POST /months/{month}/old-balance", s.requireSession(s.handleSetOldBalance))
	mux.Handle("POST /months/{month}/salary/{role}", s.requireSession(s.handleSetSalary))
	mux.Handle("POST /months/{month}/final-balance", s.requireSession(s.handleFinalBalance))

	mux.Handle("GET /admin", s.requireAdmin(s.handleAdmin))
	mux.Handle("POST /admin/accounts/{uid}/approve", s.requireAdmin(s.handleSetApproval(true)))
	mux.Handle("POST /admin/accounts/{uid}/revoke", s.requireAdmin(s.handleSetApproval(false)))

	var h http.Handler = mux
	h = s.loadSession(h)
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.renderRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = recovery.Middleware(s.renderPanic)(h)
	return h
}

// noDirectoryListing hides the upload directory index.
func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops background loops and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
