package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fincontrol/internal/api"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/middleware/ratelimit"
	"fincontrol/internal/middleware/security"
	"fincontrol/internal/middleware/trace"
	"fincontrol/internal/services"
	"fincontrol/internal/session"
	appweb "fincontrol/web"
)

// Authenticator exchanges e-mail and password for API credentials.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (core.User, api.Credentials, error)
	Register(ctx context.Context, email, password string) (core.User, api.Credentials, error)
}

// Exporter writes a user's transactions to an external spreadsheet.
type Exporter interface {
	ExportTransactions(ctx context.Context, user core.User, txs []core.Transaction, stats core.SummaryStatistics) (int, error)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators a Server routes requests to. Exporter and
// Checks are optional.
type Deps struct {
	Auth         Authenticator
	Sessions     *session.Manager
	Dashboard    *services.DashboardService
	Transactions *services.TransactionService
	Tags         *services.TagService
	Users        *services.UserService
	Exporter     Exporter
	Checks       []ReadinessCheck

	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	auth         Authenticator
	sessions     *session.Manager
	dashboard    *services.DashboardService
	transactions *services.TransactionService
	tags         *services.TagService
	users        *services.UserService
	exporter     Exporter
	checks       []ReadinessCheck

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	startTime    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
// It fails when the embedded templates do not parse.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:       httpLogger,
		auth:         deps.Auth,
		sessions:     deps.Sessions,
		dashboard:    deps.Dashboard,
		transactions: deps.Transactions,
		tags:         deps.Tags,
		users:        deps.Users,
		exporter:     deps.Exporter,
		checks:       deps.Checks,
		detector:     security.NewDetector(logger),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		startTime:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	t, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		s.limiter.Stop()
		return nil, err
	}
	s.templates = t

	s.Handler = s.routes(logger)
	return s, nil
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func (s *Server) routes(logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(logger))
	r.Use(s.tracer.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Get("/", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/register", s.handleRegisterPage)
	r.Post("/register", s.handleRegister)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/home", s.handleHome)
		r.Get("/ui/dashboard-stats", s.handleDashboardStats)

		r.Get("/transactions", s.handleTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/transactions/export", s.handleExport)
		r.Post("/transactions/{id}", s.handleUpdateTransaction)
		r.Post("/transactions/{id}/delete", s.handleDeleteTransaction)
		r.Post("/transactions/{id}/tags", s.handleAttachTags)
		r.Post("/transactions/{id}/tags/{tagID}/delete", s.handleDetachTag)

		r.Get("/tags", s.handleTags)
		r.Post("/tags", s.handleCreateTag)
		r.Post("/tags/{id}", s.handleUpdateTag)
		r.Post("/tags/{id}/delete", s.handleDeleteTag)

		r.Get("/users", s.handleUsers)
		r.Post("/users", s.handleCreateUser)
		r.Post("/users/{id}", s.handleUpdateUser)
		r.Post("/users/{id}/delete", s.handleDeleteUser)
	})

	return r
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Muitas requisições. Tente novamente em instantes.").
		BodyHTML(`<div class="error">Muitas requisições. Tente novamente em instantes.</div>`).
		Write(w)
}
