package httpapi

import (
	"net/http"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/middleware"
	"github.com/dossier-crm/teamauth/permission"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	// Production hides raw reset, verification and invite tokens from response bodies
	// and marks cookies Secure.
	Production     bool
	AllowedOrigins []string
	// AuthRateLimit is the number of unauthenticated auth requests allowed per client IP
	// per minute.
	AuthRateLimit int
	CookieDomain  string
	ServiceName   string
	// Metrics serves /metrics. Nil leaves the route unmounted.
	Metrics http.Handler
}

// Server holds the handlers of the auth API.
type Server struct {
	engine *teamauth.Engine
	opts   Options
	logger zerolog.Logger
}

func NewServer(engine *teamauth.Engine, opts Options, logger zerolog.Logger) *Server {
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 5
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "dossier-auth"
	}
	return &Server{engine: engine, opts: opts, logger: logger}
}

// Handler builds the router. Every request is traced and access logged.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(middleware.ClientContext)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	guard := middleware.Guard(s.engine, teamauth.ModeInherit, middleware.WithErrorHandler(s.writeError))
	limit := httprate.Limit(
		s.opts.AuthRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, r, teamauth.ErrRateLimited)
		}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/register", s.register)
				r.Post("/login", s.login)
				r.Post("/accept-invite", s.acceptInvite)
				r.Post("/password-reset/request", s.requestPasswordReset)
				r.Post("/password-reset/confirm", s.resetPassword)
				r.Post("/verify-email", s.verifyEmail)
			})

			r.Post("/logout", s.logout)
			r.Post("/refresh", s.refresh)

			r.Group(func(r chi.Router) {
				r.Use(guard)
				r.Get("/me", s.me)
				r.Put("/me", s.updateProfile)
				r.Get("/sessions", s.listSessions)
				r.Post("/logout-all", s.logoutAll)
				r.Post("/password/change", s.changePassword)
				r.Post("/verify-email/request", s.createEmailVerification)
				r.Post("/verify-email/resend", s.resendVerificationEmail)
			})
		})

		r.Route("/team/invites", func(r chi.Router) {
			r.Use(guard)
			r.Use(middleware.RequirePermission(s.engine, permission.TeamInvite, middleware.WithErrorHandler(s.writeError)))
			r.Get("/", s.listInvites)
			r.Post("/", s.createInvite)
		})
	})

	return otelhttp.NewHandler(r, s.opts.ServiceName)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	health := s.engine.Health(r.Context())
	status := http.StatusOK
	if !health.DatabaseAvailable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"database":  health.DatabaseAvailable,
		"latencyMs": health.DatabaseLatency.Milliseconds(),
	})
}

// accessLog emits one zerolog event per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.logger.Info()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}
