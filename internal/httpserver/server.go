package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tracetrack/tracetrack/internal/config"
)

// Server holds the HTTP server dependencies and the two route groups that
// domain packages mount handlers onto: Public (no session required) and
// Authenticated (behind session resolution + CSRF enforcement).
type Server struct {
	Router        *chi.Mux
	Public        chi.Router
	Authenticated chi.Router
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	Redis         *redis.Client
	Metrics       *prometheus.Registry
	startedAt     time.Time
}

// SessionMiddleware resolves the session cookie into a request-scoped
// identity; it is supplied by internal/auth to avoid an import cycle between
// httpserver and auth.
type SessionMiddleware func(http.Handler) http.Handler

// NewServer wires the middleware chain and the unauthenticated health,
// metrics, and status endpoints. Domain handlers (auth, bag, scan, bill,
// stats) are mounted on Public/Authenticated by the caller after construction.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, sessionMW SessionMiddleware) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(SecurityHeaders)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", CSRFHeaderName},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/healthz", s.handleHealth)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/system_health", s.handleSystemHealth)

		// Unauthenticated surface: login, 2FA verification. No CSRF cookie
		// exists yet at this point, so these routes cannot require one.
		r.Group(func(pub chi.Router) {
			s.Public = pub
		})

		// Session-authenticated surface.
		r.Group(func(auth chi.Router) {
			auth.Use(sessionMW)
			auth.Use(RequireCSRF)
			s.Authenticated = auth
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

// systemHealthResponse is the JSON shape returned by /api/system_health,
// the operator-facing counterpart to /health meant for the admin dashboard.
type systemHealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Database      string  `json:"database"`
	DBLatencyMS   float64 `json:"database_latency_ms"`
	Redis         string  `json:"redis"`
	RedisLatencyMS float64 `json:"redis_latency_ms"`
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := systemHealthResponse{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	dbStart := time.Now()
	if err := s.DB.Ping(ctx); err != nil {
		resp.Database = "error"
	} else {
		resp.Database = "ok"
	}
	resp.DBLatencyMS = msSince(dbStart)

	redisStart := time.Now()
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		resp.Redis = "error"
	} else {
		resp.Redis = "ok"
	}
	resp.RedisLatencyMS = msSince(redisStart)

	if resp.Database == "ok" && resp.Redis == "ok" {
		resp.Status = "ok"
	} else {
		resp.Status = "degraded"
	}

	Respond(w, http.StatusOK, resp)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
