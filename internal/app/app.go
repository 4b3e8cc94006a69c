// Package app wires TraceTrack's infrastructure and domain packages together
// and runs the HTTP server until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracetrack/tracetrack/internal/audit"
	"github.com/tracetrack/tracetrack/internal/auth"
	"github.com/tracetrack/tracetrack/internal/config"
	"github.com/tracetrack/tracetrack/internal/httpserver"
	"github.com/tracetrack/tracetrack/internal/platform"
	"github.com/tracetrack/tracetrack/internal/telemetry"
	"github.com/tracetrack/tracetrack/pkg/bag"
	"github.com/tracetrack/tracetrack/pkg/bill"
	"github.com/tracetrack/tracetrack/pkg/scan"
	"github.com/tracetrack/tracetrack/pkg/stats"
	"github.com/tracetrack/tracetrack/pkg/user"
)

// Run is the application entry point: it reads config, connects to
// infrastructure, mounts every domain handler, and serves HTTP until ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting tracetrack", "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.PoolSize, cfg.PoolOverflow)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// --- auth building blocks ---
	sessions := auth.NewSessionStore(db,
		time.Duration(cfg.IdleSessionSecs)*time.Second,
		time.Duration(cfg.AbsoluteSessionSecs)*time.Second,
	)
	authn := auth.NewAuthenticator(db, cfg.LockoutThreshold, time.Duration(cfg.LockoutWindowSecs)*time.Second)
	totpMgr := auth.NewTOTPManager(db, "TraceTrack")

	loginMax, loginWindow, err := auth.ParseRate(cfg.RateLimitLogin)
	if err != nil {
		return fmt.Errorf("parsing login rate limit: %w", err)
	}
	loginLimiter := auth.NewRateLimiter(rdb, "login", loginMax, loginWindow)

	defaultMax, defaultWindow, err := auth.ParseRate(cfg.RateLimitDefault)
	if err != nil {
		return fmt.Errorf("parsing default rate limit: %w", err)
	}
	defaultLimiter := auth.NewRateLimiter(rdb, "default", defaultMax, defaultWindow)

	if cfg.AdminPassword != "" {
		if err := seedAdmin(ctx, db, cfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("seeding admin account: %w", err)
		}
	}

	sessionMaxAge := cfg.AbsoluteSessionSecs
	sessionMW := auth.SessionMiddleware(sessions, authn)

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, httpserver.SessionMiddleware(sessionMW))

	// --- domain wiring ---
	authHandler := auth.NewHandler(authn, totpMgr, sessions, rdb, loginLimiter, auditWriter, logger, sessionMaxAge)
	srv.Public.Mount("/auth", authHandler.Routes())

	bagStore := bag.NewStore(db)
	bagHandler := bag.NewHandler(bagStore, auditWriter, logger)

	scanStore := scan.NewStore(db)
	scanSvc := scan.NewService(scanStore, bagStore, rdb)
	scanHandler := scan.NewHandler(scanSvc, auditWriter, logger)

	billStore := bill.NewStore(db)
	billSvc := bill.NewService(billStore, bagStore, cfg.ParentWeightKG)
	billHandler := bill.NewHandler(billSvc, auditWriter, logger)

	statsStore := stats.NewStore(db)
	statsSvc := stats.NewService(statsStore)
	statsHandler := stats.NewHandler(statsSvc, logger)
	go statsSvc.RunReconcileLoop(ctx, logger, 5*time.Minute)

	userStore := user.NewStore(db)
	userSvc := user.NewService(userStore, sessions, totpMgr)
	userHandler := user.NewHandler(userSvc, auditWriter, logger)

	srv.Authenticated.Use(rateLimitMiddleware(defaultLimiter))

	srv.Authenticated.Mount("/auth", authHandler.RoutesAuthenticated())
	srv.Authenticated.Mount("/bags", bagHandler.Routes())
	srv.Authenticated.Mount("/scan", scanHandler.Routes())
	srv.Authenticated.Mount("/bills", billHandler.Routes())
	srv.Authenticated.Mount("/stats", statsHandler.Routes())
	srv.Authenticated.Mount("/users/me", userHandler.SelfServiceRoutes())
	srv.Authenticated.With(auth.RequireRole(auth.RoleAdmin)).Mount("/users", userHandler.AdminRoutes())
	srv.Authenticated.With(auth.RequireRole(auth.RoleAdmin)).Mount("/audit-log", audit.NewHandler(db).Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// rateLimitMiddleware enforces limiter against the authenticated caller's
// user ID, per spec §4.3's default API rate limit.
func rateLimitMiddleware(limiter *auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.FromContext(r.Context())
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := id.UserID.String()
			result, err := limiter.Check(r.Context(), key)
			if err != nil {
				httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "rate limit check failed")
				return
			}
			if !result.Allowed {
				httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			if err := limiter.Record(r.Context(), key); err != nil {
				httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "rate limit record failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// seedAdmin creates the initial admin account on first boot if no admin
// user exists yet.
func seedAdmin(ctx context.Context, db *pgxpool.Pool, password string, logger *slog.Logger) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT exists(SELECT 1 FROM users WHERE role = 'admin')`).Scan(&exists); err != nil {
		return fmt.Errorf("checking for existing admin: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO users (username, username_lower, email, email_lower, password_hash, role)
		VALUES ('admin', 'admin', 'admin@tracetrack.local', 'admin@tracetrack.local', $1, 'admin')`,
		hash)
	if err != nil {
		return fmt.Errorf("inserting seeded admin: %w", err)
	}

	logger.Info("seeded initial admin account", "username", "admin")
	return nil
}
