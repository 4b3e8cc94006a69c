package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxConnectAttempts caps the retry loop at <=3 attempts per spec §4.1.
const maxConnectAttempts = 3

// NewPostgresPool opens a connection pool sized per spec §4.1: 50 base
// connections plus 100 overflow, pre-pinged connections recycled every 5
// minutes, a 60s statement timeout and a 30s idle-in-transaction timeout.
// Transient DNS/socket failures during the initial connect are retried with
// exponential backoff (100ms -> 800ms, <= 3 attempts) before giving up.
func NewPostgresPool(ctx context.Context, databaseURL string, poolSize, poolOverflow int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	cfg.MaxConns = int32(poolSize + poolOverflow)
	cfg.MinConns = int32(poolSize)
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = "60000"
	cfg.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "30000"

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 800 * time.Millisecond
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		if !isTransient(err) || attempt == maxConnectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	return nil, fmt.Errorf("connecting to postgres after %d attempts: %w", maxConnectAttempts, lastErr)
}

// isTransient reports whether err looks like a transient DNS/socket failure
// worth retrying, as opposed to a configuration, auth, or constraint error.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
