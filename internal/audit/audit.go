// Package audit implements the async buffered audit log writer (C4):
// every mutating action across bag, scan, bill, and user management is
// recorded with a before/after snapshot and the request correlation ID,
// so any state change can be traced back to who made it and when.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// Entry represents a single audit log entry to be written.
type Entry struct {
	RequestID  uuid.UUID
	ActorID    pgtype.UUID
	Action     string
	TargetKind string
	TargetID   pgtype.UUID
	Before     json.RawMessage
	After      json.RawMessage
	IPAddress  *netip.Addr
	Detail     string
	OccurredAt time.Time
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine, so a logging
// failure never blocks the request that triggered it.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine exits once ctx is
// cancelled (after flushing the entries already queued) or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
// Security-critical actions (role changes, 2FA toggles, session
// invalidation) should call LogSync instead so the write is durable before
// the handler responds.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "target_kind", entry.TargetKind)
	}
}

// LogSync writes an entry synchronously, bypassing the buffer. Use this for
// security-critical actions where losing the record on a crash is not
// acceptable.
func (w *Writer) LogSync(ctx context.Context, entry Entry) error {
	return w.insert(ctx, entry)
}

// LogFromRequest is a convenience wrapper that extracts the request ID and
// client IP from r before enqueuing the entry.
func (w *Writer) LogFromRequest(r *http.Request, actorID uuid.UUID, action, targetKind string, targetID uuid.UUID, before, after json.RawMessage) {
	reqID, _ := uuid.Parse(httpserver.RequestIDFromContext(r.Context()))

	entry := Entry{
		RequestID:  reqID,
		ActorID:    pgtype.UUID{Bytes: actorID, Valid: actorID != uuid.Nil},
		Action:     action,
		TargetKind: targetKind,
		TargetID:   pgtype.UUID{Bytes: targetID, Valid: targetID != uuid.Nil},
		Before:     before,
		After:      after,
		OccurredAt: time.Now().UTC(),
	}

	if ip := clientIP(r); ip.IsValid() {
		entry.IPAddress = &ip
	}

	w.Log(entry)
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		if err := w.insert(ctx, e); err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"action", e.Action, "target_kind", e.TargetKind)
		}
	}
}

func (w *Writer) insert(ctx context.Context, e Entry) error {
	var ipStr *string
	if e.IPAddress != nil {
		s := e.IPAddress.String()
		ipStr = &s
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO audit_log
			(request_id, actor_id, action, target_kind, target_id, before_state, after_state, ip_address, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.RequestID, e.ActorID, e.Action, e.TargetKind, e.TargetID,
		rawToText(e.Before), rawToText(e.After), ipStr, e.Detail, e.OccurredAt)
	return err
}

func rawToText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
