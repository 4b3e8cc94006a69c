package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tracetrack/tracetrack/internal/audit"
	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// pendingTTL bounds how long a password-verified-but-not-yet-2FA-verified
// login challenge stays usable, per spec §4.2's 5 minute code-entry window.
const pendingTTL = 5 * time.Minute

// Handler serves /login, /2fa/verify, and /logout.
type Handler struct {
	authn         *Authenticator
	totp          *TOTPManager
	sessions      *SessionStore
	rdb           *redis.Client
	loginLimiter  *RateLimiter
	audit         *audit.Writer
	logger        *slog.Logger
	sessionMaxAge int
}

// NewHandler creates the auth Handler.
func NewHandler(authn *Authenticator, totp *TOTPManager, sessions *SessionStore, rdb *redis.Client, loginLimiter *RateLimiter, auditWriter *audit.Writer, logger *slog.Logger, sessionMaxAge int) *Handler {
	return &Handler{
		authn:         authn,
		totp:          totp,
		sessions:      sessions,
		rdb:           rdb,
		loginLimiter:  loginLimiter,
		audit:         auditWriter,
		logger:        logger,
		sessionMaxAge: sessionMaxAge,
	}
}

// Routes mounts the unauthenticated auth surface.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Post("/2fa/verify", h.handleVerify2FA)
	return r
}

// RoutesAuthenticated mounts routes that require an existing session.
func (h *Handler) RoutesAuthenticated() chi.Router {
	r := chi.NewRouter()
	r.Post("/logout", h.handleLogout)
	return r
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Status      string `json:"status"` // "ok" or "requires_2fa"
	ChallengeID string `json:"challenge_id,omitempty"`
	CSRFToken   string `json:"csrf_token,omitempty"`
	Role        string `json:"role,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIPString(r)

	if res, err := h.loginLimiter.Check(r.Context(), ip); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "rate limit check failed")
		return
	} else if !res.Allowed {
		httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
		return
	}

	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	_ = h.loginLimiter.Record(r.Context(), ip)

	user, err := h.authn.FindByUsername(r.Context(), req.Username)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	if err := h.authn.VerifyPassword(r.Context(), user, req.Password); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	_ = h.loginLimiter.Reset(r.Context(), ip)

	if user.TOTPEnabled {
		challengeID, cErr := h.storePendingChallenge(r.Context(), user.ID)
		if cErr != nil {
			h.logger.Error("storing 2fa challenge", "error", cErr)
			httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "failed to start two-factor challenge")
			return
		}
		httpserver.Respond(w, http.StatusOK, loginResponse{Status: "requires_2fa", ChallengeID: challengeID})
		return
	}

	h.completeLogin(w, r, user.ID, user.Role)
}

type verify2FARequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

func (h *Handler) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, err := h.loadPendingChallenge(r.Context(), req.ChallengeID)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "two-factor challenge expired or invalid")
		return
	}

	if err := h.totp.Verify(r.Context(), userID, req.Code); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	_ = h.rdb.Del(r.Context(), pendingKey(req.ChallengeID))

	var role string
	if err := h.authn.pool.QueryRow(r.Context(), `SELECT role FROM users WHERE id = $1`, userID).Scan(&role); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "failed to load account")
		return
	}

	h.completeLogin(w, r, userID, role)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := SessionCookie(r); ok {
		_ = h.sessions.Invalidate(r.Context(), token)
	}

	ClearSessionCookie(w)
	httpserver.ClearCSRFCookie(w)

	if id := FromContext(r.Context()); id != nil {
		h.audit.LogFromRequest(r, id.UserID, "logout", "session", uuid.Nil, nil, nil)
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) completeLogin(w http.ResponseWriter, r *http.Request, userID uuid.UUID, role string) {
	token, err := h.sessions.Create(r.Context(), userID, nil, r.Header.Get("User-Agent"))
	if err != nil {
		h.logger.Error("creating session", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "failed to create session")
		return
	}

	SetSessionCookie(w, token, h.sessionMaxAge)
	csrfToken := httpserver.IssueCSRFCookie(w)

	h.audit.LogFromRequest(r, userID, "login", "session", uuid.Nil, nil, nil)

	httpserver.Respond(w, http.StatusOK, loginResponse{Status: "ok", CSRFToken: csrfToken, Role: role})
}

// storePendingChallenge records that userID has passed password verification
// and is awaiting a TOTP code, keyed by an opaque challenge ID so the code
// itself never has to travel back with the user ID in plaintext.
func (h *Handler) storePendingChallenge(ctx context.Context, userID uuid.UUID) (string, error) {
	id, err := randomChallengeID()
	if err != nil {
		return "", err
	}
	if err := h.rdb.Set(ctx, pendingKey(id), userID.String(), pendingTTL).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (h *Handler) loadPendingChallenge(ctx context.Context, challengeID string) (uuid.UUID, error) {
	raw, err := h.rdb.Get(ctx, pendingKey(challengeID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, fmt.Errorf("challenge not found")
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

func clientIPString(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

func pendingKey(challengeID string) string {
	return fmt.Sprintf("2fa_pending:%s", challengeID)
}

func randomChallengeID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
