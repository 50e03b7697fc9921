// Package identity binds every request to a per-client session token.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/store"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "assist_portal_sid"

type contextKey int

const sessionKey contextKey = iota

// Options configures the session cookie.
type Options struct {
	TTL    time.Duration
	Secure bool
}

// SessionFromContext extracts the session state from the request context.
func SessionFromContext(ctx context.Context) *domain.SessionState {
	if v, ok := ctx.Value(sessionKey).(*domain.SessionState); ok {
		return v
	}
	return nil
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *domain.SessionState) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

func generateToken() string {
	return uuid.NewString()
}

func isValidToken(token string) bool {
	id, err := uuid.Parse(token)
	return err == nil && id.Version() == 4 && id.String() == token
}

func setSessionCookie(w http.ResponseWriter, token string, opts Options) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(opts.TTL.Seconds()),
		Expires:  time.Now().Add(opts.TTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   opts.Secure,
	})
}

// loadSession returns the stored session for token, or nil when the token
// is unknown or the session has expired.
func loadSession(ctx context.Context, repo store.Repository, token string, ttl time.Duration) (*domain.SessionState, error) {
	if !isValidToken(token) {
		return nil, nil
	}
	session, err := repo.GetSession(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	now := time.Now()
	if session.Expired(ttl, now) {
		if err := repo.DeleteSession(ctx, token); err != nil {
			slog.Warn("Failed to delete expired session", "error", err, "session_id", token)
		}
		return nil, nil
	}
	if err := repo.TouchSession(ctx, token, now); err != nil {
		slog.Warn("Failed to touch session", "error", err, "session_id", token)
	} else {
		session.UpdatedAt = now
	}
	return session, nil
}

func newSession(ctx context.Context, repo store.Repository) (*domain.SessionState, error) {
	session := &domain.SessionState{ID: generateToken()}
	if err := repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Middleware resolves the session token cookie into a SessionState, issuing
// a fresh token when the cookie is missing, unknown or expired.
func Middleware(repo store.Repository, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var session *domain.SessionState
			if c, err := r.Cookie(SessionCookieName); err == nil {
				session, err = loadSession(ctx, repo, c.Value, opts.TTL)
				if err != nil {
					slog.Error("Failed to load session", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "failed to load session")
					return
				}
			}

			if session == nil {
				var err error
				session, err = newSession(ctx, repo)
				if err != nil {
					slog.Error("Failed to create session", "error", err)
					writeJSONError(w, http.StatusInternalServerError, "failed to establish session")
					return
				}
			}

			setSessionCookie(w, session.ID, opts)
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
		})
	}
}

// Rotate moves session to a freshly issued token, persists it under the new
// token and drops the old record. Call it when the privilege level changes.
func Rotate(ctx context.Context, w http.ResponseWriter, repo store.Repository, session *domain.SessionState, opts Options) error {
	oldID := session.ID
	session.ID = generateToken()
	session.CreatedAt = time.Time{}
	if err := repo.SaveSession(ctx, session); err != nil {
		session.ID = oldID
		return fmt.Errorf("rotate session: %w", err)
	}
	if err := repo.DeleteSession(ctx, oldID); err != nil {
		slog.Warn("Failed to delete rotated session", "error", err, "session_id", oldID)
	}
	dropSessionCookie(w.Header())
	setSessionCookie(w, session.ID, opts)
	return nil
}

// dropSessionCookie removes a pending session Set-Cookie so the rotated
// token is the only one sent.
func dropSessionCookie(h http.Header) {
	prefix := SessionCookieName + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Debug("failed to write error response", "error", err)
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
