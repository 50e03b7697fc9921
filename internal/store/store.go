// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/assist-portal/internal/domain"
)

// Repository defines the interface for persisting session state.
type Repository interface {
	// GetSession retrieves a session by token. It returns nil, nil when absent.
	GetSession(ctx context.Context, id string) (*domain.SessionState, error)

	// SaveSession creates or replaces a session record.
	SaveSession(ctx context.Context, session *domain.SessionState) error

	// TouchSession updates the last activity timestamp of a session.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// DeleteSession removes a session record.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes sessions idle longer than ttl.
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
