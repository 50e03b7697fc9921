package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL DEFAULT '',
		perm INTEGER NOT NULL DEFAULT 0,
		email TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.SessionState, error) {
	query := `
		SELECT id, user_name, perm, email, created_at, updated_at
		FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var session domain.SessionState
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &session.User, &session.Perm, &session.Email,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// SaveSession creates or replaces a session record.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.SessionState) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("save session: missing session id")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
	INSERT INTO sessions (id, user_name, perm, email, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_name = excluded.user_name,
		perm = excluded.perm,
		email = excluded.email,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "save session", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.User, session.Perm, session.Email,
			session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// TouchSession updates the updated_at timestamp for a session.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET updated_at = ? WHERE id = ?`
	return shared.RetryOnConflict(ctx, "touch session", writeAttempts, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, at.Unix(), id)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("TouchSession affected 0 rows", "session_id", id)
		}
		return nil
	})
}

// DeleteSession removes a session record.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = ?`
	return shared.RetryOnConflict(ctx, "delete session", writeAttempts, writeBaseDelay, func() error {
		if _, err := s.db.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteExpiredSessions removes sessions older than ttl.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM sessions WHERE updated_at < ?`

	var deleted int64
	err := shared.RetryOnConflict(ctx, "delete expired sessions", writeAttempts, writeBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, query, threshold)
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
