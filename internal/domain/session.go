package domain

import (
	"time"
)

// SessionState is the per-client state bound to a session token.
// Perm and Email are only meaningful while User is set.
type SessionState struct {
	ID        string    `json:"id"`
	User      string    `json:"user,omitempty"`
	Perm      bool      `json:"perm"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Authenticated returns true if a user is logged in on this session.
func (s *SessionState) Authenticated() bool {
	return s != nil && s.User != ""
}

// Expired returns true if the session has been idle longer than ttl.
func (s *SessionState) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
