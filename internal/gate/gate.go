// Package gate decides, per request, whether a session is authenticated and
// which content variant it may see.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/assist-portal/internal/domain"
)

var (
	// ErrBadRequest is returned when the email or password field is missing.
	ErrBadRequest = errors.New("gate: missing credentials")
	// ErrAuthFailure is returned when no directory record matches both fields.
	ErrAuthFailure = errors.New("gate: no matching credentials")
)

// Access is the outcome of Authorize.
type Access int

const (
	// Unauthenticated means the caller must be sent to the login page.
	Unauthenticated Access = iota
	// Standard grants the limited content variant.
	Standard
	// Elevated grants the full content variant.
	Elevated
)

func (a Access) String() string {
	switch a {
	case Standard:
		return "standard"
	case Elevated:
		return "elevated"
	default:
		return "unauthenticated"
	}
}

// UserSource lists the user directory. Implementations must read fresh data.
type UserSource interface {
	Users(ctx context.Context) ([]domain.UserRecord, error)
}

// Gate authenticates sessions against a user directory.
type Gate struct {
	users UserSource
}

// New creates a Gate backed by users.
func New(users UserSource) *Gate {
	return &Gate{users: users}
}

// Authenticate matches email and password exactly against the directory and,
// on success, marks session as logged in. On any error session is untouched.
func (g *Gate) Authenticate(ctx context.Context, session *domain.SessionState, email, password string) error {
	if email == "" || password == "" {
		return ErrBadRequest
	}

	users, err := g.users.Users(ctx)
	if err != nil {
		return fmt.Errorf("load user directory: %w", err)
	}

	for i := range users {
		u := &users[i]
		// Cleartext comparison: the directory stores passwords as-is.
		if u.Email == email && u.Password == password {
			session.User = u.DisplayName()
			session.Perm = u.AllPerm
			session.Email = u.Email
			return nil
		}
	}
	return ErrAuthFailure
}

// Authorize maps session state to an access level.
func Authorize(session *domain.SessionState) Access {
	if !session.Authenticated() {
		return Unauthenticated
	}
	if session.Perm {
		return Elevated
	}
	return Standard
}

// Logout clears the authentication state of session.
func Logout(session *domain.SessionState) {
	if session == nil {
		return
	}
	session.User = ""
	session.Perm = false
	session.Email = ""
}

// Variants names the two renderings of a content page.
type Variants struct {
	Full    string
	Limited string
}

// Single returns Variants that render the same view for both access levels.
func Single(view string) Variants {
	return Variants{Full: view, Limited: view}
}

// Select returns the view for access, or "" when the caller must redirect.
func (v Variants) Select(access Access) string {
	switch access {
	case Elevated:
		return v.Full
	case Standard:
		return v.Limited
	default:
		return ""
	}
}
