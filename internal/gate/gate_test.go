package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users []domain.UserRecord
	err   error
	calls int
}

func (f *fakeUsers) Users(context.Context) ([]domain.UserRecord, error) {
	f.calls++
	return f.users, f.err
}

func directory() *fakeUsers {
	return &fakeUsers{users: []domain.UserRecord{
		{Email: "a@x.com", Password: "p", LastName: "Doe", FirstName: "Jane", AllPerm: true},
		{Email: "b@x.com", Password: "secret", LastName: "Roe", FirstName: "Bob", AllPerm: false},
	}}
}

func TestAuthenticateElevatedUser(t *testing.T) {
	g := New(directory())
	session := &domain.SessionState{ID: "s1"}

	require.NoError(t, g.Authenticate(context.Background(), session, "a@x.com", "p"))
	assert.Equal(t, "Doe J.", session.User)
	assert.True(t, session.Perm)
	assert.Equal(t, "a@x.com", session.Email)
	assert.Equal(t, Elevated, Authorize(session))
}

func TestAuthenticateEveryRecordMirrorsPerm(t *testing.T) {
	dir := directory()
	g := New(dir)
	for _, u := range dir.users {
		session := &domain.SessionState{}
		require.NoError(t, g.Authenticate(context.Background(), session, u.Email, u.Password))
		assert.Equal(t, u.AllPerm, session.Perm, "perm for %s", u.Email)
		assert.Equal(t, u.Email, session.Email)
	}
}

func TestAuthenticateRejectsNonMatchingPairs(t *testing.T) {
	g := New(directory())
	cases := []struct{ email, password string }{
		{"a@x.com", "secret"},
		{"b@x.com", "p"},
		{"A@x.com", "p"},
		{"a@x.com", "P"},
		{"nobody@x.com", "p"},
	}
	for _, tc := range cases {
		session := &domain.SessionState{ID: "s1", User: "Prev U.", Perm: true, Email: "prev@x.com"}
		before := *session
		err := g.Authenticate(context.Background(), session, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrAuthFailure, "%s/%s", tc.email, tc.password)
		assert.Equal(t, before, *session, "session must not change on failure")
	}
}

func TestAuthenticateMissingFieldsSkipsDirectory(t *testing.T) {
	dir := directory()
	g := New(dir)
	for _, tc := range []struct{ email, password string }{{"", "p"}, {"a@x.com", ""}, {"", ""}} {
		session := &domain.SessionState{}
		assert.ErrorIs(t, g.Authenticate(context.Background(), session, tc.email, tc.password), ErrBadRequest)
		assert.False(t, session.Authenticated())
	}
	assert.Zero(t, dir.calls, "directory must not be read for malformed input")
}

func TestAuthenticateDirectoryFailure(t *testing.T) {
	boom := errors.New("disk gone")
	g := New(&fakeUsers{err: boom})
	session := &domain.SessionState{}

	err := g.Authenticate(context.Background(), session, "a@x.com", "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAuthFailure)
	assert.False(t, session.Authenticated())
}

func TestAuthorizeTruthTable(t *testing.T) {
	cases := []struct {
		user string
		perm bool
		want Access
	}{
		{"", false, Unauthenticated},
		{"", true, Unauthenticated},
		{"Doe J.", false, Standard},
		{"Doe J.", true, Elevated},
	}
	for _, tc := range cases {
		got := Authorize(&domain.SessionState{User: tc.user, Perm: tc.perm})
		assert.Equal(t, tc.want, got, "user=%q perm=%v", tc.user, tc.perm)
	}
	assert.Equal(t, Unauthenticated, Authorize(nil))
}

func TestLogoutClearsState(t *testing.T) {
	session := &domain.SessionState{ID: "s1", User: "Doe J.", Perm: true, Email: "a@x.com"}
	Logout(session)
	assert.Equal(t, Unauthenticated, Authorize(session))
	assert.False(t, session.Perm)
	assert.Empty(t, session.Email)
	assert.Equal(t, "s1", session.ID)
	Logout(nil)
}

func TestVariantsSelect(t *testing.T) {
	v := Variants{Full: "home.html", Limited: "l-home.html"}
	assert.Equal(t, "home.html", v.Select(Elevated))
	assert.Equal(t, "l-home.html", v.Select(Standard))
	assert.Empty(t, v.Select(Unauthenticated))

	s := Single("doc.html")
	assert.Equal(t, "doc.html", s.Select(Elevated))
	assert.Equal(t, "doc.html", s.Select(Standard))
}

func TestAccessString(t *testing.T) {
	assert.Equal(t, "elevated", Elevated.String())
	assert.Equal(t, "standard", Standard.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
}
