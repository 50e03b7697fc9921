package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedIn() *domain.SessionState {
	return &domain.SessionState{ID: "tok-1", User: "Doe J.", Perm: true, Email: "a@x.com"}
}

// withSession injects session the way the identity middleware would.
func withSession(session *domain.SessionState, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), session)))
	})
}

func newTestRouter(t *testing.T, session *domain.SessionState, remote Assistant, limit int) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(NewRelay(remote, "A1", nil), HandlerOptions{
		Limiter: NewRateLimiter(limit, time.Minute),
	})
	t.Cleanup(h.Close)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return withSession(session, r), h
}

func TestHandleMessageRequiresLogin(t *testing.T) {
	remote := &fakeAssistant{}
	router, _ := newTestRouter(t, &domain.SessionState{ID: "tok-anon"}, remote, 10)

	for _, target := range []string{"/api/message", "/api/session"} {
		method := http.MethodPost
		if target == "/api/session" {
			method = http.MethodGet
		}
		req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}
	assert.Empty(t, remote.requests)
	assert.Zero(t, remote.sessions)
}

func TestHandleMessageRelaysVerbatim(t *testing.T) {
	payload := `{"context":{"global":{"system":{"turn_count":1}}},"output":{"text":["hi"]}}`
	remote := &fakeAssistant{reply: json.RawMessage(payload)}
	router, _ := newTestRouter(t, loggedIn(), remote, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"session_id":"S1","context":null,"input":{"text":"hello"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", remote.last(t).Input.Text)
}

func TestHandleMessageEmptyBody(t *testing.T) {
	remote := &fakeAssistant{}
	router, _ := newTestRouter(t, loggedIn(), remote, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/message", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// No session_id: forwarded as-is and the remote decides.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", remote.last(t).SessionID)
}

func TestHandleMessageBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"input":`, http.StatusBadRequest},
		{"array context", `{"session_id":"S1","context":[1]}`, http.StatusBadRequest},
		{"too large", `{"input":{"text":"` + strings.Repeat("a", maxRequestBodySize) + `"}}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, loggedIn(), &fakeAssistant{}, 10)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleMessageRemoteFailure(t *testing.T) {
	remote := &fakeAssistant{err: &RemoteError{StatusCode: 404, Body: json.RawMessage(`{"error":"Invalid Session","code":404}`)}}
	router, _ := newTestRouter(t, loggedIn(), remote, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"session_id":"gone"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `{"error":"Invalid Session","code":404}`, rec.Body.String())
}

func TestHandleMessageRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, loggedIn(), &fakeAssistant{}, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"session_id":"S1"}`)))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestHandleSession(t *testing.T) {
	remote := &fakeAssistant{}
	router, _ := newTestRouter(t, loggedIn(), remote, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"S-new"}`, rec.Body.String())
}

func TestExtractReplyText(t *testing.T) {
	assert.Equal(t, "a\nb", extractReplyText(json.RawMessage(`{"output":{"generic":[{"text":"a"},{"text":"b"}]}}`)))
	assert.Equal(t, "hi", extractReplyText(json.RawMessage(`{"output":{"text":["hi"]}}`)))
	assert.Equal(t, "plain", extractReplyText(json.RawMessage(`{"output":{"text":"plain"}}`)))
	assert.Equal(t, "", extractReplyText(json.RawMessage(`{}`)))
}
