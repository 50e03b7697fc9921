package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/gate"
	"github.com/ashureev/assist-portal/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/gjson"
)

const maxRequestBodySize = 1 << 20

// HandlerOptions carries the optional collaborators of a Handler.
type HandlerOptions struct {
	Limiter         *RateLimiter
	ConversationLog ConversationLogger
	Connections     *ConnectionRegistry
	// OriginPatterns lists hosts allowed to open chat sockets cross-origin.
	OriginPatterns []string
	Logger         *slog.Logger
}

// Handler serves the chat relay over HTTP and WebSocket.
type Handler struct {
	relay          *Relay
	limiter        *RateLimiter
	log            ConversationLogger
	conns          *ConnectionRegistry
	originPatterns []string
	logger         *slog.Logger
}

// NewHandler creates a chat handler around relay.
func NewHandler(relay *Relay, opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(30, time.Minute)
	}
	if opts.ConversationLog == nil {
		opts.ConversationLog = noopConversationLogger{}
	}
	if opts.Connections == nil {
		opts.Connections = NewConnectionRegistry()
	}
	return &Handler{
		relay:          relay,
		limiter:        opts.Limiter,
		log:            opts.ConversationLog,
		conns:          opts.Connections,
		originPatterns: opts.OriginPatterns,
		logger:         opts.Logger.With("component", "assistant_handler"),
	}
}

// RegisterRoutes registers the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/message", h.HandleMessage)
	r.Get("/api/session", h.HandleSession)
	r.Get("/ws/chat", h.HandleChatSocket)
}

// Connections returns the registry of open chat sockets.
func (h *Handler) Connections() *ConnectionRegistry {
	return h.conns
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.conns.CloseAll()
	h.limiter.Close()
	if err := h.log.Close(); err != nil {
		h.logger.Warn("failed to close conversation logger", "error", err)
	}
}

// HandleMessage handles POST /api/message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if !h.limiter.Allow(session.Email) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var turn Turn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, body := h.serveTurn(r.Context(), session, turn, "chat_http")
	writeReply(w, status, body)
}

// HandleSession handles GET /api/session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	reply, err := h.relay.CreateRemoteSession(r.Context())
	if err != nil {
		status, body := failureReply(err)
		writeReply(w, status, body)
		return
	}
	writeReply(w, reply.Status, reply.Body)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*domain.SessionState, bool) {
	session := identity.SessionFromContext(r.Context())
	if gate.Authorize(session) == gate.Unauthenticated {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return session, true
}

// serveTurn relays one turn, records it in the conversation log and maps the
// outcome to a status and body.
func (h *Handler) serveTurn(ctx context.Context, session *domain.SessionState, turn Turn, channel string) (int, json.RawMessage) {
	reqID := chiMiddleware.GetReqID(ctx)
	text := ""
	if turn.Input != nil {
		text = turn.Input.Text
	}

	h.logger.Info("Chat turn",
		"session_id", turn.SessionID,
		"channel", channel,
		"message_length", len(text),
		"request_id", reqID,
	)
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     session.Email,
		SessionID:  turn.SessionID,
		Channel:    channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: text,
		Content:    cleanForReadability(text),
		Meta:       map[string]any{"request_id": reqID},
	})

	reply, err := h.relay.RelayTurn(ctx, turn)
	if err != nil {
		status, body := failureReply(err)
		h.log.Log(ConversationLogEvent{
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			UserID:     session.Email,
			SessionID:  turn.SessionID,
			Channel:    channel,
			Direction:  "inbound",
			EventType:  "chat_error",
			ContentRaw: string(body),
			Meta: map[string]any{
				"request_id": reqID,
				"status":     status,
			},
		})
		return status, body
	}

	replyText := extractReplyText(reply.Body)
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     session.Email,
		SessionID:  turn.SessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: replyText,
		Content:    cleanForReadability(replyText),
		Meta: map[string]any{
			"request_id": reqID,
			"turn_count": TurnCount(json.RawMessage(gjson.GetBytes(reply.Body, "context").Raw)),
		},
	})
	return reply.Status, reply.Body
}

// failureReply maps a relay error to the status and body sent to the client.
func failureReply(err error) (int, json.RawMessage) {
	if errors.Is(err, ErrInvalidContext) {
		return http.StatusBadRequest, errorBody("context must be a JSON object", http.StatusBadRequest)
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status(), remote.Body
	}
	return http.StatusInternalServerError, errorBody("internal error", http.StatusInternalServerError)
}

// extractReplyText pulls the displayable text out of a service response.
func extractReplyText(body json.RawMessage) string {
	generic := gjson.GetBytes(body, "output.generic.#.text")
	if generic.IsArray() && len(generic.Array()) > 0 {
		parts := make([]string, 0, len(generic.Array()))
		for _, t := range generic.Array() {
			parts = append(parts, t.String())
		}
		return strings.Join(parts, "\n")
	}

	text := gjson.GetBytes(body, "output.text")
	if text.IsArray() {
		parts := make([]string, 0, len(text.Array()))
		for _, t := range text.Array() {
			parts = append(parts, t.String())
		}
		return strings.Join(parts, "\n")
	}
	return text.String()
}

func writeReply(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Failed to write chat reply", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	writeReply(w, status, data)
}
