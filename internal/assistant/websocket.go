package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const socketWriteTimeout = 10 * time.Second

// wsFrame is an inbound chat frame: a message-endpoint body with an optional type.
type wsFrame struct {
	Type string `json:"type,omitempty"`
	Turn
}

// wsReply is an outbound chat frame.
type wsReply struct {
	Type   string          `json:"type"`
	Status int             `json:"status,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// HandleChatSocket handles GET /ws/chat. Turns on one socket are relayed
// one at a time in arrival order.
func (h *Handler) HandleChatSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := h.authorize(w, r)
	if !ok {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("Failed to accept chat socket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close chat socket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(maxRequestBodySize)

	connID := uuid.NewString()
	h.conns.Register(session.ID, connID, ws)
	defer h.conns.Unregister(session.ID, connID, ws)

	ctx := r.Context()
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("Chat socket read failed", "error", err, "conn_id", connID)
			}
			return
		}
		if typ != websocket.MessageText {
			if !h.writeFrame(ctx, ws, wsReply{Type: "error", Error: "text frames only"}) {
				return
			}
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if !h.writeFrame(ctx, ws, wsReply{Type: "error", Error: "invalid frame"}) {
				return
			}
			continue
		}

		var out wsReply
		switch {
		case frame.Type == "ping":
			out = wsReply{Type: "pong"}
		case !h.limiter.Allow(session.Email):
			out = wsReply{
				Type:   "reply",
				Status: http.StatusTooManyRequests,
				Body:   json.RawMessage(`{"error":"rate limit exceeded"}`),
			}
		default:
			status, body := h.serveTurn(ctx, session, frame.Turn, "chat_ws")
			out = wsReply{Type: "reply", Status: status, Body: body}
		}
		if !h.writeFrame(ctx, ws, out) {
			return
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, frame wsReply) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("Failed to marshal chat frame", "error", err)
		return false
	}
	writeCtx, cancel := context.WithTimeout(ctx, socketWriteTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Debug("Chat socket write failed", "error", err)
		return false
	}
	return true
}
