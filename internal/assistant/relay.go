package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ashureev/assist-portal/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const turnCountPath = "global.system.turn_count"

// notConfiguredBody is returned instead of a conversational reply while the
// assistant identifier is missing.
var notConfiguredBody = mustJSON(map[string]any{
	"output": map[string]any{
		"text": "The app has not been configured with a <b>ASSISTANT_ID</b> environment variable. " +
			"Please refer to the <a href=\"https://github.com/watson-developer-cloud/assistant-simple\">README</a> " +
			"documentation on how to set this variable. <br>" +
			"Once a workspace has been defined the intents may be imported from " +
			"<a href=\"https://github.com/watson-developer-cloud/assistant-simple/blob/master/training/car_workspace.json\">here</a> " +
			"in order to get a working application.",
	},
})

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("assistant: " + err.Error())
	}
	return data
}

// Relay forwards chat turns to the assistant service.
type Relay struct {
	assistant   Assistant
	assistantID string
	logger      *slog.Logger
}

// NewRelay creates a relay for assistantID using the given service client.
func NewRelay(assistant Assistant, assistantID string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		assistant:   assistant,
		assistantID: assistantID,
		logger:      logger.With("component", "relay"),
	}
}

// Configured reports whether a real assistant ID is set.
func (r *Relay) Configured() bool {
	return r.assistantID != "" && r.assistantID != config.PlaceholderAssistantID
}

// RelayTurn forwards one turn and returns the service reply verbatim.
// Remote failures are returned as *RemoteError.
func (r *Relay) RelayTurn(ctx context.Context, turn Turn) (*Reply, error) {
	if !r.Configured() {
		return &Reply{Status: http.StatusOK, Body: notConfiguredBody}, nil
	}

	effective, err := advanceContext(turn.Context)
	if err != nil {
		return nil, err
	}

	text := ""
	if turn.Input != nil {
		text = turn.Input.Text
	}

	req := MessageRequest{
		AssistantID: r.assistantID,
		SessionID:   turn.SessionID,
		Context:     effective,
		Input: MessageInput{
			MessageType: "text",
			Text:        text,
			Options:     MessageOptions{ReturnContext: true},
		},
	}

	body, err := r.assistant.Message(ctx, req)
	if err != nil {
		remote := asRemoteError(err)
		r.logger.Warn("Assistant message failed",
			"session_id", turn.SessionID,
			"status", remote.Status(),
			"error", err,
		)
		return nil, remote
	}
	return &Reply{Status: http.StatusOK, Body: body}, nil
}

// CreateRemoteSession opens a session on the assistant service and passes
// its result through.
func (r *Relay) CreateRemoteSession(ctx context.Context) (*Reply, error) {
	body, err := r.assistant.CreateSession(ctx, r.assistantID)
	if err != nil {
		remote := asRemoteError(err)
		r.logger.Warn("Assistant session creation failed", "status", remote.Status(), "error", err)
		return nil, remote
	}
	return &Reply{Status: http.StatusOK, Body: body}, nil
}

// asRemoteError normalizes any client failure into a *RemoteError with a body.
func asRemoteError(err error) *RemoteError {
	var remote *RemoteError
	if errors.As(err, &remote) {
		if len(remote.Body) == 0 {
			remote.Body = errorBody(err.Error(), remote.Status())
		}
		return remote
	}
	return &RemoteError{
		Body: errorBody(err.Error(), http.StatusInternalServerError),
		Err:  err,
	}
}

// hasContext treats an empty body and JSON null as "no context supplied".
func hasContext(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// advanceContext returns the context to send for this turn: a fresh one with
// turn_count 1 when none was supplied, otherwise prior with turn_count
// incremented and every other byte left as it was.
func advanceContext(prior json.RawMessage) (json.RawMessage, error) {
	if !hasContext(prior) {
		return json.RawMessage(`{"global":{"system":{"turn_count":1}}}`), nil
	}
	if !gjson.ValidBytes(prior) || !gjson.ParseBytes(prior).IsObject() {
		return nil, ErrInvalidContext
	}
	// Setting the count must not replace a client value on the way down.
	for _, path := range []string{"global", "global.system"} {
		if v := gjson.GetBytes(prior, path); v.Exists() && !v.IsObject() {
			return nil, fmt.Errorf("%w: %s is not an object", ErrInvalidContext, path)
		}
	}

	count, err := priorTurnCount(prior)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes(prior, turnCountPath, count+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}
	return out, nil
}

// priorTurnCount reads the current count: 0 when missing, otherwise an
// integer that can still be incremented.
func priorTurnCount(prior json.RawMessage) (int64, error) {
	v := gjson.GetBytes(prior, turnCountPath)
	if !v.Exists() {
		return 0, nil
	}
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: turn_count is not a number", ErrInvalidContext)
	}
	count, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: turn_count must be an integer: %s", ErrInvalidContext, v.Raw)
	}
	if count == math.MaxInt64 {
		return 0, fmt.Errorf("%w: turn_count overflow", ErrInvalidContext)
	}
	return count, nil
}

// TurnCount reads global.system.turn_count from a context.
func TurnCount(ctx json.RawMessage) int64 {
	return gjson.GetBytes(ctx, turnCountPath).Int()
}
