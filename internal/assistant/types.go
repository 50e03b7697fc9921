// Package assistant relays chat turns between portal clients and the hosted
// assistant service, threading the conversation context through each turn.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidContext is returned when a client-supplied context is not a JSON object.
var ErrInvalidContext = errors.New("assistant: context must be a JSON object")

// Assistant is the request/response contract of the remote assistant service.
// Successful calls return the response body verbatim.
type Assistant interface {
	// Message submits one conversational turn.
	Message(ctx context.Context, req MessageRequest) (json.RawMessage, error)

	// CreateSession opens a remote session for assistantID.
	CreateSession(ctx context.Context, assistantID string) (json.RawMessage, error)
}

// MessageRequest is the outbound payload for one turn.
type MessageRequest struct {
	AssistantID string          `json:"assistant_id"`
	SessionID   string          `json:"session_id"`
	Context     json.RawMessage `json:"context"`
	Input       MessageInput    `json:"input"`
}

// MessageInput is the user input of a turn.
type MessageInput struct {
	MessageType string         `json:"message_type"`
	Text        string         `json:"text"`
	Options     MessageOptions `json:"options"`
}

// MessageOptions asks the service for extra response content.
type MessageOptions struct {
	ReturnContext bool `json:"return_context"`
}

// Turn is one inbound chat turn as posted by the client.
type Turn struct {
	SessionID string          `json:"session_id,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
	Input     *TurnInput      `json:"input,omitempty"`
}

// TurnInput carries the user's text.
type TurnInput struct {
	Text string `json:"text"`
}

// Reply is what the relay hands back to the client: a status and a JSON body.
type Reply struct {
	Status int
	Body   json.RawMessage
}

// RemoteError reports a failed call to the assistant service. Body is the
// service's error payload, passed through to the client unchanged.
type RemoteError struct {
	StatusCode int
	Body       json.RawMessage
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assistant: remote call failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("assistant: remote call failed (status %d): %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status to report: the remote status when positive,
// otherwise 500.
func (e *RemoteError) Status() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// errorBody builds a service-style error payload for failures that carry none.
func errorBody(message string, code int) json.RawMessage {
	data, err := json.Marshal(map[string]any{"error": message, "code": code})
	if err != nil {
		return json.RawMessage(`{"error":"internal error","code":500}`)
	}
	return data
}
