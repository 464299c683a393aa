package agent

import (
	"context"
	"errors"
)

// Roles follow the Gemini convention; the OpenAI client translates them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role string
	Text string
}

// Client is the black-box text-generation capability: given a prompt or
// an ordered message history, return freeform text. Callers must not
// assume the text is well-formed JSON; see normalize.go and schema.go.
type Client interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateChat(ctx context.Context, history []Message) (string, error)
}

var (
	// ErrUnavailable means no model client is configured (missing API key).
	ErrUnavailable = errors.New("model client is not configured")
	// ErrUpstream wraps transport, quota and API failures of the model call.
	ErrUpstream = errors.New("model call failed")
)
