package state

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound reports an unknown previous_response_id. Surfaced to the
// client as 409 Conflict.
var ErrNotFound = errors.New("conversation state not found")

// Turn is one stored conversation turn: the full rendered input the
// upstream saw and the assistant output it produced.
type Turn struct {
	InputItems         []interface{} `json:"input_items"`
	Output             []interface{} `json:"output"`
	Model              string        `json:"model"`
	AliasResolvedModel string        `json:"alias_resolved_model"`
	IsStreaming        bool          `json:"is_streaming"`
	RequestID          string        `json:"request_id"`
}

// Store is the conversational state contract. Backends are selected at
// construction; callers program to this interface only.
type Store interface {
	Get(ctx context.Context, responseID string) (*Turn, error)
	Put(ctx context.Context, responseID string, turn *Turn) error
	// Combine returns the previous turn's input items followed by its
	// assistant output followed by newItems. Because each Put stores the
	// already-combined input, ancestry is flattened transitively.
	Combine(ctx context.Context, previousResponseID string, newItems []interface{}) ([]interface{}, error)
}

// NewResponseID synthesizes a response id for a captured turn.
func NewResponseID() string {
	return "resp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func combineTurn(previous *Turn, newItems []interface{}) []interface{} {
	combined := make([]interface{}, 0, len(previous.InputItems)+len(previous.Output)+len(newItems))
	combined = append(combined, previous.InputItems...)
	combined = append(combined, previous.Output...)
	combined = append(combined, newItems...)
	return combined
}
