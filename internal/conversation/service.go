package conversation

import (
	"context"

	"github.com/insurelab/termlife-ai-platform/internal/session"
)

// TurnRequest is one inbound user message addressed to a session.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// DataCollection reports extraction progress for the current state after a
// turn: what was pulled from the message, what the state still needs, and how
// complete the state's form is.
type DataCollection struct {
	ExtractedThisTurn    map[string]any `json:"extracted_this_turn"`
	MissingFields        []string       `json:"missing_fields"`
	CompletionPercentage int            `json:"completion_percentage"`
}

// OperationResult is the outcome of one backend operation run for a turn.
type OperationResult struct {
	Operation string         `json:"operation"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// TurnResponse is everything a turn produced: the reply, the state after any
// transitions, collection progress, and the operations that ran.
type TurnResponse struct {
	SessionID      string            `json:"session_id"`
	Reply          string            `json:"reply"`
	CurrentState   session.State     `json:"current_state"`
	StateChanged   bool              `json:"state_changed"`
	Mode           string            `json:"mode"`
	DataCollection DataCollection    `json:"data_collection"`
	Operations     []OperationResult `json:"operations"`
	QuoteData      map[string]any    `json:"quote_data,omitempty"`
	StoreUpdate    map[string]any    `json:"store_update,omitempty"`
	Done           bool              `json:"done"`
}

// Service drives the conversation: turn processing plus session lifecycle.
type Service interface {
	StartSession(ctx context.Context, sessionID string) (*session.Session, error)
	ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error)
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	ResetSession(ctx context.Context, sessionID string) (*session.Session, error)
	TransitionState(ctx context.Context, sessionID string, target session.State, force bool) (*session.Session, error)
}
