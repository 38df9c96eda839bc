package decision

import (
	"context"
	"fmt"

	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Degradation reasons stamped on fallback decisions so callers can count
// them without inspecting reply text.
const (
	ReasonLLMUnavailable = "llm_unavailable"
	ReasonParseFail      = "parse_fail"
)

// HistoryTurn is one prior exchange supplied as decision context.
type HistoryTurn struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// DecideInput bundles everything the model needs to make a turn decision.
type DecideInput struct {
	UserMessage  string
	CustomerData map[string]any
	History      []HistoryTurn
	CurrentState string
}

// OperationOutcome summarizes one executed backend operation for reply
// composition.
type OperationOutcome struct {
	Name    string         `json:"name"`
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Decider wraps a Client with the decision schema: it prompts for a
// structured decision, defensively parses the output, and degrades to a
// conversational fallback instead of surfacing model failures. Orchestration
// only ever sees a Decision.
type Decider struct {
	client Client
	logger *logging.Logger
}

// NewDecider builds a decider over the given model client.
func NewDecider(client Client, logger *logging.Logger) *Decider {
	if client == nil {
		panic("decision: client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Decider{client: client, logger: logger}
}

// Decide asks the model for an intent+extraction decision. It never returns
// an error: unparseable output becomes a conversational decision carrying
// the raw text, and model unavailability becomes a canned fallback.
func (d *Decider) Decide(ctx context.Context, in DecideInput) *Decision {
	prompt := fmt.Sprintf(
		"Current user message: %q\n\n"+
			"INSTRUCTIONS:\n"+
			"1. DETECT INTENT: informational, conversational, or purchase-focused?\n"+
			"2. BE NATURAL: do not force data collection for casual questions.\n"+
			"3. USE CONTEXT: reference known data, never re-ask for it.\n"+
			"4. CHOOSE MODE based on user intent.\n\n"+
			"Return a JSON response following the schema in your system prompt.",
		in.UserMessage,
	)
	raw, err := d.client.Complete(ctx, Request{
		Prompt: prompt,
		System: masterSystemPrompt,
		Context: map[string]any{
			"known_customer_data":  in.CustomerData,
			"conversation_history": in.History,
			"current_state":        in.CurrentState,
		},
	})
	if err != nil {
		d.logger.Error("decision call failed, using fallback", "error", err)
		return &Decision{Mode: ModeConversational, Reply: fallbackReply, Reasoning: ReasonLLMUnavailable}
	}

	parsed, perr := ParseDecision(raw)
	if perr != nil {
		d.logger.Warn("model returned non-JSON decision, degrading to conversational reply")
		return &Decision{Mode: ModeConversational, Reply: raw, Reasoning: ReasonParseFail}
	}
	if parsed.Mode != ModeInformational && parsed.Mode != ModeOnboarding {
		parsed.Mode = ModeConversational
	}
	return parsed
}

// Compose asks the model to narrate operation results as plain prose and ask
// exactly one follow-up question. On failure it falls back to the first
// decision's reply, or the canned fallback when that is empty too.
func (d *Decider) Compose(ctx context.Context, in DecideInput, decided *Decision, outcomes []OperationOutcome) string {
	// Nothing to narrate and the first reply is already clean prose: skip
	// the second model call and reuse it.
	if len(outcomes) == 0 && decided.Reply != "" {
		return decided.Reply
	}

	reply, err := d.client.Complete(ctx, Request{
		Prompt: "Summarize the operation results for the user in plain language, then ask exactly ONE relevant next question. Respond with prose only, no JSON.",
		System: masterSystemPrompt,
		Context: map[string]any{
			"user_message":      in.UserMessage,
			"extracted":         decided.Extracted,
			"operation_results": outcomes,
			"guidance": map[string]any{
				"one_question": true,
				"tone":         "friendly, professional, concise",
			},
		},
	})
	if err != nil || reply == "" {
		d.logger.Warn("compose call failed, reusing decision reply", "error", err)
		if decided.Reply != "" {
			return decided.Reply
		}
		return fallbackReply
	}
	return reply
}
