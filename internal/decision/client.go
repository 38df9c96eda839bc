package decision

import "context"

// Request is one completion request to the language model: a user prompt,
// system instructions, and optional structured context serialized into the
// prompt.
type Request struct {
	Prompt  string
	System  string
	Context map[string]any
}

// Client turns a request into free-form model text. Implementations own
// their transport, timeout and retry behavior; callers treat any error as
// "model unavailable" and degrade.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
