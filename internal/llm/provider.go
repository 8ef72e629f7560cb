package llm

import "context"

// Message is one turn of a chat exchange with a foundation-model provider.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ToolSchema describes a callable function a provider may invoke. The
// research engine never sets tools today (spec §4.9 is single-shot
// cited-answer generation), but Chat accepts them so a provider can be
// reused by a future tool-calling caller without changing its signature.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is a foundation-model backend capable of one-shot chat
// completion, per spec §4.9 step 4 ("invoke the configured provider").
type Provider interface {
	Chat(ctx context.Context, msgs []Message, tools []ToolSchema, model string) (Message, error)
}
