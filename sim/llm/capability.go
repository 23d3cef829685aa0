// Package llm is the Generation Capability: an OpenAI-compatible chat
// completions client with a built-in template fallback.
package llm

import "context"

// Message is one chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Capability is what the dialogue pipeline needs from a text generator.
type Capability interface {
	// Available reports whether Generate may be attempted at all.
	Available() bool
	// Generate blocks for at most the capability's own timeout and returns
	// the trimmed completion. Empty text is reported as an error.
	Generate(ctx context.Context, system string, messages []Message, maxTokens int, temperature float64) (string, error)
	// Fallback returns a canned line and never fails.
	Fallback(speaker, listener, situational string) string
}
