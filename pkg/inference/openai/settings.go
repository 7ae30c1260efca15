package openai

// Settings configures one OpenAI-compatible backend connection. Any provider
// exposing the chat completions wire format works through this engine, only
// the base URL and key differ.
type Settings struct {
	BaseURL string
	APIKey  string
	Model   string

	Temperature *float64
	TopP        *float64
	MaxTokens   int

	// AcceptImages enables multi-part user messages with inline image parts.
	AcceptImages bool
	// AcceptAuthorTags passes per-author identity tags as the name field on
	// user messages.
	AcceptAuthorTags bool
}
