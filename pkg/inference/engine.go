// Package inference defines the engine abstraction between the chat pipeline
// and the model backends.
package inference

import (
	"context"

	"github.com/go-go-golems/kuyari/pkg/conversation"
)

// Engine runs one streaming inference over a linearized conversation history.
// Implementations publish streaming events to the sinks configured on them and
// return the full response text once the stream ends.
type Engine interface {
	RunInference(ctx context.Context, history []conversation.Turn, systemPrompt string) (string, error)
}
