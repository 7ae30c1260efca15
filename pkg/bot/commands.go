package bot

import (
	"fmt"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

// HandleModelCommand views or switches the active model. Switching is
// restricted to admins; anyone may query the current value by passing the
// active model or an empty string.
func (b *Bot) HandleModelCommand(userID chat.ID, model string) string {
	if model == "" || model == b.state.Model() {
		return fmt.Sprintf("Current model: `%s`", b.state.Model())
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return "Failed to load configuration."
	}
	if !cfg.Permissions.IsAdmin(userID) {
		return "You don't have permission to change the model."
	}
	b.state.SwitchModel(model)
	return fmt.Sprintf("Model switched to: `%s`", model)
}

// HandleEngineCommand views or switches the active media engine, with the
// same admin gating as HandleModelCommand.
func (b *Bot) HandleEngineCommand(userID chat.ID, engine string) string {
	if engine == "" || engine == b.state.Engine() {
		return fmt.Sprintf("Current engine: `%s`", b.state.Engine())
	}
	cfg, err := b.loadConfig()
	if err != nil {
		return "Failed to load configuration."
	}
	if !cfg.Permissions.IsAdmin(userID) {
		return "You don't have permission to change the engine."
	}
	b.state.SwitchEngine(engine)
	return fmt.Sprintf("Engine switched to: `%s`", engine)
}
