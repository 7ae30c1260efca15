package settings

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// State holds the runtime-switchable parts of the configuration, the active
// model and media engine. Switching is admin-gated at the call site.
type State struct {
	mu     sync.RWMutex
	model  string
	engine string
}

func NewState(cfg *Config) *State {
	return &State{
		model:  cfg.FirstModel(),
		engine: cfg.FirstEngine(),
	}
}

func (s *State) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *State) Engine() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SwitchModel changes the active model. Returns false when it was already
// active.
func (s *State) SwitchModel(model string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == model {
		return false
	}
	s.model = model
	log.Info().Str("model", model).Msg("model switched")
	return true
}

// SwitchEngine changes the active media engine. Returns false when it was
// already active.
func (s *State) SwitchEngine(engine string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == engine {
		return false
	}
	s.engine = engine
	log.Info().Str("engine", engine).Msg("engine switched")
	return true
}
