// Package bot wires the full message handling pipeline: gating, media
// request interception, chain walking, inference and response assembly.
package bot

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kuyari/pkg/assembler"
	"github.com/go-go-golems/kuyari/pkg/chat"
	"github.com/go-go-golems/kuyari/pkg/conversation"
	"github.com/go-go-golems/kuyari/pkg/events"
	"github.com/go-go-golems/kuyari/pkg/inference"
	"github.com/go-go-golems/kuyari/pkg/inference/openai"
	"github.com/go-go-golems/kuyari/pkg/media"
	"github.com/go-go-golems/kuyari/pkg/permissions"
	"github.com/go-go-golems/kuyari/pkg/settings"
)

// reasoningInstruction is appended to the newest user turn of every request.
const reasoningInstruction = "Please reason step by step before giving the final answer."

// fallbackAPIKey keeps local OpenAI-compatible servers happy, they reject
// requests with no key at all.
const fallbackAPIKey = "sk-no-key-required"

// EngineFactory builds the inference engine for one response run.
type EngineFactory func(s openai.Settings, options ...inference.Option) inference.Engine

// MediaGenerator is the Stability client surface the bot needs. A client
// without credentials reports media.ErrNotConfigured from its methods.
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string, enginePath string) ([]byte, error)
	GenerateAudio(ctx context.Context, prompt string, durationSeconds int) ([]byte, error)
}

// ImageSearcher is the image search surface the bot needs.
type ImageSearcher interface {
	FirstImageURL(ctx context.Context, query string) (string, error)
}

type Bot struct {
	loadConfig func() (*settings.Config, error)
	state      *settings.State
	cache      *conversation.Cache
	surface    chat.Surface
	fetcher    chat.ContentFetcher
	self       chat.Identity

	newEngine    EngineFactory
	extraSinks   []events.EventSink
	newStability func(cfg settings.ProviderConfig) MediaGenerator
	newSearcher  func(apiKey, cseID string) ImageSearcher
	randFloat    func() float64
}

type Option func(*Bot)

// WithEngineFactory replaces the backend engine construction.
func WithEngineFactory(f EngineFactory) Option {
	return func(b *Bot) { b.newEngine = f }
}

// WithSink adds a diagnostics sink that observes every response's event
// stream alongside the assembler.
func WithSink(sink events.EventSink) Option {
	return func(b *Bot) { b.extraSinks = append(b.extraSinks, sink) }
}

// WithFetcher replaces the attachment fetcher.
func WithFetcher(f chat.ContentFetcher) Option {
	return func(b *Bot) { b.fetcher = f }
}

// WithConfigLoader replaces how the configuration is (re)loaded.
func WithConfigLoader(f func() (*settings.Config, error)) Option {
	return func(b *Bot) { b.loadConfig = f }
}

// WithMediaGeneratorFactory replaces the Stability client construction.
func WithMediaGeneratorFactory(f func(cfg settings.ProviderConfig) MediaGenerator) Option {
	return func(b *Bot) { b.newStability = f }
}

// WithImageSearcherFactory replaces the image search construction.
func WithImageSearcherFactory(f func(apiKey, cseID string) ImageSearcher) Option {
	return func(b *Bot) { b.newSearcher = f }
}

// WithRand replaces the random source used for passive chat rolls.
func WithRand(f func() float64) Option {
	return func(b *Bot) { b.randFloat = f }
}

func New(configPath string, surface chat.Surface, self chat.Identity, options ...Option) (*Bot, error) {
	b := &Bot{
		loadConfig: func() (*settings.Config, error) { return settings.Load(configPath) },
		cache:      conversation.NewCache(conversation.DefaultMaxNodes),
		surface:    surface,
		fetcher:    chat.NewHTTPFetcher(0),
		self:       self,
		newEngine: func(s openai.Settings, opts ...inference.Option) inference.Engine {
			return openai.NewEngine(s, opts...)
		},
		newStability: func(cfg settings.ProviderConfig) MediaGenerator {
			return media.NewStabilityClient(cfg.BaseURL, cfg.APIKey)
		},
		newSearcher: func(apiKey, cseID string) ImageSearcher {
			return media.NewGoogleImageSearch(apiKey, cseID)
		},
		randFloat: rand.Float64,
	}
	for _, o := range options {
		o(b)
	}

	cfg, err := b.loadConfig()
	if err != nil {
		return nil, err
	}
	b.state = settings.NewState(cfg)
	return b, nil
}

// State exposes the runtime model/engine selection for command handling.
func (b *Bot) State() *settings.State {
	return b.state
}

// Cache exposes the conversation node cache.
func (b *Bot) Cache() *conversation.Cache {
	return b.cache
}

// OnIncomingMessage runs the full pipeline for one incoming chat message.
// Messages that fail a gate are dropped silently.
func (b *Bot) OnIncomingMessage(ctx context.Context, msg *chat.Message) error {
	if msg.Author.Bot {
		return nil
	}

	cfg, err := b.loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}

	isDM := msg.IsDM()
	if !isDM && !msg.MentionsUser(b.self.UserID) {
		if !cfg.AllowPassiveChat || b.randFloat() >= cfg.PassiveChatProbability {
			return nil
		}
		log.Debug().Str("message_id", msg.ID.String()).Msg("responding passively")
	}

	allowed := cfg.Permissions.Allows(permissions.Request{
		UserID:     msg.Author.ID,
		RoleIDs:    msg.Author.RoleIDs,
		ChannelIDs: msg.Channel.IDs(),
		IsDM:       isDM,
		AllowDMs:   cfg.AllowDMs,
	})
	if !allowed {
		return nil
	}

	if handled, err := b.maybeHandleMusicRequest(ctx, cfg, msg); handled {
		return err
	}
	if handled, err := b.maybeHandleImageRequest(ctx, cfg, msg); handled {
		return err
	}

	return b.respond(ctx, cfg, msg)
}

// respond builds the conversation history and streams one model response
// back into the channel.
func (b *Bot) respond(ctx context.Context, cfg *settings.Config, msg *chat.Message) error {
	providerSlashModel := b.state.Model()
	provider, model, err := settings.SplitModel(providerSlashModel)
	if err != nil {
		return err
	}
	providerCfg, ok := cfg.Providers[provider]
	if !ok {
		return errors.Errorf("provider %q is not configured", provider)
	}
	params := cfg.Models[providerSlashModel]

	acceptImages := settings.IsVisionModel(providerSlashModel)
	acceptUsernames := settings.SupportsUsernames(providerSlashModel)
	maxImages := 0
	if acceptImages {
		maxImages = cfg.MaxImages
	}

	walker := &conversation.Walker{
		Cache:   b.cache,
		Surface: b.surface,
		Fetcher: b.fetcher,
		Self:    b.self,
		Limits: conversation.Limits{
			MaxMessages: cfg.MaxMessages,
			MaxText:     cfg.MaxText,
			MaxImages:   maxImages,
		},
		AcceptAuthorTags: acceptUsernames,
	}
	history, warnings := walker.BuildHistory(ctx, msg)
	injectReasoningInstruction(history)

	log.Info().
		Str("message_id", msg.ID.String()).
		Str("model", providerSlashModel).
		Int("turns", len(history)).
		Strs("warnings", warnings.Sorted()).
		Msg("generating response")

	tracker := assembler.NewTracker(b.cache, msg)
	asm := assembler.New(ctx, b.surface, tracker, msg, assembler.Options{
		PlainResponses: cfg.UsePlainResponses,
		Warnings:       warnings.Sorted(),
	})

	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = fallbackAPIKey
	}
	engineOptions := []inference.Option{inference.WithSink(asm)}
	for _, sink := range b.extraSinks {
		engineOptions = append(engineOptions, inference.WithSink(sink))
	}
	engine := b.newEngine(openai.Settings{
		BaseURL:          providerCfg.BaseURL,
		APIKey:           apiKey,
		Model:            model,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		MaxTokens:        params.MaxTokens,
		AcceptImages:     acceptImages,
		AcceptAuthorTags: acceptUsernames,
	}, engineOptions...)

	defer b.cache.EvictToCapacity()
	defer asm.Finalize()

	if _, err := engine.RunInference(ctx, history, renderSystemPrompt(cfg.SystemPrompt, time.Now())); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID.String()).Msg("response generation failed")
		return err
	}
	return nil
}

// injectReasoningInstruction appends the step-by-step instruction to the
// newest user turn.
func injectReasoningInstruction(history []conversation.Turn) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != conversation.RoleUser {
			continue
		}
		if history[i].Text == "" {
			history[i].Text = reasoningInstruction
		} else {
			history[i].Text += "\n\n" + reasoningInstruction
		}
		return
	}
}

// renderSystemPrompt substitutes the current date and time placeholders.
func renderSystemPrompt(prompt string, now time.Time) string {
	if prompt == "" {
		return ""
	}
	prompt = strings.ReplaceAll(prompt, "{date}", now.Format("January 2, 2006"))
	prompt = strings.ReplaceAll(prompt, "{time}", now.Format("15:04:05 MST"))
	return prompt
}
