package bot

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kuyari/pkg/chat"
	"github.com/go-go-golems/kuyari/pkg/media"
	"github.com/go-go-golems/kuyari/pkg/settings"
)

// stabilityProviderKey is the providers entry holding the Stability endpoint.
const stabilityProviderKey = "stable_diffusion"

// maybeHandleMusicRequest intercepts natural-language music generation
// requests. Returns true when the message was consumed.
func (b *Bot) maybeHandleMusicRequest(ctx context.Context, cfg *settings.Config, msg *chat.Message) (bool, error) {
	prompt, ok := media.MatchGenerateMusic(msg.Content)
	if !ok {
		return false, nil
	}

	gen := b.newStability(cfg.Providers[stabilityProviderKey])
	audio, err := gen.GenerateAudio(ctx, prompt, media.DefaultAudioDuration)
	if errors.Is(err, media.ErrNotConfigured) {
		return true, b.replyText(ctx, msg, "Music generation is not configured.")
	}
	if err != nil {
		log.Error().Err(err).Str("prompt", prompt).Msg("music generation failed")
		return true, b.replyText(ctx, msg, "Failed to generate music.")
	}

	_, err = b.surface.Reply(ctx, msg, chat.Outgoing{
		File: &chat.OutgoingFile{Name: "music.mp3", Data: audio},
	})
	return true, err
}

// maybeHandleImageRequest intercepts image generation and image search
// requests. Returns true when the message was consumed.
func (b *Bot) maybeHandleImageRequest(ctx context.Context, cfg *settings.Config, msg *chat.Message) (bool, error) {
	if prompt, ok := media.MatchGenerateImage(msg.Content); ok {
		return true, b.generateImage(ctx, cfg, msg, prompt)
	}
	if query, ok := media.MatchSearchImage(msg.Content); ok {
		return true, b.searchImage(ctx, cfg, msg, query)
	}
	return false, nil
}

func (b *Bot) generateImage(ctx context.Context, cfg *settings.Config, msg *chat.Message, prompt string) error {
	gen := b.newStability(cfg.Providers[stabilityProviderKey])
	image, err := gen.GenerateImage(ctx, prompt, cfg.Engines[b.state.Engine()])
	if errors.Is(err, media.ErrNotConfigured) {
		return b.replyText(ctx, msg, "Image generation is not configured.")
	}
	if err != nil {
		log.Error().Err(err).Str("prompt", prompt).Msg("image generation failed")
		return b.replyText(ctx, msg, "Failed to generate image.")
	}

	_, err = b.surface.Reply(ctx, msg, chat.Outgoing{
		File: &chat.OutgoingFile{Name: "image.png", Data: image},
		Embed: &chat.Embed{
			Title:    prompt,
			ImageURL: "attachment://image.png",
		},
	})
	return err
}

func (b *Bot) searchImage(ctx context.Context, cfg *settings.Config, msg *chat.Message, query string) error {
	searcher := b.newSearcher(cfg.GoogleAPIKey, cfg.GoogleCSEID)
	link, err := searcher.FirstImageURL(ctx, query)
	if errors.Is(err, media.ErrNotConfigured) {
		return b.replyText(ctx, msg, "Google search is not configured.")
	}
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("image search failed")
		return b.replyText(ctx, msg, "No images found.")
	}
	if link == "" {
		return b.replyText(ctx, msg, "No images found.")
	}

	_, err = b.surface.Reply(ctx, msg, chat.Outgoing{
		Embed: &chat.Embed{Title: query, ImageURL: link},
	})
	return err
}

func (b *Bot) replyText(ctx context.Context, msg *chat.Message, text string) error {
	_, err := b.surface.Reply(ctx, msg, chat.Outgoing{Content: text})
	return err
}
