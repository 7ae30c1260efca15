// Package openai implements the inference engine for OpenAI-compatible chat
// completion backends.
package openai

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/kuyari/pkg/conversation"
	"github.com/go-go-golems/kuyari/pkg/events"
	"github.com/go-go-golems/kuyari/pkg/inference"
)

type Engine struct {
	settings Settings
	config   *inference.Config
	client   *go_openai.Client
}

var _ inference.Engine = (*Engine)(nil)

func NewEngine(settings Settings, options ...inference.Option) *Engine {
	clientConfig := go_openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		clientConfig.BaseURL = settings.BaseURL
	}
	return &Engine{
		settings: settings,
		config:   inference.NewConfig(options...),
		client:   go_openai.NewClientWithConfig(clientConfig),
	}
}

// RunInference streams one chat completion. Content deltas, reasoning deltas
// and the terminal outcome are published to the configured sinks in stream
// order; the full response text is returned once the backend closes the
// stream.
func (e *Engine) RunInference(ctx context.Context, history []conversation.Turn, systemPrompt string) (string, error) {
	metadata := events.EventMetadata{
		ID:         uuid.New(),
		ResponseID: shortuuid.New(),
		Model:      e.settings.Model,
	}

	req := e.makeRequest(history, systemPrompt)
	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("starting chat completion stream")

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		wrapped := errors.Wrap(err, "failed to create chat completion stream")
		e.config.PublishEvent(events.NewErrorEvent(metadata, wrapped))
		return "", wrapped
	}
	defer stream.Close()

	e.config.PublishEvent(events.NewStartEvent(metadata))

	var completion strings.Builder
	var reasoning strings.Builder
	stopReason := ""

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			e.config.PublishEvent(events.NewFinalEvent(metadata, completion.String(), stopReason))
			return completion.String(), nil
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				e.config.PublishEvent(events.NewInterruptEvent(metadata, completion.String()))
				return completion.String(), err
			}
			wrapped := errors.Wrap(err, "chat completion stream failed")
			e.config.PublishEvent(events.NewErrorEvent(metadata, wrapped))
			return completion.String(), wrapped
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.ReasoningContent != "" {
			reasoning.WriteString(choice.Delta.ReasoningContent)
			e.config.PublishEvent(events.NewThinkingPartialEvent(
				metadata, choice.Delta.ReasoningContent, reasoning.String()))
		}
		if choice.Delta.Content != "" {
			completion.WriteString(choice.Delta.Content)
			e.config.PublishEvent(events.NewPartialCompletionEvent(
				metadata, choice.Delta.Content, completion.String()))
		}
		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
	}
}

// makeRequest linearizes the conversation history into the chat completions
// wire shape. User turns with images become multi-part messages when the
// backend accepts them; assistant turns are always plain text.
func (e *Engine) makeRequest(history []conversation.Turn, systemPrompt string) go_openai.ChatCompletionRequest {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, turn := range history {
		msgs = append(msgs, e.makeMessage(turn))
	}

	req := go_openai.ChatCompletionRequest{
		Model:    e.settings.Model,
		Messages: msgs,
		Stream:   true,
	}
	if e.settings.Temperature != nil {
		req.Temperature = float32(*e.settings.Temperature)
	}
	if e.settings.TopP != nil {
		req.TopP = float32(*e.settings.TopP)
	}
	if e.settings.MaxTokens > 0 {
		req.MaxTokens = e.settings.MaxTokens
	}
	return req
}

func (e *Engine) makeMessage(turn conversation.Turn) go_openai.ChatCompletionMessage {
	if turn.Role == conversation.RoleAssistant {
		return go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleAssistant,
			Content: turn.Text,
		}
	}

	msg := go_openai.ChatCompletionMessage{
		Role: go_openai.ChatMessageRoleUser,
	}
	if e.settings.AcceptAuthorTags && turn.AuthorTag != "" {
		msg.Name = turn.AuthorTag
	}

	if !e.settings.AcceptImages || len(turn.Images) == 0 {
		msg.Content = turn.Text
		return msg
	}

	parts := []go_openai.ChatMessagePart{}
	if turn.Text != "" {
		parts = append(parts, go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeText,
			Text: turn.Text,
		})
	}
	for _, img := range turn.Images {
		parts = append(parts, go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeImageURL,
			ImageURL: &go_openai.ChatMessageImageURL{
				URL: img.DataURI(),
			},
		})
	}
	msg.MultiContent = parts
	return msg
}
