package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/kuyari/pkg/conversation"
)

func floatPtr(f float64) *float64 { return &f }

func TestMakeRequestBasicConversation(t *testing.T) {
	e := NewEngine(Settings{
		Model:       "gpt-4o",
		Temperature: floatPtr(0.7),
		MaxTokens:   512,
	})

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "hello"},
		{Role: conversation.RoleAssistant, Text: "hi there"},
		{Role: conversation.RoleUser, Text: "how are you"},
	}
	req := e.makeRequest(history, "be helpful")

	assert.Equal(t, "gpt-4o", req.Model)
	assert.True(t, req.Stream)
	assert.InDelta(t, 0.7, float64(req.Temperature), 0.001)
	assert.Equal(t, 512, req.MaxTokens)

	require.Len(t, req.Messages, 4)
	assert.Equal(t, go_openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be helpful", req.Messages[0].Content)
	assert.Equal(t, go_openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "hi there", req.Messages[2].Content)
	assert.Equal(t, go_openai.ChatMessageRoleUser, req.Messages[3].Role)
}

func TestMakeRequestOmitsSystemPromptWhenEmpty(t *testing.T) {
	e := NewEngine(Settings{Model: "gpt-4o"})
	req := e.makeRequest([]conversation.Turn{
		{Role: conversation.RoleUser, Text: "hello"},
	}, "")

	require.Len(t, req.Messages, 1)
	assert.Equal(t, go_openai.ChatMessageRoleUser, req.Messages[0].Role)
}

func TestMakeRequestImagesBecomeMultiContent(t *testing.T) {
	e := NewEngine(Settings{Model: "gpt-4o", AcceptImages: true})

	history := []conversation.Turn{
		{
			Role: conversation.RoleUser,
			Text: "what is this",
			Images: []*conversation.ImageContent{
				{MediaType: "image/png", Data: []byte{1, 2, 3}},
				{URL: "https://example.com/a.png"},
			},
		},
	}
	req := e.makeRequest(history, "")

	require.Len(t, req.Messages, 1)
	msg := req.Messages[0]
	assert.Empty(t, msg.Content)
	require.Len(t, msg.MultiContent, 3)
	assert.Equal(t, go_openai.ChatMessagePartTypeText, msg.MultiContent[0].Type)
	assert.Equal(t, "what is this", msg.MultiContent[0].Text)
	assert.Equal(t, go_openai.ChatMessagePartTypeImageURL, msg.MultiContent[1].Type)
	assert.Contains(t, msg.MultiContent[1].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, "https://example.com/a.png", msg.MultiContent[2].ImageURL.URL)
}

func TestMakeRequestImagesDroppedWithoutVisionSupport(t *testing.T) {
	e := NewEngine(Settings{Model: "gpt-3.5-turbo", AcceptImages: false})

	history := []conversation.Turn{
		{
			Role:   conversation.RoleUser,
			Text:   "what is this",
			Images: []*conversation.ImageContent{{URL: "https://example.com/a.png"}},
		},
	}
	req := e.makeRequest(history, "")

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "what is this", req.Messages[0].Content)
	assert.Empty(t, req.Messages[0].MultiContent)
}

func TestMakeRequestAuthorTags(t *testing.T) {
	tagged := NewEngine(Settings{Model: "gpt-4o", AcceptAuthorTags: true})
	untagged := NewEngine(Settings{Model: "some-local-model"})

	history := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "hello", AuthorTag: "42"},
		{Role: conversation.RoleAssistant, Text: "hi", AuthorTag: "42"},
	}

	req := tagged.makeRequest(history, "")
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "42", req.Messages[0].Name)
	assert.Empty(t, req.Messages[1].Name, "assistant turns never carry author tags")

	req = untagged.makeRequest(history, "")
	assert.Empty(t, req.Messages[0].Name)
}
