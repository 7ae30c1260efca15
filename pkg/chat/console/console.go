// Package console implements a line-oriented local chat surface, mainly for
// trying the bot out without a real chat gateway.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

// Surface is a single private channel rendered to an io.Writer. Incoming
// lines become user messages through UserMessage; bot replies and edits are
// printed as they happen.
type Surface struct {
	mu       sync.Mutex
	out      io.Writer
	bot      chat.Author
	channel  chat.Channel
	messages map[chat.ID]*chat.Message
	order    []chat.ID
	nextID   chat.ID
}

func New(out io.Writer, bot chat.Author) *Surface {
	return &Surface{
		out:      out,
		bot:      bot,
		channel:  chat.Channel{ID: 1, Type: chat.ChannelTypePrivate},
		messages: make(map[chat.ID]*chat.Message),
		nextID:   1,
	}
}

// UserMessage records one line of user input as a message in the channel.
func (s *Surface) UserMessage(author chat.Author, content string) *chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &chat.Message{
		ID:      s.nextID,
		Channel: s.channel,
		Author:  author,
		Content: content,
	}
	s.record(msg)
	return msg
}

func (s *Surface) record(msg *chat.Message) {
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	s.nextID = msg.ID + 1
}

func (s *Surface) Reply(_ context.Context, to *chat.Message, out chat.Outgoing) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &chat.Message{
		ID:      s.nextID,
		Channel: s.channel,
		Author:  s.bot,
		Content: out.Content,
		Reference: &chat.Reference{
			ChannelID: to.Channel.ID,
			MessageID: to.ID,
		},
	}
	if out.Embed != nil {
		msg.Embeds = []chat.Embed{*out.Embed}
	}
	s.record(msg)
	s.render(msg.ID, out)
	return msg, nil
}

func (s *Surface) Edit(_ context.Context, target *chat.Message, out chat.Outgoing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[target.ID]
	if !ok {
		return chat.ErrNotFound
	}
	msg.Content = out.Content
	if out.Embed != nil {
		msg.Embeds = []chat.Embed{*out.Embed}
	}
	s.render(msg.ID, out)
	return nil
}

func (s *Surface) render(id chat.ID, out chat.Outgoing) {
	text := out.Content
	if out.Embed != nil {
		text = out.Embed.Description
		for _, field := range out.Embed.Fields {
			if field.Value != "" {
				text += fmt.Sprintf("\n[%s] %s", field.Name, field.Value)
			} else {
				text += fmt.Sprintf("\n[%s]", field.Name)
			}
		}
	}
	if out.File != nil {
		text += fmt.Sprintf(" <file %s, %d bytes>", out.File.Name, len(out.File.Data))
	}
	fmt.Fprintf(s.out, "[%s] %s: %s\n", id, s.bot.Name, text)
}

func (s *Surface) FetchMessage(_ context.Context, ref chat.Reference) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[ref.MessageID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return msg, nil
}

func (s *Surface) PreviousMessage(_ context.Context, m *chat.Message) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] < m.ID {
			return s.messages[s.order[i]], nil
		}
	}
	return nil, nil
}

var _ chat.Surface = (*Surface)(nil)
