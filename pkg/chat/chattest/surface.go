// Package chattest provides a scripted in-memory chat surface for tests.
package chattest

import (
	"context"
	"sort"
	"sync"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

// Surface is an in-memory chat.Surface. Messages are registered up front or
// created by Reply; channel ordering follows message id order.
type Surface struct {
	mu       sync.Mutex
	messages map[chat.ID]*chat.Message
	byChan   map[chat.ID][]chat.ID
	sent     []*chat.Message
	edits    map[chat.ID][]chat.Outgoing
	nextID   chat.ID

	// Bot is used as the author of messages created through Reply.
	Bot chat.Author
	// FailFetch lists message ids whose FetchMessage calls fail.
	FailFetch map[chat.ID]bool
	// ReplyErr and EditErr, when set, make the corresponding calls fail.
	ReplyErr error
	EditErr  error

	fetchCalls int
}

func NewSurface() *Surface {
	return &Surface{
		messages:  make(map[chat.ID]*chat.Message),
		byChan:    make(map[chat.ID][]chat.ID),
		edits:     make(map[chat.ID][]chat.Outgoing),
		nextID:    1 << 20,
		FailFetch: make(map[chat.ID]bool),
	}
}

// Add registers a message as part of the channel's history.
func (s *Surface) Add(m *chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(m)
}

func (s *Surface) add(m *chat.Message) {
	s.messages[m.ID] = m
	ids := append(s.byChan[m.Channel.ID], m.ID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.byChan[m.Channel.ID] = ids
	if m.ID >= s.nextID {
		s.nextID = m.ID + 1
	}
}

func (s *Surface) Reply(_ context.Context, to *chat.Message, out chat.Outgoing) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReplyErr != nil {
		return nil, s.ReplyErr
	}
	msg := &chat.Message{
		ID:      s.nextID,
		Channel: to.Channel,
		Author:  s.Bot,
		Content: out.Content,
		Reference: &chat.Reference{
			ChannelID: to.Channel.ID,
			MessageID: to.ID,
		},
	}
	if out.Embed != nil {
		msg.Embeds = []chat.Embed{*out.Embed}
	}
	s.add(msg)
	s.sent = append(s.sent, msg)
	return msg, nil
}

func (s *Surface) Edit(_ context.Context, target *chat.Message, out chat.Outgoing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EditErr != nil {
		return s.EditErr
	}
	s.edits[target.ID] = append(s.edits[target.ID], out)
	return nil
}

func (s *Surface) FetchMessage(_ context.Context, ref chat.Reference) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	if s.FailFetch[ref.MessageID] {
		return nil, chat.ErrNotFound
	}
	msg, ok := s.messages[ref.MessageID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return msg, nil
}

func (s *Surface) PreviousMessage(_ context.Context, m *chat.Message) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byChan[m.Channel.ID]
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= m.ID })
	if idx == 0 {
		return nil, nil
	}
	return s.messages[ids[idx-1]], nil
}

// Sent returns the messages created through Reply, in order.
func (s *Surface) Sent() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*chat.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// Edits returns the edit payloads applied to the given message, in order.
func (s *Surface) Edits(id chat.ID) []chat.Outgoing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Outgoing, len(s.edits[id]))
	copy(out, s.edits[id])
	return out
}

// FetchCalls returns how many FetchMessage calls were made.
func (s *Surface) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

var _ chat.Surface = (*Surface)(nil)

// Fetcher is a scripted chat.ContentFetcher.
type Fetcher struct {
	mu sync.Mutex
	// Responses maps urls to bodies; urls missing from the map fail.
	Responses map[string][]byte
	calls     int
}

func NewFetcher() *Fetcher {
	return &Fetcher{Responses: make(map[string][]byte)}
}

func (f *Fetcher) FetchBytes(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.Responses[url]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return body, nil
}

// Calls returns how many downloads were attempted.
func (f *Fetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ chat.ContentFetcher = (*Fetcher)(nil)
