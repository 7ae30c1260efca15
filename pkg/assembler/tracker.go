package assembler

import (
	"github.com/go-go-golems/kuyari/pkg/chat"
	"github.com/go-go-golems/kuyari/pkg/conversation"
)

// Tracker binds the outgoing messages of one response to conversation nodes.
//
// Each response message gets a fresh assistant node, locked immediately on
// creation: if the message becomes a parent in a concurrent chain walk before
// the response is done, that walk blocks instead of observing half-written
// text. Finish fills every node and releases every lock, on success and on
// error alike.
type Tracker struct {
	cache    *conversation.Cache
	trigger  *chat.Message
	msgs     []*chat.Message
	nodes    []*conversation.Node
	finished bool
}

func NewTracker(cache *conversation.Cache, trigger *chat.Message) *Tracker {
	return &Tracker{
		cache:   cache,
		trigger: trigger,
	}
}

// Attach registers a freshly sent response message and locks its node.
func (t *Tracker) Attach(msg *chat.Message) {
	node := t.cache.GetOrCreate(conversation.NodeID(msg.ID))
	node.Lock()
	node.Role = conversation.RoleAssistant
	node.SetParent(chat.Reference{
		ChannelID: t.trigger.Channel.ID,
		MessageID: t.trigger.ID,
	})
	t.msgs = append(t.msgs, msg)
	t.nodes = append(t.nodes, node)
}

// LastMessage returns the most recently attached response message, or nil.
func (t *Tracker) LastMessage() *chat.Message {
	if len(t.msgs) == 0 {
		return nil
	}
	return t.msgs[len(t.msgs)-1]
}

// Messages returns all attached response messages in order.
func (t *Tracker) Messages() []*chat.Message {
	return t.msgs
}

// Finish writes the full response text into every attached node and releases
// the locks. Safe to call more than once; only the first call has effect.
func (t *Tracker) Finish(fullText string) {
	if t.finished {
		return
	}
	t.finished = true
	for _, node := range t.nodes {
		node.SetText(fullText)
		node.Unlock()
	}
}
