package chat

import (
	"strconv"
	"strings"
)

// ID is a snowflake-style identifier as issued by the chat surface.
// IDs are monotonically increasing, so numeric order is chronological order.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return ID(v), err
}

type ChannelType string

const (
	ChannelTypePrivate ChannelType = "private"
	ChannelTypeGuild   ChannelType = "guild"
	ChannelTypeThread  ChannelType = "thread"
)

type Channel struct {
	ID         ID
	ParentID   ID
	CategoryID ID
	Type       ChannelType
}

// IDs returns the channel id plus its parent and category ids, for
// permission checks that match any enclosing scope.
func (c Channel) IDs() []ID {
	ids := []ID{c.ID}
	if c.ParentID != 0 {
		ids = append(ids, c.ParentID)
	}
	if c.CategoryID != 0 {
		ids = append(ids, c.CategoryID)
	}
	return ids
}

type Author struct {
	ID      ID
	Name    string
	Bot     bool
	RoleIDs []ID
}

type Attachment struct {
	Filename    string
	ContentType string
	URL         string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Footer      string
	ImageURL    string
	Color       int
	Fields      []EmbedField
}

// Text joins the embed's textual parts the way they are forwarded to the
// model: title, description and footer, skipping empty parts.
func (e Embed) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{e.Title, e.Description, e.Footer} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Reference points at another message, as a reply reference or a thread
// origin. It is a key pair, never a materialized message.
type Reference struct {
	ChannelID ID
	MessageID ID
}

type Message struct {
	ID      ID
	Channel Channel
	Author  Author
	Content string

	Attachments []Attachment
	Embeds      []Embed
	Mentions    []ID

	// Reference is the explicit reply reference, if any.
	Reference *Reference
	// ThreadOrigin is set on the first message of a thread and points at the
	// message the thread was started from.
	ThreadOrigin *Reference
}

func (m *Message) IsDM() bool {
	return m.Channel.Type == ChannelTypePrivate
}

func (m *Message) MentionsUser(id ID) bool {
	for _, mention := range m.Mentions {
		if mention == id {
			return true
		}
	}
	return false
}

// Identity describes the bot's own account on the chat surface.
type Identity struct {
	UserID  ID
	Mention string
}

// IsSelf reports whether the message was authored by the bot itself.
func (i Identity) IsSelf(m *Message) bool {
	return m.Author.ID == i.UserID
}

// StripMention removes a leading self-mention plus following whitespace.
func (i Identity) StripMention(content string) string {
	return strings.TrimLeft(strings.TrimPrefix(content, i.Mention), " \t\n")
}
