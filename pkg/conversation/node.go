package conversation

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

// NodeID is the cache key for a message node. It is the message's snowflake
// identifier, so numeric order is chronological order.
type NodeID uint64

// NullNode marks the absence of a parent.
const NullNode NodeID = 0

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageContent is one image part attached to a turn, either downloaded bytes
// or a bare URL (embed images).
type ImageContent struct {
	MediaType string
	Data      []byte
	URL       string
}

// DataURI renders the image as a base64 data URI for providers that accept
// inline image parts. Falls back to the URL for link-only images.
func (i *ImageContent) DataURI() string {
	if len(i.Data) == 0 {
		return i.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", i.MediaType, base64.StdEncoding.EncodeToString(i.Data))
}

// Node is the cached state for one chat message.
//
// All fields except the lock itself are populated at most once, under the
// node's own lock, the first time a chain walk reaches the message. Response
// messages are the one exception: their node is created empty and locked for
// the whole duration of the streaming response, then filled and released when
// the response finishes (see the assembler's tracker).
type Node struct {
	mu sync.Mutex

	// Text is nil until the node has been populated.
	Text   *string
	Images []*ImageContent

	Role Role
	// AuthorTag is set for user nodes when the active provider accepts
	// per-author identity tags.
	AuthorTag string

	HasBadAttachments bool
	// IgnoredAttachments counts attachments dropped during population, both
	// unsupported content types and failed downloads.
	IgnoredAttachments int
	ParentFetchFailed  bool

	// ParentID is a key reference, resolved through the cache, never a
	// materialized edge. NullNode means the chain ends here.
	ParentID NodeID
	// parentRef carries enough of the parent's coordinates to fetch it when
	// its own node has not been populated yet.
	parentRef *chat.Reference
}

func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// Populated reports whether the node's fields have been filled. Callers must
// hold the node's lock.
func (n *Node) Populated() bool {
	return n.Text != nil
}

// SetText fills the node's text. Callers must hold the node's lock.
func (n *Node) SetText(text string) {
	n.Text = &text
}

// SetParent records the parent key reference. Callers must hold the node's
// lock.
func (n *Node) SetParent(ref chat.Reference) {
	n.ParentID = NodeID(ref.MessageID)
	refCopy := ref
	n.parentRef = &refCopy
}

// ParentRef returns the parent reference, or nil when the chain ends.
func (n *Node) ParentRef() *chat.Reference {
	if n.ParentID == NullNode || n.parentRef == nil {
		return nil
	}
	return n.parentRef
}
