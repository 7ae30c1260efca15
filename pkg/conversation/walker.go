package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/kuyari/pkg/chat"
)

// Limits bounds what a single history may carry to the backend. Clipping is
// silent truncation plus a warning, never an error.
type Limits struct {
	MaxMessages int
	MaxText     int
	// MaxImages is 0 when the active backend does not accept image parts.
	MaxImages int
}

const warnParentFetchFailed = "Failed to fetch an earlier message in the reply chain"

// Walker reconstructs a linear conversation from a leaf message by following
// parent references backwards, populating nodes on demand through the cache.
type Walker struct {
	Cache   *Cache
	Surface chat.Surface
	Fetcher chat.ContentFetcher
	Self    chat.Identity
	Limits  Limits
	// AcceptAuthorTags mirrors whether the active provider supports per-author
	// identity tags on user turns.
	AcceptAuthorTags bool
}

// BuildHistory walks the reply chain starting at leaf and returns the turns
// in chronological order, plus the accumulated warning set.
//
// The walk runs newest to oldest. Each visited node is populated at most
// once, under its own lock; a second walk over a fully populated chain does
// no fetching at all and yields identical output.
func (w *Walker) BuildHistory(ctx context.Context, leaf *chat.Message) ([]Turn, Warnings) {
	warnings := NewWarnings()
	var reversed []Turn

	msg := leaf
	ref := chat.Reference{ChannelID: leaf.Channel.ID, MessageID: leaf.ID}
	count := 0
	truncated := false

	for count < w.Limits.MaxMessages {
		node := w.Cache.GetOrCreate(NodeID(ref.MessageID))
		node.Lock()

		if !node.Populated() {
			if msg == nil {
				fetched, err := w.Surface.FetchMessage(ctx, ref)
				if err != nil {
					log.Warn().Err(err).Str("message_id", ref.MessageID.String()).Msg("failed to fetch chain message")
					node.Unlock()
					warnings.Add(warnParentFetchFailed)
					break
				}
				msg = fetched
			}
			msg = w.populateAndAdvance(ctx, node, msg)
		} else {
			msg = nil
		}

		turn := w.makeTurn(node, ref.MessageID, warnings)
		parentRef := node.ParentRef()
		node.Unlock()

		if !turn.Empty() {
			reversed = append(reversed, turn)
		}
		count++

		if parentRef == nil {
			break
		}
		ref = *parentRef
		if count >= w.Limits.MaxMessages {
			truncated = true
		}
	}

	if truncated {
		warnings.Add(fmt.Sprintf("Only using the last %d message(s)", count))
	}

	turns := make([]Turn, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		turns = append(turns, reversed[i])
	}
	return turns, warnings
}

// populateAndAdvance fills the node from its message and resolves the parent
// reference. It returns the parent message when resolution fetched one, so
// the walk can continue without a second fetch. The node lock must be held.
func (w *Walker) populateAndAdvance(ctx context.Context, node *Node, msg *chat.Message) *chat.Message {
	cleaned := w.Self.StripMention(msg.Content)

	var textAtts, imageAtts []chat.Attachment
	badAttachments := 0
	for _, att := range msg.Attachments {
		switch {
		case att.ContentType == "":
			// no content type at all, silently skipped
		case strings.HasPrefix(att.ContentType, "text"):
			textAtts = append(textAtts, att)
		case strings.HasPrefix(att.ContentType, "image"):
			imageAtts = append(imageAtts, att)
		default:
			badAttachments++
		}
	}

	textBodies := make([]string, len(textAtts))
	imageBodies := make([][]byte, len(imageAtts))
	failedFetches := w.fetchAttachments(ctx, textAtts, imageAtts, textBodies, imageBodies)

	parts := make([]string, 0, 1+len(msg.Embeds)+len(textBodies))
	if cleaned != "" {
		parts = append(parts, cleaned)
	}
	for _, embed := range msg.Embeds {
		if text := embed.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	for _, body := range textBodies {
		if body != "" {
			parts = append(parts, body)
		}
	}

	for i, att := range imageAtts {
		if imageBodies[i] == nil {
			continue
		}
		node.Images = append(node.Images, &ImageContent{
			MediaType: att.ContentType,
			Data:      imageBodies[i],
		})
	}
	for _, embed := range msg.Embeds {
		if embed.ImageURL != "" {
			node.Images = append(node.Images, &ImageContent{URL: embed.ImageURL})
		}
	}

	if w.Self.IsSelf(msg) {
		node.Role = RoleAssistant
	} else {
		node.Role = RoleUser
		if w.AcceptAuthorTags {
			node.AuthorTag = msg.Author.ID.String()
		}
	}

	node.HasBadAttachments = badAttachments > 0
	node.IgnoredAttachments = badAttachments + failedFetches

	parent := w.resolveParent(ctx, node, msg)
	node.SetText(strings.Join(parts, "\n"))
	return parent
}

// fetchAttachments downloads text and image attachment bodies concurrently
// and returns how many downloads failed. Failures degrade to omitted content.
func (w *Walker) fetchAttachments(ctx context.Context, textAtts, imageAtts []chat.Attachment, textBodies []string, imageBodies [][]byte) int {
	failed := make([]bool, len(textAtts)+len(imageAtts))
	g, gctx := errgroup.WithContext(ctx)
	for i, att := range textAtts {
		i, att := i, att
		g.Go(func() error {
			body, err := w.Fetcher.FetchBytes(gctx, att.URL)
			if err != nil {
				log.Warn().Err(err).Str("url", att.URL).Msg("attachment fetch failed")
				failed[i] = true
				return nil
			}
			textBodies[i] = string(body)
			return nil
		})
	}
	for i, att := range imageAtts {
		i, att := i, att
		g.Go(func() error {
			body, err := w.Fetcher.FetchBytes(gctx, att.URL)
			if err != nil {
				log.Warn().Err(err).Str("url", att.URL).Msg("attachment fetch failed")
				failed[len(textAtts)+i] = true
				return nil
			}
			imageBodies[i] = body
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, f := range failed {
		if f {
			count++
		}
	}
	return count
}

// resolveParent decides where the chain continues: an explicit reply
// reference wins, then a thread origin, then the immediately preceding
// message in the channel when it plausibly belongs to the same exchange.
// Any resolution error marks the node and ends the chain there.
func (w *Walker) resolveParent(ctx context.Context, node *Node, msg *chat.Message) *chat.Message {
	if msg.Reference != nil {
		parent, err := w.Surface.FetchMessage(ctx, *msg.Reference)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.Reference.MessageID.String()).Msg("failed to fetch reply parent")
			node.ParentFetchFailed = true
			return nil
		}
		return w.linkParent(node, msg, parent)
	}

	if msg.ThreadOrigin != nil {
		parent, err := w.Surface.FetchMessage(ctx, *msg.ThreadOrigin)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.ThreadOrigin.MessageID.String()).Msg("failed to fetch thread origin")
			node.ParentFetchFailed = true
			return nil
		}
		return w.linkParent(node, msg, parent)
	}

	prev, err := w.Surface.PreviousMessage(ctx, msg)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("failed to look up preceding message")
		node.ParentFetchFailed = true
		return nil
	}
	if prev == nil || prev.Reference != nil {
		return nil
	}
	// An un-replied consecutive message chains implicitly only when its author
	// is the expected counterpart: the bot in private channels, the same human
	// otherwise.
	if msg.IsDM() {
		if !w.Self.IsSelf(prev) {
			return nil
		}
	} else if prev.Author.ID != msg.Author.ID {
		return nil
	}
	return w.linkParent(node, msg, prev)
}

// linkParent records the parent reference after re-validating that keys
// strictly decrease. The heuristic derives parents from mutable external
// history, so a later-or-equal key is treated as a resolution failure to
// guarantee termination.
func (w *Walker) linkParent(node *Node, msg, parent *chat.Message) *chat.Message {
	if parent.ID >= msg.ID {
		log.Warn().
			Str("message_id", msg.ID.String()).
			Str("parent_id", parent.ID.String()).
			Msg("parent key does not decrease, truncating chain")
		node.ParentFetchFailed = true
		return nil
	}
	node.SetParent(chat.Reference{ChannelID: parent.Channel.ID, MessageID: parent.ID})
	return parent
}

// makeTurn builds the outgoing turn from the node's current field values,
// applying the clipping policy and emitting the matching warnings. Warnings
// are derived from node state so repeated walks produce the same set. The
// node lock must be held.
func (w *Walker) makeTurn(node *Node, id chat.ID, warnings Warnings) Turn {
	if !node.Populated() {
		return Turn{}
	}

	text := *node.Text
	if runes := []rune(text); len(runes) > w.Limits.MaxText {
		text = string(runes[:w.Limits.MaxText])
		warnings.Add(fmt.Sprintf("Max %d characters per message", w.Limits.MaxText))
	}

	var images []*ImageContent
	if len(node.Images) > 0 {
		switch {
		case w.Limits.MaxImages == 0:
			warnings.Add("Can't see images with the current model")
		case len(node.Images) > w.Limits.MaxImages:
			images = node.Images[:w.Limits.MaxImages]
			warnings.Add(fmt.Sprintf("Max %d image(s) per message", w.Limits.MaxImages))
		default:
			images = node.Images
		}
	}

	if node.IgnoredAttachments > 0 {
		warnings.Add(fmt.Sprintf("Ignored %d attachment(s) from message %s", node.IgnoredAttachments, id))
	}
	if node.ParentFetchFailed {
		warnings.Add(warnParentFetchFailed)
	}

	turn := Turn{Role: node.Role, Text: text}
	if node.Role == RoleUser {
		turn.Images = images
		turn.AuthorTag = node.AuthorTag
	}
	return turn
}
