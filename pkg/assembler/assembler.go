package assembler

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kuyari/pkg/chat"
	"github.com/go-go-golems/kuyari/pkg/events"
)

const (
	// StreamingIndicator is appended to the visible text of a segment that is
	// still growing.
	StreamingIndicator = " ⚪"

	DefaultEditDelay = time.Second

	// PlainMaxSegmentLength bounds plain-content messages, EmbedMaxLength
	// bounds embed descriptions.
	PlainMaxSegmentLength = 2000
	EmbedMaxLength        = 4096

	EmbedColorComplete   = 0x1F8B4C
	EmbedColorIncomplete = 0xE67E22
)

// Options configures one response assembly.
type Options struct {
	// PlainResponses switches from live-edited embeds to one plain message
	// per finished segment, sent at the very end.
	PlainResponses bool
	// MaxSegmentLength bounds each output segment. Zero picks the default for
	// the active response mode.
	MaxSegmentLength int
	// EditDelay is the minimum spacing between non-terminal live updates.
	EditDelay time.Duration
	// Warnings are rendered as embed fields on every update.
	Warnings []string
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Assembler consumes the ordered delta stream of one response and turns it
// into rate-limited, length-bounded output updates.
//
// It moves through three phases: accumulating deltas, splitting into
// segments, finalized. A delta is staged when it arrives and committed when
// the next one arrives; the last delta is committed together with the stream
// end. That keeps the currently growing segment one delta behind the wire,
// which is what lets a length overflow trigger a terminal edit of the old
// segment before the new one is started.
//
// Events for one response arrive in order on a single goroutine; the only
// concurrency inside is the single in-flight edit call.
type Assembler struct {
	ctx     context.Context
	surface chat.Surface
	tracker *Tracker
	trigger *chat.Message
	opts    Options

	segments  []string
	pending   string
	reasoning strings.Builder

	finished bool
	aborted  bool

	lastEdit time.Time
	inflight chan struct{}
}

func New(ctx context.Context, surface chat.Surface, tracker *Tracker, trigger *chat.Message, opts Options) *Assembler {
	if opts.EditDelay == 0 {
		opts.EditDelay = DefaultEditDelay
	}
	if opts.MaxSegmentLength == 0 {
		if opts.PlainResponses {
			opts.MaxSegmentLength = PlainMaxSegmentLength
		} else {
			opts.MaxSegmentLength = EmbedMaxLength - utf8.RuneCountInString(StreamingIndicator)
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Assembler{
		ctx:     ctx,
		surface: surface,
		tracker: tracker,
		trigger: trigger,
		opts:    opts,
	}
}

// Segments returns the committed segments so far.
func (a *Assembler) Segments() []string {
	return a.segments
}

// FullText returns the concatenation of all committed segments.
func (a *Assembler) FullText() string {
	return strings.Join(a.segments, "")
}

// PublishEvent implements events.EventSink.
func (a *Assembler) PublishEvent(ev events.Event) error {
	if a.finished || a.aborted {
		return nil
	}
	switch e := ev.(type) {
	case *events.EventStart:
		return nil
	case *events.EventPartialCompletion:
		return a.onPartial(e.Delta)
	case *events.EventThinkingPartial:
		a.reasoning.WriteString(e.Delta)
		return nil
	case *events.EventFinal:
		return a.onFinish(e.StopReason)
	case *events.EventError:
		a.finished = true
		return nil
	case *events.EventInterrupt:
		a.finished = true
		return nil
	default:
		return nil
	}
}

var _ events.EventSink = (*Assembler)(nil)

// onPartial stages the incoming delta and commits the previously staged one.
func (a *Assembler) onPartial(delta string) error {
	commit := a.pending
	a.pending = delta
	return a.commit(commit, delta, false, "")
}

// onFinish commits the staged delta together with the stream end, then
// handles the reasoning segment and, in plain mode, sends everything.
func (a *Assembler) onFinish(stopReason string) error {
	a.finished = true
	commit := a.pending
	a.pending = ""
	if err := a.commit(commit, "", true, stopReason); err != nil {
		return err
	}

	if a.reasoning.Len() > 0 {
		if err := a.appendReasoning(stopReason); err != nil {
			return err
		}
	}

	if a.opts.PlainResponses {
		return a.sendPlainSegments()
	}
	return nil
}

// commit applies committed content to the segment sequence and decides
// whether to emit a live update. upcoming is the just-staged delta, used to
// detect that the next commit will overflow the current segment.
func (a *Assembler) commit(content string, upcoming string, final bool, stopReason string) error {
	if len(a.segments) == 0 && content == "" {
		return nil
	}
	started := a.appendContent(content)

	if a.opts.PlainResponses {
		return nil
	}

	last := a.segments[len(a.segments)-1]
	splitIncoming := !final && upcoming != "" && len(last)+len(upcoming) > a.opts.MaxSegmentLength
	finalEdit := final || splitIncoming
	readyToEdit := a.idle() && a.opts.Clock().Sub(a.lastEdit) >= a.opts.EditDelay

	if started == 0 && !readyToEdit && !finalEdit {
		return nil
	}

	goodFinish := final && isGoodFinish(stopReason)
	a.awaitInflight()

	if started > 0 {
		return a.sendNewSegments(started, finalEdit, splitIncoming, goodFinish)
	}

	visible := last
	if !finalEdit {
		visible += StreamingIndicator
	}
	color := EmbedColorIncomplete
	if splitIncoming || goodFinish {
		color = EmbedColorComplete
	}
	target := a.tracker.LastMessage()
	if target == nil {
		return nil
	}
	a.launchEdit(target, a.buildEmbed(visible, color))
	a.lastEdit = a.opts.Clock()
	return nil
}

// appendContent folds committed content into the segment sequence, starting
// new segments as needed so no segment ever exceeds the length bound. It
// returns how many segments were started.
func (a *Assembler) appendContent(content string) int {
	started := 0
	if len(a.segments) == 0 {
		a.segments = append(a.segments, "")
		started++
	}
	for content != "" {
		idx := len(a.segments) - 1
		room := a.opts.MaxSegmentLength - len(a.segments[idx])
		if len(content) <= room {
			a.segments[idx] += content
			break
		}
		if a.segments[idx] == "" {
			// a single oversized delta gets hard-split across segments, backing
			// the cut off to a rune boundary so no segment carries invalid UTF-8
			cut := room
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(content)
			}
			a.segments[idx] = content[:cut]
			content = content[cut:]
		}
		a.segments = append(a.segments, "")
		started++
	}
	return started
}

// sendNewSegments sends one reply message per segment started by this
// commit. A failed send aborts further emission for this response.
func (a *Assembler) sendNewSegments(started int, finalEdit, splitIncoming, goodFinish bool) error {
	for i := len(a.segments) - started; i < len(a.segments); i++ {
		isLast := i == len(a.segments)-1
		visible := a.segments[i]
		color := EmbedColorComplete
		if isLast {
			if !finalEdit {
				visible += StreamingIndicator
			}
			if !splitIncoming && !goodFinish {
				color = EmbedColorIncomplete
			}
		}

		target := a.trigger
		if last := a.tracker.LastMessage(); last != nil {
			target = last
		}
		msg, err := a.surface.Reply(a.ctx, target, chat.Outgoing{
			Embed:  a.buildEmbed(visible, color),
			Silent: true,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to send response segment")
			a.aborted = true
			return err
		}
		a.tracker.Attach(msg)
	}
	a.lastEdit = a.opts.Clock()
	return nil
}

// appendReasoning adds the accumulated reasoning as a final distinct segment
// and, in live mode, forces one last edit carrying it as an embed field.
func (a *Assembler) appendReasoning(stopReason string) error {
	reasoning := a.reasoning.String()
	lastContent := ""
	if len(a.segments) > 0 {
		lastContent = a.segments[len(a.segments)-1]
	}
	a.segments = append(a.segments, "Reasoning:\n"+reasoning)

	if a.opts.PlainResponses {
		return nil
	}
	a.awaitInflight()
	target := a.tracker.LastMessage()
	if target == nil {
		return nil
	}
	color := EmbedColorIncomplete
	if isGoodFinish(stopReason) {
		color = EmbedColorComplete
	}
	embed := a.buildEmbed(lastContent, color)
	embed.Fields = append(embed.Fields, chat.EmbedField{Name: "Reasoning", Value: reasoning})
	if err := a.surface.Edit(a.ctx, target, chat.Outgoing{Embed: embed}); err != nil {
		log.Warn().Err(err).Msg("failed to attach reasoning to response")
	}
	return nil
}

// sendPlainSegments emits one plain message per finished segment, chained as
// replies.
func (a *Assembler) sendPlainSegments() error {
	for _, segment := range a.segments {
		target := a.trigger
		if last := a.tracker.LastMessage(); last != nil {
			target = last
		}
		msg, err := a.surface.Reply(a.ctx, target, chat.Outgoing{
			Content:        segment,
			SuppressEmbeds: true,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to send response segment")
			a.aborted = true
			return err
		}
		a.tracker.Attach(msg)
	}
	return nil
}

// Finalize joins any in-flight edit and writes the response text back into
// the tracked nodes, releasing their locks. Must run on every code path,
// including backend errors, so future chain walks never deadlock.
func (a *Assembler) Finalize() {
	a.awaitInflight()
	a.tracker.Finish(a.FullText())
}

func (a *Assembler) buildEmbed(description string, color int) *chat.Embed {
	embed := &chat.Embed{
		Description: description,
		Color:       color,
	}
	for _, warning := range a.opts.Warnings {
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: warning})
	}
	return embed
}

// idle reports whether no edit is currently in flight.
func (a *Assembler) idle() bool {
	if a.inflight == nil {
		return true
	}
	select {
	case <-a.inflight:
		a.inflight = nil
		return true
	default:
		return false
	}
}

func (a *Assembler) awaitInflight() {
	if a.inflight == nil {
		return
	}
	<-a.inflight
	a.inflight = nil
}

// launchEdit starts the single in-flight edit call. A failed edit is logged
// and not retried.
func (a *Assembler) launchEdit(target *chat.Message, embed *chat.Embed) {
	done := make(chan struct{})
	a.inflight = done
	go func() {
		defer close(done)
		if err := a.surface.Edit(a.ctx, target, chat.Outgoing{Embed: embed}); err != nil {
			log.Warn().Err(err).Msg("failed to edit response message")
		}
	}()
}

func isGoodFinish(stopReason string) bool {
	switch strings.ToLower(stopReason) {
	case "stop", "end_turn":
		return true
	}
	return false
}
