package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	// Separate partial stream for reasoning text
	EventTypePartialThinking EventType = "partial-thinking"
	EventTypeFinal           EventType = "final"
	EventTypeError           EventType = "error"
	EventTypeInterrupt       EventType = "interrupt"
)

// EventMetadata travels with every event of one response generation.
type EventMetadata struct {
	ID uuid.UUID `json:"message_id"`
	// ResponseID correlates all events of a single response run.
	ResponseID string `json:"response_id,omitempty"`
	Model      string `json:"model,omitempty"`
	// TriggerID is the chat message that triggered the response.
	TriggerID string `json:"trigger_id,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ResponseID != "" {
		e.Str("response_id", em.ResponseID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.TriggerID != "" {
		e.Str("trigger_id", em.TriggerID)
	}
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

type EventStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventStart {
	return &EventStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

var _ Event = &EventStart{}

// EventPartialCompletion carries one content delta plus the completion so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

// EventThinkingPartial mirrors EventPartialCompletion for reasoning text.
// Reasoning deltas never count toward output segment limits.
type EventThinkingPartial struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewThinkingPartialEvent(metadata EventMetadata, delta string, completion string) *EventThinkingPartial {
	return &EventThinkingPartial{
		EventImpl:  EventImpl{Type_: EventTypePartialThinking, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventThinkingPartial{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
	// StopReason is the backend's finish reason, e.g. "stop" or "length".
	StopReason string `json:"stop_reason,omitempty"`
}

func NewFinalEvent(metadata EventMetadata, text string, stopReason string) *EventFinal {
	return &EventFinal{
		EventImpl:  EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:       text,
		StopReason: stopReason,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{Type_: EventTypeInterrupt, Metadata_: metadata},
		Text:      text,
	}
}

var _ Event = &EventInterrupt{}
