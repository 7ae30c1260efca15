package events

// EventSink is a destination for response-generation events. The engine
// publishes to every registered sink, in event order, on a single goroutine
// per response.
type EventSink interface {
	PublishEvent(event Event) error
}

// NullSink discards everything.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error { return nil }

var _ EventSink = NullSink{}
