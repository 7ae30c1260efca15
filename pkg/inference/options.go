package inference

import (
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kuyari/pkg/events"
)

// Config holds the cross-backend engine configuration.
type Config struct {
	Sinks []events.EventSink
}

type Option func(*Config)

// WithSink adds a sink that receives all streaming events of every inference
// run on the engine.
func WithSink(sink events.EventSink) Option {
	return func(c *Config) {
		c.Sinks = append(c.Sinks, sink)
	}
}

func NewConfig(options ...Option) *Config {
	c := &Config{}
	for _, o := range options {
		o(c)
	}
	return c
}

// PublishEvent fans one event out to every sink, in registration order.
// Sink failures are logged and do not interrupt the stream.
func (c *Config) PublishEvent(ev events.Event) {
	for _, sink := range c.Sinks {
		if err := sink.PublishEvent(ev); err != nil {
			log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("failed to publish event to sink")
		}
	}
}
