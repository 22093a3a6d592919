package transport

import "github.com/rs/zerolog"

// Handler processes one message. A returned error is logged, never retried.
type Handler func(topic string, payload []byte) error

// Consumer adapts an error-returning Handler to the Client's single
// message callback.
type Consumer struct {
	handler Handler
	log     zerolog.Logger
}

// NewConsumer registers the consumer on client. Call before Connect.
func NewConsumer(client *Client, handler Handler, log zerolog.Logger) *Consumer {
	c := &Consumer{handler: handler, log: log}
	client.OnMessage(c.consume)
	return c
}

func (c *Consumer) consume(topic string, payload []byte) {
	if c.handler == nil {
		c.log.Warn().Str("topic", topic).Msg("no handler set")
		return
	}
	if err := c.handler(topic, payload); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("error handling message")
	}
}
