package transport

import (
	"fmt"

	"github.com/rs/zerolog"
)

// IPublisher publishes a message on a fixed topic.
type IPublisher interface {
	PublishMessage(message string) error
}

// Publisher is bound to one topic of a shared Client.
type Publisher struct {
	client *Client
	topic  string
	log    zerolog.Logger
}

func NewPublisher(client *Client, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{client: client, topic: topic, log: log}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage sends message synchronously; ErrNotConnected stays
// reachable through errors.Is.
func (p *Publisher) PublishMessage(message string) error {
	if err := p.client.Publish(p.topic, []byte(message)); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	p.log.Debug().Str("topic", p.topic).Str("message", message).Msg("message published")
	return nil
}
