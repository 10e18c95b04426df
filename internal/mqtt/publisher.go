package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tphakala/freshness-go/internal/errors"
)

// Publisher sends batch messages on a fixed topic.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher returns a Publisher that publishes on topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Topic returns the topic messages are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishBatch marshals msg and publishes it.
func (p *Publisher) PublishBatch(ctx context.Context, msg BatchMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(fmt.Errorf("failed to marshal batch message: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("batch_id", msg.BatchID).
			Build()
	}
	return p.client.Publish(ctx, p.topic, payload)
}
