package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"inkpost/internal/notify"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPublisher creates a new PubSubPublisher for the given GCP project.
// PUBSUB_EMULATOR_HOST is honoured by the client library.
func NewPublisher(ctx context.Context, projectID string, opts ...option.ClientOption) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

// Forwarder relays subscription changes from the in-process broker to a
// Pub/Sub topic.
type Forwarder struct {
	publisher Publisher
	topic     string
	logger    zerolog.Logger
}

func NewForwarder(publisher Publisher, topic string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("service", "PubSubForwarder").Str("topic", topic).Logger(),
	}
}

// Handle publishes one change. It matches notify.Handler.
func (f *Forwarder) Handle(ctx context.Context, change notify.SubscriptionChanged) {
	payload, err := json.Marshal(change)
	if err != nil {
		f.logger.Error().Err(err).Str("user_id", change.UserID).Msg("Failed to encode subscription change")
		return
	}
	attrs := map[string]string{
		"event_type": change.EventType,
		"tier":       string(change.Tier),
	}
	id, err := f.publisher.Publish(ctx, f.topic, payload, attrs)
	if err != nil {
		f.logger.Error().Err(err).Str("user_id", change.UserID).Str("event_id", change.EventID).Msg("Failed to forward subscription change")
		return
	}
	f.logger.Debug().Str("message_id", id).Str("user_id", change.UserID).Msg("Forwarded subscription change")
}
