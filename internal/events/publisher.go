package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher emits saga trigger messages. It exists for tooling and tests;
// any client publishing JSON to the same channels drives the subscriber
// identically.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishStart emits a start-call message on the dial channel.
func (p *Publisher) PublishStart(ctx context.Context, msg StartCallMessage) error {
	return p.publish(ctx, StartChannel, msg)
}

// PublishTrigger emits a trigger for an existing saga on the trigger's
// channel.
func (p *Publisher) PublishTrigger(ctx context.Context, trigger string, id uuid.UUID, parameter any) error {
	return p.publish(ctx, Channel(trigger), TriggerMessage{ID: id.String(), Parameter: parameter})
}

func (p *Publisher) publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("events: encode %s payload: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", channel, err)
	}
	return nil
}
