// Package events publishes activity events to the broker and archives them
// into object storage.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postboard/apiserver/types"
)

const attrType = "type"

// Broker is the publishing half of mq.MQ.
type Broker interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Publisher encodes events as JSON and sends them to the broker.
type Publisher struct {
	broker Broker
	now    func() time.Time
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{
		broker: broker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish assigns an id and timestamp when missing and sends the event.
func (p *Publisher) Publish(ctx context.Context, event types.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	if _, err := p.broker.Publish(ctx, data, map[string]string{attrType: event.Type}); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}
