package mq

import (
	"context"
	"fmt"

	"github.com/postboard/apiserver/config"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ binds a backend to the activity channel.
type MQ struct {
	backend Backend
	channel string
}

// New constructs an MQ wrapper publishing to and consuming from channel.
func New(backend Backend, channel string) *MQ {
	return &MQ{backend: backend, channel: channel}
}

// Open connects the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported MQ_BACKEND %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return New(backend, cfg.Channel), nil
}

// Channel returns the bound channel name.
func (m *MQ) Channel() string {
	return m.channel
}

// Publish sends a message to the bound channel.
func (m *MQ) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, m.channel, data, attrs)
}

// Subscribe consumes messages from the bound channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, handler Handler) error {
	return m.backend.Subscribe(ctx, m.channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
