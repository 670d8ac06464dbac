package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopcat/apiserver/config"
)

// Message attributes set on every catalog event.
const (
	AttrContentType = "content_type"
	AttrEventType   = "event_type"
)

// ErrDisabled is returned by the no-op backend when asked to consume.
var ErrDisabled = errors.New("message broker is disabled")

// Message is a broker-agnostic catalog event envelope.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// RoutingKey is the event type. RabbitMQ routes on it; Pub/Sub
	// subscriptions filter on the matching attribute.
	RoutingKey string
	// OrderingKey keeps events about one product in order on Pub/Sub.
	OrderingKey string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend publishes to and consumes from the catalog event channel it was
// opened on. Subscribe takes an event type pattern: "#" matches every
// event, "product.*" every product event, anything else one type.
type Backend interface {
	Publish(ctx context.Context, msg Message) (string, error)
	Subscribe(ctx context.Context, pattern string, handler Handler) error
	Close() error
}

// NoopBackend drops published messages. It is used when no broker is configured.
type NoopBackend struct{}

func (NoopBackend) Publish(ctx context.Context, msg Message) (string, error) {
	return "", nil
}

// Subscribe always fails with ErrDisabled.
func (NoopBackend) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	return ErrDisabled
}

func (NoopBackend) Close() error {
	return nil
}

// Open builds the backend selected by cfg.Backend, bound to cfg.Channel.
func Open(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return NoopBackend{}, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ, cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		return client, nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub, cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// normalizePattern maps the empty pattern to "#".
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "#"
	}
	return pattern
}
