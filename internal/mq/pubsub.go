package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/shopcat/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubClient publishes catalog events to one Pub/Sub topic. Events of
// the same product share an ordering key.
type PubSubClient struct {
	client             *pubsub.Client
	topic              *pubsub.Topic
	subscriptionSuffix string
}

// NewPubSubClient connects and ensures the topic exists.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig, topicName string) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if strings.TrimSpace(topicName) == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err == nil && !exists {
		topic, err = client.CreateTopic(ctx, topicName)
	}
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topicName, err)
	}
	topic.EnableMessageOrdering = true

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubClient{client: client, topic: topic, subscriptionSuffix: suffix}, nil
}

func (p *PubSubClient) Publish(ctx context.Context, msg Message) (string, error) {
	id, err := p.topic.Publish(ctx, newPubSubMessage(msg)).Get(ctx)
	if err != nil {
		// A failed ordered publish pauses its key until resumed.
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", err
	}
	return id, nil
}

// Subscribe receives through a subscription named after the topic and
// pattern. The subscription is created with a matching filter on first
// use; Pub/Sub filters cannot be changed afterwards.
func (p *PubSubClient) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	pattern = normalizePattern(pattern)
	name := p.subscriptionName(pattern)

	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
			Topic:                 p.topic,
			Filter:                subscriptionFilter(pattern),
			EnableMessageOrdering: true,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", name, err)
		}
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:          msg.ID,
			Data:        msg.Data,
			Attributes:  msg.Attributes,
			RoutingKey:  msg.Attributes[AttrEventType],
			OrderingKey: msg.OrderingKey,
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (p *PubSubClient) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func newPubSubMessage(msg Message) *pubsub.Message {
	return &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.OrderingKey,
	}
}

// subscriptionName derives a stable name per pattern, e.g.
// "catalog-events-product-sub" for "product.*".
func (p *PubSubClient) subscriptionName(pattern string) string {
	base := p.topic.ID()
	if pattern != "#" {
		part := strings.NewReplacer(".*", "", ".#", "", ".", "-").Replace(pattern)
		base += "-" + part
	}
	return base + p.subscriptionSuffix
}

// subscriptionFilter translates an event type pattern into a Pub/Sub
// filter expression on the event type attribute.
func subscriptionFilter(pattern string) string {
	switch {
	case pattern == "#":
		return ""
	case strings.HasSuffix(pattern, ".*"), strings.HasSuffix(pattern, ".#"):
		prefix := pattern[:len(pattern)-1]
		return fmt.Sprintf("hasPrefix(attributes.%s, %q)", AttrEventType, prefix)
	default:
		return fmt.Sprintf("attributes.%s = %q", AttrEventType, pattern)
	}
}
