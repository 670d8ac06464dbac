package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopcat/apiserver/config"
)

// RabbitMQClient publishes catalog events to a durable topic exchange,
// routed by event type.
type RabbitMQClient struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQClient connects and declares the topic exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig, exchange string) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQClient{conn: conn, channel: ch, exchange: exchange}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, msg Message) (string, error) {
	publishing := newPublishing(msg, time.Now())
	if err := r.channel.PublishWithContext(ctx, r.exchange, msg.RoutingKey, false, false, publishing); err != nil {
		return "", err
	}
	return publishing.MessageId, nil
}

// Subscribe binds a private, auto-deleted queue to the exchange with
// pattern and consumes from it until ctx is done.
func (r *RabbitMQClient) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	queue, err := r.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := r.channel.QueueBind(queue.Name, normalizePattern(pattern), r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue.Name, r.exchange, err)
	}

	consumerTag := "shopcat-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue.Name, consumerTag, false, true, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, messageFromDelivery(delivery)); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// newPublishing renders msg as a persistent AMQP message. The event type
// travels as the AMQP type as well as the routing key.
func newPublishing(msg Message, now time.Time) amqp.Publishing {
	headers := amqp.Table{}
	for key, value := range msg.Attributes {
		headers[key] = value
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	return amqp.Publishing{
		ContentType:  msg.Attributes[AttrContentType],
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    now,
		Type:         msg.RoutingKey,
		Headers:      headers,
		Body:         msg.Data,
	}
}

func messageFromDelivery(delivery amqp.Delivery) Message {
	attrs := make(map[string]string, len(delivery.Headers))
	for key, value := range delivery.Headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: attrs,
		RoutingKey: delivery.RoutingKey,
	}
}
