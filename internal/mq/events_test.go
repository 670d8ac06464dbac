package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopcat/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	published []Message
	pattern   string
	err       error
	inbox     []Message
}

func (b *recordingBackend) Publish(ctx context.Context, msg Message) (string, error) {
	b.published = append(b.published, msg)
	return "msg-1", b.err
}

func (b *recordingBackend) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	b.pattern = pattern
	for _, msg := range b.inbox {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func TestPublishCatalogEvent(t *testing.T) {
	backend := &recordingBackend{}
	events := NewCatalogEvents(backend)

	err := events.PublishCatalogEvent(context.Background(), types.CatalogEvent{
		Type:      types.EventProductCreated,
		ProductID: 42,
	})
	require.NoError(t, err)
	require.Len(t, backend.published, 1)

	msg := backend.published[0]
	assert.Equal(t, "product.created", msg.RoutingKey)
	assert.Equal(t, "product-42", msg.OrderingKey)
	assert.Equal(t, "application/json", msg.Attributes[AttrContentType])
	assert.Equal(t, "product.created", msg.Attributes[AttrEventType])

	var decoded types.CatalogEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, 42, decoded.ProductID)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestUnlinkedUploadHasNoOrderingKey(t *testing.T) {
	msg, err := newCatalogMessage(types.CatalogEvent{Type: types.EventImageUploaded, ImageURL: "/storage/images/1_a.jpg"}, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Empty(t, msg.OrderingKey)
	assert.Equal(t, "image.uploaded", msg.RoutingKey)
}

func TestPublishCatalogEventWrapsBrokerError(t *testing.T) {
	backend := &recordingBackend{err: errors.New("broker down")}
	events := NewCatalogEvents(backend)

	err := events.PublishCatalogEvent(context.Background(), types.CatalogEvent{Type: types.EventProductDeleted})
	assert.ErrorIs(t, err, backend.err)
}

func TestSubscribeCatalogEventsSkipsGarbage(t *testing.T) {
	valid, err := json.Marshal(types.CatalogEvent{Type: types.EventImageUploaded, ImageURL: "/storage/images/1_a.jpg", OccurredAt: time.Now()})
	require.NoError(t, err)
	backend := &recordingBackend{inbox: []Message{{Data: []byte("{not json")}, {Data: valid}}}
	events := NewCatalogEvents(backend)

	var got []types.CatalogEvent
	err = events.SubscribeCatalogEvents(context.Background(), "image.*", func(ctx context.Context, event types.CatalogEvent) error {
		got = append(got, event)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "image.*", backend.pattern)
	require.Len(t, got, 1)
	assert.Equal(t, "/storage/images/1_a.jpg", got[0].ImageURL)
}

func TestNoopBackend(t *testing.T) {
	events := NewCatalogEvents(NoopBackend{})
	assert.NoError(t, events.PublishCatalogEvent(context.Background(), types.CatalogEvent{Type: types.EventProductUpdated}))
	assert.ErrorIs(t, events.SubscribeCatalogEvents(context.Background(), "#", nil), ErrDisabled)
}

func TestNewPublishing(t *testing.T) {
	msg, err := newCatalogMessage(types.CatalogEvent{Type: types.EventProductUpdated, ProductID: 7}, time.Unix(1700000000, 0))
	require.NoError(t, err)

	now := time.Unix(1700000001, 0)
	publishing := newPublishing(msg, now)
	assert.Equal(t, "application/json", publishing.ContentType)
	assert.Equal(t, "product.updated", publishing.Type)
	assert.Equal(t, amqp.Persistent, publishing.DeliveryMode)
	assert.Equal(t, now, publishing.Timestamp)
	assert.NotEmpty(t, publishing.MessageId)
	assert.Equal(t, "product.updated", publishing.Headers[AttrEventType])

	back := messageFromDelivery(amqp.Delivery{
		MessageId:  publishing.MessageId,
		RoutingKey: msg.RoutingKey,
		Headers:    publishing.Headers,
		Body:       publishing.Body,
	})
	assert.Equal(t, msg.Attributes, back.Attributes)
	assert.Equal(t, msg.Data, back.Data)
	assert.Equal(t, "product.updated", back.RoutingKey)
}

func TestSubscriptionFilter(t *testing.T) {
	cases := map[string]string{
		"#":               "",
		"product.*":       `hasPrefix(attributes.event_type, "product.")`,
		"image.#":         `hasPrefix(attributes.event_type, "image.")`,
		"product.deleted": `attributes.event_type = "product.deleted"`,
	}
	for pattern, want := range cases {
		assert.Equal(t, want, subscriptionFilter(pattern), pattern)
	}
	assert.Equal(t, "#", normalizePattern("  "))
}

func TestNewPubSubMessageCarriesOrderingKey(t *testing.T) {
	msg, err := newCatalogMessage(types.CatalogEvent{Type: types.EventProductDeleted, ProductID: 3}, time.Now())
	require.NoError(t, err)

	out := newPubSubMessage(msg)
	assert.Equal(t, "product-3", out.OrderingKey)
	assert.Equal(t, "product.deleted", out.Attributes[AttrEventType])
	assert.Equal(t, msg.Data, out.Data)
}
