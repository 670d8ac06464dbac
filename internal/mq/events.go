package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopcat/apiserver/types"
)

// CatalogEvents publishes and consumes catalog change notifications as
// JSON messages keyed by event type.
type CatalogEvents struct {
	backend Backend
}

func NewCatalogEvents(backend Backend) *CatalogEvents {
	return &CatalogEvents{backend: backend}
}

// PublishCatalogEvent sends event, stamping OccurredAt when unset.
func (c *CatalogEvents) PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error {
	msg, err := newCatalogMessage(event, time.Now())
	if err != nil {
		return err
	}
	if _, err := c.backend.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// SubscribeCatalogEvents blocks, passing each decoded event matching
// pattern to fn until ctx is cancelled. Undecodable messages are
// acknowledged and skipped.
func (c *CatalogEvents) SubscribeCatalogEvents(ctx context.Context, pattern string, fn func(context.Context, types.CatalogEvent) error) error {
	return c.backend.Subscribe(ctx, pattern, func(ctx context.Context, msg Message) error {
		var event types.CatalogEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}

func (c *CatalogEvents) Close() error {
	return c.backend.Close()
}

func newCatalogMessage(event types.CatalogEvent, now time.Time) (Message, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now.UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Data: data,
		Attributes: map[string]string{
			AttrContentType: "application/json",
			AttrEventType:   string(event.Type),
		},
		RoutingKey: string(event.Type),
	}
	if event.ProductID > 0 {
		msg.OrderingKey = "product-" + strconv.Itoa(event.ProductID)
	}
	return msg, nil
}
