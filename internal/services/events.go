package services

import (
	"context"

	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

// EventPublisher delivers catalog change notifications.
type EventPublisher interface {
	PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error {
	return nil
}

// notifier publishes events on a best-effort basis: the change has already
// been committed, so a broker failure is logged and swallowed.
type notifier struct {
	events EventPublisher
	logger *zap.Logger
}

func newNotifier(events EventPublisher, logger *zap.Logger) notifier {
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return notifier{events: events, logger: logger}
}

func (n notifier) notify(ctx context.Context, event types.CatalogEvent) {
	if err := n.events.PublishCatalogEvent(ctx, event); err != nil {
		n.logger.Warn("publish catalog event failed",
			zap.String("type", string(event.Type)),
			zap.Int("product_id", event.ProductID),
			zap.Error(err),
		)
	}
}
