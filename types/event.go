package types

import "time"

// CatalogEventType names a kind of catalog change.
type CatalogEventType string

// Supported catalog event types.
const (
	EventProductCreated CatalogEventType = "product.created"
	EventProductUpdated CatalogEventType = "product.updated"
	EventProductDeleted CatalogEventType = "product.deleted"
	EventImageUploaded  CatalogEventType = "image.uploaded"
)

// CatalogEvent is the notification published to the message broker
// whenever the catalog changes.
type CatalogEvent struct {
	// Type is the kind of change.
	Type CatalogEventType `json:"type"`

	// ProductID identifies the affected product. It is zero for image
	// uploads that are not linked to a product.
	ProductID int `json:"product_id,omitempty"`

	// ImageURL is the public URL of a newly stored image, if any.
	ImageURL string `json:"image_url,omitempty"`

	// OccurredAt is the time the change was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
