package types

import "time"

// Product represents an item in the catalog.
type Product struct {
	// ID is the unique identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the product.
	Name string `json:"name" db:"name"`

	// Description is an optional free-form description.
	Description *string `json:"description" db:"description"`

	// Price is the unit price. It is never negative and is stored with
	// two decimal places.
	Price float64 `json:"price" db:"price"`

	// StockQuantity is the number of units available. It is never negative.
	StockQuantity int `json:"stock_quantity" db:"stock_quantity"`

	// Image is the public URL of the product image in blob storage, if any.
	Image *string `json:"image" db:"image"`

	// CreatedAt is the timestamp at which the product was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the product.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProductPatch carries a partial update. Nil fields are left unchanged.
// Description is applied whenever DescriptionSet is true, so a nil
// Description with DescriptionSet clears it.
type ProductPatch struct {
	Name           *string
	Description    *string
	DescriptionSet bool
	Price          *float64
	StockQuantity  *int
	Image          *string
}

// Apply copies every supplied field of the patch onto the product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.DescriptionSet {
		product.Description = p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.StockQuantity != nil {
		product.StockQuantity = *p.StockQuantity
	}
	if p.Image != nil {
		product.Image = p.Image
	}
}

// ProductFilter is the conjunctive filter applied when listing products.
// Nil fields do not constrain the result.
type ProductFilter struct {
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
}

// Sortable product columns.
const (
	SortByName      = "name"
	SortByPrice     = "price"
	SortByCreatedAt = "created_at"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ProductSort selects the ordering of a product listing.
type ProductSort struct {
	By    string
	Order string
}

// DefaultProductSort is the ordering used when none, or an unrecognized one,
// is requested.
var DefaultProductSort = ProductSort{By: SortByCreatedAt, Order: SortDesc}

// Normalize returns the sort unchanged when both the column and the
// direction are recognized, and DefaultProductSort otherwise.
func (s ProductSort) Normalize() ProductSort {
	switch s.By {
	case SortByName, SortByPrice, SortByCreatedAt:
	default:
		return DefaultProductSort
	}
	switch s.Order {
	case SortAsc, SortDesc:
	default:
		return DefaultProductSort
	}
	return s
}

// UploadedImage describes an image persisted in blob storage.
type UploadedImage struct {
	// URL is the public URL of the stored image.
	URL string `json:"url"`

	// Path is the object key of the image inside the blob store
	// (e.g., "images/1700000000_photo.jpg").
	Path string `json:"path"`
}
