package services

import (
	"context"
	"fmt"
	"math"

	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context, filter types.ProductFilter, sort types.ProductSort, page types.PageRequest) ([]types.Product, int, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	SetImage(ctx context.Context, id int, url string) error
	Delete(ctx context.Context, id int) error
}

// ProductService encapsulates product use-cases.
type ProductService struct {
	repo   ProductRepository
	images *ImageService
	notifier
}

func NewProductService(repo ProductRepository, images *ImageService, events EventPublisher, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:     repo,
		images:   images,
		notifier: newNotifier(events, logger),
	}
}

// List returns one page of products. Out-of-range paging falls back to
// the defaults rather than failing.
func (s *ProductService) List(ctx context.Context, filter types.ProductFilter, sort types.ProductSort, page types.PageRequest) (types.Page[types.Product], error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = defaultPerPage
	}
	if page.PerPage > maxPerPage {
		page.PerPage = maxPerPage
	}

	// Product ids are int4, so no page past lastPossiblePage holds rows.
	// Querying just beyond it keeps OFFSET in range for absurd page numbers.
	query := page
	if lastPossiblePage := math.MaxInt32/page.PerPage + 1; query.Page > lastPossiblePage {
		query.Page = lastPossiblePage + 1
	}

	items, total, err := s.repo.List(ctx, filter, sort.Normalize(), query)
	if err != nil {
		return types.Page[types.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return types.NewPage(items, page, total), nil
}

func (s *ProductService) Get(ctx context.Context, id int) (types.Product, error) {
	return s.repo.Get(ctx, id)
}

// Create stores the optional image, then the product.
func (s *ProductService) Create(ctx context.Context, product types.Product, image *ImageFile) (types.Product, error) {
	if image != nil {
		stored, err := s.images.StoreResized(ctx, *image, productImagePrefix)
		if err != nil {
			return types.Product{}, err
		}
		product.Image = &stored.URL
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return types.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.notify(ctx, types.CatalogEvent{
		Type:      types.EventProductCreated,
		ProductID: created.ID,
		ImageURL:  deref(created.Image),
	})
	return created, nil
}

// Update applies the supplied fields and, when given, replaces the image.
func (s *ProductService) Update(ctx context.Context, id int, patch types.ProductPatch, image *ImageFile) (types.Product, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Product{}, err
	}

	if image != nil {
		stored, err := s.images.StoreResized(ctx, *image, productImagePrefix)
		if err != nil {
			return types.Product{}, err
		}
		patch.Image = &stored.URL
	}

	patch.Apply(&product)
	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return types.Product{}, err
	}

	s.notify(ctx, types.CatalogEvent{
		Type:      types.EventProductUpdated,
		ProductID: updated.ID,
		ImageURL:  deref(patch.Image),
	})
	return updated, nil
}

func (s *ProductService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, types.CatalogEvent{Type: types.EventProductDeleted, ProductID: id})
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
