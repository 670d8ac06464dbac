package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

// UploadService handles standalone image uploads.
type UploadService struct {
	images   *ImageService
	products ProductRepository
	notifier
}

func NewUploadService(images *ImageService, products ProductRepository, events EventPublisher, logger *zap.Logger) *UploadService {
	return &UploadService{
		images:   images,
		products: products,
		notifier: newNotifier(events, logger),
	}
}

// Upload stores and rescales the image. When productID names an existing
// product its image is pointed at the upload; an unknown id is ignored.
func (s *UploadService) Upload(ctx context.Context, file ImageFile, productID *int) (types.UploadedImage, error) {
	stored, err := s.images.StoreResized(ctx, file, uploadImagePrefix)
	if err != nil {
		return types.UploadedImage{}, err
	}

	event := types.CatalogEvent{Type: types.EventImageUploaded, ImageURL: stored.URL}
	if productID != nil {
		err := s.products.SetImage(ctx, *productID, stored.URL)
		switch {
		case err == nil:
			event.ProductID = *productID
		case errors.Is(err, store.ErrNotFound):
		default:
			return types.UploadedImage{}, fmt.Errorf("link image to product %d: %w", *productID, err)
		}
	}

	s.notify(ctx, event)
	return stored, nil
}
