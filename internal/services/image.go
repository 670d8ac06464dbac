package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopcat/apiserver/internal/imaging"
	"github.com/shopcat/apiserver/types"
)

const (
	imageDirectory = "images"
	imageWidth     = 800

	// Filename prefixes for the two call sites of StoreResized.
	uploadImagePrefix  = ""
	productImagePrefix = "product_"
)

// BlobStore is the object storage the image routine writes to.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ImageFile is an uploaded image that already passed validation.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageService stores uploaded images and rescales them in place.
type ImageService struct {
	blobs     BlobStore
	processor imaging.Processor
	width     int
	now       func() time.Time
}

func NewImageService(blobs BlobStore, processor imaging.Processor) *ImageService {
	return &ImageService{
		blobs:     blobs,
		processor: processor,
		width:     imageWidth,
		now:       time.Now,
	}
}

// StoreResized writes file to images/<prefix><unix-seconds>_<name>, then
// reads it back, scales it to the configured width and overwrites the
// object. Readers may observe the unscaled object between the two writes.
//
// Two uploads of the same name within the same second share a key and the
// later one wins.
func (s *ImageService) StoreResized(ctx context.Context, file ImageFile, prefix string) (types.UploadedImage, error) {
	filename := prefix + strconv.FormatInt(s.now().Unix(), 10) + "_" + objectName(file.Filename, file.ContentType)
	key := path.Join(imageDirectory, filename)

	if err := s.blobs.Put(ctx, key, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType); err != nil {
		return types.UploadedImage{}, fmt.Errorf("store image: %w", err)
	}

	stored, err := s.read(ctx, key)
	if err != nil {
		return types.UploadedImage{}, err
	}

	scaled, err := s.processor.ScaleToWidth(stored, s.width)
	if err != nil {
		_ = s.blobs.Delete(ctx, key)
		return types.UploadedImage{}, fmt.Errorf("resize image %s: %w", key, err)
	}

	if err := s.blobs.Put(ctx, key, bytes.NewReader(scaled), int64(len(scaled)), file.ContentType); err != nil {
		return types.UploadedImage{}, fmt.Errorf("store resized image: %w", err)
	}

	return types.UploadedImage{URL: s.blobs.URL(key), Path: key}, nil
}

func (s *ImageService) read(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored image: %w", err)
	}
	return data, nil
}

// objectName reduces a client-supplied filename to a safe object name,
// keeping it recognizable: "My Photo.JPG" becomes "my-photo.jpg".
func objectName(filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "image"
	}
	if ext == "" || ext == "." {
		ext = extensionFor(contentType)
	}
	return stem + ext
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
