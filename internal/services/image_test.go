package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/shopcat/apiserver/internal/imaging"
	"github.com/shopcat/apiserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1700000000, 0)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func newTestImageService() (*ImageService, *testutil.Blobs) {
	blobs := testutil.NewBlobs()
	svc := NewImageService(blobs, imaging.NewResizer(90))
	svc.now = func() time.Time { return fixedNow }
	return svc, blobs
}

func TestObjectName(t *testing.T) {
	cases := []struct {
		filename    string
		contentType string
		want        string
	}{
		{filename: "photo.jpg", want: "photo.jpg"},
		{filename: "My Photo.JPG", want: "my-photo.jpg"},
		{filename: "../../etc/passwd.png", want: "passwd.png"},
		{filename: `C:\Users\ada\shot.gif`, want: "shot.gif"},
		{filename: "", contentType: "image/png", want: "image.png"},
		{filename: "noext", contentType: "image/jpeg", want: "noext.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.want, objectName(tc.filename, tc.contentType))
		})
	}
}

func TestStoreResizedScalesInPlace(t *testing.T) {
	svc, blobs := newTestImageService()

	stored, err := svc.StoreResized(context.Background(), ImageFile{
		Filename:    "wide.png",
		ContentType: "image/png",
		Data:        encodePNG(t, 1600, 400),
	}, uploadImagePrefix)
	require.NoError(t, err)

	assert.Equal(t, "images/1700000000_wide.png", stored.Path)
	assert.Equal(t, "/storage/images/1700000000_wide.png", stored.URL)
	assert.Equal(t, 2, blobs.Puts[stored.Path], "original then resized")

	data, ok := blobs.Object(stored.Path)
	require.True(t, ok)
	w, h := decodeSize(t, data)
	assert.Equal(t, 800, w)
	assert.Equal(t, 200, h)
}

func TestStoreResizedUpscalesAndPrefixes(t *testing.T) {
	svc, blobs := newTestImageService()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	stored, err := svc.StoreResized(context.Background(), ImageFile{
		Filename:    "small.jpeg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, productImagePrefix)
	require.NoError(t, err)
	assert.Equal(t, "images/product_1700000000_small.jpeg", stored.Path)

	data, _ := blobs.Object(stored.Path)
	w, h := decodeSize(t, data)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)
}

func TestStoreResizedDecodeFailure(t *testing.T) {
	svc, blobs := newTestImageService()

	_, err := svc.StoreResized(context.Background(), ImageFile{
		Filename:    "broken.png",
		ContentType: "image/png",
		Data:        []byte("\x89PNG\r\n\x1a\nnot really"),
	}, uploadImagePrefix)
	assert.ErrorIs(t, err, imaging.ErrDecode)
	assert.Empty(t, blobs.Keys(), "the unprocessable original is removed")
}
