package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopcat/apiserver/config"
	"github.com/shopcat/apiserver/internal/imaging"
	"github.com/shopcat/apiserver/internal/services"
	"github.com/shopcat/apiserver/internal/storage"
	"github.com/shopcat/apiserver/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *storage.LocalDisk) {
	t.Helper()

	local, err := storage.NewLocalDisk(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, local.EnsureBucket(context.Background()))

	users := testutil.NewUsers()
	products := testutil.NewProducts()
	images := services.NewImageService(local, imaging.NewResizer(jpegQuality))
	logger := zap.NewNop()

	router := NewRouter(Dependencies{
		AuthService:    services.NewAuthService(users, testutil.NewTokens(), services.NewJWTIssuer("test-secret"), 0),
		UserService:    services.NewUserService(users),
		ProductService: services.NewProductService(products, images, nil, logger),
		UploadService:  services.NewUploadService(images, products, nil, logger),
		LocalFiles:     local,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	})
	return router, local
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRoutesMountedAtRootAndAPI(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{"/products", "/api/products"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)

		var body struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
			Data    struct {
				Total int `json:"total"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "Products retrieved successfully", body.Message)
		assert.Zero(t, body.Data.Total)
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStorageServesLocalFiles(t *testing.T) {
	router, local := newTestRouter(t)

	require.NoError(t, local.Put(context.Background(), "images/1_cat.jpg", strings.NewReader("meow"), 4, "image/jpeg"))
	assert.Equal(t, "/storage/images/1_cat.jpg", local.URL("images/1_cat.jpg"))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/storage/images/1_cat.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "meow", string(body))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/storage/images/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(router, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestNewRequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
