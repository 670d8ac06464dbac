package handlers

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopcat/apiserver/internal/imaging"
	"github.com/shopcat/apiserver/internal/services"
	"github.com/shopcat/apiserver/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAPI struct {
	router   http.Handler
	users    *testutil.Users
	tokens   *testutil.Tokens
	products *testutil.Products
	blobs    *testutil.Blobs
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		users:    testutil.NewUsers(),
		tokens:   testutil.NewTokens(),
		products: testutil.NewProducts(),
		blobs:    testutil.NewBlobs(),
	}
	logger := zap.NewNop()

	authService := services.NewAuthService(api.users, api.tokens, services.NewJWTIssuer("test-secret"), 0)
	images := services.NewImageService(api.blobs, imaging.NewResizer(90))
	authMiddleware := RequireAuth(authService, logger)

	r := chi.NewRouter()
	AuthRouter(r, authService, services.NewUserService(api.users), authMiddleware, logger)
	UploadRouter(r, services.NewUploadService(images, api.products, nil, logger), authMiddleware, logger)
	r.Route("/products", func(r chi.Router) {
		ProductRouter(r, services.NewProductService(api.products, images, nil, logger), authMiddleware, logger)
	})
	api.router = r
	return api
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testResponse struct {
	status int
	body   envelope
}

func (r testResponse) decodeData(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body.Data, v))
}

func (r testResponse) fieldErrors(t *testing.T) map[string][]string {
	t.Helper()
	fields := map[string][]string{}
	r.decodeData(t, &fields)
	return fields
}

func (api *testAPI) do(t *testing.T, method, target string, body io.Reader, contentType, token string) testResponse {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return testResponse{status: rec.Code, body: env}
}

func (api *testAPI) doJSON(t *testing.T, method, target string, payload any, token string) testResponse {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return api.do(t, method, target, bytes.NewReader(data), "application/json", token)
}

func (api *testAPI) doForm(t *testing.T, method, target string, values url.Values, token string) testResponse {
	t.Helper()
	return api.do(t, method, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", token)
}

type upload struct {
	field    string
	filename string
	data     []byte
}

func (api *testAPI) doMultipart(t *testing.T, method, target string, values map[string]string, file *upload, token string) testResponse {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range values {
		require.NoError(t, writer.WriteField(name, value))
	}
	if file != nil {
		part, err := writer.CreateFormFile(file.field, file.filename)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return api.do(t, method, target, &buf, writer.FormDataContentType(), token)
}

// registerAndLogin creates a user and returns a bearer token for it.
func (api *testAPI) registerAndLogin(t *testing.T, email string) string {
	t.Helper()

	resp := api.doJSON(t, http.MethodPost, "/register", map[string]string{
		"name":                  "Ada",
		"email":                 email,
		"password":              "password123",
		"password_confirmation": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.status, resp.body.Message)

	return api.login(t, email, "password123")
}

func (api *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()

	resp := api.doJSON(t, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, resp.status, resp.body.Message)
	var data LoginResponse
	resp.decodeData(t, &data)
	require.NotEmpty(t, data.Token)
	return data.Token
}

// jpegOfSize encodes a w×h JPEG and pads it with comment segments until it
// is at least size bytes long.
func jpegOfSize(t *testing.T, w, h, size int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	var encoded bytes.Buffer
	require.NoError(t, jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 80}))
	raw := encoded.Bytes()

	var out bytes.Buffer
	out.Write(raw[:2]) // SOI
	payload := bytes.Repeat([]byte{'x'}, 65000)
	for out.Len()+len(raw) < size {
		out.Write([]byte{0xFF, 0xFE})
		_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
		out.Write(payload)
	}
	out.Write(raw[2:])
	return out.Bytes()
}
