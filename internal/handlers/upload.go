package handlers

import (
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/shopcat/apiserver/internal/services"
	"go.uber.org/zap"
)

const fieldProductID = "product_id"

// UploadHandler serves the standalone image upload endpoint.
type UploadHandler struct {
	uploadService *services.UploadService
	logger        *zap.Logger
}

func NewUploadHandler(uploadService *services.UploadService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, logger: logger}
}

// UploadRouter registers the upload route. Every route it adds is protected.
func UploadRouter(
	r chi.Router,
	uploadService *services.UploadService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewUploadHandler(uploadService, logger)

	r.With(authMiddleware).Post("/upload-image", handler.UploadImage)
}

var uploadImageRules = constraints{
	{field: fieldImage, required: true, checks: imageChecks},
	{field: fieldProductID, checks: []check{integer()}},
}

// UploadImage stores an image scaled to the standard width and optionally
// links it to a product.
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	fields, err := parseRequestFields(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	defer fields.close()

	if !fields.isMultipart() {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	if err := uploadImageRules.validate(r.Context(), fields); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	image, err := imageFileFrom(fields, fieldImage)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	var productID *int
	if fields.filled(fieldProductID) {
		if id, _ := parseInteger(fields.get(fieldProductID)); isRowID(id) {
			productID = &id
		}
	}

	uploaded, err := h.uploadService.Upload(r.Context(), *image, productID)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Image uploaded successfully", uploaded)
}

// imageFileFrom returns the validated upload in field, or nil when none was sent.
func imageFileFrom(fields *requestFields, field string) (*services.ImageFile, error) {
	header := fields.file(field)
	if header == nil {
		return nil, nil
	}

	data, err := fields.readFile(field, maxImageKilobytes<<10)
	if err != nil {
		return nil, err
	}

	return &services.ImageFile{
		Filename:    header.Filename,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}
