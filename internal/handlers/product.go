package handlers

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopcat/apiserver/internal/services"
	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
	"go.uber.org/zap"
)

const (
	msgProductNotFound = "Product not found"

	fieldName          = "name"
	fieldDescription   = "description"
	fieldPrice         = "price"
	fieldStockQuantity = "stock_quantity"
	fieldImage         = "image"
)

// ProductHandler provides HTTP handlers for products.
type ProductHandler struct {
	productService *services.ProductService
	logger         *zap.Logger
}

// NewProductHandler constructs a handler with the provided service.
func NewProductHandler(productService *services.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// ProductRouter registers product routes on the given router.
func ProductRouter(
	r chi.Router,
	productService *services.ProductService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewProductHandler(productService, logger)

	r.Get("/", handler.ListProducts)
	r.With(authMiddleware).Post("/", handler.CreateProduct)
	r.Route("/{productID}", func(r chi.Router) {
		r.Get("/", handler.GetProduct)
		r.With(authMiddleware).Put("/", handler.UpdateProduct)
		r.With(authMiddleware).Delete("/", handler.DeleteProduct)
	})
}

// Upper bounds of the NUMERIC(10,2) price and INTEGER stock columns.
const (
	maxPrice         = 99999999.99
	maxStockQuantity = math.MaxInt32
)

var imageChecks = []check{isImage(), mimes(), maxKilobytes(maxImageKilobytes)}

var createProductRules = constraints{
	{field: fieldName, required: true, checks: []check{isString(), maxChars(255)}},
	{field: fieldDescription, checks: []check{isString()}},
	{field: fieldPrice, required: true, checks: []check{numeric(), minValue(0), maxValue(maxPrice)}},
	{field: fieldStockQuantity, required: true, checks: []check{integer(), minValue(0), maxValue(maxStockQuantity)}},
	{field: fieldImage, checks: imageChecks},
}

var updateProductRules = constraints{
	{field: fieldName, required: true, sometimes: true, checks: []check{isString(), maxChars(255)}},
	{field: fieldDescription, checks: []check{isString()}},
	{field: fieldPrice, required: true, sometimes: true, checks: []check{numeric(), minValue(0), maxValue(maxPrice)}},
	{field: fieldStockQuantity, required: true, sometimes: true, checks: []check{integer(), minValue(0), maxValue(maxStockQuantity)}},
	{field: fieldImage, checks: imageChecks},
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, err := parseProductFilter(query)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	sort := types.ProductSort{
		By:    strings.TrimSpace(query.Get("sort_by")),
		Order: strings.TrimSpace(query.Get("sort_order")),
	}
	if sort.By == "" {
		sort.By = types.DefaultProductSort.By
	}
	if sort.Order == "" {
		sort.Order = types.DefaultProductSort.Order
	}

	page := types.PageRequest{
		Page:    parseSoftInt(query.Get("page")),
		PerPage: parseSoftInt(query.Get("per_page")),
	}

	products, err := h.productService.List(r.Context(), filter, sort, page)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Products retrieved successfully", products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "productID")
	if !ok {
		writeError(w, http.StatusNotFound, msgProductNotFound)
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.writeProductError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product retrieved successfully", product)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	fields, err := parseRequestFields(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	defer fields.close()

	if err := createProductRules.validate(r.Context(), fields); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	price, _ := parseNumber(fields.get(fieldPrice))
	stock, _ := parseInteger(fields.get(fieldStockQuantity))
	product := types.Product{
		Name:          fields.get(fieldName),
		Description:   optionalString(fields, fieldDescription),
		Price:         price,
		StockQuantity: stock,
	}

	image, err := imageFileFrom(fields, fieldImage)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	created, err := h.productService.Create(r.Context(), product, image)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Product created successfully", created)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "productID")
	if !ok {
		writeError(w, http.StatusNotFound, msgProductNotFound)
		return
	}

	fields, err := parseRequestFields(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	defer fields.close()

	if err := updateProductRules.validate(r.Context(), fields); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	patch := types.ProductPatch{}
	if fields.has(fieldName) {
		name := fields.get(fieldName)
		patch.Name = &name
	}
	if fields.has(fieldDescription) {
		patch.Description = optionalString(fields, fieldDescription)
		patch.DescriptionSet = true
	}
	if fields.has(fieldPrice) {
		price, _ := parseNumber(fields.get(fieldPrice))
		patch.Price = &price
	}
	if fields.has(fieldStockQuantity) {
		stock, _ := parseInteger(fields.get(fieldStockQuantity))
		patch.StockQuantity = &stock
	}

	image, err := imageFileFrom(fields, fieldImage)
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	updated, err := h.productService.Update(r.Context(), id, patch, image)
	if err != nil {
		h.writeProductError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product updated successfully", updated)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "productID")
	if !ok {
		writeError(w, http.StatusNotFound, msgProductNotFound)
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.writeProductError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

func (h *ProductHandler) writeProductError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgProductNotFound)
		return
	}
	writeServerError(w, r, h.logger, err)
}

// parseProductFilter reads the price and stock filters. A price bound that
// is present but not a number is rejected; in_stock is true only for
// "true" and "1".
func parseProductFilter(query url.Values) (types.ProductFilter, error) {
	filter := types.ProductFilter{}
	verr := &ValidationError{}

	for _, bound := range []struct {
		name   string
		target **float64
	}{
		{name: "min_price", target: &filter.MinPrice},
		{name: "max_price", target: &filter.MaxPrice},
	} {
		raw := strings.TrimSpace(query.Get(bound.name))
		if raw == "" {
			continue
		}
		value, ok := parseNumber(raw)
		if !ok {
			verr.add(bound.name, "The "+strings.ReplaceAll(bound.name, "_", " ")+" field must be a number.")
			continue
		}
		*bound.target = &value
	}

	if query.Has("in_stock") {
		raw := strings.TrimSpace(query.Get("in_stock"))
		inStock := raw == "true" || raw == "1"
		filter.InStock = &inStock
	}

	if len(verr.Fields) > 0 {
		return types.ProductFilter{}, verr
	}
	return filter, nil
}

// parseSoftInt returns 0 for anything that is not an integer; the service
// substitutes its defaults.
func parseSoftInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

func optionalString(fields *requestFields, name string) *string {
	if !fields.filled(name) {
		return nil
	}
	value := fields.get(name)
	return &value
}
