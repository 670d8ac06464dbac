package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/internal/testutil"
	"github.com/shopcat/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProductService() (*ProductService, *testutil.Products, *testutil.Events) {
	images, _ := newTestImageService()
	products := testutil.NewProducts()
	events := &testutil.Events{}
	return NewProductService(products, images, events, nil), products, events
}

func seedProducts(t *testing.T, svc *ProductService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := svc.Create(context.Background(), types.Product{
			Name:          "Product",
			Price:         float64(i + 1),
			StockQuantity: i % 2,
		}, nil)
		require.NoError(t, err)
	}
}

type recordingRepo struct {
	*testutil.Products
	requests []types.PageRequest
}

func (r *recordingRepo) List(ctx context.Context, filter types.ProductFilter, sort types.ProductSort, page types.PageRequest) ([]types.Product, int, error) {
	r.requests = append(r.requests, page)
	return r.Products.List(ctx, filter, sort, page)
}

func TestListHugePageIsEmpty(t *testing.T) {
	images, _ := newTestImageService()
	repo := &recordingRepo{Products: testutil.NewProducts()}
	svc := NewProductService(repo, images, nil, nil)
	seedProducts(t, svc, 3)

	page, err := svc.List(context.Background(), types.ProductFilter{}, types.DefaultProductSort,
		types.PageRequest{Page: 100000000000000000, PerPage: 100})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Nil(t, page.From)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 100000000000000000, page.CurrentPage)

	require.Len(t, repo.requests, 1)
	offset := repo.requests[0].Offset()
	assert.GreaterOrEqual(t, offset, 0)
	assert.Greater(t, offset, math.MaxInt32)
}

func TestListPagingDefaults(t *testing.T) {
	svc, _, _ := newTestProductService()
	seedProducts(t, svc, 150)

	cases := []struct {
		name        string
		req         types.PageRequest
		wantPage    int
		wantPerPage int
		wantLen     int
	}{
		{name: "zero values", req: types.PageRequest{}, wantPage: 1, wantPerPage: 10, wantLen: 10},
		{name: "negative", req: types.PageRequest{Page: -2, PerPage: -5}, wantPage: 1, wantPerPage: 10, wantLen: 10},
		{name: "capped", req: types.PageRequest{Page: 1, PerPage: 500}, wantPage: 1, wantPerPage: 100, wantLen: 100},
		{name: "last page", req: types.PageRequest{Page: 2, PerPage: 100}, wantPage: 2, wantPerPage: 100, wantLen: 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), types.ProductFilter{}, types.DefaultProductSort, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPage, page.CurrentPage)
			assert.Equal(t, tc.wantPerPage, page.PerPage)
			assert.Len(t, page.Data, tc.wantLen)
			assert.Equal(t, 150, page.Total)
		})
	}
}

func TestListBogusSortMatchesDefault(t *testing.T) {
	svc, _, _ := newTestProductService()
	seedProducts(t, svc, 12)
	ctx := context.Background()
	req := types.PageRequest{Page: 1, PerPage: 5}

	want, err := svc.List(ctx, types.ProductFilter{}, types.ProductSort{By: "created_at", Order: "desc"}, req)
	require.NoError(t, err)

	for _, sort := range []types.ProductSort{
		{By: "bogus", Order: "asc"},
		{By: "price", Order: "bogus"},
		{By: "bogus", Order: "bogus"},
	} {
		got, err := svc.List(ctx, types.ProductFilter{}, sort, req)
		require.NoError(t, err)
		assert.Equal(t, want, got, "sort %+v", sort)
	}
}

func TestCreateProductWithImage(t *testing.T) {
	svc, _, events := newTestProductService()

	created, err := svc.Create(context.Background(), types.Product{Name: "Widget", Price: 9.99, StockQuantity: 5}, &ImageFile{
		Filename:    "widget.png",
		ContentType: "image/png",
		Data:        encodePNG(t, 400, 400),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Image)
	assert.Equal(t, "/storage/images/product_1700000000_widget.png", *created.Image)

	published := events.Published()
	require.Len(t, published, 1)
	assert.Equal(t, types.EventProductCreated, published[0].Type)
	assert.Equal(t, created.ID, published[0].ProductID)
}

func TestUpdateProductAppliesOnlySuppliedFields(t *testing.T) {
	svc, _, _ := newTestProductService()
	ctx := context.Background()
	description := "original"
	created, err := svc.Create(ctx, types.Product{Name: "Widget", Description: &description, Price: 9.99, StockQuantity: 5}, nil)
	require.NoError(t, err)

	price := 12.5
	updated, err := svc.Update(ctx, created.ID, types.ProductPatch{Price: &price}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Widget", updated.Name)
	assert.Equal(t, 12.5, updated.Price)
	assert.Equal(t, 5, updated.StockQuantity)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "original", *updated.Description)

	cleared, err := svc.Update(ctx, created.ID, types.ProductPatch{DescriptionSet: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.Description)
}

func TestUpdateMissingProduct(t *testing.T) {
	svc, _, events := newTestProductService()

	name := "ghost"
	_, err := svc.Update(context.Background(), 42, types.ProductPatch{Name: &name}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, events.Published())
}

func TestDeleteThenGet(t *testing.T) {
	svc, _, events := newTestProductService()
	ctx := context.Background()
	created, err := svc.Create(ctx, types.Product{Name: "Widget", Price: 1, StockQuantity: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), store.ErrNotFound)

	published := events.Published()
	require.Len(t, published, 2)
	assert.Equal(t, types.EventProductDeleted, published[1].Type)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc, products, events := newTestProductService()
	events.Err = errors.New("broker down")

	created, err := svc.Create(context.Background(), types.Product{Name: "Widget", Price: 1, StockQuantity: 1}, nil)
	require.NoError(t, err)

	stored, err := products.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", stored.Name)
}
