package service_test

import (
	"context"
	"testing"

	"church-pos/internal/repository"
	"church-pos/internal/service"
	"church-pos/internal/testutil"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProductGeneratesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	first, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Tinto", Price: testutil.Dec("1500")})
	require.NoError(t, err)
	assert.Equal(t, "PRD-001", first.Code)
	assert.True(t, first.Active)

	second, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Aromática", Price: testutil.Dec("1200")})
	require.NoError(t, err)
	assert.Equal(t, "PRD-002", second.Code)

	// Deleted codes are never handed out again
	require.NoError(t, h.products.Delete(ctx, admin, second.ID))
	third, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Chocolate", Price: testutil.Dec("2500")})
	require.NoError(t, err)
	assert.Equal(t, "PRD-003", third.Code)

	_, err = h.products.Create(ctx, admin, &service.CreateProductRequest{Code: "prd-001", Name: "Otro", Price: testutil.Dec("1")})
	require.ErrorIs(t, err, service.ErrDuplicateCode)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestCreateProductValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	_, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Price: testutil.Dec("1")})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Tinto", Price: testutil.Dec("-1")})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	missing := uuid.New()
	_, err = h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Tinto", CategoryID: &missing})
	assert.ErrorIs(t, err, service.ErrCategoryNotFound)

	memberID := uuid.New()
	_, err = h.products.Create(ctx, testutil.CashierActor(&memberID), &service.CreateProductRequest{Name: "Tinto"})
	assert.Equal(t, apperror.KindPermission, apperror.KindOf(err))
}

func TestProductListIsCachedAndInvalidated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	active := true

	product, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Tinto", Price: testutil.Dec("1500")})
	require.NoError(t, err)

	filter := repository.ProductFilter{Active: &active}
	list, err := h.products.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, h.cache.Has("products:q=:cat=all:active=true:fav=any"))

	price := testutil.Dec("1800")
	updated, err := h.products.Update(ctx, admin, product.ID, &service.UpdateProductRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.False(t, h.cache.Has("products:q=:cat=all:active=true:fav=any"))

	list, err = h.products.List(ctx, filter)
	require.NoError(t, err)
	assert.True(t, list[0].Price.Equal(price))

	// A sale moves stock shown in the list, so it invalidates too
	h.openShift(t, "0")
	_, err = h.sales.CreateSale(ctx, admin, saleOf(product.ID, "1", "1800"))
	require.NoError(t, err)
	assert.False(t, h.cache.Has("products:q=:cat=all:active=true:fav=any"))
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	tinto := testutil.SeedProduct(t, h.db, "PRD-001", "Tinto", "1500", "")
	testutil.SeedProduct(t, h.db, "PRD-002", "Aromática", "1200", "")

	code := "PRD-002"
	_, err := h.products.Update(ctx, admin, tinto.ID, &service.UpdateProductRequest{Code: &code})
	require.ErrorIs(t, err, service.ErrDuplicateCode)

	inactive := false
	updated, err := h.products.Update(ctx, admin, tinto.ID, &service.UpdateProductRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	name := "Nada"
	_, err = h.products.Update(ctx, admin, uuid.New(), &service.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, service.ErrProductNotFound)

	require.NoError(t, h.products.Delete(ctx, admin, tinto.ID))
	_, err = h.products.Get(ctx, tinto.ID)
	assert.ErrorIs(t, err, service.ErrProductNotFound)
	assert.ErrorIs(t, h.products.Delete(ctx, admin, tinto.ID), service.ErrProductNotFound)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	drinks, err := h.products.CreateCategory(ctx, admin, &service.CreateCategoryRequest{Name: " Bebidas "})
	require.NoError(t, err)
	assert.Equal(t, "Bebidas", drinks.Name)
	_, err = h.products.CreateCategory(ctx, admin, &service.CreateCategoryRequest{Name: "Almuerzos"})
	require.NoError(t, err)

	_, err = h.products.CreateCategory(ctx, admin, &service.CreateCategoryRequest{})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	categories, err := h.products.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Almuerzos", categories[0].Name)

	product, err := h.products.Create(ctx, admin, &service.CreateProductRequest{Name: "Jugo", CategoryID: &drinks.ID})
	require.NoError(t, err)

	filtered, err := h.products.List(ctx, repository.ProductFilter{CategoryID: &drinks.ID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, product.ID, filtered[0].ID)
	require.NotNil(t, filtered[0].Category)
	assert.Equal(t, "Bebidas", filtered[0].Category.Name)
}
