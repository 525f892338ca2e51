package service_test

import (
	"context"
	"fmt"
	"testing"

	"church-pos/internal/service"
	"church-pos/internal/testutil"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushBatchMixedResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	h.openShift(t, "0")
	product := testutil.SeedProduct(t, h.db, "PRD-001", "Tinto", "1500", "")

	existing := saleOf(product.ID, "1", "1500")
	existing.IdempotencyKey = "tablet-1-0001"
	prior, err := h.sales.CreateSale(ctx, admin, existing)
	require.NoError(t, err)

	fresh := saleOf(product.ID, "2", "1500")
	fresh.IdempotencyKey = "tablet-1-0002"
	noKey := saleOf(product.ID, "1", "1500")
	broken := saleOf(uuid.New(), "1", "1500")
	broken.IdempotencyKey = "tablet-1-0003"

	res, err := h.sync.PushBatch(ctx, admin, []service.CreateSaleRequest{*existing, *fresh, *noKey, *broken})
	require.NoError(t, err)

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, prior.Sale.ID, res.Duplicates[0].SaleID)

	require.Len(t, res.Successes, 1)
	assert.Equal(t, "tablet-1-0002", res.Successes[0].IdempotencyKey)
	assert.Equal(t, 2, res.Successes[0].TicketNumber)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, 2, res.Failures[0].Index)
	assert.Equal(t, apperror.KindValidation, res.Failures[0].Kind)
	assert.Equal(t, 3, res.Failures[1].Index)
	assert.Equal(t, "tablet-1-0003", res.Failures[1].IdempotencyKey)
	assert.Equal(t, apperror.KindValidation, res.Failures[1].Kind)

	// Replaying the same batch creates nothing new
	again, err := h.sync.PushBatch(ctx, admin, []service.CreateSaleRequest{*existing, *fresh})
	require.NoError(t, err)
	assert.Empty(t, again.Successes)
	assert.Len(t, again.Duplicates, 2)
}

func TestPushBatchWithoutOpenShift(t *testing.T) {
	h := newHarness(t)
	product := testutil.SeedProduct(t, h.db, "PRD-001", "Tinto", "1500", "")

	req := saleOf(product.ID, "1", "1500")
	req.IdempotencyKey = "tablet-1-0001"
	res, err := h.sync.PushBatch(context.Background(), testutil.AdminActor(), []service.CreateSaleRequest{*req})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, apperror.KindPrecondition, res.Failures[0].Kind)
}

func TestPushBatchLimits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	product := testutil.SeedProduct(t, h.db, "PRD-001", "Tinto", "1500", "")

	_, err := h.sync.PushBatch(ctx, admin, nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	batch := make([]service.CreateSaleRequest, 6)
	for i := range batch {
		req := saleOf(product.ID, "1", "1500")
		req.IdempotencyKey = fmt.Sprintf("tablet-1-%04d", i)
		batch[i] = *req
	}
	_, err = h.sync.PushBatch(ctx, admin, batch)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	memberID := uuid.New()
	cashier := testutil.CashierActor(&memberID)
	cashier.Privileges = nil
	_, err = h.sync.PushBatch(ctx, cashier, batch[:1])
	assert.Equal(t, apperror.KindPermission, apperror.KindOf(err))
}
