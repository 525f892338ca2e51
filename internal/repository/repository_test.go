package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openShift(t *testing.T, repo repository.ShiftRepository) *model.Shift {
	t.Helper()
	shift := &model.Shift{
		OpenedBy:     "admin",
		OpeningFloat: testutil.Dec("100000"),
		State:        model.ShiftOpen,
		OpenedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), shift))
	return shift
}

func TestSingleOpenShiftIndex(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewShiftRepo(db)
	ctx := context.Background()

	first := openShift(t, repo)

	second := &model.Shift{OpenedBy: "admin", State: model.ShiftOpen, OpenedAt: time.Now().UTC()}
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))

	require.NoError(t, repo.MarkClosed(ctx, first.ID, "admin", time.Now().UTC(),
		testutil.Dec("100000"), testutil.Dec("100000"), ""))

	third := &model.Shift{OpenedBy: "admin", State: model.ShiftOpen, OpenedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, third))

	open, err := repo.FindOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, third.ID, open.ID)
}

func TestSaleAggregates(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	shift := openShift(t, repository.NewShiftRepo(db))
	product := testutil.SeedProduct(t, db, "PRD-001", "Empanada", "2500", "")
	sales := repository.NewSaleRepo(db)

	max, err := sales.MaxTicketNumber(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	seller := uuid.New()
	mk := func(ticket int, total string, state model.SaleState, onCredit bool, payments ...model.Payment) {
		sale := &model.Sale{
			ShiftID: shift.ID, TicketNumber: ticket, SellerID: seller, SellerKind: model.ActorStaff,
			SaleType: "counter", State: state, PaymentState: model.PaymentUnpaid, OnCredit: onCredit,
			Subtotal: testutil.Dec(total), Total: testutil.Dec(total),
			Items: []model.SaleItem{{
				ProductID: product.ID, Quantity: testutil.Dec("1"),
				UnitPrice: testutil.Dec(total), LineTotal: testutil.Dec(total),
			}},
			Payments: payments,
		}
		require.NoError(t, sales.Create(ctx, sale))
	}
	cash := func(amount string) model.Payment {
		return model.Payment{Method: model.MethodCash, Amount: testutil.Dec(amount), ReceivedBy: "x", ReceivedAt: time.Now().UTC()}
	}

	mk(1, "10000", model.SalePaid, false, cash("10000"))
	mk(2, "5000", model.SaleOpen, true)
	mk(3, "2500", model.SaleCancelled, false, cash("2500"))
	mk(4, "3000", model.SalePaid, false, model.Payment{
		Method: model.MethodCard, Amount: testutil.Dec("3000"), ReceivedBy: "x", ReceivedAt: time.Now().UTC(),
	})

	max, err = sales.MaxTicketNumber(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, max)

	totals, err := sales.ShiftTotals(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.TicketCount)
	assert.Equal(t, int64(1), totals.CancelledCount)
	assert.True(t, totals.TotalSales.Equal(testutil.Dec("18000")), totals.TotalSales.String())
	assert.True(t, totals.CreditSales.Equal(testutil.Dec("5000")), totals.CreditSales.String())

	cashTotal, err := sales.PaymentTotal(ctx, shift.ID, model.MethodCash)
	require.NoError(t, err)
	assert.True(t, cashTotal.Equal(testutil.Dec("12500")), cashTotal.String())

	byMethod, err := sales.PaymentsByMethod(ctx, shift.ID)
	require.NoError(t, err)
	require.Len(t, byMethod, 2)
	assert.Equal(t, model.MethodCard, byMethod[0].Method)
	assert.Equal(t, model.MethodCash, byMethod[1].Method)
	assert.Equal(t, int64(2), byMethod[1].Count)

	sellers, err := sales.SellerIDs(ctx, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{seller}, sellers)

	dup := &model.Sale{
		ShiftID: shift.ID, TicketNumber: 4, SellerID: seller, SellerKind: model.ActorStaff,
		SaleType: "counter", State: model.SaleOpen, PaymentState: model.PaymentUnpaid,
	}
	assert.True(t, repository.IsUniqueViolation(sales.Create(ctx, dup)))
}

func TestAccountTotalsFoldMovementLog(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	member := testutil.SeedMember(t, db, "1001", "Ana", "Gómez")
	account := testutil.SeedAccount(t, db, member.ID, "50000", "20000")
	repo := repository.NewAccountRepo(db)

	for _, m := range []model.AccountMovement{
		{Type: model.MovementCharge, Amount: testutil.Dec("7000")},
		{Type: model.MovementPayment, Amount: testutil.Dec("4000")},
		{Type: model.MovementAdjustment, Amount: testutil.Dec("-5000")},
	} {
		m.AccountID = account.ID
		m.ActorID = "admin"
		require.NoError(t, repo.CreateMovement(ctx, &m))
	}

	totals, err := repo.Totals(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.MovementCount)
	assert.True(t, totals.Balance().Equal(testutil.Dec("18000")), totals.Balance().String())

	page := repository.PageRequest{Page: 1, Limit: 2}.Normalize()
	movements, total, err := repo.ListMovements(ctx, account.ID, page)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, movements, 2)
}

func TestWithRetryRetriesOnlyAcceptedErrors(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	errBusy := errors.New("busy")

	attempts := 0
	err := repository.WithRetry(ctx, db, 3, func(err error) bool { return errors.Is(err, errBusy) }, func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errBusy
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = repository.WithRetry(ctx, db, 3, nil, func(tx *gorm.DB) error {
		attempts++
		return errBusy
	})
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, attempts)
}

func TestPageRequestNormalize(t *testing.T) {
	p := repository.PageRequest{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset())

	p = repository.PageRequest{Page: 3, Limit: 1000}.Normalize()
	assert.Equal(t, 200, p.Limit)
	assert.Equal(t, 400, p.Offset())

	page := repository.NewOffsetPage([]int{1}, 401, p)
	assert.Equal(t, 3, page.TotalPages)
}
