package service_test

import (
	"context"
	"testing"
	"time"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/internal/service"
	"church-pos/internal/testutil"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidityWindowCutoff(t *testing.T) {
	policy := service.StaffPolicy{CutoffHour: 16, Location: time.FixedZone("UTC-5", -5*3600)}

	// 09:00 local: today's cutoff
	from, until := policy.ValidityWindow(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC), until)

	// 17:30 local: rolls over to tomorrow
	_, until = policy.ValidityWindow(time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 11, 21, 0, 0, 0, time.UTC), until)

	// exactly at the cutoff counts as past it
	_, until = policy.ValidityWindow(time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 11, 21, 0, 0, 0, time.UTC), until)
}

func TestOpenShiftProvisionsStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := testutil.SeedMember(t, h.db, " 1020304050 ", "Ana", "Gómez")
	noDoc := testutil.SeedMember(t, h.db, "", "Luis", "Sin Documento")
	unknown := uuid.New()

	res, err := h.shifts.OpenShift(ctx, testutil.AdminActor(), &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("100000"),
		Staff: []service.StaffEntry{
			{MemberID: &ana.ID, PIN: "1234"},
			{PIN: "5678"},
			{PIN: "9012", DisplayName: "Mesero terraza"},
			{MemberID: &noDoc.ID, PIN: "1111"},
			{MemberID: &unknown, PIN: "2222"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.ShiftOpen, res.Shift.State)
	require.Len(t, res.Staff, 3)
	assert.Len(t, res.Skipped, 2)

	assert.Equal(t, "1020304050", res.Staff[0].Username)
	assert.Equal(t, "Ana Gómez", res.Staff[0].DisplayName)
	assert.Equal(t, "1234", res.Staff[0].PIN)
	assert.Equal(t, "mesero_1", res.Staff[1].Username)
	assert.Equal(t, "mesero_2", res.Staff[2].Username)
	assert.Equal(t, "Mesero terraza", res.Staff[2].DisplayName)
	assert.Equal(t, time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC), res.Staff[0].ValidUntil.UTC())

	var stored model.EphemeralStaff
	require.NoError(t, h.db.First(&stored, "id = ?", res.Staff[0].ID).Error)
	assert.True(t, stored.CheckPIN("1234"))
	assert.NotEqual(t, "1234", stored.PINHash)

	assert.Contains(t, h.notifier.Events(), "shift_opened")
}

func TestOpenShiftRejectsSecondOpenShift(t *testing.T) {
	h := newHarness(t)
	h.openShift(t, "50000")

	_, err := h.shifts.OpenShift(context.Background(), testutil.AdminActor(), &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("1000"),
	})
	require.ErrorIs(t, err, service.ErrShiftAlreadyOpen)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestOpenShiftRequiresPrivilege(t *testing.T) {
	h := newHarness(t)
	waiter := testutil.WaiterActor(uuid.New())

	_, err := h.shifts.OpenShift(context.Background(), waiter, &service.OpenShiftRequest{})
	assert.Equal(t, apperror.KindPermission, apperror.KindOf(err))
}

func TestOpenShiftValidatesPIN(t *testing.T) {
	h := newHarness(t)

	_, err := h.shifts.OpenShift(context.Background(), testutil.AdminActor(), &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("1000"),
		Staff:        []service.StaffEntry{{PIN: "12a"}},
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = h.shifts.OpenShift(context.Background(), testutil.AdminActor(), &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("-1"),
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestOpenShiftReusesActiveStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	member := testutil.SeedMember(t, h.db, "55555", "Marta", "Ruiz")

	first, err := h.shifts.OpenShift(ctx, admin, &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("1000"),
		Staff:        []service.StaffEntry{{MemberID: &member.ID, PIN: "1234"}},
	})
	require.NoError(t, err)

	// Close the shift without the sweep to leave the login active
	require.NoError(t, h.db.Model(&model.Shift{}).Where("id = ?", first.Shift.ID).Update("state", model.ShiftClosed).Error)

	second, err := h.shifts.OpenShift(ctx, admin, &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("1000"),
		Staff:        []service.StaffEntry{{MemberID: &member.ID, PIN: "4321"}},
	})
	require.NoError(t, err)
	require.Len(t, second.Staff, 1)
	assert.True(t, second.Staff[0].Reused)
	assert.Equal(t, first.Staff[0].ID, second.Staff[0].ID)

	// The earlier PIN still applies, so none is echoed back
	assert.Empty(t, second.Staff[0].PIN)
	var stored model.EphemeralStaff
	require.NoError(t, h.db.First(&stored, "id = ?", second.Staff[0].ID).Error)
	assert.True(t, stored.CheckPIN("1234"))
	assert.False(t, stored.CheckPIN("4321"))
}

func TestCloseShiftComputesExpectedCash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	shift := h.openShift(t, "100000")
	product := testutil.SeedProduct(t, h.db, "PRD-001", "Almuerzo", "5000", "")

	req := saleOf(product.ID, "2", "5000")
	req.Payments = []service.PaymentRequest{{Method: model.MethodCash, Amount: testutil.Dec("10000")}}
	res, err := h.sales.CreateSale(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, res.Sale.PaymentState)
	assert.Equal(t, model.SalePaid, res.Sale.State)

	card := saleOf(product.ID, "1", "5000")
	card.Payments = []service.PaymentRequest{{Method: model.MethodCard, Amount: testutil.Dec("5000")}}
	_, err = h.sales.CreateSale(ctx, admin, card)
	require.NoError(t, err)

	closed, err := h.shifts.CloseShift(ctx, admin, shift.ID, &service.CloseShiftRequest{
		CountedCash: testutil.Dec("109500"),
		Notes:       "faltan 500",
	})
	require.NoError(t, err)

	assert.True(t, closed.ExpectedCash.Equal(testutil.Dec("110000")), closed.ExpectedCash.String())
	assert.True(t, closed.Difference.Equal(testutil.Dec("-500")))
	assert.Equal(t, model.ShiftClosed, closed.Shift.State)
	require.NotNil(t, closed.Shift.ExpectedCash)
	assert.True(t, closed.Shift.ExpectedCash.Equal(testutil.Dec("110000")))
	assert.Equal(t, "faltan 500", closed.Shift.CloseNotes)

	_, err = h.shifts.CloseShift(ctx, admin, shift.ID, &service.CloseShiftRequest{CountedCash: testutil.Dec("0")})
	require.ErrorIs(t, err, service.ErrShiftClosed)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	_, err = h.shifts.CloseShift(ctx, admin, uuid.New(), &service.CloseShiftRequest{})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestCloseShiftDeactivatesAllStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	res, err := h.shifts.OpenShift(ctx, admin, &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("0"),
		Staff:        []service.StaffEntry{{PIN: "1234"}, {PIN: "5678"}},
	})
	require.NoError(t, err)

	active, err := h.staff.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	closed, err := h.shifts.CloseShift(ctx, admin, res.Shift.ID, &service.CloseShiftRequest{CountedCash: testutil.Dec("0")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, closed.StaffDeactivated)

	active, err = h.staff.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = h.staff.Authorize(ctx, res.Staff[0].ID)
	assert.ErrorIs(t, err, service.ErrStaffInactive)
}

func TestShiftSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	member := testutil.SeedMember(t, h.db, "777", "Pedro", "Páez")
	testutil.SeedAccount(t, h.db, member.ID, "100000", "0")
	product := testutil.SeedProduct(t, h.db, "PRD-001", "Café", "2000", "")

	res, err := h.shifts.OpenShift(ctx, admin, &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec("20000"),
		Staff:        []service.StaffEntry{{PIN: "1234"}, {PIN: "5678"}},
	})
	require.NoError(t, err)
	waiter := testutil.WaiterActor(res.Staff[0].ID)

	cash := saleOf(product.ID, "3", "2000")
	cash.Payments = []service.PaymentRequest{{Method: model.MethodCash, Amount: testutil.Dec("6000")}}
	_, err = h.sales.CreateSale(ctx, waiter, cash)
	require.NoError(t, err)

	credit := saleOf(product.ID, "2", "2000")
	credit.OnCredit = true
	credit.MemberID = &member.ID
	_, err = h.sales.CreateSale(ctx, waiter, credit)
	require.NoError(t, err)

	cancelled, err := h.sales.CreateSale(ctx, admin, saleOf(product.ID, "1", "2000"))
	require.NoError(t, err)
	_, err = h.sales.CancelSale(ctx, admin, cancelled.Sale.ID, &service.CancelSaleRequest{Reason: "error de digitación"})
	require.NoError(t, err)

	summary, err := h.shifts.GetSummary(ctx, res.Shift.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 3, summary.TicketCount)
	assert.EqualValues(t, 1, summary.CancelledCount)
	assert.True(t, summary.TotalSales.Equal(testutil.Dec("10000")))
	assert.True(t, summary.CreditSales.Equal(testutil.Dec("4000")))
	assert.True(t, summary.ExpectedCash.Equal(testutil.Dec("26000")))
	require.Len(t, summary.Payments, 1)
	assert.Equal(t, model.MethodCash, summary.Payments[0].Method)

	require.Len(t, summary.Staff, 2)
	hasSales := map[uuid.UUID]bool{}
	for _, st := range summary.Staff {
		hasSales[st.ID] = st.HasSales
	}
	assert.True(t, hasSales[res.Staff[0].ID])
	assert.False(t, hasSales[res.Staff[1].ID])

	_, err = h.shifts.GetSummary(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrShiftNotFound)
}

func TestGetActiveShiftIsCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	none, err := h.shifts.GetActiveShift(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.False(t, h.cache.Has("shift:active"))

	shift := h.openShift(t, "1000")
	assert.False(t, h.cache.Has("shift:active"))

	active, err := h.shifts.GetActiveShift(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, shift.ID, active.ID)

	// Served from cache even when the row changes underneath
	require.NoError(t, h.db.Model(&model.Shift{}).Where("id = ?", shift.ID).Update("notes", "changed").Error)
	cached, err := h.shifts.GetActiveShift(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.Notes)
}

func TestGetActiveShiftSeesShiftCommittedAfterMiss(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A reader misses while the shift is not yet committed
	none, err := h.shifts.GetActiveShift(ctx)
	require.NoError(t, err)
	require.Nil(t, none)

	// The shift commits without passing through the service's invalidation
	shift := &model.Shift{State: model.ShiftOpen, OpenedAt: fixedNow, OpenedBy: "system", OpeningFloat: testutil.Dec("0")}
	require.NoError(t, h.db.Create(shift).Error)

	active, err := h.shifts.GetActiveShift(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, shift.ID, active.ID)
}

func TestListShifts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := testutil.AdminActor()

	first := h.openShift(t, "1000")
	_, err := h.shifts.CloseShift(ctx, admin, first.ID, &service.CloseShiftRequest{CountedCash: testutil.Dec("1000")})
	require.NoError(t, err)
	h.now = h.now.Add(time.Hour)
	second := h.openShift(t, "2000")

	page, err := h.shifts.ListShifts(ctx, repository.ShiftFilter{Page: repository.PageRequest{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	shifts := page.Items.([]model.Shift)
	assert.Equal(t, second.ID, shifts[0].ID)

	page, err = h.shifts.ListShifts(ctx, repository.ShiftFilter{State: model.ShiftClosed})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, first.ID, page.Items.([]model.Shift)[0].ID)

	// [fixedNow+30m, ...) only holds the second shift
	from := fixedNow.Add(30 * time.Minute)
	page, err = h.shifts.ListShifts(ctx, repository.ShiftFilter{From: &from})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, second.ID, page.Items.([]model.Shift)[0].ID)

	to := from
	page, err = h.shifts.ListShifts(ctx, repository.ShiftFilter{To: &to, State: model.ShiftOpen})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)

	_, err = h.shifts.ListShifts(ctx, repository.ShiftFilter{State: "archived"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
