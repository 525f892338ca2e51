package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/internal/service"
	"church-pos/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 09:00 at UTC-5, before the 16:00 staff cutoff
var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type harness struct {
	db       *gorm.DB
	notifier *recordingNotifier
	cache    *memoryStore
	now      time.Time

	shifts    service.ShiftService
	staff     service.StaffService
	accounts  service.AccountService
	inventory service.InventoryService
	products  service.ProductService
	sales     service.SaleService
	sync      service.SyncService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithDB(t, testutil.NewDB(t))
}

func newHarnessWithDB(t *testing.T, db *gorm.DB) *harness {
	t.Helper()
	h := &harness{
		db:       db,
		notifier: &recordingNotifier{},
		cache:    newMemoryStore(),
		now:      fixedNow,
	}
	clock := func() time.Time { return h.now }

	shiftRepo := repository.NewShiftRepo(h.db)
	staffRepo := repository.NewStaffRepo(h.db)
	memberRepo := repository.NewMemberRepo(h.db)
	saleRepo := repository.NewSaleRepo(h.db)
	productRepo := repository.NewProductRepo(h.db)
	inventoryRepo := repository.NewInventoryRepo(h.db)
	accountRepo := repository.NewAccountRepo(h.db)

	h.shifts = service.NewShiftService(service.ShiftServiceDeps{
		ShiftRepo:  shiftRepo,
		StaffRepo:  staffRepo,
		MemberRepo: memberRepo,
		SaleRepo:   saleRepo,
		DB:         h.db,
		Cache:      h.cache,
		CacheTTL:   time.Minute,
		Policy:     service.StaffPolicy{CutoffHour: 16, Location: time.FixedZone("UTC-5", -5*3600)},
		Clock:      clock,
		Notifier:   h.notifier,
	})
	h.staff = service.NewStaffService(staffRepo, clock, h.notifier)
	h.accounts = service.NewAccountService(accountRepo, memberRepo, h.db, h.notifier)
	h.inventory = service.NewInventoryService(inventoryRepo, productRepo, h.db, h.cache, h.notifier)
	h.products = service.NewProductService(productRepo, h.cache, time.Minute, h.notifier)
	h.sales = service.NewSaleService(service.SaleServiceDeps{
		SaleRepo:    saleRepo,
		ProductRepo: productRepo,
		Shifts:      h.shifts,
		Ledger:      h.accounts,
		Stock:       h.inventory,
		DB:          h.db,
		Cache:       h.cache,
		Clock:       clock,
		Notifier:    h.notifier,
	})
	h.sync = service.NewSyncService(h.sales, saleRepo, 5)
	return h
}

func (h *harness) openShift(t *testing.T, float string) *model.Shift {
	t.Helper()
	res, err := h.shifts.OpenShift(context.Background(), testutil.AdminActor(), &service.OpenShiftRequest{
		OpeningFloat: testutil.Dec(float),
	})
	require.NoError(t, err)
	return res.Shift
}

func saleOf(productID uuid.UUID, qty, price string) *service.CreateSaleRequest {
	unit := testutil.Dec(price)
	return &service.CreateSaleRequest{
		Items: []service.SaleItemRequest{{
			ProductID: productID,
			Quantity:  testutil.Dec(qty),
			UnitPrice: &unit,
		}},
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(eventType string, _ interface{}, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// memoryStore is an in-process cache.Store for tests
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryStore) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func (m *memoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
