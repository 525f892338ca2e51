package repository

import (
	"context"
	"time"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleFilter struct {
	ShiftID  *uuid.UUID
	MemberID *uuid.UUID
	SellerID *uuid.UUID
	State    model.SaleState
	OnCredit *bool
	From     *time.Time
	To       *time.Time
	Page     PageRequest
}

// ShiftTotals aggregates the sales of one shift
type ShiftTotals struct {
	TicketCount    int64           `json:"ticket_count"`
	CancelledCount int64           `json:"cancelled_count"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	CreditSales    decimal.Decimal `json:"credit_sales"`
}

type MethodTotal struct {
	Method model.PaymentMethod `json:"method"`
	Total  decimal.Decimal     `json:"total"`
	Count  int64               `json:"count"`
}

type SaleRepository interface {
	WithTx(tx *gorm.DB) SaleRepository
	Create(ctx context.Context, sale *model.Sale) error
	CreatePayment(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error)

	MaxTicketNumber(ctx context.Context, shiftID uuid.UUID) (int, error)
	ShiftTotals(ctx context.Context, shiftID uuid.UUID) (*ShiftTotals, error)
	PaymentsByMethod(ctx context.Context, shiftID uuid.UUID) ([]MethodTotal, error)
	PaymentTotal(ctx context.Context, shiftID uuid.UUID, method model.PaymentMethod) (decimal.Decimal, error)
	SellerIDs(ctx context.Context, shiftID uuid.UUID) ([]uuid.UUID, error)
}

type saleRepo struct {
	db *gorm.DB
}

func NewSaleRepo(db *gorm.DB) SaleRepository {
	return &saleRepo{db}
}

func (r *saleRepo) WithTx(tx *gorm.DB) SaleRepository {
	return &saleRepo{tx}
}

// Create inserts the sale together with its items and payments
func (r *saleRepo) Create(ctx context.Context, sale *model.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *saleRepo) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("received_at ASC") }).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Sale, error) {
	var sale model.Sale
	if err := r.db.WithContext(ctx).First(&sale, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Payments").
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", id).Updates(fields).Error
}

func (r *saleRepo) filtered(ctx context.Context, f SaleFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if f.ShiftID != nil {
		q = q.Where("shift_id = ?", *f.ShiftID)
	}
	if f.MemberID != nil {
		q = q.Where("member_id = ?", *f.MemberID)
	}
	if f.SellerID != nil {
		q = q.Where("seller_id = ?", *f.SellerID)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.OnCredit != nil {
		q = q.Where("on_credit = ?", *f.OnCredit)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	return q
}

func (r *saleRepo) List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error) {
	var (
		sales []model.Sale
		total int64
	)
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.filtered(ctx, filter).
		Order("created_at DESC").
		Limit(filter.Page.Limit).Offset(filter.Page.Offset()).
		Find(&sales).Error
	return sales, total, err
}

// MaxTicketNumber includes soft-deleted sales, which still hold their number
func (r *saleRepo) MaxTicketNumber(ctx context.Context, shiftID uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Sale{}).
		Select("COALESCE(MAX(ticket_number), 0)").
		Where("shift_id = ?", shiftID).
		Row().Scan(&max)
	return max, err
}

func (r *saleRepo) ShiftTotals(ctx context.Context, shiftID uuid.UUID) (*ShiftTotals, error) {
	var totals ShiftTotals
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Select(`COUNT(*) AS ticket_count,
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS cancelled_count,
			COALESCE(SUM(CASE WHEN state <> ? THEN total ELSE 0 END), 0) AS total_sales,
			COALESCE(SUM(CASE WHEN state <> ? AND on_credit = ? THEN total ELSE 0 END), 0) AS credit_sales`,
			model.SaleCancelled, model.SaleCancelled, model.SaleCancelled, true).
		Where("shift_id = ?", shiftID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *saleRepo) paymentsOfShift(ctx context.Context, shiftID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Payment{}).
		Joins("JOIN sales ON sales.id = payments.sale_id AND sales.deleted_at IS NULL").
		Where("sales.shift_id = ?", shiftID)
}

func (r *saleRepo) PaymentsByMethod(ctx context.Context, shiftID uuid.UUID) ([]MethodTotal, error) {
	var rows []MethodTotal
	err := r.paymentsOfShift(ctx, shiftID).
		Select("payments.method AS method, COALESCE(SUM(payments.amount), 0) AS total, COUNT(*) AS count").
		Group("payments.method").
		Order("payments.method ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *saleRepo) PaymentTotal(ctx context.Context, shiftID uuid.UUID, method model.PaymentMethod) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.paymentsOfShift(ctx, shiftID).
		Select("COALESCE(SUM(payments.amount), 0)").
		Where("payments.method = ?", method).
		Row().Scan(&total)
	return total, err
}

func (r *saleRepo) SellerIDs(ctx context.Context, shiftID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Where("shift_id = ?", shiftID).
		Distinct().
		Pluck("seller_id", &ids).Error
	return ids, err
}
