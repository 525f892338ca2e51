package repository

import (
	"context"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementTotals is the account's movement log folded into sums
type MovementTotals struct {
	Charges       decimal.Decimal `json:"total_charges"`
	Payments      decimal.Decimal `json:"total_payments"`
	Adjustments   decimal.Decimal `json:"total_adjustments"`
	MovementCount int64           `json:"movement_count"`
}

// Balance is charges minus payments plus signed adjustments
func (t MovementTotals) Balance() decimal.Decimal {
	return t.Charges.Sub(t.Payments).Add(t.Adjustments)
}

type AccountRepository interface {
	WithTx(tx *gorm.DB) AccountRepository
	Create(ctx context.Context, account *model.MemberAccount) error
	FindByMemberID(ctx context.Context, memberID uuid.UUID) (*model.MemberAccount, error)
	LockByMemberID(ctx context.Context, memberID uuid.UUID) (*model.MemberAccount, error)
	FindAll(ctx context.Context, withDebtOnly bool) ([]model.MemberAccount, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, updatedBy string) error

	CreateMovement(ctx context.Context, movement *model.AccountMovement) error
	Totals(ctx context.Context, accountID uuid.UUID) (*MovementTotals, error)
	ListMovements(ctx context.Context, accountID uuid.UUID, page PageRequest) ([]model.AccountMovement, int64, error)
}

type accountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) AccountRepository {
	return &accountRepo{db}
}

func (r *accountRepo) WithTx(tx *gorm.DB) AccountRepository {
	return &accountRepo{tx}
}

func (r *accountRepo) Create(ctx context.Context, account *model.MemberAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepo) FindByMemberID(ctx context.Context, memberID uuid.UUID) (*model.MemberAccount, error) {
	var account model.MemberAccount
	if err := r.db.WithContext(ctx).Preload("Member").First(&account, "member_id = ?", memberID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) LockByMemberID(ctx context.Context, memberID uuid.UUID) (*model.MemberAccount, error) {
	var account model.MemberAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "member_id = ?", memberID).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) FindAll(ctx context.Context, withDebtOnly bool) ([]model.MemberAccount, error) {
	var accounts []model.MemberAccount
	q := r.db.WithContext(ctx).Preload("Member")
	if withDebtOnly {
		q = q.Where("balance > ?", 0)
	}
	err := q.Order("balance DESC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.MemberAccount{}).Where("id = ?", id).Updates(fields).Error
}

func (r *accountRepo) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, updatedBy string) error {
	return r.Update(ctx, id, map[string]interface{}{
		"balance":    balance,
		"updated_by": updatedBy,
	})
}

func (r *accountRepo) CreateMovement(ctx context.Context, movement *model.AccountMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *accountRepo) Totals(ctx context.Context, accountID uuid.UUID) (*MovementTotals, error) {
	var totals MovementTotals
	err := r.db.WithContext(ctx).Model(&model.AccountMovement{}).
		Select(`COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS charges,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS payments,
			COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS adjustments,
			COUNT(*) AS movement_count`,
			model.MovementCharge, model.MovementPayment, model.MovementAdjustment).
		Where("account_id = ?", accountID).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *accountRepo) ListMovements(ctx context.Context, accountID uuid.UUID, page PageRequest) ([]model.AccountMovement, int64, error) {
	var (
		movements []model.AccountMovement
		total     int64
	)
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.AccountMovement{}).Where("account_id = ?", accountID)
	}
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base().Order("created_at DESC").Limit(page.Limit).Offset(page.Offset()).Find(&movements).Error
	return movements, total, err
}
