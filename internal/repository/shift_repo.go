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

// ShiftFilter narrows shift listings; From/To bound opened_at as [From, To)
type ShiftFilter struct {
	State model.ShiftState
	From  *time.Time
	To    *time.Time
	Page  PageRequest
}

type ShiftRepository interface {
	WithTx(tx *gorm.DB) ShiftRepository
	Create(ctx context.Context, shift *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	FindOpen(ctx context.Context) (*model.Shift, error)
	List(ctx context.Context, filter ShiftFilter) ([]model.Shift, int64, error)

	// Row locks, only meaningful inside a transaction
	LockByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	LockOpen(ctx context.Context) (*model.Shift, error)

	MarkClosed(ctx context.Context, id uuid.UUID, closedBy string, closedAt time.Time, counted, expected decimal.Decimal, notes string) error
}

type shiftRepo struct {
	db *gorm.DB
}

func NewShiftRepo(db *gorm.DB) ShiftRepository {
	return &shiftRepo{db}
}

func (r *shiftRepo) WithTx(tx *gorm.DB) ShiftRepository {
	return &shiftRepo{tx}
}

func (r *shiftRepo) Create(ctx context.Context, shift *model.Shift) error {
	return r.db.WithContext(ctx).Create(shift).Error
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var shift model.Shift
	if err := r.db.WithContext(ctx).First(&shift, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) FindOpen(ctx context.Context) (*model.Shift, error) {
	var shift model.Shift
	if err := r.db.WithContext(ctx).Where("state = ?", model.ShiftOpen).First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) filtered(ctx context.Context, f ShiftFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Shift{})
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.From != nil {
		q = q.Where("opened_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("opened_at < ?", *f.To)
	}
	return q
}

func (r *shiftRepo) List(ctx context.Context, filter ShiftFilter) ([]model.Shift, int64, error) {
	var (
		shifts []model.Shift
		total  int64
	)
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.filtered(ctx, filter).
		Order("opened_at DESC").
		Limit(filter.Page.Limit).Offset(filter.Page.Offset()).
		Find(&shifts).Error
	return shifts, total, err
}

func (r *shiftRepo) LockByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shift, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) LockOpen(ctx context.Context) (*model.Shift, error) {
	var shift model.Shift
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("state = ?", model.ShiftOpen).
		First(&shift).Error
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *shiftRepo) MarkClosed(ctx context.Context, id uuid.UUID, closedBy string, closedAt time.Time, counted, expected decimal.Decimal, notes string) error {
	return r.db.WithContext(ctx).Model(&model.Shift{}).
		Where("id = ? AND state = ?", id, model.ShiftOpen).
		Updates(map[string]interface{}{
			"state":         model.ShiftClosed,
			"closed_by":     closedBy,
			"closed_at":     closedAt,
			"counted_cash":  counted,
			"expected_cash": expected,
			"close_notes":   notes,
			"updated_by":    closedBy,
		}).Error
}
