package repository

import (
	"context"
	"time"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StaffRepository interface {
	WithTx(tx *gorm.DB) StaffRepository
	Create(ctx context.Context, staff *model.EphemeralStaff) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.EphemeralStaff, error)
	FindActiveByUsername(ctx context.Context, username string) (*model.EphemeralStaff, error)
	FindByShift(ctx context.Context, shiftID uuid.UUID) ([]model.EphemeralStaff, error)
	FindActive(ctx context.Context, at time.Time) ([]model.EphemeralStaff, error)
	SyntheticUsernames(ctx context.Context, prefix string) ([]string, error)

	Deactivate(ctx context.Context, id uuid.UUID, by string) (int64, error)
	DeactivateAll(ctx context.Context, by string) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type staffRepo struct {
	db *gorm.DB
}

func NewStaffRepo(db *gorm.DB) StaffRepository {
	return &staffRepo{db}
}

func (r *staffRepo) WithTx(tx *gorm.DB) StaffRepository {
	return &staffRepo{tx}
}

func (r *staffRepo) Create(ctx context.Context, staff *model.EphemeralStaff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

func (r *staffRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.EphemeralStaff, error) {
	var staff model.EphemeralStaff
	if err := r.db.WithContext(ctx).First(&staff, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepo) FindActiveByUsername(ctx context.Context, username string) (*model.EphemeralStaff, error) {
	var staff model.EphemeralStaff
	err := r.db.WithContext(ctx).
		Where("username = ? AND active = ?", username, true).
		Order("created_at DESC").
		First(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepo) FindByShift(ctx context.Context, shiftID uuid.UUID) ([]model.EphemeralStaff, error) {
	var staff []model.EphemeralStaff
	err := r.db.WithContext(ctx).Where("shift_id = ?", shiftID).Order("created_at ASC").Find(&staff).Error
	return staff, err
}

func (r *staffRepo) FindActive(ctx context.Context, at time.Time) ([]model.EphemeralStaff, error) {
	var staff []model.EphemeralStaff
	err := r.db.WithContext(ctx).
		Where("active = ? AND valid_from <= ? AND valid_until > ?", true, at, at).
		Order("created_at DESC").
		Find(&staff).Error
	return staff, err
}

func (r *staffRepo) SyntheticUsernames(ctx context.Context, prefix string) ([]string, error) {
	var usernames []string
	err := r.db.WithContext(ctx).Model(&model.EphemeralStaff{}).
		Where("username LIKE ?", prefix+"%").
		Pluck("username", &usernames).Error
	return usernames, err
}

func (r *staffRepo) Deactivate(ctx context.Context, id uuid.UUID, by string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.EphemeralStaff{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": false, "updated_by": by})
	return res.RowsAffected, res.Error
}

func (r *staffRepo) DeactivateAll(ctx context.Context, by string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.EphemeralStaff{}).
		Where("active = ?", true).
		Updates(map[string]interface{}{"active": false, "updated_by": by})
	return res.RowsAffected, res.Error
}

func (r *staffRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.EphemeralStaff{}).
		Where("active = ? AND valid_until <= ?", true, now).
		Updates(map[string]interface{}{"active": false, "updated_by": "system"})
	return res.RowsAffected, res.Error
}
