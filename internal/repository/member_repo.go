package repository

import (
	"context"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MemberRepository reads the membership registry owned by another service
type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Member, error)
}

type memberRepo struct {
	db *gorm.DB
}

func NewMemberRepo(db *gorm.DB) MemberRepository {
	return &memberRepo{db}
}

func (r *memberRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Member, error) {
	result := make(map[uuid.UUID]model.Member, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var members []model.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		result[m.ID] = m
	}
	return result, nil
}
