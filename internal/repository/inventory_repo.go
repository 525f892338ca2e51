package repository

import (
	"context"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryFilter struct {
	LowStockOnly bool
	CategoryID   *uuid.UUID
}

type InventoryStats struct {
	TotalProducts    int64 `json:"total_products"`
	LowStockProducts int64 `json:"low_stock_products"`
}

type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository
	FindByProductID(ctx context.Context, productID uuid.UUID) (*model.InventoryRecord, error)
	LockByProductIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*model.InventoryRecord, error)
	Create(ctx context.Context, record *model.InventoryRecord) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	CreateMovement(ctx context.Context, movement *model.InventoryMovement) error
	CreateMovements(ctx context.Context, movements []model.InventoryMovement) error
	FindLevels(ctx context.Context, filter InventoryFilter) ([]model.InventoryRecord, error)
	Stats(ctx context.Context, categoryID *uuid.UUID) (*InventoryStats, error)
}

type inventoryRepo struct {
	db *gorm.DB
}

func NewInventoryRepo(db *gorm.DB) InventoryRepository {
	return &inventoryRepo{db}
}

func (r *inventoryRepo) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepo{tx}
}

func (r *inventoryRepo) FindByProductID(ctx context.Context, productID uuid.UUID) (*model.InventoryRecord, error) {
	var record model.InventoryRecord
	if err := r.db.WithContext(ctx).First(&record, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// LockByProductIDs locks the records in product id order so concurrent
// sales touching the same products cannot deadlock
func (r *inventoryRepo) LockByProductIDs(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*model.InventoryRecord, error) {
	result := make(map[uuid.UUID]*model.InventoryRecord, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	var records []model.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id IN ?", productIDs).
		Order("product_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	for i := range records {
		result[records[i].ProductID] = &records[i]
	}
	return result, nil
}

func (r *inventoryRepo) Create(ctx context.Context, record *model.InventoryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *inventoryRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.InventoryRecord{}).Where("id = ?", id).Updates(fields).Error
}

func (r *inventoryRepo) CreateMovement(ctx context.Context, movement *model.InventoryMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *inventoryRepo) CreateMovements(ctx context.Context, movements []model.InventoryMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&movements).Error
}

func (r *inventoryRepo) levelsQuery(ctx context.Context, categoryID *uuid.UUID) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Joins("JOIN products ON products.id = inventory_records.product_id AND products.deleted_at IS NULL").
		Where("products.active = ?", true)
	if categoryID != nil {
		q = q.Where("products.category_id = ?", *categoryID)
	}
	return q
}

func (r *inventoryRepo) FindLevels(ctx context.Context, filter InventoryFilter) ([]model.InventoryRecord, error) {
	var records []model.InventoryRecord
	q := r.levelsQuery(ctx, filter.CategoryID).Preload("Product").Preload("Product.Category")
	if filter.LowStockOnly {
		q = q.Where("inventory_records.quantity <= inventory_records.reorder_threshold")
	}
	err := q.Order("products.name ASC").Find(&records).Error
	return records, err
}

func (r *inventoryRepo) Stats(ctx context.Context, categoryID *uuid.UUID) (*InventoryStats, error) {
	var stats InventoryStats
	if err := r.levelsQuery(ctx, categoryID).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	err := r.levelsQuery(ctx, categoryID).
		Where("inventory_records.quantity <= inventory_records.reorder_threshold").
		Count(&stats.LowStockProducts).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
