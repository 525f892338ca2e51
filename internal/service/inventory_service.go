package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"church-pos/internal/cache"
	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxAdjustRetries = 3

// StockReserver decrements stock inside the sale transaction
type StockReserver interface {
	ReserveForSale(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem, actorID string) error
}

type InventoryService interface {
	StockReserver

	GetLevels(ctx context.Context, filter repository.InventoryFilter) (*InventoryLevels, error)
	Adjust(ctx context.Context, actor *model.Actor, productID uuid.UUID, req *AdjustInventoryRequest) (*model.InventoryRecord, error)
}

type AdjustInventoryRequest struct {
	NewQuantity      decimal.Decimal  `json:"new_quantity" validate:"gte=0"`
	ReorderThreshold *decimal.Decimal `json:"reorder_threshold" validate:"omitempty,gte=0"`
	Location         *string          `json:"location" validate:"omitempty,max=100"`
	Reason           string           `json:"reason" validate:"max=500"`
}

type InventoryLevel struct {
	ProductID        uuid.UUID       `json:"product_id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Category         string          `json:"category,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	Location         string          `json:"location,omitempty"`
	LowStock         bool            `json:"low_stock"`
}

type InventoryLevels struct {
	Items []InventoryLevel           `json:"items"`
	Stats repository.InventoryStats `json:"stats"`
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	productRepo   repository.ProductRepository
	db            *gorm.DB
	cache         cache.Store
	notifier      Notifier
}

func NewInventoryService(inventoryRepo repository.InventoryRepository, productRepo repository.ProductRepository, db *gorm.DB, store cache.Store, notifier Notifier) InventoryService {
	if store == nil {
		store = cache.NopStore{}
	}
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		productRepo:   productRepo,
		db:            db,
		cache:         store,
		notifier:      notifierOrNop(notifier),
	}
}

func (s *inventoryService) GetLevels(ctx context.Context, filter repository.InventoryFilter) (*InventoryLevels, error) {
	records, err := s.inventoryRepo.FindLevels(ctx, filter)
	if err != nil {
		return nil, internalErr("failed to load inventory levels", err)
	}
	stats, err := s.inventoryRepo.Stats(ctx, filter.CategoryID)
	if err != nil {
		return nil, internalErr("failed to load inventory statistics", err)
	}

	levels := &InventoryLevels{Items: make([]InventoryLevel, 0, len(records)), Stats: *stats}
	for _, r := range records {
		level := InventoryLevel{
			ProductID:        r.ProductID,
			Quantity:         r.Quantity,
			ReorderThreshold: r.ReorderThreshold,
			Location:         r.Location,
			LowStock:         r.IsLowStock(),
		}
		if r.Product != nil {
			level.Code = r.Product.Code
			level.Name = r.Product.Name
			if r.Product.Category != nil {
				level.Category = r.Product.Category.Name
			}
		}
		levels.Items = append(levels.Items, level)
	}
	return levels, nil
}

func (s *inventoryService) Adjust(ctx context.Context, actor *model.Actor, productID uuid.UUID, req *AdjustInventoryRequest) (*model.InventoryRecord, error) {
	// 1. Permission and input
	if err := requirePrivilege(actor, model.PrivInventoryAdjust); err != nil {
		return nil, err
	}
	if req.NewQuantity.IsNegative() {
		return nil, ErrNegativeStock
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFoundOr(err, ErrProductNotFound, "failed to load product")
	}

	// 2. Apply the new level under a row lock. Two first-time adjustments
	// race on the product's unique record; the loser retries as an update.
	var (
		record   *model.InventoryRecord
		previous decimal.Decimal
	)
	retryable := func(err error) bool {
		return repository.IsTransient(err) || repository.IsUniqueViolation(err)
	}
	err = repository.WithRetry(ctx, s.db, maxAdjustRetries, retryable, func(tx *gorm.DB) error {
		repo := s.inventoryRepo.WithTx(tx)
		previous = decimal.Zero

		locked, err := repo.LockByProductIDs(ctx, []uuid.UUID{productID})
		if err != nil {
			return err
		}

		existing, ok := locked[productID]
		if !ok {
			record = &model.InventoryRecord{ProductID: productID, Quantity: req.NewQuantity}
			if req.ReorderThreshold != nil {
				record.ReorderThreshold = *req.ReorderThreshold
			}
			if req.Location != nil {
				record.Location = strings.TrimSpace(*req.Location)
			}
			record.Stamp(actor.AuditID())
			return repo.Create(ctx, record)
		}

		previous = existing.Quantity
		fields := map[string]interface{}{
			"quantity":   req.NewQuantity,
			"updated_by": actor.AuditID(),
		}
		existing.Quantity = req.NewQuantity
		if req.ReorderThreshold != nil {
			fields["reorder_threshold"] = *req.ReorderThreshold
			existing.ReorderThreshold = *req.ReorderThreshold
		}
		if req.Location != nil {
			fields["location"] = strings.TrimSpace(*req.Location)
			existing.Location = strings.TrimSpace(*req.Location)
		}
		record = existing
		return repo.Update(ctx, existing.ID, fields)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperror.New(apperror.KindConflict, "inventory record was changed concurrently, retry the adjustment")
		}
		return nil, internalErr("failed to adjust inventory", err)
	}

	// 3. Audit trail is best effort once the level is committed
	movement := &model.InventoryMovement{
		ProductID:        productID,
		Type:             model.InventoryAdjustment,
		Delta:            req.NewQuantity.Sub(previous),
		PreviousQuantity: previous,
		NewQuantity:      req.NewQuantity,
		Reason:           req.Reason,
		ActorID:          actor.AuditID(),
	}
	movement.Stamp(actor.AuditID())
	if err := s.inventoryRepo.CreateMovement(ctx, movement); err != nil {
		log.Printf("Failed to write inventory audit for product %s: %v", productID, err)
	}

	cache.InvalidatePattern(ctx, s.cache, productCachePattern)

	record.Product = product
	s.notifier.Publish("stock_update", map[string]interface{}{
		"action":       "inventory_adjusted",
		"product_id":   productID,
		"code":         product.Code,
		"name":         product.Name,
		"old_quantity": previous,
		"new_quantity": record.Quantity,
		"low_stock":    record.IsLowStock(),
	}, fmt.Sprintf("%s adjusted stock of '%s' to %s", actor.Name, product.Name, record.Quantity))

	return record, nil
}

// ReserveForSale subtracts sold quantities from tracked products. Untracked
// products are skipped and quantities may go negative.
func (s *inventoryService) ReserveForSale(ctx context.Context, tx *gorm.DB, saleID uuid.UUID, items []model.SaleItem, actorID string) error {
	demand := make(map[uuid.UUID]decimal.Decimal)
	for _, item := range items {
		demand[item.ProductID] = demand[item.ProductID].Add(item.Quantity)
	}
	productIDs := make([]uuid.UUID, 0, len(demand))
	for id := range demand {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool {
		return productIDs[i].String() < productIDs[j].String()
	})

	repo := s.inventoryRepo.WithTx(tx)
	records, err := repo.LockByProductIDs(ctx, productIDs)
	if err != nil {
		return internalErr("failed to lock inventory", err)
	}

	movements := make([]model.InventoryMovement, 0, len(records))
	for _, productID := range productIDs {
		record, tracked := records[productID]
		if !tracked {
			continue
		}
		quantity := demand[productID]
		newQuantity := record.Quantity.Sub(quantity)
		if err := repo.Update(ctx, record.ID, map[string]interface{}{
			"quantity":   newQuantity,
			"updated_by": actorID,
		}); err != nil {
			return internalErr("failed to update inventory", err)
		}
		id := saleID
		movement := model.InventoryMovement{
			ProductID:        productID,
			Type:             model.InventorySale,
			Delta:            quantity.Neg(),
			PreviousQuantity: record.Quantity,
			NewQuantity:      newQuantity,
			SaleID:           &id,
			ActorID:          actorID,
		}
		movement.Stamp(actorID)
		movements = append(movements, movement)
		record.Quantity = newQuantity
	}

	return internalErr("failed to record inventory movements", repo.CreateMovements(ctx, movements))
}
