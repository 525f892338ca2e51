package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	BaseModel
	Name string `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
}

func (Category) TableName() string {
	return "product_categories"
}

type Product struct {
	BaseModel
	Code        string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"price"`
	CategoryID  *uuid.UUID      `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Active      bool            `gorm:"not null;default:true" json:"active"`
	Favorite    bool            `gorm:"not null;default:false" json:"favorite"`

	// Relasi
	Inventory *InventoryRecord `gorm:"foreignKey:ProductID" json:"inventory,omitempty"`
}

// InventoryRecord holds the on-hand quantity of a stock-tracked product.
// Products without a record are not stock-tracked.
type InventoryRecord struct {
	BaseModel
	ProductID        uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"product_id"`
	Product          *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity         decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0" json:"quantity"`
	ReorderThreshold decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0" json:"reorder_threshold"`
	Location         string          `gorm:"type:varchar(100)" json:"location,omitempty"`
}

func (InventoryRecord) TableName() string {
	return "inventory_records"
}

func (r *InventoryRecord) IsLowStock() bool {
	return r.Quantity.LessThanOrEqual(r.ReorderThreshold)
}

type InventoryMovementType string

const (
	InventoryAdjustment InventoryMovementType = "adjustment"
	InventorySale       InventoryMovementType = "sale"
)

// InventoryMovement is the append-only audit trail of quantity changes
type InventoryMovement struct {
	BaseModel
	ProductID        uuid.UUID             `gorm:"type:uuid;not null;index" json:"product_id"`
	Type             InventoryMovementType `gorm:"type:varchar(16);not null" json:"type"`
	Delta            decimal.Decimal       `gorm:"type:numeric(14,3);not null" json:"delta"`
	PreviousQuantity decimal.Decimal       `gorm:"type:numeric(14,3);not null" json:"previous_quantity"`
	NewQuantity      decimal.Decimal       `gorm:"type:numeric(14,3);not null" json:"new_quantity"`
	Reason           string                `gorm:"type:text" json:"reason,omitempty"`
	SaleID           *uuid.UUID            `gorm:"type:uuid;index" json:"sale_id,omitempty"`
	ActorID          string                `gorm:"type:varchar(64)" json:"actor_id"`
}

func (InventoryMovement) TableName() string {
	return "inventory_movements"
}
