package database

import (
	"fmt"

	"church-pos/internal/model"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order
var Models = []interface{}{
	&model.Member{},
	&model.Category{},
	&model.Product{},
	&model.InventoryRecord{},
	&model.InventoryMovement{},
	&model.Shift{},
	&model.EphemeralStaff{},
	&model.Sale{},
	&model.SaleItem{},
	&model.Payment{},
	&model.MemberAccount{},
	&model.AccountMovement{},
}

// Constraints gorm tags cannot express
var indexStatements = []string{
	// At most one open shift system-wide
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_shifts_single_open ON shifts (state) WHERE state = 'open' AND deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS ix_sales_shift_created ON sales (shift_id, created_at)`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range indexStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
