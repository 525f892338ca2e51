package testutil

import (
	"testing"

	"church-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func SeedMember(t testing.TB, db *gorm.DB, documentID, firstName, lastName string) *model.Member {
	t.Helper()
	member := &model.Member{DocumentID: documentID, FirstName: firstName, LastName: lastName}
	require.NoError(t, db.Create(member).Error)
	return member
}

// SeedProduct creates an active product; a non-empty quantity also creates its inventory record
func SeedProduct(t testing.TB, db *gorm.DB, code, name, price, quantity string) *model.Product {
	t.Helper()
	product := &model.Product{Code: code, Name: name, Price: Dec(price), Active: true}
	require.NoError(t, db.Create(product).Error)
	if quantity != "" {
		record := &model.InventoryRecord{
			ProductID:        product.ID,
			Quantity:         Dec(quantity),
			ReorderThreshold: Dec("5"),
		}
		require.NoError(t, db.Create(record).Error)
	}
	return product
}

// SeedAccount creates a credit account; a non-zero balance is backed by an
// adjustment movement so the ledger invariant holds
func SeedAccount(t testing.TB, db *gorm.DB, memberID uuid.UUID, limit, balance string) *model.MemberAccount {
	t.Helper()
	account := &model.MemberAccount{MemberID: memberID, CreditLimit: Dec(limit), Balance: Dec(balance)}
	require.NoError(t, db.Create(account).Error)
	if !Dec(balance).IsZero() {
		movement := &model.AccountMovement{
			AccountID:   account.ID,
			Type:        model.MovementAdjustment,
			Amount:      Dec(balance),
			Description: "opening balance",
			ActorID:     "system",
		}
		require.NoError(t, db.Create(movement).Error)
	}
	return account
}

func AdminActor() *model.Actor {
	memberID := uuid.New()
	return &model.Actor{
		ID:         uuid.New(),
		Name:       "Admin",
		Role:       model.RoleAdmin,
		Kind:       model.ActorStaff,
		MemberID:   &memberID,
		Privileges: model.PrivilegesForRole(model.RoleAdmin),
	}
}

func CashierActor(memberID *uuid.UUID) *model.Actor {
	return &model.Actor{
		ID:         uuid.New(),
		Name:       "Cajero",
		Role:       model.RoleCashier,
		Kind:       model.ActorStaff,
		MemberID:   memberID,
		Privileges: model.PrivilegesForRole(model.RoleCashier),
	}
}

func WaiterActor(staffID uuid.UUID) *model.Actor {
	return &model.Actor{
		ID:         staffID,
		Name:       "Mesero",
		Role:       model.RoleWaiter,
		Kind:       model.ActorEphemeral,
		Privileges: model.PrivilegesForRole(model.RoleWaiter),
	}
}
