package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is a read-only view of the membership registry
type Member struct {
	BaseModel
	DocumentID string `gorm:"type:varchar(32);index" json:"document_id"`
	FirstName  string `gorm:"type:varchar(120)" json:"first_name"`
	LastName   string `gorm:"type:varchar(120)" json:"last_name"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// MemberAccount is a member's credit account. Balance is a cache of the
// movement log and is corrected on read when it drifts.
type MemberAccount struct {
	BaseModel
	MemberID    uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"member_id"`
	Member      *Member         `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	CreditLimit decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"credit_limit"`
	Balance     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"balance"`
}

func (MemberAccount) TableName() string {
	return "member_accounts"
}

type MovementType string

const (
	MovementCharge     MovementType = "charge"
	MovementPayment    MovementType = "payment"
	MovementAdjustment MovementType = "adjustment"
)

// AccountMovement is append-only. Charge and payment amounts are positive,
// adjustments carry their own sign.
type AccountMovement struct {
	BaseModel
	AccountID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"account_id"`
	Type          MovementType    `gorm:"type:varchar(16);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	SaleID        *uuid.UUID      `gorm:"type:uuid;index" json:"sale_id,omitempty"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(16)" json:"payment_method,omitempty"`
	Description   string          `gorm:"type:text" json:"description"`
	ActorID       string          `gorm:"type:varchar(64);not null" json:"actor_id"`
}

func (AccountMovement) TableName() string {
	return "account_movements"
}

// SignedAmount is the movement's effect on the balance
func (m *AccountMovement) SignedAmount() decimal.Decimal {
	if m.Type == MovementPayment {
		return m.Amount.Neg()
	}
	return m.Amount
}
