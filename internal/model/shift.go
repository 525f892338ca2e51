package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type ShiftState string

const (
	ShiftOpen   ShiftState = "open"
	ShiftClosed ShiftState = "closed"
)

// Shift is a cash-register session. At most one row may be open at a time
// (partial unique index ux_shifts_single_open, see pkg/database).
type Shift struct {
	BaseModel
	OpenedBy     string           `gorm:"type:varchar(64);not null" json:"opened_by"`
	OpenedByName string           `gorm:"type:varchar(255)" json:"opened_by_name,omitempty"`
	OpeningFloat decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"opening_float"`
	State        ShiftState       `gorm:"type:varchar(10);not null" json:"state"`
	OpenedAt     time.Time        `gorm:"not null" json:"opened_at"`
	ClosedBy     *string          `gorm:"type:varchar(64)" json:"closed_by,omitempty"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	CountedCash  *decimal.Decimal `gorm:"type:numeric(14,2)" json:"counted_cash,omitempty"`
	ExpectedCash *decimal.Decimal `gorm:"type:numeric(14,2)" json:"expected_cash,omitempty"`
	Notes        string           `gorm:"type:text" json:"notes,omitempty"`
	CloseNotes   string           `gorm:"type:text" json:"close_notes,omitempty"`

	Staff []EphemeralStaff `gorm:"foreignKey:ShiftID" json:"staff,omitempty"`
}

// TableName specifies the table name for GORM
func (Shift) TableName() string {
	return "shifts"
}

func (s *Shift) IsOpen() bool {
	return s.State == ShiftOpen
}

// CashDifference is counted minus expected cash, nil while the shift is open
func (s *Shift) CashDifference() *decimal.Decimal {
	if s.CountedCash == nil || s.ExpectedCash == nil {
		return nil
	}
	diff := s.CountedCash.Sub(*s.ExpectedCash)
	return &diff
}

// EphemeralStaff is a shift-scoped PIN login for waiters and cashiers
type EphemeralStaff struct {
	BaseModel
	Username    string     `gorm:"type:varchar(64);not null;index" json:"username"`
	DisplayName string     `gorm:"type:varchar(255)" json:"display_name"`
	PINHash     string     `gorm:"type:varchar(255);not null" json:"-"`
	MemberID    *uuid.UUID `gorm:"type:uuid;index" json:"member_id,omitempty"`
	ShiftID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"shift_id"`
	ValidFrom   time.Time  `gorm:"not null" json:"valid_from"`
	ValidUntil  time.Time  `gorm:"not null;index" json:"valid_until"`
	Active      bool       `gorm:"not null;index" json:"active"`
}

func (EphemeralStaff) TableName() string {
	return "ephemeral_staff"
}

// SetPIN hashes and sets the staff PIN
func (e *EphemeralStaff) SetPIN(pin string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	e.PINHash = string(hashed)
	return nil
}

// CheckPIN verifies if the provided PIN matches the stored hash
func (e *EphemeralStaff) CheckPIN(pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(e.PINHash), []byte(pin)) == nil
}

// IsValidAt reports whether the login may be used at t
func (e *EphemeralStaff) IsValidAt(t time.Time) bool {
	return e.Active && !t.Before(e.ValidFrom) && t.Before(e.ValidUntil)
}
