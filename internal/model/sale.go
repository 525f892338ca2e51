package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleState string

const (
	SaleOpen      SaleState = "open"
	SalePaid      SaleState = "paid"
	SaleCancelled SaleState = "cancelled"
)

type PaymentState string

const (
	PaymentUnpaid  PaymentState = "unpaid"
	PaymentPartial PaymentState = "partial"
	PaymentPaid    PaymentState = "paid"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCard     PaymentMethod = "card"
	MethodTransfer PaymentMethod = "transfer"
	MethodOther    PaymentMethod = "other"
)

// Sale is a POS ticket. Ticket numbers are unique per shift and the
// idempotency key is globally unique when present.
type Sale struct {
	BaseModel
	IdempotencyKey *string         `gorm:"type:varchar(100);uniqueIndex:ux_sales_idempotency_key" json:"idempotency_key,omitempty"`
	ShiftID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_sales_shift_ticket,priority:1" json:"shift_id"`
	TicketNumber   int             `gorm:"not null;uniqueIndex:ux_sales_shift_ticket,priority:2" json:"ticket_number"`
	SellerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	SellerKind     ActorKind       `gorm:"type:varchar(16);not null" json:"seller_kind"`
	SaleType       string          `gorm:"type:varchar(20);not null" json:"sale_type"`
	MemberID       *uuid.UUID      `gorm:"type:uuid;index" json:"member_id,omitempty"`
	OnCredit       bool            `gorm:"not null" json:"on_credit"`
	OverLimit      bool            `gorm:"not null" json:"over_limit"`
	State          SaleState       `gorm:"type:varchar(16);not null;index" json:"state"`
	PaymentState   PaymentState    `gorm:"type:varchar(16);not null" json:"payment_state"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"subtotal"`
	DiscountTotal  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount_total"`
	Total          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`

	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`
	CancelledBy  *string    `gorm:"type:varchar(64)" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	Items    []SaleItem `gorm:"foreignKey:SaleID" json:"items,omitempty"`
	Payments []Payment  `gorm:"foreignKey:SaleID" json:"payments,omitempty"`
}

type SaleItem struct {
	BaseModel
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Discount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount"`
	LineTotal decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"line_total"`
	Notes     string          `gorm:"type:text" json:"notes,omitempty"`
}

type Payment struct {
	BaseModel
	SaleID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	Method     PaymentMethod   `gorm:"type:varchar(16);not null;index" json:"method"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	ReceivedBy string          `gorm:"type:varchar(64);not null" json:"received_by"`
	ReceivedAt time.Time       `gorm:"not null" json:"received_at"`
}

// ComputePaymentState derives the payment state from the amount paid so far
func ComputePaymentState(paid, total decimal.Decimal) PaymentState {
	switch {
	case paid.GreaterThanOrEqual(total) && (paid.IsPositive() || total.IsZero()):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

func (s *Sale) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range s.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// RefreshPaymentState recomputes PaymentState from Payments; a fully paid
// sale moves to state paid. Cancelled sales keep their state.
func (s *Sale) RefreshPaymentState() {
	s.PaymentState = ComputePaymentState(s.PaidAmount(), s.Total)
	if s.State == SaleCancelled {
		return
	}
	if s.PaymentState == PaymentPaid {
		s.State = SalePaid
	} else {
		s.State = SaleOpen
	}
}
