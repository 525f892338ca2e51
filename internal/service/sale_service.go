package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"church-pos/internal/cache"
	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	maxTicketRetries = 3
	defaultSaleType  = "dine_in"
)

type SaleService interface {
	CreateSale(ctx context.Context, actor *model.Actor, req *CreateSaleRequest) (*SaleResult, error)
	CancelSale(ctx context.Context, actor *model.Actor, saleID uuid.UUID, req *CancelSaleRequest) (*model.Sale, error)
	AddPayment(ctx context.Context, actor *model.Actor, saleID uuid.UUID, req *PaymentRequest) (*model.Sale, error)
	ListSales(ctx context.Context, filter repository.SaleFilter) (*repository.OffsetPage, error)
	GetSaleDetail(ctx context.Context, saleID uuid.UUID) (*model.Sale, error)
}

type SaleItemRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"uuid_required"`
	Quantity  decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	Discount  decimal.Decimal  `json:"discount" validate:"gte=0"`
	Notes     string           `json:"notes" validate:"max=255"`
}

type PaymentRequest struct {
	Method    model.PaymentMethod `json:"method" validate:"required,oneof=cash card transfer other"`
	Amount    decimal.Decimal     `json:"amount" validate:"gt=0"`
	Reference string              `json:"reference" validate:"max=100"`
}

type CreateSaleRequest struct {
	IdempotencyKey string            `json:"idempotency_key" validate:"max=100"`
	SaleType       string            `json:"sale_type" validate:"max=20"`
	MemberID       *uuid.UUID        `json:"member_id"`
	OnCredit       bool              `json:"on_credit"`
	Notes          string            `json:"notes" validate:"max=1000"`
	Items          []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments       []PaymentRequest  `json:"payments" validate:"dive"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// SaleResult reports whether the sale was created now or found by its idempotency key
type SaleResult struct {
	Sale      *model.Sale `json:"sale"`
	Duplicate bool        `json:"duplicate"`
}

type saleService struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	shifts      ShiftGate
	ledger      CreditLedger
	stock       StockReserver
	db          *gorm.DB
	cache       cache.Store
	clock       Clock
	notifier    Notifier
}

type SaleServiceDeps struct {
	SaleRepo    repository.SaleRepository
	ProductRepo repository.ProductRepository
	Shifts      ShiftGate
	Ledger      CreditLedger
	Stock       StockReserver
	DB          *gorm.DB
	Cache       cache.Store
	Clock       Clock
	Notifier    Notifier
}

func NewSaleService(deps SaleServiceDeps) SaleService {
	store := deps.Cache
	if store == nil {
		store = cache.NopStore{}
	}
	return &saleService{
		saleRepo:    deps.SaleRepo,
		productRepo: deps.ProductRepo,
		shifts:      deps.Shifts,
		ledger:      deps.Ledger,
		stock:       deps.Stock,
		db:          deps.DB,
		cache:       store,
		clock:       clockOrNow(deps.Clock),
		notifier:    notifierOrNop(deps.Notifier),
	}
}

// pricedLine is a validated sale line ready to persist
type pricedLine struct {
	req       SaleItemRequest
	unitPrice decimal.Decimal
	gross     decimal.Decimal
	lineTotal decimal.Decimal
}

func (s *saleService) CreateSale(ctx context.Context, actor *model.Actor, req *CreateSaleRequest) (*SaleResult, error) {
	if err := requirePrivilege(actor, model.PrivSaleCreate); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)

	// 1. Idempotency fast path; the unique index is the real guard
	if key != "" {
		if existing, err := s.saleRepo.FindByIdempotencyKey(ctx, key); err == nil {
			return &SaleResult{Sale: existing, Duplicate: true}, nil
		} else if !repository.IsNotFound(err) {
			return nil, internalErr("failed to check idempotency key", err)
		}
	}

	// 2. Seller, open shift, then input
	sellerID, err := sellerOf(actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.shifts.RequireOpenShift(ctx); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.OnCredit && req.MemberID == nil {
		return nil, ErrMemberRequired
	}
	lines, err := s.priceLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	subtotal, discountTotal, total := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.gross)
		discountTotal = discountTotal.Add(l.req.Discount)
		total = total.Add(l.lineTotal)
	}

	saleType := strings.TrimSpace(req.SaleType)
	if saleType == "" {
		saleType = defaultSaleType
	}

	// 3. Atomic unit: shift lock, credit check, ticket, rows, stock, ledger
	var (
		saleID    uuid.UUID
		overLimit bool
	)
	retryable := func(err error) bool {
		if repository.IsTransient(err) {
			return true
		}
		return repository.IsUniqueViolation(err) && !repository.IsIdempotencyViolation(err)
	}
	err = repository.WithRetry(ctx, s.db, maxTicketRetries, retryable, func(tx *gorm.DB) error {
		now := s.clock().UTC()

		shift, err := s.shifts.LockActiveShift(ctx, tx)
		if err != nil {
			return err
		}

		var account *model.MemberAccount
		overLimit = false
		if req.OnCredit {
			account, err = s.ledger.LockAccount(ctx, tx, *req.MemberID)
			if err != nil {
				return err
			}
			check, err := s.ledger.CheckCreditLimit(ctx, tx, account, total)
			if err != nil {
				return err
			}
			if !check.Approved {
				if !actor.IsElevated() {
					return fmt.Errorf("%w: balance %s + sale %s exceeds limit %s",
						ErrCreditLimitExceeded, check.Balance.StringFixed(2), total.StringFixed(2), check.Limit.StringFixed(2))
				}
				overLimit = true
				log.Printf("Warning: %s (%s) sold %s on credit to member %s over limit %s (balance %s)",
					actor.Name, actor.ID, total.StringFixed(2), req.MemberID, check.Limit.StringFixed(2), check.Balance.StringFixed(2))
			}
		}

		saleRepo := s.saleRepo.WithTx(tx)
		last, err := saleRepo.MaxTicketNumber(ctx, shift.ID)
		if err != nil {
			return err
		}

		sale := s.buildSale(actor, sellerID, shift.ID, last+1, key, saleType, req, lines, now)
		sale.Subtotal = subtotal
		sale.DiscountTotal = discountTotal
		sale.Total = total
		sale.OverLimit = overLimit
		sale.RefreshPaymentState()

		if err := saleRepo.Create(ctx, sale); err != nil {
			return err
		}
		if err := s.stock.ReserveForSale(ctx, tx, sale.ID, sale.Items, actor.AuditID()); err != nil {
			return err
		}
		if req.OnCredit {
			if _, err := s.ledger.RecordCharge(ctx, tx, account, total, sale.ID, actor.AuditID()); err != nil {
				return err
			}
		}
		saleID = sale.ID
		return nil
	})
	if err != nil {
		if key != "" && repository.IsIdempotencyViolation(err) {
			winner, findErr := s.saleRepo.FindByIdempotencyKey(ctx, key)
			if findErr != nil {
				return nil, internalErr("failed to load concurrent sale", findErr)
			}
			return &SaleResult{Sale: winner, Duplicate: true}, nil
		}
		return nil, internalErr("failed to create sale", err)
	}

	// 4. Reload the committed sale for the caller
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, internalErr("failed to load created sale", err)
	}

	cache.InvalidatePattern(ctx, s.cache, productCachePattern)
	s.notifier.Publish("sale_created", map[string]interface{}{
		"sale_id":       sale.ID,
		"ticket_number": sale.TicketNumber,
		"total":         sale.Total,
		"payment_state": sale.PaymentState,
		"on_credit":     sale.OnCredit,
		"over_limit":    sale.OverLimit,
		"seller":        actor.Name,
	}, fmt.Sprintf("%s registered ticket #%d", actor.Name, sale.TicketNumber))

	return &SaleResult{Sale: sale}, nil
}

// sellerOf resolves who is credited with the sale: the staff login for
// ephemeral actors, the linked member for permanent staff
func sellerOf(actor *model.Actor) (uuid.UUID, error) {
	if actor.Kind == model.ActorEphemeral {
		return actor.ID, nil
	}
	if actor.MemberID == nil || *actor.MemberID == uuid.Nil {
		return uuid.Nil, ErrSellerUnresolved
	}
	return *actor.MemberID, nil
}

func (s *saleService) priceLines(ctx context.Context, items []SaleItemRequest) ([]pricedLine, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, internalErr("failed to load products", err)
	}

	lines := make([]pricedLine, 0, len(items))
	for i, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, apperror.Validation("item %d: product %s not found", i, item.ProductID)
		}
		if !product.Active {
			return nil, apperror.Validation("item %d: product '%s' is not available", i, product.Name)
		}
		unitPrice := product.Price
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		gross := item.Quantity.Mul(unitPrice).Round(2)
		if item.Discount.GreaterThan(gross) {
			return nil, apperror.Validation("item %d: discount %s exceeds line amount %s", i, item.Discount.StringFixed(2), gross.StringFixed(2))
		}
		lines = append(lines, pricedLine{
			req:       item,
			unitPrice: unitPrice,
			gross:     gross,
			lineTotal: gross.Sub(item.Discount),
		})
	}
	return lines, nil
}

func (s *saleService) buildSale(actor *model.Actor, sellerID, shiftID uuid.UUID, ticket int, key, saleType string, req *CreateSaleRequest, lines []pricedLine, now time.Time) *model.Sale {
	sale := &model.Sale{
		ShiftID:      shiftID,
		TicketNumber: ticket,
		SellerID:     sellerID,
		SellerKind:   actor.Kind,
		SaleType:     saleType,
		MemberID:     req.MemberID,
		OnCredit:     req.OnCredit,
		State:        model.SaleOpen,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if key != "" {
		sale.IdempotencyKey = &key
	}
	sale.Stamp(actor.AuditID())

	for _, l := range lines {
		item := model.SaleItem{
			ProductID: l.req.ProductID,
			Quantity:  l.req.Quantity,
			UnitPrice: l.unitPrice,
			Discount:  l.req.Discount,
			LineTotal: l.lineTotal,
			Notes:     l.req.Notes,
		}
		item.Stamp(actor.AuditID())
		sale.Items = append(sale.Items, item)
	}
	for _, p := range req.Payments {
		payment := model.Payment{
			Method:     p.Method,
			Amount:     p.Amount,
			Reference:  p.Reference,
			ReceivedBy: actor.AuditID(),
			ReceivedAt: now,
		}
		payment.Stamp(actor.AuditID())
		sale.Payments = append(sale.Payments, payment)
	}
	return sale
}

// CancelSale marks the sale cancelled. Stock and ledger effects are kept.
func (s *saleService) CancelSale(ctx context.Context, actor *model.Actor, saleID uuid.UUID, req *CancelSaleRequest) (*model.Sale, error) {
	if err := requirePrivilege(actor, model.PrivSaleCancel); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.saleRepo.WithTx(tx)
		sale, err := repo.LockByID(ctx, saleID)
		if err != nil {
			return notFoundOr(err, ErrSaleNotFound, "failed to lock sale")
		}
		if sale.State == model.SaleCancelled {
			return ErrSaleCancelled
		}
		by := actor.AuditID()
		return internalErr("failed to cancel sale", repo.Update(ctx, saleID, map[string]interface{}{
			"state":         model.SaleCancelled,
			"cancel_reason": strings.TrimSpace(req.Reason),
			"cancelled_by":  by,
			"cancelled_at":  now,
			"updated_by":    by,
		}))
	})
	if err != nil {
		return nil, err
	}

	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, internalErr("failed to reload sale", err)
	}

	s.notifier.Publish("sale_cancelled", map[string]interface{}{
		"sale_id":       sale.ID,
		"ticket_number": sale.TicketNumber,
		"reason":        sale.CancelReason,
	}, fmt.Sprintf("%s cancelled ticket #%d", actor.Name, sale.TicketNumber))

	return sale, nil
}

func (s *saleService) AddPayment(ctx context.Context, actor *model.Actor, saleID uuid.UUID, req *PaymentRequest) (*model.Sale, error) {
	if err := requirePrivilege(actor, model.PrivSaleCreate); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.saleRepo.WithTx(tx)
		sale, err := repo.LockByID(ctx, saleID)
		if err != nil {
			return notFoundOr(err, ErrSaleNotFound, "failed to lock sale")
		}
		if sale.State == model.SaleCancelled {
			return fmt.Errorf("%w: cannot add a payment", ErrSaleCancelled)
		}

		payment := &model.Payment{
			SaleID:     sale.ID,
			Method:     req.Method,
			Amount:     req.Amount,
			Reference:  req.Reference,
			ReceivedBy: actor.AuditID(),
			ReceivedAt: now,
		}
		payment.Stamp(actor.AuditID())
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return internalErr("failed to record payment", err)
		}

		sale.Payments = append(sale.Payments, *payment)
		sale.RefreshPaymentState()
		return internalErr("failed to update payment state", repo.Update(ctx, sale.ID, map[string]interface{}{
			"state":         sale.State,
			"payment_state": sale.PaymentState,
			"updated_by":    actor.AuditID(),
		}))
	})
	if err != nil {
		return nil, err
	}

	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, internalErr("failed to reload sale", err)
	}

	s.notifier.Publish("sale_payment", map[string]interface{}{
		"sale_id":       sale.ID,
		"ticket_number": sale.TicketNumber,
		"method":        req.Method,
		"amount":        req.Amount,
		"payment_state": sale.PaymentState,
	}, fmt.Sprintf("%s received %s for ticket #%d", actor.Name, req.Amount.StringFixed(2), sale.TicketNumber))

	return sale, nil
}

func (s *saleService) ListSales(ctx context.Context, filter repository.SaleFilter) (*repository.OffsetPage, error) {
	filter.Page = filter.Page.Normalize()
	sales, total, err := s.saleRepo.List(ctx, filter)
	if err != nil {
		return nil, internalErr("failed to list sales", err)
	}
	result := repository.NewOffsetPage(sales, total, filter.Page)
	return &result, nil
}

func (s *saleService) GetSaleDetail(ctx context.Context, saleID uuid.UUID) (*model.Sale, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, notFoundOr(err, ErrSaleNotFound, "failed to load sale")
	}
	return sale, nil
}
