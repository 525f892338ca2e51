package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
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
	activeShiftCacheKey = "shift:active"
	syntheticPrefix     = "mesero_"
)

// ShiftGate hands the open shift to the sale flow. RequireOpenShift reads the
// database without locking; LockActiveShift re-checks inside the transaction.
type ShiftGate interface {
	RequireOpenShift(ctx context.Context) (*model.Shift, error)
	LockActiveShift(ctx context.Context, tx *gorm.DB) (*model.Shift, error)
}

type ShiftService interface {
	ShiftGate

	OpenShift(ctx context.Context, actor *model.Actor, req *OpenShiftRequest) (*OpenShiftResult, error)
	CloseShift(ctx context.Context, actor *model.Actor, shiftID uuid.UUID, req *CloseShiftRequest) (*CloseShiftResult, error)
	GetSummary(ctx context.Context, shiftID uuid.UUID) (*ShiftSummary, error)
	GetActiveShift(ctx context.Context) (*model.Shift, error)
	ListShifts(ctx context.Context, filter repository.ShiftFilter) (*repository.OffsetPage, error)
}

type StaffEntry struct {
	MemberID    *uuid.UUID `json:"member_id"`
	DisplayName string     `json:"display_name" validate:"max=255"`
	PIN         string     `json:"pin" validate:"required,len=4,numeric"`
}

type OpenShiftRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float" validate:"gte=0"`
	Notes        string          `json:"notes" validate:"max=1000"`
	Staff        []StaffEntry    `json:"staff" validate:"dive"`
}

type CloseShiftRequest struct {
	CountedCash decimal.Decimal `json:"counted_cash" validate:"gte=0"`
	Notes       string          `json:"notes" validate:"max=1000"`
}

// ProvisionedStaff carries the plaintext PIN for one-time display. A reused
// login keeps its earlier PIN, so PIN is empty for it.
type ProvisionedStaff struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	PIN         string     `json:"pin,omitempty"`
	MemberID    *uuid.UUID `json:"member_id,omitempty"`
	ValidUntil  time.Time  `json:"valid_until"`
	Reused      bool       `json:"reused"`
}

type OpenShiftResult struct {
	Shift   *model.Shift       `json:"shift"`
	Staff   []ProvisionedStaff `json:"staff"`
	Skipped []string           `json:"skipped,omitempty"`
}

type CloseShiftResult struct {
	Shift            *model.Shift    `json:"shift"`
	ExpectedCash     decimal.Decimal `json:"expected_cash"`
	Difference       decimal.Decimal `json:"difference"`
	StaffDeactivated int64           `json:"staff_deactivated"`
}

type StaffSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	ValidUntil  time.Time `json:"valid_until"`
	HasSales    bool      `json:"has_sales"`
}

type ShiftSummary struct {
	Shift          *model.Shift             `json:"shift"`
	TicketCount    int64                    `json:"ticket_count"`
	CancelledCount int64                    `json:"cancelled_count"`
	TotalSales     decimal.Decimal          `json:"total_sales"`
	CreditSales    decimal.Decimal          `json:"credit_sales"`
	Payments       []repository.MethodTotal `json:"payments"`
	ExpectedCash   decimal.Decimal          `json:"expected_cash"`
	Staff          []StaffSummary           `json:"staff"`
}

type shiftService struct {
	shiftRepo  repository.ShiftRepository
	staffRepo  repository.StaffRepository
	memberRepo repository.MemberRepository
	saleRepo   repository.SaleRepository
	db         *gorm.DB
	cache      cache.Store
	cacheTTL   time.Duration
	policy     StaffPolicy
	clock      Clock
	notifier   Notifier
}

type ShiftServiceDeps struct {
	ShiftRepo  repository.ShiftRepository
	StaffRepo  repository.StaffRepository
	MemberRepo repository.MemberRepository
	SaleRepo   repository.SaleRepository
	DB         *gorm.DB
	Cache      cache.Store
	CacheTTL   time.Duration
	Policy     StaffPolicy
	Clock      Clock
	Notifier   Notifier
}

func NewShiftService(deps ShiftServiceDeps) ShiftService {
	store := deps.Cache
	if store == nil {
		store = cache.NopStore{}
	}
	return &shiftService{
		shiftRepo:  deps.ShiftRepo,
		staffRepo:  deps.StaffRepo,
		memberRepo: deps.MemberRepo,
		saleRepo:   deps.SaleRepo,
		db:         deps.DB,
		cache:      store,
		cacheTTL:   deps.CacheTTL,
		policy:     deps.Policy,
		clock:      clockOrNow(deps.Clock),
		notifier:   notifierOrNop(deps.Notifier),
	}
}

func (s *shiftService) OpenShift(ctx context.Context, actor *model.Actor, req *OpenShiftRequest) (*OpenShiftResult, error) {
	// 1. Permission and input
	if err := requirePrivilege(actor, model.PrivShiftManage); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// 2. Fast path; the partial unique index is the real guard
	if _, err := s.shiftRepo.FindOpen(ctx); err == nil {
		return nil, ErrShiftAlreadyOpen
	} else if !repository.IsNotFound(err) {
		return nil, internalErr("failed to check open shift", err)
	}

	members, err := s.membersOf(ctx, req.Staff)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	validFrom, validUntil := s.policy.ValidityWindow(now)

	shift := &model.Shift{
		OpenedBy:     actor.AuditID(),
		OpenedByName: actor.Name,
		OpeningFloat: req.OpeningFloat,
		State:        model.ShiftOpen,
		OpenedAt:     now,
		Notes:        strings.TrimSpace(req.Notes),
	}
	shift.Stamp(actor.AuditID())

	result := &OpenShiftResult{Shift: shift, Staff: []ProvisionedStaff{}}

	// 3. Shift row and staff logins commit together
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.shiftRepo.WithTx(tx).Create(ctx, shift); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrShiftAlreadyOpen
			}
			return internalErr("failed to create shift", err)
		}

		staffRepo := s.staffRepo.WithTx(tx)
		nextSynthetic, err := s.nextSyntheticNumber(ctx, staffRepo)
		if err != nil {
			return err
		}

		for i, entry := range req.Staff {
			var (
				username string
				display  = strings.TrimSpace(entry.DisplayName)
			)
			if entry.MemberID != nil {
				member, ok := members[*entry.MemberID]
				if !ok {
					log.Printf("Warning: open shift: member %s not found, staff entry %d skipped", entry.MemberID, i)
					result.Skipped = append(result.Skipped, fmt.Sprintf("entry %d: member %s not found", i, entry.MemberID))
					continue
				}
				username = strings.TrimSpace(member.DocumentID)
				if username == "" {
					log.Printf("Warning: open shift: member %s has no document id, staff entry %d skipped", member.ID, i)
					result.Skipped = append(result.Skipped, fmt.Sprintf("entry %d: member %s has no document id", i, member.ID))
					continue
				}
				if display == "" {
					display = member.FullName()
				}
			} else {
				username = fmt.Sprintf("%s%d", syntheticPrefix, nextSynthetic)
				nextSynthetic++
			}
			if display == "" {
				display = username
			}

			existing, err := staffRepo.FindActiveByUsername(ctx, username)
			if err == nil {
				result.Staff = append(result.Staff, ProvisionedStaff{
					ID:          existing.ID,
					Username:    existing.Username,
					DisplayName: existing.DisplayName,
					MemberID:    existing.MemberID,
					ValidUntil:  existing.ValidUntil,
					Reused:      true,
				})
				continue
			}
			if !repository.IsNotFound(err) {
				return internalErr("failed to look up staff", err)
			}

			staff := &model.EphemeralStaff{
				Username:    username,
				DisplayName: display,
				MemberID:    entry.MemberID,
				ShiftID:     shift.ID,
				ValidFrom:   validFrom,
				ValidUntil:  validUntil,
				Active:      true,
			}
			if err := staff.SetPIN(entry.PIN); err != nil {
				return internalErr("failed to hash staff PIN", err)
			}
			staff.Stamp(actor.AuditID())
			if err := staffRepo.Create(ctx, staff); err != nil {
				return internalErr("failed to create staff login", err)
			}
			result.Staff = append(result.Staff, ProvisionedStaff{
				ID:          staff.ID,
				Username:    staff.Username,
				DisplayName: staff.DisplayName,
				PIN:         entry.PIN,
				MemberID:    staff.MemberID,
				ValidUntil:  staff.ValidUntil,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. Notify
	cache.Invalidate(ctx, s.cache, activeShiftCacheKey)
	s.notifier.Publish("shift_opened", map[string]interface{}{
		"shift_id":      shift.ID,
		"opened_by":     actor.Name,
		"opening_float": shift.OpeningFloat,
		"staff_count":   len(result.Staff),
	}, fmt.Sprintf("%s opened a shift", actor.Name))

	return result, nil
}

func (s *shiftService) membersOf(ctx context.Context, entries []StaffEntry) (map[uuid.UUID]model.Member, error) {
	var ids []uuid.UUID
	for _, e := range entries {
		if e.MemberID != nil {
			ids = append(ids, *e.MemberID)
		}
	}
	members, err := s.memberRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, internalErr("failed to load members", err)
	}
	return members, nil
}

// nextSyntheticNumber is one past the highest mesero_N ever issued
func (s *shiftService) nextSyntheticNumber(ctx context.Context, repo repository.StaffRepository) (int, error) {
	usernames, err := repo.SyntheticUsernames(ctx, syntheticPrefix)
	if err != nil {
		return 0, internalErr("failed to list synthetic usernames", err)
	}
	highest := 0
	for _, u := range usernames {
		if n, err := strconv.Atoi(strings.TrimPrefix(u, syntheticPrefix)); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func (s *shiftService) CloseShift(ctx context.Context, actor *model.Actor, shiftID uuid.UUID, req *CloseShiftRequest) (*CloseShiftResult, error) {
	if err := requirePrivilege(actor, model.PrivShiftManage); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result := &CloseShiftResult{}
	now := s.clock().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shiftRepo := s.shiftRepo.WithTx(tx)

		shift, err := shiftRepo.LockByID(ctx, shiftID)
		if err != nil {
			return notFoundOr(err, ErrShiftNotFound, "failed to lock shift")
		}
		if !shift.IsOpen() {
			return ErrShiftClosed
		}

		cash, err := s.saleRepo.WithTx(tx).PaymentTotal(ctx, shiftID, model.MethodCash)
		if err != nil {
			return internalErr("failed to total cash payments", err)
		}
		expected := shift.OpeningFloat.Add(cash)

		if err := shiftRepo.MarkClosed(ctx, shiftID, actor.AuditID(), now, req.CountedCash, expected, strings.TrimSpace(req.Notes)); err != nil {
			return internalErr("failed to close shift", err)
		}

		// Staff logins never outlive the shift that is closing
		deactivated, err := s.staffRepo.WithTx(tx).DeactivateAll(ctx, actor.AuditID())
		if err != nil {
			return internalErr("failed to deactivate staff", err)
		}

		closed, err := shiftRepo.FindByID(ctx, shiftID)
		if err != nil {
			return internalErr("failed to reload shift", err)
		}
		result.Shift = closed
		result.ExpectedCash = expected
		result.Difference = req.CountedCash.Sub(expected)
		result.StaffDeactivated = deactivated
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.cache, activeShiftCacheKey)
	s.notifier.Publish("shift_closed", map[string]interface{}{
		"shift_id":      shiftID,
		"closed_by":     actor.Name,
		"expected_cash": result.ExpectedCash,
		"counted_cash":  req.CountedCash,
		"difference":    result.Difference,
	}, fmt.Sprintf("%s closed the shift", actor.Name))

	return result, nil
}

func (s *shiftService) GetSummary(ctx context.Context, shiftID uuid.UUID) (*ShiftSummary, error) {
	shift, err := s.shiftRepo.FindByID(ctx, shiftID)
	if err != nil {
		return nil, notFoundOr(err, ErrShiftNotFound, "failed to load shift")
	}

	totals, err := s.saleRepo.ShiftTotals(ctx, shiftID)
	if err != nil {
		return nil, internalErr("failed to aggregate sales", err)
	}
	methods, err := s.saleRepo.PaymentsByMethod(ctx, shiftID)
	if err != nil {
		return nil, internalErr("failed to aggregate payments", err)
	}
	staff, err := s.staffRepo.FindByShift(ctx, shiftID)
	if err != nil {
		return nil, internalErr("failed to load staff", err)
	}
	sellers, err := s.saleRepo.SellerIDs(ctx, shiftID)
	if err != nil {
		return nil, internalErr("failed to load sellers", err)
	}

	sold := make(map[uuid.UUID]bool, len(sellers))
	for _, id := range sellers {
		sold[id] = true
	}

	summary := &ShiftSummary{
		Shift:          shift,
		TicketCount:    totals.TicketCount,
		CancelledCount: totals.CancelledCount,
		TotalSales:     totals.TotalSales,
		CreditSales:    totals.CreditSales,
		Payments:       methods,
		ExpectedCash:   shift.OpeningFloat,
		Staff:          make([]StaffSummary, 0, len(staff)),
	}
	if summary.Payments == nil {
		summary.Payments = []repository.MethodTotal{}
	}
	for _, m := range methods {
		if m.Method == model.MethodCash {
			summary.ExpectedCash = shift.OpeningFloat.Add(m.Total)
		}
	}
	for _, st := range staff {
		summary.Staff = append(summary.Staff, StaffSummary{
			ID:          st.ID,
			Username:    st.Username,
			DisplayName: st.DisplayName,
			Active:      st.Active,
			ValidUntil:  st.ValidUntil,
			HasSales:    sold[st.ID],
		})
	}
	return summary, nil
}

// GetActiveShift returns nil without error when no shift is open. Only an
// open shift is cached: a "none" written by a reader racing OpenShift would
// outlive the invalidation.
func (s *shiftService) GetActiveShift(ctx context.Context) (*model.Shift, error) {
	var cached model.Shift
	hit, err := s.cache.GetJSON(ctx, activeShiftCacheKey, &cached)
	if err != nil {
		log.Printf("Cache read failed for %s: %v", activeShiftCacheKey, err)
	}
	if hit {
		return &cached, nil
	}

	shift, err := s.shiftRepo.FindOpen(ctx)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, internalErr("failed to load active shift", err)
	}

	if err := s.cache.SetJSON(ctx, activeShiftCacheKey, shift, s.cacheTTL); err != nil {
		log.Printf("Cache write failed for %s: %v", activeShiftCacheKey, err)
	}
	return shift, nil
}

func (s *shiftService) ListShifts(ctx context.Context, filter repository.ShiftFilter) (*repository.OffsetPage, error) {
	switch filter.State {
	case "", model.ShiftOpen, model.ShiftClosed:
	default:
		return nil, apperror.Validation("Invalid state '%s', use open or closed", filter.State)
	}
	filter.Page = filter.Page.Normalize()
	shifts, total, err := s.shiftRepo.List(ctx, filter)
	if err != nil {
		return nil, internalErr("failed to list shifts", err)
	}
	result := repository.NewOffsetPage(shifts, total, filter.Page)
	return &result, nil
}

func (s *shiftService) RequireOpenShift(ctx context.Context) (*model.Shift, error) {
	shift, err := s.shiftRepo.FindOpen(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrNoOpenShift, "failed to load active shift")
	}
	return shift, nil
}

func (s *shiftService) LockActiveShift(ctx context.Context, tx *gorm.DB) (*model.Shift, error) {
	shift, err := s.shiftRepo.WithTx(tx).LockOpen(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrNoOpenShift, "failed to lock active shift")
	}
	return shift, nil
}
