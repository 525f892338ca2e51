package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const minJustificationLength = 10

// balanceTolerance is how far the cached balance may drift before a read repairs it
var balanceTolerance = decimal.RequireFromString("0.01")

// CreditLedger is the part of the ledger the sale flow uses inside its own transaction
type CreditLedger interface {
	LockAccount(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*model.MemberAccount, error)
	CheckCreditLimit(ctx context.Context, tx *gorm.DB, account *model.MemberAccount, proposed decimal.Decimal) (*CreditCheck, error)
	RecordCharge(ctx context.Context, tx *gorm.DB, account *model.MemberAccount, amount decimal.Decimal, saleID uuid.UUID, actorID string) (*model.AccountMovement, error)
}

type AccountService interface {
	CreditLedger

	GetAccount(ctx context.Context, memberID uuid.UUID) (*AccountView, error)
	ListAccounts(ctx context.Context, withDebtOnly bool) ([]model.MemberAccount, error)
	ListMovements(ctx context.Context, memberID uuid.UUID, page repository.PageRequest) (*repository.OffsetPage, error)
	OpenAccount(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *OpenAccountRequest) (*model.MemberAccount, error)
	RecordPayment(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *RecordPaymentRequest) (*LedgerResult, error)
	RecordAdjustment(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *RecordAdjustmentRequest) (*LedgerResult, error)
}

type OpenAccountRequest struct {
	CreditLimit decimal.Decimal `json:"credit_limit" validate:"gte=0"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal     `json:"amount" validate:"gt=0"`
	Method model.PaymentMethod `json:"method" validate:"omitempty,oneof=cash card transfer other"`
	Notes  string              `json:"notes" validate:"max=500"`
}

type RecordAdjustmentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Justification string          `json:"justification"`
}

// AccountView is an account with its balance verified against the movement log
type AccountView struct {
	Account         *model.MemberAccount `json:"account"`
	TotalCharges    decimal.Decimal      `json:"total_charges"`
	TotalPayments   decimal.Decimal      `json:"total_payments"`
	TotalAdjustment decimal.Decimal      `json:"total_adjustments"`
	MovementCount   int64                `json:"movement_count"`
	AvailableCredit decimal.Decimal      `json:"available_credit"`
	Healed          bool                 `json:"healed"`
}

type LedgerResult struct {
	Movement        *model.AccountMovement `json:"movement"`
	PreviousBalance decimal.Decimal        `json:"previous_balance"`
	NewBalance      decimal.Decimal        `json:"new_balance"`
}

// CreditCheck is the outcome of a credit limit evaluation
type CreditCheck struct {
	Balance  decimal.Decimal `json:"balance"`
	Limit    decimal.Decimal `json:"limit"`
	Proposed decimal.Decimal `json:"proposed"`
	Approved bool            `json:"approved"`
}

type accountService struct {
	accountRepo repository.AccountRepository
	memberRepo  repository.MemberRepository
	db          *gorm.DB
	notifier    Notifier
}

func NewAccountService(accountRepo repository.AccountRepository, memberRepo repository.MemberRepository, db *gorm.DB, notifier Notifier) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		memberRepo:  memberRepo,
		db:          db,
		notifier:    notifierOrNop(notifier),
	}
}

func (s *accountService) GetAccount(ctx context.Context, memberID uuid.UUID) (*AccountView, error) {
	account, err := s.accountRepo.FindByMemberID(ctx, memberID)
	if err != nil {
		return nil, notFoundOr(err, ErrAccountNotFound, "failed to load account")
	}

	totals, err := s.accountRepo.Totals(ctx, account.ID)
	if err != nil {
		return nil, internalErr("failed to compute account balance", err)
	}

	view := &AccountView{Account: account}
	recomputed := totals.Balance()
	if recomputed.Sub(account.Balance).Abs().GreaterThan(balanceTolerance) {
		log.Printf("account %s: cached balance %s drifted from ledger %s, repairing", account.ID, account.Balance, recomputed)
		if err := s.accountRepo.UpdateBalance(ctx, account.ID, recomputed, "system"); err != nil {
			return nil, internalErr("failed to repair account balance", err)
		}
		account.Balance = recomputed
		view.Healed = true
	}

	view.TotalCharges = totals.Charges
	view.TotalPayments = totals.Payments
	view.TotalAdjustment = totals.Adjustments
	view.MovementCount = totals.MovementCount
	view.AvailableCredit = account.CreditLimit.Sub(account.Balance)
	return view, nil
}

func (s *accountService) ListAccounts(ctx context.Context, withDebtOnly bool) ([]model.MemberAccount, error) {
	accounts, err := s.accountRepo.FindAll(ctx, withDebtOnly)
	if err != nil {
		return nil, internalErr("failed to list accounts", err)
	}
	return accounts, nil
}

func (s *accountService) ListMovements(ctx context.Context, memberID uuid.UUID, page repository.PageRequest) (*repository.OffsetPage, error) {
	account, err := s.accountRepo.FindByMemberID(ctx, memberID)
	if err != nil {
		return nil, notFoundOr(err, ErrAccountNotFound, "failed to load account")
	}
	page = page.Normalize()
	movements, total, err := s.accountRepo.ListMovements(ctx, account.ID, page)
	if err != nil {
		return nil, internalErr("failed to list movements", err)
	}
	result := repository.NewOffsetPage(movements, total, page)
	return &result, nil
}

func (s *accountService) OpenAccount(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *OpenAccountRequest) (*model.MemberAccount, error) {
	if err := requirePrivilege(actor, model.PrivAccountAdjust); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.memberRepo.FindByID(ctx, memberID); err != nil {
		return nil, notFoundOr(err, ErrMemberNotFound, "failed to load member")
	}

	account, err := s.accountRepo.FindByMemberID(ctx, memberID)
	switch {
	case err == nil:
		if err := s.accountRepo.Update(ctx, account.ID, map[string]interface{}{
			"credit_limit": req.CreditLimit,
			"updated_by":   actor.AuditID(),
		}); err != nil {
			return nil, internalErr("failed to update credit limit", err)
		}
		account.CreditLimit = req.CreditLimit
	case repository.IsNotFound(err):
		account = &model.MemberAccount{MemberID: memberID, CreditLimit: req.CreditLimit, Balance: decimal.Zero}
		account.Stamp(actor.AuditID())
		if err := s.accountRepo.Create(ctx, account); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, ErrAccountExists
			}
			return nil, internalErr("failed to create account", err)
		}
	default:
		return nil, internalErr("failed to load account", err)
	}
	return account, nil
}

func (s *accountService) RecordPayment(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *RecordPaymentRequest) (*LedgerResult, error) {
	if err := requirePrivilege(actor, model.PrivAccountPayment); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = model.MethodCash
	}

	var result *LedgerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.accountRepo.WithTx(tx)

		account, err := repo.LockByMemberID(ctx, memberID)
		if err != nil {
			return notFoundOr(err, ErrAccountNotFound, "failed to lock account")
		}
		totals, err := repo.Totals(ctx, account.ID)
		if err != nil {
			return internalErr("failed to compute account balance", err)
		}
		balance := totals.Balance()
		if req.Amount.GreaterThan(balance) {
			return fmt.Errorf("%w: amount %s, balance %s", ErrOverpayment, req.Amount, balance)
		}

		description := strings.TrimSpace(req.Notes)
		if description == "" {
			description = "account payment"
		}
		movement := &model.AccountMovement{
			AccountID:     account.ID,
			Type:          model.MovementPayment,
			Amount:        req.Amount,
			PaymentMethod: method,
			Description:   description,
			ActorID:       actor.AuditID(),
		}
		movement.Stamp(actor.AuditID())
		result, err = s.appendMovement(ctx, repo, account, balance, movement)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyMovement(memberID, result, actor)
	return result, nil
}

func (s *accountService) RecordAdjustment(ctx context.Context, actor *model.Actor, memberID uuid.UUID, req *RecordAdjustmentRequest) (*LedgerResult, error) {
	if err := requirePrivilege(actor, model.PrivAccountAdjust); err != nil {
		return nil, err
	}
	justification := strings.TrimSpace(req.Justification)
	if utf8.RuneCountInString(justification) < minJustificationLength {
		return nil, ErrJustificationTooShort
	}
	if req.Amount.IsZero() {
		return nil, apperror.Validation("adjustment amount cannot be zero")
	}

	var result *LedgerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.accountRepo.WithTx(tx)

		account, err := repo.LockByMemberID(ctx, memberID)
		if err != nil {
			return notFoundOr(err, ErrAccountNotFound, "failed to lock account")
		}
		totals, err := repo.Totals(ctx, account.ID)
		if err != nil {
			return internalErr("failed to compute account balance", err)
		}

		movement := &model.AccountMovement{
			AccountID:   account.ID,
			Type:        model.MovementAdjustment,
			Amount:      req.Amount,
			Description: justification,
			ActorID:     actor.AuditID(),
		}
		movement.Stamp(actor.AuditID())
		result, err = s.appendMovement(ctx, repo, account, totals.Balance(), movement)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyMovement(memberID, result, actor)
	return result, nil
}

func (s *accountService) LockAccount(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*model.MemberAccount, error) {
	account, err := s.accountRepo.WithTx(tx).LockByMemberID(ctx, memberID)
	if err != nil {
		return nil, notFoundOr(err, ErrNoCreditAccount, "failed to lock account")
	}
	return account, nil
}

// CheckCreditLimit approves when the ledger balance plus the proposed charge
// stays within the limit. The account must already be locked by tx.
func (s *accountService) CheckCreditLimit(ctx context.Context, tx *gorm.DB, account *model.MemberAccount, proposed decimal.Decimal) (*CreditCheck, error) {
	totals, err := s.accountRepo.WithTx(tx).Totals(ctx, account.ID)
	if err != nil {
		return nil, internalErr("failed to compute account balance", err)
	}
	balance := totals.Balance()
	return &CreditCheck{
		Balance:  balance,
		Limit:    account.CreditLimit,
		Proposed: proposed,
		Approved: balance.Add(proposed).LessThanOrEqual(account.CreditLimit),
	}, nil
}

func (s *accountService) RecordCharge(ctx context.Context, tx *gorm.DB, account *model.MemberAccount, amount decimal.Decimal, saleID uuid.UUID, actorID string) (*model.AccountMovement, error) {
	repo := s.accountRepo.WithTx(tx)
	totals, err := repo.Totals(ctx, account.ID)
	if err != nil {
		return nil, internalErr("failed to compute account balance", err)
	}

	movement := &model.AccountMovement{
		AccountID:   account.ID,
		Type:        model.MovementCharge,
		Amount:      amount,
		SaleID:      &saleID,
		Description: "credit sale",
		ActorID:     actorID,
	}
	movement.Stamp(actorID)
	result, err := s.appendMovement(ctx, repo, account, totals.Balance(), movement)
	if err != nil {
		return nil, err
	}
	return result.Movement, nil
}

// appendMovement writes the movement and moves the cached balance from the
// recomputed ledger balance
func (s *accountService) appendMovement(ctx context.Context, repo repository.AccountRepository, account *model.MemberAccount, balance decimal.Decimal, movement *model.AccountMovement) (*LedgerResult, error) {
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, internalErr("failed to record account movement", err)
	}
	newBalance := balance.Add(movement.SignedAmount())
	if err := repo.UpdateBalance(ctx, account.ID, newBalance, movement.ActorID); err != nil {
		return nil, internalErr("failed to update account balance", err)
	}
	account.Balance = newBalance
	return &LedgerResult{Movement: movement, PreviousBalance: balance, NewBalance: newBalance}, nil
}

func (s *accountService) notifyMovement(memberID uuid.UUID, result *LedgerResult, actor *model.Actor) {
	s.notifier.Publish("account_update", map[string]interface{}{
		"member_id":   memberID,
		"type":        result.Movement.Type,
		"amount":      result.Movement.Amount,
		"new_balance": result.NewBalance,
	}, fmt.Sprintf("%s recorded a %s of %s", actor.Name, result.Movement.Type, result.Movement.Amount))
}
