package service

import (
	"errors"
	"fmt"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"
	"church-pos/pkg/validator"
)

// Error definitions
var (
	ErrNoOpenShift      = apperror.New(apperror.KindPrecondition, "no open shift")
	ErrShiftAlreadyOpen = apperror.New(apperror.KindConflict, "a shift is already open")
	ErrShiftNotFound    = apperror.New(apperror.KindNotFound, "shift not found")
	ErrShiftClosed      = apperror.New(apperror.KindInvalidState, "shift is already closed")
	ErrStaffNotFound    = apperror.New(apperror.KindNotFound, "staff not found")
	ErrStaffInactive    = apperror.New(apperror.KindPermission, "staff login is inactive or expired")

	ErrInvalidCredentials = apperror.New(apperror.KindPermission, "invalid username or PIN")

	ErrSaleNotFound        = apperror.New(apperror.KindNotFound, "sale not found")
	ErrSaleCancelled       = apperror.New(apperror.KindInvalidState, "sale is already cancelled")
	ErrSellerUnresolved    = apperror.New(apperror.KindValidation, "staff actor has no linked member")
	ErrMemberRequired      = apperror.New(apperror.KindValidation, "on-credit sale requires a member")
	ErrNoCreditAccount     = apperror.New(apperror.KindValidation, "member has no credit account")
	ErrCreditLimitExceeded = apperror.New(apperror.KindConflict, "credit limit exceeded")
	ErrIdempotencyKey      = apperror.New(apperror.KindValidation, "idempotency key is required")

	ErrMemberNotFound        = apperror.New(apperror.KindNotFound, "member not found")
	ErrAccountNotFound       = apperror.New(apperror.KindNotFound, "account not found")
	ErrAccountExists         = apperror.New(apperror.KindConflict, "member already has an account")
	ErrOverpayment           = apperror.New(apperror.KindValidation, "payment exceeds current balance")
	ErrJustificationTooShort = apperror.New(apperror.KindValidation, "justification must be at least 10 characters")

	ErrProductNotFound  = apperror.New(apperror.KindNotFound, "product not found")
	ErrCategoryNotFound = apperror.New(apperror.KindNotFound, "category not found")
	ErrDuplicateCode    = apperror.New(apperror.KindConflict, "product code already exists")
	ErrNegativeStock    = apperror.New(apperror.KindValidation, "stock cannot be negative")
)

// validateRequest runs struct validation and reports the first failing field
func validateRequest(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		first := errs[0]
		return apperror.Validation("Validation failed: Field '%s' failed on tag '%s'", first.FailedField, first.Tag)
	}
	return nil
}

func requirePrivilege(actor *model.Actor, code string) error {
	if actor == nil || !actor.HasPrivilege(code) {
		return apperror.New(apperror.KindPermission, fmt.Sprintf("Forbidden: requires '%s' privilege", code))
	}
	return nil
}

// internal classifies an unexpected storage error, leaving typed errors untouched
func internalErr(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(message, err)
}

// notFoundOr maps gorm's record-not-found to notFound and anything else to internal
func notFoundOr(err error, notFound error, message string) error {
	if repository.IsNotFound(err) {
		return notFound
	}
	return internalErr(message, err)
}
