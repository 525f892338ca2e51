package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type lineRequest struct {
	ProductID uuid.UUID        `validate:"uuid_required"`
	Quantity  decimal.Decimal  `validate:"gt=0"`
	UnitPrice decimal.Decimal  `validate:"gte=0"`
	Discount  *decimal.Decimal `validate:"omitempty,gte=0"`
}

func TestValidateStructDecimalTags(t *testing.T) {
	ok := lineRequest{
		ProductID: uuid.New(),
		Quantity:  decimal.RequireFromString("0.5"),
		UnitPrice: decimal.Zero,
	}
	assert.Empty(t, ValidateStruct(&ok))

	bad := ok
	bad.Quantity = decimal.Zero
	errs := ValidateStruct(&bad)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "lineRequest.Quantity", errs[0].FailedField)
		assert.Equal(t, "gt", errs[0].Tag)
	}

	negative := decimal.RequireFromString("-1")
	bad = ok
	bad.Discount = &negative
	errs = ValidateStruct(&bad)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "gte", errs[0].Tag)
	}
}

func TestValidateStructUUIDRequired(t *testing.T) {
	req := lineRequest{Quantity: decimal.NewFromInt(1)}
	errs := ValidateStruct(&req)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, "uuid_required", errs[0].Tag)
	}
}
