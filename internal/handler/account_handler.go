package handler

import (
	"church-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	service service.AccountService
}

func NewAccountHandler(s service.AccountService) *AccountHandler {
	return &AccountHandler{service: s}
}

// GetAccounts lists credit accounts, optionally only those with debt
// GET /api/v1/pos/accounts?with_debt=true
func (h *AccountHandler) GetAccounts(c *fiber.Ctx) error {
	withDebt := queryBool(c, "with_debt")
	accounts, err := h.service.ListAccounts(c.UserContext(), withDebt != nil && *withDebt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": accounts})
}

// GetAccount returns the account with its ledger-verified balance
// GET /api/v1/pos/accounts/:member_id
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	memberID, err := paramID(c, "member_id")
	if err != nil {
		return respondError(c, err)
	}

	view, err := h.service.GetAccount(c.UserContext(), memberID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": view})
}

// OpenAccount creates the member's account or updates its credit limit
// PUT /api/v1/pos/accounts/:member_id
func (h *AccountHandler) OpenAccount(c *fiber.Ctx) error {
	memberID, err := paramID(c, "member_id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.OpenAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	account, err := h.service.OpenAccount(c.UserContext(), getActor(c), memberID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Account saved", "data": account})
}

// GetMovements pages through the account's movement log
// GET /api/v1/pos/accounts/:member_id/movements?page=&limit=
func (h *AccountHandler) GetMovements(c *fiber.Ctx) error {
	memberID, err := paramID(c, "member_id")
	if err != nil {
		return respondError(c, err)
	}

	page, err := h.service.ListMovements(c.UserContext(), memberID, pageRequest(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// RecordPayment
// POST /api/v1/pos/accounts/:member_id/payments
func (h *AccountHandler) RecordPayment(c *fiber.Ctx) error {
	memberID, err := paramID(c, "member_id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.RecordPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.service.RecordPayment(c.UserContext(), getActor(c), memberID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Payment recorded", "data": result})
}

// RecordAdjustment
// POST /api/v1/pos/accounts/:member_id/adjustments
func (h *AccountHandler) RecordAdjustment(c *fiber.Ctx) error {
	memberID, err := paramID(c, "member_id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.RecordAdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.service.RecordAdjustment(c.UserContext(), getActor(c), memberID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Adjustment recorded", "data": result})
}
