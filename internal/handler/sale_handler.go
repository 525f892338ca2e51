package handler

import (
	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SaleHandler struct {
	saleService service.SaleService
	syncService service.SyncService
}

func NewSaleHandler(saleService service.SaleService, syncService service.SyncService) *SaleHandler {
	return &SaleHandler{saleService: saleService, syncService: syncService}
}

// CreateSale registers a ticket in the open shift. A replayed idempotency
// key answers 200 with the original sale.
// POST /api/v1/pos/sales
func (h *SaleHandler) CreateSale(c *fiber.Ctx) error {
	var req service.CreateSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}

	result, err := h.saleService.CreateSale(c.UserContext(), getActor(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	if result.Duplicate {
		return c.JSON(fiber.Map{
			"message":   "Sale already registered",
			"duplicate": true,
			"data":      result.Sale,
		})
	}
	return c.Status(201).JSON(fiber.Map{
		"message":   "Sale created",
		"duplicate": false,
		"data":      result.Sale,
	})
}

// CancelSale marks a sale cancelled
// POST /api/v1/pos/sales/:id/cancel
func (h *SaleHandler) CancelSale(c *fiber.Ctx) error {
	saleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.CancelSaleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidJSON(c)
		}
	}

	sale, err := h.saleService.CancelSale(c.UserContext(), getActor(c), saleID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Sale cancelled", "data": sale})
}

// AddPayment records a payment against an existing sale
// POST /api/v1/pos/sales/:id/payments
func (h *SaleHandler) AddPayment(c *fiber.Ctx) error {
	saleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	sale, err := h.saleService.AddPayment(c.UserContext(), getActor(c), saleID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Payment recorded", "data": sale})
}

// GetSales lists sales
// GET /api/v1/pos/sales?shift_id=&member_id=&seller_id=&state=&on_credit=&from=&to=&page=&limit=
func (h *SaleHandler) GetSales(c *fiber.Ctx) error {
	filter := repository.SaleFilter{
		State:    model.SaleState(c.Query("state")),
		OnCredit: queryBool(c, "on_credit"),
		Page:     pageRequest(c),
	}

	var err error
	if filter.ShiftID, err = queryID(c, "shift_id"); err != nil {
		return respondError(c, err)
	}
	if filter.MemberID, err = queryID(c, "member_id"); err != nil {
		return respondError(c, err)
	}
	if filter.SellerID, err = queryID(c, "seller_id"); err != nil {
		return respondError(c, err)
	}
	if filter.From, err = queryTime(c, "from"); err != nil {
		return respondError(c, err)
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return respondError(c, err)
	}

	page, err := h.saleService.ListSales(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetSale returns a sale with its items and payments
// GET /api/v1/pos/sales/:id
func (h *SaleHandler) GetSale(c *fiber.Ctx) error {
	saleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	sale, err := h.saleService.GetSaleDetail(c.UserContext(), saleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": sale})
}

// PushSyncBatch replays sales queued by an offline client
// POST /api/v1/pos/sync/sales
func (h *SaleHandler) PushSyncBatch(c *fiber.Ctx) error {
	var req struct {
		Sales []service.CreateSaleRequest `json:"sales"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.syncService.PushBatch(c.UserContext(), getActor(c), req.Sales)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": result})
}
