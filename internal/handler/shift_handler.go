package handler

import (
	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ShiftHandler struct {
	shiftService service.ShiftService
	staffService service.StaffService
}

func NewShiftHandler(shiftService service.ShiftService, staffService service.StaffService) *ShiftHandler {
	return &ShiftHandler{shiftService: shiftService, staffService: staffService}
}

// OpenShift opens the POS day and provisions shift staff
// POST /api/v1/pos/shifts
func (h *ShiftHandler) OpenShift(c *fiber.Ctx) error {
	var req service.OpenShiftRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.shiftService.OpenShift(c.UserContext(), getActor(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{
		"message": "Shift opened successfully",
		"data":    result,
	})
}

// CloseShift closes the shift and reconciles cash
// POST /api/v1/pos/shifts/:id/close
func (h *ShiftHandler) CloseShift(c *fiber.Ctx) error {
	shiftID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.CloseShiftRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	result, err := h.shiftService.CloseShift(c.UserContext(), getActor(c), shiftID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Shift closed successfully",
		"data":    result,
	})
}

// GetSummary returns sales, payments and staff of a shift
// GET /api/v1/pos/shifts/:id/summary
func (h *ShiftHandler) GetSummary(c *fiber.Ctx) error {
	shiftID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	summary, err := h.shiftService.GetSummary(c.UserContext(), shiftID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": summary})
}

// GetActiveShift is public so POS clients can show the shift state before login
// GET /api/v1/pos/shifts/active
func (h *ShiftHandler) GetActiveShift(c *fiber.Ctx) error {
	shift, err := h.shiftService.GetActiveShift(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": shift, "open": shift != nil})
}

// GetShifts lists shifts, newest first
// GET /api/v1/pos/shifts?state=&from=&to=&page=&limit=
func (h *ShiftHandler) GetShifts(c *fiber.Ctx) error {
	filter := repository.ShiftFilter{
		State: model.ShiftState(c.Query("state")),
		Page:  pageRequest(c),
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		return respondError(c, err)
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return respondError(c, err)
	}

	page, err := h.shiftService.ListShifts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetStaff lists logins usable right now
// GET /api/v1/pos/staff
func (h *ShiftHandler) GetStaff(c *fiber.Ctx) error {
	staff, err := h.staffService.ListActive(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": staff})
}

// DeactivateStaff revokes one shift login
// POST /api/v1/pos/staff/:id/deactivate
func (h *ShiftHandler) DeactivateStaff(c *fiber.Ctx) error {
	staffID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.staffService.Deactivate(c.UserContext(), getActor(c), staffID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Staff deactivated successfully"})
}

// ExpireStaff deactivates every login past its cutoff
// POST /api/v1/pos/staff/expire
func (h *ShiftHandler) ExpireStaff(c *fiber.Ctx) error {
	count, err := h.staffService.ExpireStale(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Expired staff logins", "expired": count})
}
