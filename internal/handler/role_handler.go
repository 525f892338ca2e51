package handler

import (
	"church-pos/internal/model"

	"github.com/gofiber/fiber/v2"
)

type RoleHandler struct{}

func NewRoleHandler() *RoleHandler {
	return &RoleHandler{}
}

// GetRoles returns the roles and the default privileges each one carries
// GET /api/v1/pos/roles
func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": model.RolePrivileges})
}

// GetPrivileges lists all privilege codes
// GET /api/v1/pos/privileges
func (h *RoleHandler) GetPrivileges(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": model.DefaultPrivileges})
}

// GetMe returns the caller's resolved actor
// GET /api/v1/pos/me
func (h *RoleHandler) GetMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": getActor(c)})
}
