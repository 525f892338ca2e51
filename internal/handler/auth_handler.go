package handler

import (
	"church-pos/internal/middleware"
	"church-pos/internal/service"
	"church-pos/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	staffService service.StaffService
}

func NewAuthHandler(staffService service.StaffService) *AuthHandler {
	return &AuthHandler{staffService: staffService}
}

// StaffLogin exchanges a shift username and PIN for a bearer token
// POST /api/v1/pos/auth/staff-login
func (h *AuthHandler) StaffLogin(c *fiber.Ctx) error {
	var req service.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	session, err := h.staffService.Login(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// ValidateTokenRequest represents the validate token request body
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateToken reports the actor a token resolves to
// POST /api/v1/pos/auth/validate-token
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	var req ValidateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	if req.Token == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Token is required"})
	}

	claims, err := jwt.ValidateToken(req.Token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	actor := middleware.ActorFromClaims(claims)
	if claims.Kind == jwt.KindEphemeral {
		if _, err := h.staffService.Authorize(c.UserContext(), actor.ID); err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(fiber.Map{"valid": true, "actor": actor})
}
