package middleware

import (
	"context"
	"strings"

	"church-pos/internal/model"
	"church-pos/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ActorKey is the fiber.Ctx local holding the authenticated *model.Actor
const ActorKey = "actor"

// StaffAuthorizer confirms that an ephemeral login is still usable
type StaffAuthorizer interface {
	Authorize(ctx context.Context, staffID uuid.UUID) (*model.EphemeralStaff, error)
}

// RequireAuth is middleware that validates the JWT and sets the actor in context
func RequireAuth(staff StaffAuthorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get Authorization header
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := jwt.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		actor := ActorFromClaims(claims)

		// Shift logins die with their window even if the token has not expired
		if actor.Kind == model.ActorEphemeral {
			if staff == nil {
				return c.Status(401).JSON(fiber.Map{"error": "Staff login is inactive or expired"})
			}
			if _, err := staff.Authorize(c.UserContext(), actor.ID); err != nil {
				return c.Status(401).JSON(fiber.Map{"error": "Staff login is inactive or expired"})
			}
		}

		c.Locals(ActorKey, actor)
		return c.Next()
	}
}

// ActorFromClaims maps token claims to an actor. A token without an explicit
// privilege list gets its role's defaults.
func ActorFromClaims(claims *jwt.Claims) *model.Actor {
	kind := model.ActorStaff
	if claims.Kind == jwt.KindEphemeral {
		kind = model.ActorEphemeral
	}
	privileges := claims.Privileges
	if len(privileges) == 0 {
		privileges = model.PrivilegesForRole(claims.RoleCode)
	}
	return &model.Actor{
		ID:         claims.UserID,
		Name:       claims.Name,
		Role:       claims.RoleCode,
		Kind:       kind,
		MemberID:   claims.MemberID,
		Privileges: privileges,
	}
}

// GetActor returns the actor set by RequireAuth, or nil on public routes
func GetActor(c *fiber.Ctx) *model.Actor {
	actor, _ := c.Locals(ActorKey).(*model.Actor)
	return actor
}

// RequirePrivilege checks if the authenticated actor has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}
		if actor.HasPrivilege(requiredPrivilege) {
			return c.Next()
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires '" + requiredPrivilege + "' privilege",
		})
	}
}

// RequireAnyPrivilege checks if the actor has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}

		for _, reqPriv := range requiredPrivileges {
			if actor.HasPrivilege(reqPriv) {
				return c.Next()
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(requiredPrivileges, ", ") + " privileges",
		})
	}
}
