package handler

import (
	"log"
	"time"

	"church-pos/internal/middleware"
	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:   fiber.StatusBadRequest,
	apperror.KindPrecondition: fiber.StatusPreconditionFailed,
	apperror.KindConflict:     fiber.StatusConflict,
	apperror.KindNotFound:     fiber.StatusNotFound,
	apperror.KindInvalidState: fiber.StatusConflict,
	apperror.KindPermission:   fiber.StatusForbidden,
	apperror.KindInternal:     fiber.StatusInternalServerError,
}

// respondError writes err with the status of its kind. Internal causes are
// logged and never sent to the client.
func respondError(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	message := err.Error()
	if kind == apperror.KindInternal {
		log.Printf("Error on %s %s: %v", c.Method(), c.Path(), err)
		message = "Internal Server Error"
	}
	return c.Status(status).JSON(fiber.Map{"error": message, "kind": kind})
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON", "kind": apperror.KindValidation})
}

// getActor returns the actor set by RequireAuth. Services reject a nil
// actor with a permission error.
func getActor(c *fiber.Ctx) *model.Actor {
	return middleware.GetActor(c)
}

// paramID parses a uuid route parameter
func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid %s", name)
	}
	return id, nil
}

// queryID parses an optional uuid query parameter
func queryID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("Invalid %s", name)
	}
	return &id, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(c *fiber.Ctx, name string) *bool {
	switch c.Query(name) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

// queryTime accepts RFC3339 or a plain YYYY-MM-DD date (UTC midnight)
func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperror.Validation("Invalid %s, use YYYY-MM-DD or RFC3339", name)
	}
	return &t, nil
}

func pageRequest(c *fiber.Ctx) repository.PageRequest {
	return repository.PageRequest{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 0),
	}
}
