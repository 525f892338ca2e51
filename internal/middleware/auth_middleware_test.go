package middleware_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"church-pos/internal/middleware"
	"church-pos/internal/model"
	"church-pos/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staffStub struct {
	active map[uuid.UUID]bool
}

func (s staffStub) Authorize(_ context.Context, id uuid.UUID) (*model.EphemeralStaff, error) {
	if !s.active[id] {
		return nil, errors.New("inactive")
	}
	return &model.EphemeralStaff{Active: true}, nil
}

func TestActorFromClaims(t *testing.T) {
	memberID := uuid.New()
	actor := middleware.ActorFromClaims(&jwt.Claims{
		UserID:   uuid.New(),
		Name:     "Cajera",
		RoleCode: model.RoleCashier,
		MemberID: &memberID,
	})
	assert.Equal(t, model.ActorStaff, actor.Kind)
	assert.Equal(t, model.PrivilegesForRole(model.RoleCashier), actor.Privileges)
	assert.False(t, actor.IsElevated())

	explicit := middleware.ActorFromClaims(&jwt.Claims{
		UserID:     uuid.New(),
		RoleCode:   model.RoleCashier,
		Kind:       jwt.KindEphemeral,
		Privileges: []string{model.PrivCreditOverride},
	})
	assert.Equal(t, model.ActorEphemeral, explicit.Kind)
	assert.True(t, explicit.IsElevated())
	assert.False(t, explicit.HasPrivilege(model.PrivSaleCreate))
}

func TestRequireAuth(t *testing.T) {
	liveID, deadID := uuid.New(), uuid.New()
	stub := staffStub{active: map[uuid.UUID]bool{liveID: true}}

	app := fiber.New()
	app.Get("/sales",
		middleware.RequireAuth(stub),
		middleware.RequireAnyPrivilege(model.PrivSaleView, model.PrivShiftView),
		func(c *fiber.Ctx) error { return c.SendString(middleware.GetActor(c).Name) },
	)

	call := func(header string) (int, string) {
		req := httptest.NewRequest("GET", "/sales", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		buf := make([]byte, 256)
		n, _ := resp.Body.Read(buf)
		return resp.StatusCode, string(buf[:n])
	}

	mint := func(id uuid.UUID, kind, role string) string {
		signed, err := jwt.GenerateToken(jwt.Claims{UserID: id, Name: "Mesero", RoleCode: role, Kind: kind}, time.Hour)
		require.NoError(t, err)
		return signed
	}

	status, _ := call("")
	assert.Equal(t, 401, status)
	status, _ = call("Token abc")
	assert.Equal(t, 401, status)

	status, body := call("Bearer " + mint(liveID, jwt.KindEphemeral, model.RoleWaiter))
	assert.Equal(t, 200, status)
	assert.Equal(t, "Mesero", body)

	status, _ = call("Bearer " + mint(deadID, jwt.KindEphemeral, model.RoleWaiter))
	assert.Equal(t, 401, status)

	// Unknown role, no privileges
	status, _ = call("Bearer " + mint(uuid.New(), jwt.KindStaff, "GUEST"))
	assert.Equal(t, 403, status)
}
