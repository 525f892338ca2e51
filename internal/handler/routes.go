package handler

import (
	"church-pos/internal/middleware"
	"church-pos/internal/model"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Auth      *AuthHandler
	Shift     *ShiftHandler
	Sale      *SaleHandler
	Account   *AccountHandler
	Inventory *InventoryHandler
	Role      *RoleHandler
}

// RegisterRoutes mounts the POS API under /api/v1/pos
func RegisterRoutes(app *fiber.App, h Handlers, staff middleware.StaffAuthorizer) {
	pos := app.Group("/api/v1/pos")

	// ============ PUBLIC ROUTES ============
	pos.Get("/shifts/active", h.Shift.GetActiveShift)
	pos.Post("/auth/staff-login", h.Auth.StaffLogin)
	pos.Post("/auth/validate-token", h.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := pos.Group("", middleware.RequireAuth(staff))

	protected.Get("/me", h.Role.GetMe)
	protected.Get("/roles", h.Role.GetRoles)
	protected.Get("/privileges", h.Role.GetPrivileges)

	// Shifts and staff
	protected.Get("/shifts", middleware.RequirePrivilege(model.PrivShiftView), h.Shift.GetShifts)
	protected.Post("/shifts", middleware.RequirePrivilege(model.PrivShiftManage), h.Shift.OpenShift)
	protected.Post("/shifts/:id/close", middleware.RequirePrivilege(model.PrivShiftManage), h.Shift.CloseShift)
	protected.Get("/shifts/:id/summary", middleware.RequirePrivilege(model.PrivShiftView), h.Shift.GetSummary)
	protected.Get("/staff", middleware.RequireAnyPrivilege(model.PrivShiftView, model.PrivShiftManage), h.Shift.GetStaff)
	protected.Post("/staff/expire", middleware.RequirePrivilege(model.PrivShiftManage), h.Shift.ExpireStaff)
	protected.Post("/staff/:id/deactivate", middleware.RequirePrivilege(model.PrivShiftManage), h.Shift.DeactivateStaff)

	// Sales
	protected.Get("/sales", middleware.RequirePrivilege(model.PrivSaleView), h.Sale.GetSales)
	protected.Post("/sales", middleware.RequirePrivilege(model.PrivSaleCreate), h.Sale.CreateSale)
	protected.Get("/sales/:id", middleware.RequirePrivilege(model.PrivSaleView), h.Sale.GetSale)
	protected.Post("/sales/:id/cancel", middleware.RequirePrivilege(model.PrivSaleCancel), h.Sale.CancelSale)
	protected.Post("/sales/:id/payments", middleware.RequirePrivilege(model.PrivSaleCreate), h.Sale.AddPayment)
	protected.Post("/sync/sales", middleware.RequirePrivilege(model.PrivSyncPush), h.Sale.PushSyncBatch)

	// Member accounts
	protected.Get("/accounts", middleware.RequirePrivilege(model.PrivAccountView), h.Account.GetAccounts)
	protected.Get("/accounts/:member_id", middleware.RequirePrivilege(model.PrivAccountView), h.Account.GetAccount)
	protected.Put("/accounts/:member_id", middleware.RequirePrivilege(model.PrivAccountAdjust), h.Account.OpenAccount)
	protected.Get("/accounts/:member_id/movements", middleware.RequirePrivilege(model.PrivAccountView), h.Account.GetMovements)
	protected.Post("/accounts/:member_id/payments", middleware.RequirePrivilege(model.PrivAccountPayment), h.Account.RecordPayment)
	protected.Post("/accounts/:member_id/adjustments", middleware.RequirePrivilege(model.PrivAccountAdjust), h.Account.RecordAdjustment)

	// Inventory and catalogue
	protected.Get("/inventory", middleware.RequirePrivilege(model.PrivInventoryView), h.Inventory.GetInventory)
	protected.Put("/inventory/:product_id", middleware.RequirePrivilege(model.PrivInventoryAdjust), h.Inventory.AdjustInventory)
	protected.Get("/products", h.Inventory.GetProducts)
	protected.Get("/products/:id", h.Inventory.GetProduct)
	protected.Post("/products", middleware.RequirePrivilege(model.PrivProductManage), h.Inventory.CreateProduct)
	protected.Put("/products/:id", middleware.RequirePrivilege(model.PrivProductManage), h.Inventory.UpdateProduct)
	protected.Delete("/products/:id", middleware.RequirePrivilege(model.PrivProductManage), h.Inventory.DeleteProduct)
	protected.Get("/categories", h.Inventory.GetCategories)
	protected.Post("/categories", middleware.RequirePrivilege(model.PrivProductManage), h.Inventory.CreateCategory)
}
