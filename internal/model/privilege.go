package model

// Privilege represents a permission carried in the actor's token
type Privilege struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

const (
	PrivShiftView       = "shift:view"
	PrivShiftManage     = "shift:manage"
	PrivSaleView        = "sale:view"
	PrivSaleCreate      = "sale:create"
	PrivSaleCancel      = "sale:cancel"
	PrivCreditOverride  = "credit:override"
	PrivAccountView     = "account:view"
	PrivAccountPayment  = "account:payment"
	PrivAccountAdjust   = "account:adjust"
	PrivInventoryView   = "inventory:view"
	PrivInventoryAdjust = "inventory:adjust"
	PrivProductManage   = "product:manage"
	PrivSyncPush        = "sync:push"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// Shift management
	{Code: PrivShiftView, Name: "View Shift"},
	{Code: PrivShiftManage, Name: "Open and Close Shift"},
	// Sales
	{Code: PrivSaleView, Name: "View Sale"},
	{Code: PrivSaleCreate, Name: "Create Sale"},
	{Code: PrivSaleCancel, Name: "Cancel Sale"},
	{Code: PrivCreditOverride, Name: "Sell Over Credit Limit"},
	// Member accounts
	{Code: PrivAccountView, Name: "View Account"},
	{Code: PrivAccountPayment, Name: "Record Account Payment"},
	{Code: PrivAccountAdjust, Name: "Adjust Account"},
	// Inventory and catalogue
	{Code: PrivInventoryView, Name: "View Inventory"},
	{Code: PrivInventoryAdjust, Name: "Adjust Inventory"},
	{Code: PrivProductManage, Name: "Manage Products"},
	// Offline clients
	{Code: PrivSyncPush, Name: "Push Offline Sales"},
}

// Role codes as constants
const (
	RoleAdmin   = "ADMIN"
	RoleTI      = "TI"
	RoleCashier = "CASHIER"
	RoleWaiter  = "WAITER"
)

var cashierPrivileges = []string{
	PrivShiftView, PrivSaleView, PrivSaleCreate,
	PrivAccountView, PrivAccountPayment, PrivInventoryView, PrivSyncPush,
}

// RolePrivileges is used when a token carries a role but no explicit privilege list
var RolePrivileges = map[string][]string{
	RoleAdmin:   allPrivilegeCodes(),
	RoleTI:      allPrivilegeCodes(),
	RoleCashier: cashierPrivileges,
	RoleWaiter:  {PrivSaleView, PrivSaleCreate, PrivInventoryView, PrivSyncPush},
}

func allPrivilegeCodes() []string {
	codes := make([]string, len(DefaultPrivileges))
	for i, p := range DefaultPrivileges {
		codes[i] = p.Code
	}
	return codes
}

// PrivilegesForRole returns a copy of the role's privilege codes
func PrivilegesForRole(role string) []string {
	return append([]string(nil), RolePrivileges[role]...)
}
