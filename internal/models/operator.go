package models

// Role is the console audience an operator token was issued for.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFinance Role = "finance"
	RoleSupport Role = "support"
	RoleCreator Role = "creator"
)

const permissionAll = "*"

var rolePermissions = map[Role][]string{
	RoleAdmin: {permissionAll},
	RoleFinance: {
		"payout_request:view", "payout_request:act",
		"release:view", "exports:run", "bulk:run", "action-logs:view",
	},
	RoleSupport: {
		"support_ticket:view", "support_ticket:act",
		"merch_design:view", "merch_design:act",
		"mcn:view", "release:view", "bulk:run",
	},
	RoleCreator: {
		"release:view", "support_ticket:view", "merch_design:view",
		"payout_request:view", "mcn:view", "media:upload",
	},
}

// Operator is the authenticated principal behind a console request. It is
// built from token claims and never persisted.
type Operator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Token string `json:"-"`
}

func (o *Operator) HasPermission(permission string) bool {
	for _, p := range rolePermissions[o.Role] {
		if p == permissionAll || p == permission {
			return true
		}
	}
	return false
}

// ViewPermission and ActPermission build the per-entity permission codes.
func ViewPermission(entity EntityType) string { return string(entity) + ":view" }
func ActPermission(entity EntityType) string  { return string(entity) + ":act" }
