// Package roles defines the staff roles and what each one may do.
package roles

const (
	Admin   = "admin"
	Manager = "manager"
	Agent   = "agent"
)

// All lists the roles from most to least privileged.
var All = []string{Admin, Manager, Agent}

// Valid reports whether role is a known staff role.
func Valid(role string) bool {
	switch role {
	case Admin, Manager, Agent:
		return true
	}
	return false
}

// Expand returns role followed by every role it implies. The result is what
// goes into the access token, so RequireRole("manager") admits admins.
func Expand(role string) []string {
	switch role {
	case Admin:
		return []string{Admin, Manager, Agent}
	case Manager:
		return []string{Manager, Agent}
	case Agent:
		return []string{Agent}
	}
	return nil
}

// Permission names surfaced to the dashboard so it can hide actions. Each
// tier mirrors the router group that guards the matching routes.
const (
	PermLeadsRead       = "leads:read"
	PermLeadsWrite      = "leads:write"
	PermLeadsAssign     = "leads:assign"
	PermLeadsDelete     = "leads:delete"
	PermRequestsRead    = "requests:read"
	PermRequestsWrite   = "requests:write"
	PermRequestsCreate  = "requests:create"
	PermRequestsDelete  = "requests:delete"
	PermPaymentsRead    = "payments:read"
	PermPaymentsRefund  = "payments:refund"
	PermContactsManage  = "contacts:manage"
	PermTasksManage     = "tasks:manage"
	PermActivityRead    = "activity:read"
	PermAnimationsEdit  = "settings:animations"
	PermSettingsManage  = "settings:manage"
	PermUsersManage     = "users:manage"
	PermPartnersManage  = "partners:manage"
	PermExportsDownload = "exports:download"
	PermMailboxRead     = "mailbox:read"
)

// Protected routes.
var agentPerms = []string{
	PermLeadsRead, PermLeadsWrite, PermLeadsAssign, PermRequestsRead, PermRequestsWrite,
	PermPaymentsRead, PermContactsManage, PermTasksManage,
}

// Manager group.
var managerPerms = append(append([]string{}, agentPerms...),
	PermLeadsDelete, PermRequestsCreate, PermActivityRead, PermMailboxRead, PermAnimationsEdit,
)

// RequireRole("admin") and the Admin group.
var adminPerms = append(append([]string{}, managerPerms...),
	PermPaymentsRefund, PermRequestsDelete, PermSettingsManage, PermUsersManage,
	PermPartnersManage, PermExportsDownload,
)

// Permissions returns the permission set granted to role.
func Permissions(role string) []string {
	var perms []string
	switch role {
	case Admin:
		perms = adminPerms
	case Manager:
		perms = managerPerms
	case Agent:
		perms = agentPerms
	}
	return append([]string(nil), perms...)
}
