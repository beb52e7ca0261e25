package auth

// Role names understood by the static role table.
const (
	RoleAdmin       = "admin"
	RoleManager     = "manager"
	RoleContributor = "contributor"
	RoleViewer      = "viewer"
)

// Permission keys.
const (
	PermManageUsers             = "user:manage"
	PermStakeholderCreate       = "stakeholder:create"
	PermStakeholderUpdateStatus = "stakeholder:update_status"
	PermStakeholderView         = "stakeholder:view"
	PermAuditView               = "audit:view"

	// PermAll grants every permission.
	PermAll = "*"
)

var knownPermissions = map[string]struct{}{
	PermManageUsers:             {},
	PermStakeholderCreate:       {},
	PermStakeholderUpdateStatus: {},
	PermStakeholderView:         {},
	PermAuditView:               {},
	PermAll:                     {},
}

// rolePermissions is process-wide and never mutated.
var rolePermissions = map[string][]string{
	RoleAdmin: {PermAll},
	RoleManager: {
		PermStakeholderCreate,
		PermStakeholderUpdateStatus,
		PermStakeholderView,
		PermAuditView,
	},
	RoleContributor: {
		PermStakeholderCreate,
		PermStakeholderUpdateStatus,
		PermStakeholderView,
	},
	RoleViewer: {PermStakeholderView},
}

// IsKnownPermission reports whether key is a permission (or the wildcard) the
// service understands.
func IsKnownPermission(key string) bool {
	_, ok := knownPermissions[key]
	return ok
}
