package auth

// Can reports whether actor may exercise permission inside scope. It has no
// side effects and fails closed: a nil actor, an org-scoped check against an
// actor without an org, and unknown roles all deny.
func Can(actor *Actor, permission string, scope Scope) bool {
	if actor == nil {
		return false
	}
	if !inScope(actor, scope) {
		return false
	}
	for _, p := range actor.Permissions {
		if p == permission || p == PermAll {
			return true
		}
	}
	for _, role := range actor.Roles {
		for _, p := range rolePermissions[role] {
			if p == PermAll || p == permission {
				return true
			}
		}
	}
	return false
}

func inScope(actor *Actor, scope Scope) bool {
	if scope.OrgID == "" {
		return true
	}
	if !actor.HasOrg() {
		return false
	}
	return actor.OrgID == scope.OrgID
}
