package auth

import "strings"

// Actor is the authenticated principal issuing a request. It is supplied by
// the request layer on every call and never persisted.
type Actor struct {
	ID          string   `json:"id"`
	Roles       []string `json:"roles"`
	OrgID       string   `json:"orgId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Scope is the optional organization boundary a permission check is evaluated
// against. An empty OrgID means the check is unscoped.
type Scope struct {
	OrgID string
}

// HasOrg reports whether the actor belongs to an organization.
func (a *Actor) HasOrg() bool {
	return a != nil && strings.TrimSpace(a.OrgID) != ""
}

// Normalize trims identifiers and lower-cases role names in place.
func (a *Actor) Normalize() {
	if a == nil {
		return
	}
	a.ID = strings.TrimSpace(a.ID)
	a.OrgID = strings.TrimSpace(a.OrgID)
	a.Roles = dedupe(a.Roles, true)
	a.Permissions = dedupe(a.Permissions, false)
}

func dedupe(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
