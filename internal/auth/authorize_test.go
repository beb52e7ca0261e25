package auth

import "testing"

var allPermissions = []string{
	PermManageUsers,
	PermStakeholderCreate,
	PermStakeholderUpdateStatus,
	PermStakeholderView,
	PermAuditView,
	"something:else",
}

func TestCanUnknownRolesDenyEverything(t *testing.T) {
	actor := &Actor{ID: "u1", Roles: []string{"superhero", "ADMINISTRATOR", ""}}
	for _, perm := range allPermissions {
		if Can(actor, perm, Scope{}) {
			t.Fatalf("unknown role granted %q", perm)
		}
	}
}

func TestCanWildcardRole(t *testing.T) {
	actor := &Actor{ID: "u1", Roles: []string{RoleAdmin}, OrgID: "org-a"}
	for _, perm := range allPermissions {
		if !Can(actor, perm, Scope{}) {
			t.Fatalf("admin denied %q", perm)
		}
		if !Can(actor, perm, Scope{OrgID: "org-a"}) {
			t.Fatalf("admin denied %q in own org", perm)
		}
		if Can(actor, perm, Scope{OrgID: "org-b"}) {
			t.Fatalf("admin granted %q in foreign org", perm)
		}
	}
}

func TestCanWildcardExplicitPermission(t *testing.T) {
	actor := &Actor{ID: "u1", Permissions: []string{PermAll}}
	for _, perm := range allPermissions {
		if !Can(actor, perm, Scope{}) {
			t.Fatalf("explicit wildcard denied %q", perm)
		}
	}
	if Can(actor, PermStakeholderView, Scope{OrgID: "org-a"}) {
		t.Fatalf("actor without org matched a scoped check")
	}
}

func TestCanExplicitPermission(t *testing.T) {
	actor := &Actor{ID: "u1", Roles: []string{RoleViewer}, Permissions: []string{PermAuditView}}
	if !Can(actor, PermAuditView, Scope{}) {
		t.Fatalf("explicit permission ignored")
	}
	if !Can(actor, PermStakeholderView, Scope{}) {
		t.Fatalf("role permission ignored")
	}
	if Can(actor, PermStakeholderCreate, Scope{}) {
		t.Fatalf("viewer granted create")
	}
}

func TestCanOrgScope(t *testing.T) {
	cases := []struct {
		name  string
		actor *Actor
		scope Scope
		want  bool
	}{
		{"same org", &Actor{ID: "u", Roles: []string{RoleManager}, OrgID: "A"}, Scope{OrgID: "A"}, true},
		{"different org", &Actor{ID: "u", Roles: []string{RoleManager}, OrgID: "A"}, Scope{OrgID: "B"}, false},
		{"actor without org", &Actor{ID: "u", Roles: []string{RoleManager}}, Scope{OrgID: "B"}, false},
		{"unscoped check", &Actor{ID: "u", Roles: []string{RoleManager}}, Scope{}, true},
		{"nil actor", nil, Scope{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.actor, PermStakeholderCreate, tc.scope); got != tc.want {
				t.Fatalf("Can()=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanRoleTable(t *testing.T) {
	contributor := &Actor{ID: "u", Roles: []string{RoleContributor}}
	if !Can(contributor, PermStakeholderUpdateStatus, Scope{}) {
		t.Fatalf("contributor should update status")
	}
	if Can(contributor, PermAuditView, Scope{}) {
		t.Fatalf("contributor should not view audit")
	}
	manager := &Actor{ID: "u", Roles: []string{RoleViewer, RoleManager}}
	if !Can(manager, PermAuditView, Scope{}) {
		t.Fatalf("any matching role should allow")
	}
	if Can(manager, PermManageUsers, Scope{}) {
		t.Fatalf("manager should not manage users")
	}
}
