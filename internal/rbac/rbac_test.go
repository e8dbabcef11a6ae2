package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "user read", role: RoleUser, action: ActionRead, allow: true},
		{name: "user write", role: RoleUser, action: ActionWrite, allow: false},
		{name: "user export docx", role: RoleUser, action: ActionExportDOCX, allow: false},
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer delete", role: RoleViewer, action: ActionDelete, allow: false},
		{name: "editor write", role: RoleEditor, action: ActionWrite, allow: true},
		{name: "editor delete", role: RoleEditor, action: ActionDelete, allow: true},
		{name: "editor export docx", role: RoleEditor, action: ActionExportDOCX, allow: true},
		{name: "editor manage roles", role: RoleEditor, action: ActionManageRoles, allow: false},
		{name: "admin manage roles", role: RoleAdmin, action: ActionManageRoles, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalizeDefaultsToUser(t *testing.T) {
	if got := Normalize(""); got != RoleUser {
		t.Fatalf("Normalize(\"\") = %q, want %q", got, RoleUser)
	}
	if got := Normalize("superuser"); got != RoleUser {
		t.Fatalf("Normalize(\"superuser\") = %q, want %q", got, RoleUser)
	}
	if got := Normalize("viewer"); got != RoleViewer {
		t.Fatalf("Normalize(\"viewer\") = %q, want %q", got, RoleViewer)
	}
}

func TestAssignable(t *testing.T) {
	for _, role := range []string{"viewer", "user", "editor", "admin"} {
		if !Assignable(role) {
			t.Fatalf("expected %q to be assignable", role)
		}
	}
	if Assignable("owner") {
		t.Fatalf("expected owner to be rejected")
	}
	if Assignable("") {
		t.Fatalf("expected blank role to be rejected")
	}
}
