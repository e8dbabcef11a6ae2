package view

import (
	"testing"

	"letterdesk/api/internal/rbac"
)

func TestInitialStateIsGuest(t *testing.T) {
	if Initial() != StateGuest {
		t.Fatalf("Initial() = %q, want %q", Initial(), StateGuest)
	}
}

func TestAuthenticatedTransition(t *testing.T) {
	cases := []struct {
		name string
		role rbac.Role
		want State
	}{
		{name: "admin lands on authoring", role: rbac.RoleAdmin, want: StateAuthoring},
		{name: "editor lands on authoring", role: rbac.RoleEditor, want: StateAuthoring},
		{name: "user lands on guest", role: rbac.RoleUser, want: StateGuest},
		{name: "viewer lands on guest", role: rbac.RoleViewer, want: StateGuest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, effects := Next(StateLogin, tc.role, Event{Kind: EventAuthenticated})
			if next != tc.want {
				t.Fatalf("Next() = %q, want %q", next, tc.want)
			}
			assertSingleShow(t, effects, tc.want)
			if !hasEffect(effects, EffectReloadLetters) {
				t.Fatalf("expected reload effect after authentication")
			}
		})
	}
}

func TestLoggedOutReturnsToGuest(t *testing.T) {
	next, effects := Next(StateAuthoring, rbac.RoleAdmin, Event{Kind: EventLoggedOut})
	if next != StateGuest {
		t.Fatalf("Next() = %q, want %q", next, StateGuest)
	}
	assertSingleShow(t, effects, StateGuest)
}

func TestNavigateRespectsRoleGates(t *testing.T) {
	cases := []struct {
		name    string
		role    rbac.Role
		target  State
		allowed bool
	}{
		{name: "user opens login", role: rbac.RoleUser, target: StateLogin, allowed: true},
		{name: "user opens registration", role: rbac.RoleUser, target: StateRegistration, allowed: true},
		{name: "user denied authoring", role: rbac.RoleUser, target: StateAuthoring, allowed: false},
		{name: "viewer denied role management", role: rbac.RoleViewer, target: StateRoleManagement, allowed: false},
		{name: "editor opens authoring", role: rbac.RoleEditor, target: StateAuthoring, allowed: true},
		{name: "editor denied role management", role: rbac.RoleEditor, target: StateRoleManagement, allowed: false},
		{name: "admin opens role management", role: rbac.RoleAdmin, target: StateRoleManagement, allowed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			const current = StateGuest
			next, effects := Next(current, tc.role, Event{Kind: EventNavigate, Target: tc.target})
			if tc.allowed {
				if next != tc.target {
					t.Fatalf("Next() = %q, want %q", next, tc.target)
				}
				assertSingleShow(t, effects, tc.target)
				return
			}
			if next != current {
				t.Fatalf("denied navigation changed state to %q", next)
			}
			if !hasEffect(effects, EffectDenied) {
				t.Fatalf("expected denied effect, got %+v", effects)
			}
			if hasEffect(effects, EffectShow) {
				t.Fatalf("denied navigation must not show a section")
			}
		})
	}
}

func TestNavigateRejectsUnknownTarget(t *testing.T) {
	next, effects := Next(StateGuest, rbac.RoleAdmin, Event{Kind: EventNavigate, Target: State("settings")})
	if next != StateGuest {
		t.Fatalf("unknown target changed state to %q", next)
	}
	if !hasEffect(effects, EffectDenied) {
		t.Fatalf("expected denied effect for unknown target")
	}
}

// assertSingleShow enforces the exactly-one-visible invariant: a transition
// emits one show effect, for the destination section.
func assertSingleShow(t *testing.T, effects []Effect, want State) {
	t.Helper()
	shows := 0
	for _, effect := range effects {
		if effect.Kind == EffectShow {
			shows++
			if effect.Section != want {
				t.Fatalf("show effect for %q, want %q", effect.Section, want)
			}
		}
	}
	if shows != 1 {
		t.Fatalf("expected exactly one show effect, got %d", shows)
	}
}

func hasEffect(effects []Effect, kind EffectKind) bool {
	for _, effect := range effects {
		if effect.Kind == kind {
			return true
		}
	}
	return false
}
