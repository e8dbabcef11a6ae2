// Package view models which page section is visible. Transitions are pure:
// Next never touches shared state, it returns the new state and the effects
// the caller must apply. Exactly one section is visible per state.
package view

import "letterdesk/api/internal/rbac"

type State string

const (
	StateGuest          State = "guest"
	StateLogin          State = "login"
	StateRegistration   State = "registration"
	StateAuthoring      State = "authoring"
	StateRoleManagement State = "role-management"
)

type EventKind string

const (
	EventAuthenticated EventKind = "authenticated"
	EventLoggedOut     EventKind = "logged-out"
	EventNavigate      EventKind = "navigate"
)

type Event struct {
	Kind   EventKind
	Target State
}

type EffectKind string

const (
	// EffectShow makes the named section visible and hides all others.
	EffectShow EffectKind = "show"
	// EffectReloadLetters tells the caller the listing must be refetched.
	EffectReloadLetters EffectKind = "reload-letters"
	// EffectDenied reports a navigation rejected by the caller's role.
	EffectDenied EffectKind = "denied"
)

type Effect struct {
	Kind    EffectKind
	Section State
}

func Initial() State {
	return StateGuest
}

// Valid reports whether s names a known state.
func Valid(s State) bool {
	switch s {
	case StateGuest, StateLogin, StateRegistration, StateAuthoring, StateRoleManagement:
		return true
	default:
		return false
	}
}

// Next computes the state transition for role. A rejected navigation keeps
// the current state and reports EffectDenied instead of a partial change.
func Next(current State, role rbac.Role, event Event) (State, []Effect) {
	switch event.Kind {
	case EventAuthenticated:
		if role == rbac.RoleAdmin || role == rbac.RoleEditor {
			return StateAuthoring, []Effect{
				{Kind: EffectShow, Section: StateAuthoring},
				{Kind: EffectReloadLetters},
			}
		}
		return StateGuest, []Effect{
			{Kind: EffectShow, Section: StateGuest},
			{Kind: EffectReloadLetters},
		}
	case EventLoggedOut:
		return StateGuest, []Effect{
			{Kind: EffectShow, Section: StateGuest},
			{Kind: EffectReloadLetters},
		}
	case EventNavigate:
		if !Valid(event.Target) {
			return current, []Effect{{Kind: EffectDenied, Section: event.Target}}
		}
		if !allowed(role, event.Target) {
			return current, []Effect{{Kind: EffectDenied, Section: event.Target}}
		}
		effects := []Effect{{Kind: EffectShow, Section: event.Target}}
		if event.Target == StateGuest || event.Target == StateAuthoring {
			effects = append(effects, Effect{Kind: EffectReloadLetters})
		}
		return event.Target, effects
	default:
		return current, nil
	}
}

func allowed(role rbac.Role, target State) bool {
	switch target {
	case StateAuthoring:
		return role == rbac.RoleAdmin || role == rbac.RoleEditor
	case StateRoleManagement:
		return role == rbac.RoleAdmin
	default:
		return true
	}
}
