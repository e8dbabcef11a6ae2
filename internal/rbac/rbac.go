package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead        Action = "read"
	ActionWrite       Action = "write"
	ActionDelete      Action = "delete"
	ActionExportDOCX  Action = "export-docx"
	ActionManageRoles Action = "manage-roles"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionDelete || action == ActionExportDOCX
	case RoleUser, RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown or blank roles to the default role. The stored
// viewer value is kept distinct even though its capabilities match user.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleUser, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Assignable reports whether role is a value an admin may assign.
func Assignable(role string) bool {
	switch Role(role) {
	case RoleViewer, RoleUser, RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}
