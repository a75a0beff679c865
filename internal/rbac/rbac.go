// Package rbac holds the role/action matrix gating API operations.
package rbac

type Role string

type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

var grants = map[Role]map[Action]bool{
	RoleViewer: {
		ActionRead: true,
	},
	RoleEditor: {
		ActionRead:  true,
		ActionWrite: true,
	},
	RoleAdmin: {
		ActionRead:  true,
		ActionWrite: true,
		ActionAdmin: true,
	},
}

// Can reports whether role may perform action. Unknown roles get viewer
// access.
func Can(role Role, action Action) bool {
	actions, ok := grants[role]
	if !ok {
		actions = grants[RoleViewer]
	}
	return actions[action]
}
