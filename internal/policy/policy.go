// Package policy holds the role and ownership rules for issues. Handlers and
// services ask Evaluate instead of comparing roles themselves.
package policy

import "issueInsightsTracker/models"

// Action is something a user attempts on an issue.
type Action string

const (
	ActionRead         Action = "read"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionChangeStatus Action = "change_status"
	ActionDelete       Action = "delete"
	ActionViewHistory  Action = "view_history"
)

// Decision is the outcome of Evaluate. Reason is set when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

// Scope is the set of issues a role may list.
type Scope int

const (
	ScopeOwn Scope = iota
	ScopeAll
)

var (
	allow          = Decision{Allowed: true}
	denyAccess     = Decision{Reason: "Access denied"}
	denyStatus     = Decision{Reason: "Reporters cannot change issue status"}
	denyPermission = Decision{Reason: "Not enough permissions"}
)

// Evaluate decides whether role may perform action on an issue. owns reports
// whether the caller owns the issue and is ignored for ActionCreate.
func Evaluate(role models.Role, owns bool, action Action) Decision {
	switch role {
	case models.RoleAdmin:
		return allow
	case models.RoleMaintainer:
		switch action {
		case ActionDelete:
			return denyPermission
		default:
			return allow
		}
	case models.RoleReporter:
		switch action {
		case ActionCreate:
			return allow
		case ActionRead, ActionUpdate:
			if owns {
				return allow
			}
			return denyAccess
		case ActionChangeStatus:
			return denyStatus
		default:
			return denyPermission
		}
	}
	return denyPermission
}

// ListScope returns which issues role sees in listings and the dashboard.
func ListScope(role models.Role) Scope {
	switch role {
	case models.RoleAdmin, models.RoleMaintainer:
		return ScopeAll
	default:
		return ScopeOwn
	}
}
