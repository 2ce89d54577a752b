package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"issueInsightsTracker/models"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		role   models.Role
		owns   bool
		action Action
		want   bool
	}{
		{models.RoleAdmin, false, ActionDelete, true},
		{models.RoleAdmin, false, ActionChangeStatus, true},
		{models.RoleMaintainer, false, ActionRead, true},
		{models.RoleMaintainer, false, ActionUpdate, true},
		{models.RoleMaintainer, false, ActionChangeStatus, true},
		{models.RoleMaintainer, false, ActionViewHistory, true},
		{models.RoleMaintainer, true, ActionDelete, false},
		{models.RoleReporter, false, ActionCreate, true},
		{models.RoleReporter, true, ActionRead, true},
		{models.RoleReporter, false, ActionRead, false},
		{models.RoleReporter, true, ActionUpdate, true},
		{models.RoleReporter, false, ActionUpdate, false},
		{models.RoleReporter, true, ActionChangeStatus, false},
		{models.RoleReporter, true, ActionDelete, false},
		{models.RoleReporter, true, ActionViewHistory, false},
		{models.Role("ghost"), true, ActionRead, false},
	}
	for _, c := range cases {
		d := Evaluate(c.role, c.owns, c.action)
		assert.Equalf(t, c.want, d.Allowed, "%s owns=%v %s", c.role, c.owns, c.action)
		if !d.Allowed {
			assert.NotEmptyf(t, d.Reason, "%s %s should carry a reason", c.role, c.action)
		}
	}
}

func TestEvaluate_ReporterStatusReason(t *testing.T) {
	d := Evaluate(models.RoleReporter, true, ActionChangeStatus)
	assert.Equal(t, "Reporters cannot change issue status", d.Reason)
}

func TestListScope(t *testing.T) {
	assert.Equal(t, ScopeAll, ListScope(models.RoleAdmin))
	assert.Equal(t, ScopeAll, ListScope(models.RoleMaintainer))
	assert.Equal(t, ScopeOwn, ListScope(models.RoleReporter))
}
