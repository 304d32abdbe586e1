package authz

import (
	"testing"

	"isp-crm/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanPerform(t *testing.T) {
	const actor = uint(7)
	const stranger = uint(8)

	cases := []struct {
		name   string
		role   models.UserRole
		action Action
		owner  uint
		want   bool
	}{
		{"admin manages users", models.RoleAdmin, UserManage, 0, true},
		{"admin approves", models.RoleAdmin, ProjectApprove, 0, true},
		{"admin edits foreign project", models.RoleAdmin, ProjectUpdate, stranger, true},

		{"manager approves", models.RoleManager, ProjectApprove, 0, true},
		{"manager rejects", models.RoleManager, ProjectReject, 0, true},
		{"manager converts foreign project", models.RoleManager, ProjectConvert, stranger, true},
		{"manager manages catalog", models.RoleManager, ProductManage, 0, true},
		{"manager views audit log", models.RoleManager, AuditView, 0, true},
		{"manager may not manage users", models.RoleManager, UserManage, 0, false},

		{"sales creates leads", models.RoleSales, LeadCreate, 0, true},
		{"sales edits own lead", models.RoleSales, LeadUpdate, actor, true},
		{"sales edits unassigned lead", models.RoleSales, LeadUpdate, 0, true},
		{"sales may not edit foreign lead", models.RoleSales, LeadUpdate, stranger, false},
		{"sales may not delete foreign lead", models.RoleSales, LeadDelete, stranger, false},
		{"sales opens project on own lead", models.RoleSales, ProjectCreate, actor, true},
		{"sales may not open project on foreign lead", models.RoleSales, ProjectCreate, stranger, false},
		{"sales converts own project", models.RoleSales, ProjectConvert, actor, true},
		{"sales may not convert foreign project", models.RoleSales, ProjectConvert, stranger, false},
		{"sales may not convert unassigned project", models.RoleSales, ProjectConvert, 0, false},
		{"manager converts unassigned project", models.RoleManager, ProjectConvert, 0, true},
		{"sales may not approve", models.RoleSales, ProjectApprove, 0, false},
		{"sales may not approve own project either", models.RoleSales, ProjectApprove, actor, false},
		{"sales may not reject", models.RoleSales, ProjectReject, 0, false},
		{"sales may not edit customers", models.RoleSales, CustomerUpdate, 0, false},
		{"sales may not manage services", models.RoleSales, ServiceManage, 0, false},
		{"sales may not manage catalog", models.RoleSales, ProductManage, 0, false},
		{"sales may not view audit log", models.RoleSales, AuditView, 0, false},

		{"unknown role gets nothing", models.UserRole("guest"), LeadCreate, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanPerform(tc.role, tc.action, tc.owner, actor))
		})
	}
}

func TestRolesFor(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.UserRole{models.RoleAdmin, models.RoleManager},
		RolesFor(ProjectApprove))

	assert.ElementsMatch(t,
		[]models.UserRole{models.RoleAdmin},
		RolesFor(UserManage))

	// ownership narrows, but does not remove, the role from the route
	assert.ElementsMatch(t,
		[]models.UserRole{models.RoleAdmin, models.RoleManager, models.RoleSales},
		RolesFor(ProjectConvert))
}
