// Package authz is the single capability table for the whole service. Every
// mutating pipeline/account operation asks CanPerform before touching the
// database; route-level role middleware is derived from the same table.
package authz

import "isp-crm/internal/models"

type Action string

const (
	LeadCreate Action = "lead.create"
	LeadUpdate Action = "lead.update"
	LeadDelete Action = "lead.delete"

	ProjectCreate  Action = "project.create"
	ProjectUpdate  Action = "project.update"
	ProjectDelete  Action = "project.delete"
	ProjectApprove Action = "project.approve"
	ProjectReject  Action = "project.reject"
	ProjectConvert Action = "project.convert"

	CustomerUpdate Action = "customer.update"
	ServiceManage  Action = "customer.service.manage"
	ProductManage  Action = "product.manage"
	UserManage     Action = "user.manage"
	AuditView      Action = "audit.view"
)

type permission struct {
	allowed   bool
	ownerOnly bool // actor must own the resource (or the resource is unowned)
	strict    bool // with ownerOnly: an unowned resource does not pass
}

var rules = map[models.UserRole]map[Action]permission{
	models.RoleAdmin: {
		LeadCreate: {allowed: true}, LeadUpdate: {allowed: true}, LeadDelete: {allowed: true},
		ProjectCreate: {allowed: true}, ProjectUpdate: {allowed: true}, ProjectDelete: {allowed: true},
		ProjectApprove: {allowed: true}, ProjectReject: {allowed: true}, ProjectConvert: {allowed: true},
		CustomerUpdate: {allowed: true}, ServiceManage: {allowed: true},
		ProductManage: {allowed: true}, UserManage: {allowed: true}, AuditView: {allowed: true},
	},
	models.RoleManager: {
		LeadCreate: {allowed: true}, LeadUpdate: {allowed: true}, LeadDelete: {allowed: true},
		ProjectCreate: {allowed: true}, ProjectUpdate: {allowed: true}, ProjectDelete: {allowed: true},
		ProjectApprove: {allowed: true}, ProjectReject: {allowed: true}, ProjectConvert: {allowed: true},
		CustomerUpdate: {allowed: true}, ServiceManage: {allowed: true},
		ProductManage: {allowed: true}, AuditView: {allowed: true},
	},
	models.RoleSales: {
		LeadCreate: {allowed: true},
		LeadUpdate: {allowed: true, ownerOnly: true},
		LeadDelete: {allowed: true, ownerOnly: true},

		ProjectCreate: {allowed: true, ownerOnly: true},
		ProjectUpdate: {allowed: true, ownerOnly: true},
		ProjectDelete: {allowed: true, ownerOnly: true},
		// conversion mints a customer; an unassigned project is not enough
		ProjectConvert: {allowed: true, ownerOnly: true, strict: true},
	},
}

// CanPerform checks the capability table. ownerID is zero when the resource
// has no owner; owner-only permissions accept unowned resources so sales
// staff can pick up unassigned leads, except strict entries, which demand an
// actual assignment.
func CanPerform(role models.UserRole, action Action, ownerID, actorID uint) bool {
	perm, ok := rules[role][action]
	if !ok || !perm.allowed {
		return false
	}
	if perm.ownerOnly {
		if perm.strict {
			return ownerID != 0 && ownerID == actorID
		}
		return ownerID == 0 || ownerID == actorID
	}
	return true
}

// RolesFor lists the roles holding an action at all, ignoring ownership. The
// router uses it to build role middleware from the same table the engine
// consults.
func RolesFor(action Action) []models.UserRole {
	var roles []models.UserRole
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleManager, models.RoleSales} {
		if perm, ok := rules[role][action]; ok && perm.allowed {
			roles = append(roles, role)
		}
	}
	return roles
}
