// Package leads is the lead registry: intake, edits with status-transition
// checks, and the deletion guard. Pipeline side effects on lead status live in
// the pipeline engine, not here.
package leads

import (
	"errors"

	"isp-crm/internal/apperr"
	"isp-crm/internal/authz"
	"isp-crm/internal/models"

	"gorm.io/gorm"
)

type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

type CreateInput struct {
	Name        string
	CompanyName string
	Email       string
	Phone       string
	Address     string
	Notes       string
	AssignedTo  *uint
}

type UpdateInput struct {
	Name        string
	CompanyName string
	Email       string
	Phone       string
	Address     string
	Notes       string
	Status      models.LeadStatus
	AssignedTo  *uint
}

func (r *Registry) Create(actor models.User, in CreateInput) (*models.Lead, error) {
	if !authz.CanPerform(actor.Role, authz.LeadCreate, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not create leads", actor.Role)
	}
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Address == "" {
		return nil, apperr.Validationf("name, email, phone and address are required")
	}
	if err := r.checkAssignee(in.AssignedTo); err != nil {
		return nil, err
	}

	lead := models.Lead{
		Name:        in.Name,
		CompanyName: in.CompanyName,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		Notes:       in.Notes,
		Status:      models.LeadNew,
		AssignedTo:  in.AssignedTo,
	}
	if err := r.db.Create(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validationf("lead email %s is already registered", in.Email)
		}
		return nil, err
	}
	return &lead, nil
}

func (r *Registry) Update(actor models.User, id uint, in UpdateInput) (*models.Lead, error) {
	lead, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if !authz.CanPerform(actor.Role, authz.LeadUpdate, ownerID(lead.AssignedTo), actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not edit lead %d", actor.Role, id)
	}
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Address == "" {
		return nil, apperr.Validationf("name, email, phone and address are required")
	}
	status := in.Status
	if status == "" {
		status = lead.Status
	}
	if !models.ValidLeadStatus(status) {
		return nil, apperr.Validationf("unknown lead status %q", status)
	}
	if status != lead.Status && !models.LeadTransitions[lead.Status][status] {
		return nil, apperr.InvalidStatef("lead %d cannot move from %s to %s", id, lead.Status, status)
	}
	if err := r.checkAssignee(in.AssignedTo); err != nil {
		return nil, err
	}

	lead.Name = in.Name
	lead.CompanyName = in.CompanyName
	lead.Email = in.Email
	lead.Phone = in.Phone
	lead.Address = in.Address
	lead.Notes = in.Notes
	lead.Status = status
	lead.AssignedTo = in.AssignedTo

	if err := r.db.Save(lead).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validationf("lead email %s is already registered", in.Email)
		}
		return nil, err
	}
	return lead, nil
}

// Delete removes a lead that never entered the pipeline. Leads with projects
// or a customer behind them stay.
func (r *Registry) Delete(actor models.User, id uint) error {
	lead, err := r.Get(id)
	if err != nil {
		return err
	}
	if !authz.CanPerform(actor.Role, authz.LeadDelete, ownerID(lead.AssignedTo), actor.ID) {
		return apperr.Forbiddenf("role %s may not delete lead %d", actor.Role, id)
	}
	if lead.Status == models.LeadConverted {
		return apperr.InvalidStatef("lead %d is converted and cannot be deleted", id)
	}
	var projects int64
	if err := r.db.Model(&models.Project{}).Where("lead_id = ?", id).Count(&projects).Error; err != nil {
		return err
	}
	if projects > 0 {
		return apperr.InvalidStatef("lead %d has %d project(s) and cannot be deleted", id, projects)
	}
	return r.db.Delete(&models.Lead{}, id).Error
}

func (r *Registry) Get(id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := r.db.Preload("Assignee").Preload("Projects").First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("lead %d", id)
		}
		return nil, err
	}
	return &lead, nil
}

type ListFilter struct {
	Search  string
	Status  models.LeadStatus
	Page    int
	PerPage int
}

// List returns a filtered page. Sales staff see their own and unassigned
// leads only.
func (r *Registry) List(actor models.User, f ListFilter) ([]models.Lead, int64, error) {
	q := r.db.Model(&models.Lead{}).Preload("Assignee")

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR email LIKE ? OR company_name LIKE ?", pattern, pattern, pattern)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if actor.Role == models.RoleSales {
		q = q.Where("assigned_to = ? OR assigned_to IS NULL", actor.ID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var leads []models.Lead
	err := q.Order("created_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&leads).Error
	return leads, total, err
}

func (r *Registry) checkAssignee(id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := r.db.Model(&models.User{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Validationf("assignee %d does not exist", *id)
	}
	return nil
}

func ownerID(assignedTo *uint) uint {
	if assignedTo == nil {
		return 0
	}
	return *assignedTo
}
