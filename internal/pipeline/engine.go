// Package pipeline is the conversion engine: it turns leads into proposals,
// runs the proposal status machine, and converts approved proposals into
// customer accounts. Every multi-row write happens in one transaction, and
// status transitions go through a conditional update so concurrent callers
// cannot both win.
package pipeline

import (
	"errors"
	"time"

	"isp-crm/internal/apperr"
	"isp-crm/internal/authz"
	"isp-crm/internal/models"

	"gorm.io/gorm"
)

type Engine struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type LineInput struct {
	ProductID uint    `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type CreateInput struct {
	Name       string
	LeadID     uint
	AssignedTo *uint
	Notes      string
	Lines      []LineInput
}

type UpdateInput struct {
	Name       string
	AssignedTo *uint
	Notes      string
	Lines      []LineInput
}

// CreateProject opens a pending proposal for a lead. The line prices are
// copied in as frozen snapshots, and the lead advances to the proposal stage
// unless it is already further along the funnel.
func (e *Engine) CreateProject(actor models.User, in CreateInput) (*models.Project, error) {
	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, apperr.Validationf("project name is required")
	}

	var projectID uint
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.First(&lead, in.LeadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("lead %d", in.LeadID)
			}
			return err
		}
		if !authz.CanPerform(actor.Role, authz.ProjectCreate, deref(lead.AssignedTo), actor.ID) {
			return apperr.Forbiddenf("role %s may not open a project for lead %d", actor.Role, in.LeadID)
		}
		if lead.Status == models.LeadConverted {
			return apperr.InvalidStatef("lead %d is already converted", in.LeadID)
		}

		assignedTo := in.AssignedTo
		if assignedTo == nil {
			id := actor.ID
			assignedTo = &id
		} else if err := checkUserExists(tx, *assignedTo); err != nil {
			return err
		}

		lines, err := buildLines(tx, in.Lines)
		if err != nil {
			return err
		}

		project := models.Project{
			Name:       in.Name,
			Status:     models.ProjectPending,
			Notes:      in.Notes,
			LeadID:     lead.ID,
			AssignedTo: assignedTo,
			Lines:      lines,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		projectID = project.ID

		if models.CanAdvanceLead(lead.Status, models.LeadProposal) {
			if err := tx.Model(&lead).Update("status", models.LeadProposal).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetProject(projectID)
}

// UpdateProject replaces the proposal's fields and its full line set. Only
// pending proposals can change; the line sync diffs by product so unchanged
// snapshots are left untouched and nothing is detached mid-flight.
func (e *Engine) UpdateProject(actor models.User, id uint, in UpdateInput) (*models.Project, error) {
	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, apperr.Validationf("project name is required")
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Preload("Lines").First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("project %d", id)
			}
			return err
		}
		if !authz.CanPerform(actor.Role, authz.ProjectUpdate, deref(project.AssignedTo), actor.ID) {
			return apperr.Forbiddenf("role %s may not edit project %d", actor.Role, id)
		}
		if project.Status != models.ProjectPending {
			return apperr.InvalidStatef("project %d is %s; only pending projects can be edited", id, project.Status)
		}
		if in.AssignedTo != nil {
			if err := checkUserExists(tx, *in.AssignedTo); err != nil {
				return err
			}
		}

		if err := tx.Model(&project).Updates(map[string]any{
			"name":        in.Name,
			"assigned_to": in.AssignedTo,
			"notes":       in.Notes,
		}).Error; err != nil {
			return err
		}

		return syncLines(tx, &project, in.Lines)
	})
	if err != nil {
		return nil, err
	}
	return e.GetProject(id)
}

// DeleteProject removes a pending proposal and its lines.
func (e *Engine) DeleteProject(actor models.User, id uint) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("project %d", id)
			}
			return err
		}
		if !authz.CanPerform(actor.Role, authz.ProjectDelete, deref(project.AssignedTo), actor.ID) {
			return apperr.Forbiddenf("role %s may not delete project %d", actor.Role, id)
		}
		if project.Status != models.ProjectPending {
			return apperr.InvalidStatef("project %d is %s; only pending projects can be deleted", id, project.Status)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}

// Approve moves a pending proposal to approved and stamps the approver. The
// status write is conditional on the row still being pending, so of two
// racing approve/reject calls exactly one survives.
func (e *Engine) Approve(actor models.User, id uint) (*models.Project, error) {
	if !authz.CanPerform(actor.Role, authz.ProjectApprove, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not approve projects", actor.Role)
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.transition(tx, id, models.ProjectPending, models.ProjectApproved, map[string]any{
			"approved_by": actor.ID,
			"approved_at": e.now(),
		}); err != nil {
			return err
		}

		// lead moves to negotiation, but never backwards
		var project models.Project
		if err := tx.Preload("Lead").First(&project, id).Error; err != nil {
			return err
		}
		if project.Lead != nil && models.CanAdvanceLead(project.Lead.Status, models.LeadNegotiation) {
			if err := tx.Model(project.Lead).Update("status", models.LeadNegotiation).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetProject(id)
}

// Reject moves a pending proposal to rejected and writes the lead off as
// lost, unless the lead already left the funnel.
func (e *Engine) Reject(actor models.User, id uint) (*models.Project, error) {
	if !authz.CanPerform(actor.Role, authz.ProjectReject, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not reject projects", actor.Role)
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.transition(tx, id, models.ProjectPending, models.ProjectRejected, nil); err != nil {
			return err
		}

		var project models.Project
		if err := tx.Preload("Lead").First(&project, id).Error; err != nil {
			return err
		}
		if project.Lead != nil && models.LeadInFunnel(project.Lead.Status) {
			if err := tx.Model(project.Lead).Update("status", models.LeadLost).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetProject(id)
}

// Convert turns an approved proposal into a customer account: one customer
// from the lead's contact details, one active service per line (keeping the
// frozen prices), lead converted, project completed. All of it commits or
// none of it does, and a second call on the same project fails the
// conditional status update instead of minting another customer.
func (e *Engine) Convert(actor models.User, id uint) (*models.Customer, error) {
	var customerID uint
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Preload("Lead").Preload("Lines").First(&project, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("project %d", id)
			}
			return err
		}
		if !authz.CanPerform(actor.Role, authz.ProjectConvert, deref(project.AssignedTo), actor.ID) {
			return apperr.Forbiddenf("role %s may not convert project %d", actor.Role, id)
		}
		if project.Lead == nil {
			return apperr.NotFoundf("lead for project %d", id)
		}

		if err := e.transition(tx, id, models.ProjectApproved, models.ProjectCompleted, nil); err != nil {
			return err
		}

		lead := project.Lead
		startDate := e.now()
		services := make([]models.CustomerService, 0, len(project.Lines))
		for _, line := range project.Lines {
			services = append(services, models.CustomerService{
				ProductID: line.ProductID,
				Price:     line.Price,
				StartDate: startDate,
				Status:    models.ServiceActive,
			})
		}

		customer := models.Customer{
			Name:        lead.Name,
			CompanyName: lead.CompanyName,
			Email:       lead.Email,
			Phone:       lead.Phone,
			Address:     lead.Address,
			LeadID:      &lead.ID,
			ProjectID:   &project.ID,
			IsActive:    true,
			Services:    services,
		}
		if err := tx.Create(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflictf("customer with email %s or a colliding account code already exists", lead.Email)
			}
			return err
		}
		customerID = customer.ID

		return tx.Model(lead).Update("status", models.LeadConverted).Error
	})
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	if err := e.db.Preload("Lead").Preload("Project").Preload("Services.Product").First(&customer, customerID).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (e *Engine) GetProject(id uint) (*models.Project, error) {
	var project models.Project
	err := e.db.Preload("Lead").Preload("Assignee").Preload("Approver").
		Preload("Lines.Product").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("project %d", id)
		}
		return nil, err
	}
	return &project, nil
}

type ListFilter struct {
	Search  string
	Status  models.ProjectStatus
	LeadID  uint
	Page    int
	PerPage int
}

// ListProjects returns a filtered page. Sales staff only see their own.
func (e *Engine) ListProjects(actor models.User, f ListFilter) ([]models.Project, int64, error) {
	q := e.db.Model(&models.Project{}).Preload("Lead").Preload("Assignee").Preload("Approver")

	if f.Search != "" {
		q = q.Where("name LIKE ?", "%"+f.Search+"%")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.LeadID != 0 {
		q = q.Where("lead_id = ?", f.LeadID)
	}
	if actor.Role == models.RoleSales {
		q = q.Where("assigned_to = ?", actor.ID)
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

	var projects []models.Project
	err := q.Order("created_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&projects).Error
	return projects, total, err
}

// transition moves a project's status from from to to with a conditional
// update, refusing pairs outside models.ProjectTransitions. extra fields are
// written with the status in the same statement.
func (e *Engine) transition(tx *gorm.DB, id uint, from, to models.ProjectStatus, extra map[string]any) error {
	if !models.ProjectTransitions[from][to] {
		return apperr.InvalidStatef("a project cannot move from %s to %s", from, to)
	}

	updates := map[string]any{"status": to}
	for col, val := range extra {
		updates[col] = val
	}

	res := tx.Model(&models.Project{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return e.statusMismatch(tx, id, from)
	}
	return nil
}

// statusMismatch explains a failed conditional status update: either the row
// is gone or another caller already moved it.
func (e *Engine) statusMismatch(tx *gorm.DB, id uint, want models.ProjectStatus) error {
	var project models.Project
	if err := tx.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("project %d", id)
		}
		return err
	}
	return apperr.InvalidStatef("project %d is %s, not %s", id, project.Status, want)
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return apperr.Validationf("a project needs at least one product line")
	}
	seen := make(map[uint]bool, len(lines))
	for i, line := range lines {
		if line.ProductID == 0 {
			return apperr.Validationf("line %d: product is required", i+1)
		}
		if seen[line.ProductID] {
			return apperr.Validationf("product %d appears more than once", line.ProductID)
		}
		seen[line.ProductID] = true
		if line.Quantity < 1 {
			return apperr.Validationf("line %d: quantity must be at least 1", i+1)
		}
		if line.Price < 0 {
			return apperr.Validationf("line %d: price must not be negative", i+1)
		}
	}
	return nil
}

// buildLines resolves the selected products and freezes the given prices.
// Only active catalog entries may be newly selected.
func buildLines(tx *gorm.DB, in []LineInput) ([]models.ProjectLine, error) {
	lines := make([]models.ProjectLine, 0, len(in))
	for _, l := range in {
		var product models.Product
		if err := tx.First(&product, l.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFoundf("product %d", l.ProductID)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, apperr.Validationf("product %q is no longer offered", product.Name)
		}
		lines = append(lines, models.ProjectLine{
			ProductID: product.ID,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
	}
	return lines, nil
}

// syncLines reconciles the stored line set with the requested one inside the
// caller's transaction: changed lines are updated in place, new products
// appended, dropped products removed. Prices of kept lines are overwritten
// with the request's values, which is how edits re-freeze a snapshot.
func syncLines(tx *gorm.DB, project *models.Project, in []LineInput) error {
	existing := make(map[uint]models.ProjectLine, len(project.Lines))
	for _, line := range project.Lines {
		existing[line.ProductID] = line
	}

	keep := make(map[uint]bool, len(in))
	for _, l := range in {
		keep[l.ProductID] = true

		if cur, ok := existing[l.ProductID]; ok {
			if cur.Price == l.Price && cur.Quantity == l.Quantity {
				continue
			}
			if err := tx.Model(&models.ProjectLine{}).Where("id = ?", cur.ID).
				Updates(map[string]any{"price": l.Price, "quantity": l.Quantity}).Error; err != nil {
				return err
			}
			continue
		}

		added, err := buildLines(tx, []LineInput{l})
		if err != nil {
			return err
		}
		added[0].ProjectID = project.ID
		if err := tx.Create(&added[0]).Error; err != nil {
			return err
		}
	}

	for productID, line := range existing {
		if keep[productID] {
			continue
		}
		if err := tx.Delete(&models.ProjectLine{}, line.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

func checkUserExists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Validationf("assignee %d does not exist", id)
	}
	return nil
}

func deref(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
