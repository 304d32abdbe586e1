package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectApproved   ProjectStatus = "approved"
	ProjectRejected   ProjectStatus = "rejected"
	ProjectInProgress ProjectStatus = "in_progress" // legacy value kept for old rows; no transition produces it
	ProjectCompleted  ProjectStatus = "completed"
)

// ProjectTransitions is the only status graph the pipeline engine honors.
// rejected and completed are terminal.
var ProjectTransitions = map[ProjectStatus]map[ProjectStatus]bool{
	ProjectPending:   {ProjectApproved: true, ProjectRejected: true},
	ProjectApproved:  {ProjectCompleted: true},
	ProjectRejected:  {},
	ProjectCompleted: {},
}

type Project struct {
	gorm.Model
	Name   string        `gorm:"size:255;not null" json:"name"`
	Status ProjectStatus `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	Notes  string        `gorm:"type:text" json:"notes"`

	LeadID uint  `gorm:"not null" json:"lead_id"`
	Lead   *Lead `gorm:"constraint:OnDelete:CASCADE" json:"lead,omitempty"`

	AssignedTo *uint `json:"assigned_to"`
	Assignee   *User `gorm:"foreignKey:AssignedTo;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`

	ApprovedBy *uint      `json:"approved_by"`
	Approver   *User      `gorm:"foreignKey:ApprovedBy;constraint:OnDelete:SET NULL" json:"approver,omitempty"`
	ApprovedAt *time.Time `json:"approved_at"`

	Lines []ProjectLine `gorm:"constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// ProjectLine is one product on a proposal. Price is a snapshot taken when the
// product was selected and never tracks the catalog price afterwards.
type ProjectLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint     `gorm:"not null;index" json:"project_id"`
	ProductID uint     `gorm:"not null;index" json:"product_id"`
	Product   *Product `json:"product,omitempty"`

	Price    float64 `gorm:"not null" json:"price"`
	Quantity int     `gorm:"not null;default:1" json:"quantity"`
}

// TotalPrice sums the frozen line snapshots.
func (p *Project) TotalPrice() float64 {
	var total float64
	for _, line := range p.Lines {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
