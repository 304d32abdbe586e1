package models

import "gorm.io/gorm"

type LeadStatus string

const (
	LeadNew         LeadStatus = "new"
	LeadContacted   LeadStatus = "contacted"
	LeadQualified   LeadStatus = "qualified"
	LeadProposal    LeadStatus = "proposal"
	LeadNegotiation LeadStatus = "negotiation"
	LeadLost        LeadStatus = "lost"
	LeadConverted   LeadStatus = "converted"
)

// funnelRank orders the live funnel stages so pipeline side effects only ever
// advance a lead. lost and converted sit outside the funnel and are never
// overwritten by an advance.
var funnelRank = map[LeadStatus]int{
	LeadNew:         0,
	LeadContacted:   1,
	LeadQualified:   2,
	LeadProposal:    3,
	LeadNegotiation: 4,
}

func ValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadNegotiation, LeadLost, LeadConverted:
		return true
	}
	return false
}

// LeadInFunnel reports whether the lead is still in a live funnel stage,
// i.e. neither lost nor converted.
func LeadInFunnel(s LeadStatus) bool {
	_, ok := funnelRank[s]
	return ok
}

// CanAdvanceLead reports whether a pipeline side effect may move a lead from
// cur to next. Terminal stages and anything at or past next stay put.
func CanAdvanceLead(cur, next LeadStatus) bool {
	curRank, ok := funnelRank[cur]
	if !ok {
		return false
	}
	nextRank, ok := funnelRank[next]
	if !ok {
		return false
	}
	return curRank < nextRank
}

// Allowed direct status edits on a lead. converted is reachable only through a
// project conversion and converted leads leave the registry's hands entirely.
var LeadTransitions = map[LeadStatus]map[LeadStatus]bool{
	LeadNew:         {LeadContacted: true, LeadQualified: true, LeadProposal: true, LeadLost: true},
	LeadContacted:   {LeadQualified: true, LeadProposal: true, LeadLost: true},
	LeadQualified:   {LeadContacted: true, LeadProposal: true, LeadLost: true},
	LeadProposal:    {LeadNegotiation: true, LeadLost: true},
	LeadNegotiation: {LeadProposal: true, LeadLost: true},
	LeadLost:        {LeadNew: true, LeadContacted: true},
	LeadConverted:   {},
}

type Lead struct {
	gorm.Model
	Name        string     `gorm:"size:255;not null" json:"name"`
	CompanyName string     `gorm:"size:255" json:"company_name"`
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone       string     `gorm:"size:20;not null" json:"phone"`
	Address     string     `gorm:"type:text;not null" json:"address"`
	Notes       string     `gorm:"type:text" json:"notes"`
	Status      LeadStatus `gorm:"type:varchar(20);not null;default:new" json:"status"`

	AssignedTo *uint `json:"assigned_to"`
	Assignee   *User `gorm:"foreignKey:AssignedTo;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`

	Projects []Project `json:"projects,omitempty"`
}
