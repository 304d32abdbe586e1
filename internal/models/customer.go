package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

type ServiceStatus string

const (
	ServiceActive     ServiceStatus = "active"
	ServiceSuspended  ServiceStatus = "suspended"
	ServiceTerminated ServiceStatus = "terminated"
)

func ValidServiceStatus(s ServiceStatus) bool {
	switch s {
	case ServiceActive, ServiceSuspended, ServiceTerminated:
		return true
	}
	return false
}

const accountCodePrefix = "CUST-"

type Customer struct {
	gorm.Model
	Name        string `gorm:"size:255;not null" json:"name"`
	CompanyName string `gorm:"size:255" json:"company_name"`
	Email       string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone       string `gorm:"size:20;not null" json:"phone"`
	Address     string `gorm:"type:text;not null" json:"address"`

	// Provenance only. The customer outlives its lead and project.
	LeadID    *uint    `json:"lead_id"`
	Lead      *Lead    `gorm:"constraint:OnDelete:SET NULL" json:"lead,omitempty"`
	ProjectID *uint    `json:"project_id"`
	Project   *Project `gorm:"constraint:OnDelete:SET NULL" json:"project,omitempty"`

	AccountCode string `gorm:"uniqueIndex;size:20;not null" json:"account_code"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`

	Services []CustomerService `gorm:"constraint:OnDelete:CASCADE" json:"services,omitempty"`
}

// BeforeCreate assigns the next account code. Codes increase monotonically
// from the latest issued one; the unique index catches a lost race on
// concurrent creates, failing the surrounding transaction.
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.AccountCode != "" {
		return nil
	}
	var last Customer
	seq := 0
	err := tx.Unscoped().Order("id desc").Select("account_code").First(&last).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == nil {
		if n, perr := strconv.Atoi(strings.TrimPrefix(last.AccountCode, accountCodePrefix)); perr == nil {
			seq = n
		}
	}
	c.AccountCode = fmt.Sprintf("%s%06d", accountCodePrefix, seq+1)
	return nil
}

// CustomerService is one subscribed product on an account, with its own
// price snapshot and date range independent of the catalog entry.
type CustomerService struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerID uint     `gorm:"not null;index" json:"customer_id"`
	ProductID  uint     `gorm:"not null;index" json:"product_id"`
	Product    *Product `json:"product,omitempty"`

	Price     float64       `gorm:"not null" json:"price"`
	StartDate time.Time     `gorm:"not null" json:"start_date"`
	EndDate   *time.Time    `json:"end_date"`
	Status    ServiceStatus `gorm:"type:varchar(20);not null;default:active" json:"status"`
}
