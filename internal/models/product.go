package models

import "gorm.io/gorm"

type ProductType string

const (
	ProductResidential ProductType = "Residential"
	ProductBusiness    ProductType = "Business"
	ProductEnterprise  ProductType = "Enterprise"
)

func ValidProductType(t ProductType) bool {
	switch t {
	case ProductResidential, ProductBusiness, ProductEnterprise:
		return true
	}
	return false
}

type Product struct {
	gorm.Model
	Name        string      `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Price       float64     `gorm:"not null" json:"price"`
	Speed       string      `gorm:"size:50" json:"speed"`
	Type        ProductType `gorm:"type:varchar(20);not null" json:"type"`
	IsActive    bool        `gorm:"not null;default:true" json:"is_active"`
}
