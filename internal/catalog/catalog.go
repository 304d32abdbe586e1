// Package catalog holds the product plans. Read-mostly: the pipeline and
// account stores only consult it to validate references and pull display
// prices, never to rewrite frozen snapshots.
package catalog

import (
	"errors"

	"isp-crm/internal/apperr"
	"isp-crm/internal/authz"
	"isp-crm/internal/models"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("product %d", id)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListActive() ([]models.Product, error) {
	var products []models.Product
	err := s.db.Where("is_active = ?", true).Order("name asc").Find(&products).Error
	return products, err
}

type ListFilter struct {
	Search string
	Type   models.ProductType
}

func (s *Store) List(f ListFilter) ([]models.Product, error) {
	q := s.db.Model(&models.Product{})
	if f.Search != "" {
		q = q.Where("name LIKE ?", "%"+f.Search+"%")
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var products []models.Product
	err := q.Order("name asc").Find(&products).Error
	return products, err
}

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Speed       string
	Type        models.ProductType
	IsActive    bool
}

func (s *Store) Create(actor models.User, in ProductInput) (*models.Product, error) {
	if !authz.CanPerform(actor.Role, authz.ProductManage, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not manage products", actor.Role)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	product := models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Speed:       in.Speed,
		Type:        in.Type,
		IsActive:    in.IsActive,
	}
	if err := s.db.Create(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validationf("product name %q is taken", in.Name)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) Update(actor models.User, id uint, in ProductInput) (*models.Product, error) {
	if !authz.CanPerform(actor.Role, authz.ProductManage, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not manage products", actor.Role)
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Description = in.Description
	product.Price = in.Price
	product.Speed = in.Speed
	product.Type = in.Type
	product.IsActive = in.IsActive

	if err := s.db.Save(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validationf("product name %q is taken", in.Name)
		}
		return nil, err
	}
	return product, nil
}

// Delete refuses while any project line or customer service still references
// the product; frozen history must survive. Deactivate instead.
func (s *Store) Delete(actor models.User, id uint) error {
	if !authz.CanPerform(actor.Role, authz.ProductManage, 0, actor.ID) {
		return apperr.Forbiddenf("role %s may not manage products", actor.Role)
	}
	if _, err := s.Get(id); err != nil {
		return err
	}

	var lines int64
	if err := s.db.Model(&models.ProjectLine{}).Where("product_id = ?", id).Count(&lines).Error; err != nil {
		return err
	}
	var services int64
	if err := s.db.Model(&models.CustomerService{}).Where("product_id = ?", id).Count(&services).Error; err != nil {
		return err
	}
	if lines > 0 || services > 0 {
		return apperr.InvalidStatef("product %d is referenced by %d line(s) and %d service(s); deactivate it instead", id, lines, services)
	}

	return s.db.Delete(&models.Product{}, id).Error
}

func validateInput(in ProductInput) error {
	if in.Name == "" {
		return apperr.Validationf("product name is required")
	}
	if in.Price < 0 {
		return apperr.Validationf("product price must not be negative")
	}
	if !models.ValidProductType(in.Type) {
		return apperr.Validationf("unknown product type %q", in.Type)
	}
	return nil
}
