// Package accounts manages customer accounts and their service portfolio
// after conversion. Service rows carry their own price snapshots and date
// ranges; bulk changes are reconciled in one transaction.
package accounts

import (
	"errors"
	"time"

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

func (s *Store) GetCustomer(id uint) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Preload("Lead").Preload("Project").Preload("Services.Product").
		First(&customer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("customer %d", id)
		}
		return nil, err
	}
	return &customer, nil
}

type ListFilter struct {
	Search  string
	Active  *bool
	Page    int
	PerPage int
}

// ListCustomers returns a filtered page plus the active-service count per
// returned customer. The count is informational; nothing stops an account
// from running with zero active services.
func (s *Store) ListCustomers(f ListFilter) ([]models.Customer, map[uint]int64, int64, error) {
	q := s.db.Model(&models.Customer{}).Preload("Lead").Preload("Project")

	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(
			"name LIKE ? OR email LIKE ? OR company_name LIKE ? OR phone LIKE ? OR account_code LIKE ?",
			pattern, pattern, pattern, pattern, pattern,
		)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var customers []models.Customer
	if err := q.Order("created_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&customers).Error; err != nil {
		return nil, nil, 0, err
	}

	counts := make(map[uint]int64, len(customers))
	if len(customers) > 0 {
		ids := make([]uint, 0, len(customers))
		for _, c := range customers {
			ids = append(ids, c.ID)
		}
		type row struct {
			CustomerID uint
			N          int64
		}
		var rows []row
		err := s.db.Model(&models.CustomerService{}).
			Select("customer_id, count(*) as n").
			Where("customer_id IN ? AND status = ?", ids, models.ServiceActive).
			Group("customer_id").
			Scan(&rows).Error
		if err != nil {
			return nil, nil, 0, err
		}
		for _, r := range rows {
			counts[r.CustomerID] = r.N
		}
	}

	return customers, counts, total, nil
}

type CustomerInput struct {
	Name        string
	CompanyName string
	Email       string
	Phone       string
	Address     string
	IsActive    bool
}

func (s *Store) UpdateCustomer(actor models.User, id uint, in CustomerInput) (*models.Customer, error) {
	if !authz.CanPerform(actor.Role, authz.CustomerUpdate, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not edit customers", actor.Role)
	}
	if in.Name == "" || in.Email == "" || in.Phone == "" || in.Address == "" {
		return nil, apperr.Validationf("name, email, phone and address are required")
	}

	customer, err := s.GetCustomer(id)
	if err != nil {
		return nil, err
	}

	customer.Name = in.Name
	customer.CompanyName = in.CompanyName
	customer.Email = in.Email
	customer.Phone = in.Phone
	customer.Address = in.Address
	customer.IsActive = in.IsActive

	if err := s.db.Save(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validationf("customer email %s is already registered", in.Email)
		}
		return nil, err
	}
	return customer, nil
}

type ServiceInput struct {
	ProductID uint
	Price     float64
	StartDate time.Time
	EndDate   *time.Time
	Status    models.ServiceStatus
}

// AddService attaches one more subscription to the account, active from the
// given start date.
func (s *Store) AddService(actor models.User, customerID uint, in ServiceInput) (*models.CustomerService, error) {
	if !authz.CanPerform(actor.Role, authz.ServiceManage, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not manage services", actor.Role)
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if in.Price < 0 {
		return nil, apperr.Validationf("service price must not be negative")
	}
	if _, err := s.GetCustomer(customerID); err != nil {
		return nil, err
	}
	if err := s.checkProduct(s.db, in.ProductID); err != nil {
		return nil, err
	}

	service := models.CustomerService{
		CustomerID: customerID,
		ProductID:  in.ProductID,
		Price:      in.Price,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Status:     models.ServiceActive,
	}
	if err := s.db.Create(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// UpdateService overwrites price, dates and status of one subscription.
func (s *Store) UpdateService(actor models.User, customerID, serviceID uint, in ServiceInput) (*models.CustomerService, error) {
	if !authz.CanPerform(actor.Role, authz.ServiceManage, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not manage services", actor.Role)
	}
	if err := validateDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if in.Price < 0 {
		return nil, apperr.Validationf("service price must not be negative")
	}
	if !models.ValidServiceStatus(in.Status) {
		return nil, apperr.Validationf("unknown service status %q", in.Status)
	}

	service, err := s.getService(customerID, serviceID)
	if err != nil {
		return nil, err
	}

	service.Price = in.Price
	service.StartDate = in.StartDate
	service.EndDate = in.EndDate
	service.Status = in.Status

	if err := s.db.Save(service).Error; err != nil {
		return nil, err
	}
	return service, nil
}

// RemoveService detaches one subscription. Removing the last active service
// is allowed; the account just ends up with none.
func (s *Store) RemoveService(actor models.User, customerID, serviceID uint) error {
	if !authz.CanPerform(actor.Role, authz.ServiceManage, 0, actor.ID) {
		return apperr.Forbiddenf("role %s may not manage services", actor.Role)
	}
	service, err := s.getService(customerID, serviceID)
	if err != nil {
		return err
	}
	return s.db.Delete(service).Error
}

// SyncServices replaces the account's whole service set in one transaction,
// matching rows by product: kept products are updated in place, new ones
// created, absent ones removed.
func (s *Store) SyncServices(actor models.User, customerID uint, desired []ServiceInput) (*models.Customer, error) {
	if !authz.CanPerform(actor.Role, authz.ServiceManage, 0, actor.ID) {
		return nil, apperr.Forbiddenf("role %s may not manage services", actor.Role)
	}
	seen := make(map[uint]bool, len(desired))
	for _, in := range desired {
		if in.ProductID == 0 {
			return nil, apperr.Validationf("every service needs a product")
		}
		if seen[in.ProductID] {
			return nil, apperr.Validationf("product %d appears more than once", in.ProductID)
		}
		seen[in.ProductID] = true
		if err := validateDates(in.StartDate, in.EndDate); err != nil {
			return nil, err
		}
		if in.Price < 0 {
			return nil, apperr.Validationf("service price must not be negative")
		}
		if in.Status != "" && !models.ValidServiceStatus(in.Status) {
			return nil, apperr.Validationf("unknown service status %q", in.Status)
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Preload("Services").First(&customer, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("customer %d", customerID)
			}
			return err
		}

		existing := make(map[uint]models.CustomerService, len(customer.Services))
		for _, svc := range customer.Services {
			existing[svc.ProductID] = svc
		}

		for _, in := range desired {
			status := in.Status
			if status == "" {
				status = models.ServiceActive
			}

			if cur, ok := existing[in.ProductID]; ok {
				if err := tx.Model(&models.CustomerService{}).Where("id = ?", cur.ID).
					Updates(map[string]any{
						"price":      in.Price,
						"start_date": in.StartDate,
						"end_date":   in.EndDate,
						"status":     status,
					}).Error; err != nil {
					return err
				}
				continue
			}

			if err := s.checkProduct(tx, in.ProductID); err != nil {
				return err
			}
			svc := models.CustomerService{
				CustomerID: customerID,
				ProductID:  in.ProductID,
				Price:      in.Price,
				StartDate:  in.StartDate,
				EndDate:    in.EndDate,
				Status:     status,
			}
			if err := tx.Create(&svc).Error; err != nil {
				return err
			}
		}

		for productID, svc := range existing {
			if seen[productID] {
				continue
			}
			if err := tx.Delete(&models.CustomerService{}, svc.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCustomer(customerID)
}

// ActiveServiceCount is informational only; no operation guards on it.
func (s *Store) ActiveServiceCount(customerID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.CustomerService{}).
		Where("customer_id = ? AND status = ?", customerID, models.ServiceActive).
		Count(&count).Error
	return count, err
}

func (s *Store) getService(customerID, serviceID uint) (*models.CustomerService, error) {
	var service models.CustomerService
	err := s.db.Where("id = ? AND customer_id = ?", serviceID, customerID).First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("service %d on customer %d", serviceID, customerID)
		}
		return nil, err
	}
	return &service, nil
}

func (s *Store) checkProduct(tx *gorm.DB, productID uint) error {
	var product models.Product
	if err := tx.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("product %d", productID)
		}
		return err
	}
	if !product.IsActive {
		return apperr.Validationf("product %q is no longer offered", product.Name)
	}
	return nil
}

func validateDates(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return apperr.Validationf("start date is required")
	}
	if end != nil && end.Before(start) {
		return apperr.Validationf("end date must not be before start date")
	}
	return nil
}
