package accounts

import (
	"testing"
	"time"

	"isp-crm/internal/apperr"
	"isp-crm/internal/database"
	"isp-crm/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedManager(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{Name: "manager", Email: "manager@crm.local", PasswordHash: "x", Role: models.RoleManager}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedCustomer(t *testing.T, db *gorm.DB, email string) models.Customer {
	t.Helper()
	customer := models.Customer{
		Name:     "Casey Morgan",
		Email:    email,
		Phone:    "555-0199",
		Address:  "9 Dockside Ave",
		IsActive: true,
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, active bool) models.Product {
	t.Helper()
	product := models.Product{
		Name:     name,
		Price:    price,
		Type:     models.ProductBusiness,
		IsActive: active,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedService(t *testing.T, db *gorm.DB, customerID, productID uint, price float64, status models.ServiceStatus) models.CustomerService {
	t.Helper()
	svc := models.CustomerService{
		CustomerID: customerID,
		ProductID:  productID,
		Price:      price,
		StartDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:     status,
	}
	require.NoError(t, db.Create(&svc).Error)
	return svc
}

func TestAddService(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	svc, err := store.AddService(manager, customer.ID, ServiceInput{
		ProductID: product.ID,
		Price:     1400000,
		StartDate: start,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ServiceActive, svc.Status)
	assert.Equal(t, 1400000.0, svc.Price)
	assert.True(t, svc.StartDate.Equal(start))
	assert.Nil(t, svc.EndDate)
}

func TestAddServiceValidation(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)
	retired := seedProduct(t, db, "Legacy DSL", 99000, false)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, -1, 0)

	cases := []struct {
		name  string
		cust  uint
		in    ServiceInput
		errIs error
	}{
		{
			name:  "end before start",
			cust:  customer.ID,
			in:    ServiceInput{ProductID: product.ID, Price: 10, StartDate: start, EndDate: &before},
			errIs: apperr.ErrValidation,
		},
		{
			name:  "missing start date",
			cust:  customer.ID,
			in:    ServiceInput{ProductID: product.ID, Price: 10},
			errIs: apperr.ErrValidation,
		},
		{
			name:  "negative price",
			cust:  customer.ID,
			in:    ServiceInput{ProductID: product.ID, Price: -1, StartDate: start},
			errIs: apperr.ErrValidation,
		},
		{
			name:  "inactive product",
			cust:  customer.ID,
			in:    ServiceInput{ProductID: retired.ID, Price: 10, StartDate: start},
			errIs: apperr.ErrValidation,
		},
		{
			name:  "unknown customer",
			cust:  9999,
			in:    ServiceInput{ProductID: product.ID, Price: 10, StartDate: start},
			errIs: apperr.ErrNotFound,
		},
		{
			name:  "unknown product",
			cust:  customer.ID,
			in:    ServiceInput{ProductID: 9999, Price: 10, StartDate: start},
			errIs: apperr.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.AddService(manager, tc.cust, tc.in)
			assert.ErrorIs(t, err, tc.errIs)
		})
	}

	// none of the rejected inputs left a row behind
	var count int64
	require.NoError(t, db.Model(&models.CustomerService{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddServiceForbiddenForSales(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	sales := models.User{Name: "sales", Email: "sales@crm.local", PasswordHash: "x", Role: models.RoleSales}
	require.NoError(t, db.Create(&sales).Error)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)

	_, err := store.AddService(sales, customer.ID, ServiceInput{
		ProductID: product.ID,
		Price:     10,
		StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateService(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)
	svc := seedService(t, db, customer.ID, product.ID, 1500000, models.ServiceActive)

	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	updated, err := store.UpdateService(manager, customer.ID, svc.ID, ServiceInput{
		ProductID: product.ID,
		Price:     1200000,
		StartDate: svc.StartDate,
		EndDate:   &end,
		Status:    models.ServiceSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, 1200000.0, updated.Price)
	assert.Equal(t, models.ServiceSuspended, updated.Status)
	require.NotNil(t, updated.EndDate)
	assert.True(t, updated.EndDate.Equal(end))
}

func TestUpdateServiceWrongCustomer(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	first := seedCustomer(t, db, "first@example.com")
	second := seedCustomer(t, db, "second@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)
	svc := seedService(t, db, first.ID, product.ID, 1500000, models.ServiceActive)

	// a service of another account must not be reachable
	_, err := store.UpdateService(manager, second.ID, svc.ID, ServiceInput{
		ProductID: product.ID,
		Price:     1,
		StartDate: svc.StartDate,
		Status:    models.ServiceActive,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = store.RemoveService(manager, second.ID, svc.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateServiceBadStatus(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)
	svc := seedService(t, db, customer.ID, product.ID, 1500000, models.ServiceActive)

	_, err := store.UpdateService(manager, customer.ID, svc.ID, ServiceInput{
		ProductID: product.ID,
		Price:     10,
		StartDate: svc.StartDate,
		Status:    "cancelled",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	fresh, err := store.getService(customer.ID, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceActive, fresh.Status)
	assert.Equal(t, 1500000.0, fresh.Price)
}

func TestRemoveLastActiveService(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Plus", 1500000, true)
	svc := seedService(t, db, customer.ID, product.ID, 1500000, models.ServiceActive)

	require.NoError(t, store.RemoveService(manager, customer.ID, svc.ID))

	count, err := store.ActiveServiceCount(customer.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// the account itself stays
	fresh, err := store.GetCustomer(customer.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsActive)
}

func TestSyncServices(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	kept := seedProduct(t, db, "Business Basic", 999000, true)
	dropped := seedProduct(t, db, "Business Plus", 1500000, true)
	added := seedProduct(t, db, "Enterprise", 9999000, true)

	keptSvc := seedService(t, db, customer.ID, kept.ID, 999000, models.ServiceActive)
	seedService(t, db, customer.ID, dropped.ID, 1500000, models.ServiceActive)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	result, err := store.SyncServices(manager, customer.ID, []ServiceInput{
		{ProductID: kept.ID, Price: 899000, StartDate: keptSvc.StartDate, Status: models.ServiceSuspended},
		{ProductID: added.ID, Price: 9000000, StartDate: start},
	})
	require.NoError(t, err)
	require.Len(t, result.Services, 2)

	byProduct := map[uint]models.CustomerService{}
	for _, svc := range result.Services {
		byProduct[svc.ProductID] = svc
	}

	assert.Equal(t, keptSvc.ID, byProduct[kept.ID].ID, "kept product reuses its row")
	assert.Equal(t, 899000.0, byProduct[kept.ID].Price)
	assert.Equal(t, models.ServiceSuspended, byProduct[kept.ID].Status)

	assert.Equal(t, 9000000.0, byProduct[added.ID].Price)
	assert.Equal(t, models.ServiceActive, byProduct[added.ID].Status, "empty status defaults to active")

	assert.NotContains(t, byProduct, dropped.ID)
}

func TestSyncServicesRejectsBadInputUpfront(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	product := seedProduct(t, db, "Business Basic", 999000, true)
	svc := seedService(t, db, customer.ID, product.ID, 999000, models.ServiceActive)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.SyncServices(manager, customer.ID, []ServiceInput{
		{ProductID: product.ID, Price: 1, StartDate: start},
		{ProductID: product.ID, Price: 2, StartDate: start},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// the existing set is untouched after a rejected sync
	fresh, err := store.GetCustomer(customer.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Services, 1)
	assert.Equal(t, svc.ID, fresh.Services[0].ID)
	assert.Equal(t, 999000.0, fresh.Services[0].Price)
}

func TestUpdateCustomer(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)
	customer := seedCustomer(t, db, "casey@example.com")
	other := seedCustomer(t, db, "taken@example.com")

	updated, err := store.UpdateCustomer(manager, customer.ID, CustomerInput{
		Name:        "Casey Morgan",
		CompanyName: "Morgan Cafe",
		Email:       "casey@morgancafe.example",
		Phone:       "555-0199",
		Address:     "9 Dockside Ave",
		IsActive:    false,
	})
	require.NoError(t, err)
	assert.Equal(t, "Morgan Cafe", updated.CompanyName)
	assert.False(t, updated.IsActive)

	_, err = store.UpdateCustomer(manager, customer.ID, CustomerInput{
		Name:    "Casey Morgan",
		Email:   other.Email,
		Phone:   "555-0199",
		Address: "9 Dockside Ave",
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.UpdateCustomer(manager, customer.ID, CustomerInput{Name: "Casey"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListCustomers(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	customer := seedCustomer(t, db, "casey@example.com")
	inactive := seedCustomer(t, db, "gone@example.com")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	product := seedProduct(t, db, "Business Basic", 999000, true)
	seedService(t, db, customer.ID, product.ID, 999000, models.ServiceActive)
	seedService(t, db, inactive.ID, product.ID, 999000, models.ServiceTerminated)

	active := true
	customers, counts, total, err := store.ListCustomers(ListFilter{Active: &active})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, customers, 1)
	assert.Equal(t, customer.ID, customers[0].ID)
	assert.EqualValues(t, 1, counts[customer.ID])

	customers, counts, total, err = store.ListCustomers(ListFilter{Search: "gone@"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, customers, 1)
	assert.Equal(t, inactive.ID, customers[0].ID)
	assert.Zero(t, counts[inactive.ID], "terminated services do not count")
}
