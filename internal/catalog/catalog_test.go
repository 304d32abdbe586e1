package catalog

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

func TestCreateAndUpdate(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)

	product, err := store.Create(manager, ProductInput{
		Name:     "Business Plus",
		Price:    1500000,
		Speed:    "500 Mbps",
		Type:     models.ProductBusiness,
		IsActive: true,
	})
	require.NoError(t, err)

	_, err = store.Create(manager, ProductInput{
		Name:     "Business Plus",
		Price:    1,
		Type:     models.ProductBusiness,
		IsActive: true,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "duplicate name")

	_, err = store.Create(manager, ProductInput{Name: "Bad Type", Price: 1, Type: "Mobile"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Create(manager, ProductInput{Name: "Negative", Price: -1, Type: models.ProductBusiness})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := store.Update(manager, product.ID, ProductInput{
		Name:     "Business Plus",
		Price:    1400000,
		Speed:    "600 Mbps",
		Type:     models.ProductBusiness,
		IsActive: false,
	})
	require.NoError(t, err)
	assert.Equal(t, 1400000.0, updated.Price)
	assert.False(t, updated.IsActive)
}

func TestSalesForbidden(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	sales := models.User{Name: "sales", Email: "sales@crm.local", PasswordHash: "x", Role: models.RoleSales}
	require.NoError(t, db.Create(&sales).Error)

	_, err := store.Create(sales, ProductInput{Name: "X", Price: 1, Type: models.ProductResidential})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	err = store.Delete(sales, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeleteReferencedProduct(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)

	inLine, err := store.Create(manager, ProductInput{Name: "In Line", Price: 1, Type: models.ProductResidential, IsActive: true})
	require.NoError(t, err)
	inService, err := store.Create(manager, ProductInput{Name: "In Service", Price: 1, Type: models.ProductResidential, IsActive: true})
	require.NoError(t, err)
	free, err := store.Create(manager, ProductInput{Name: "Free", Price: 1, Type: models.ProductResidential, IsActive: true})
	require.NoError(t, err)

	lead := models.Lead{Name: "L", Email: "l@example.com", Phone: "1", Address: "a", Status: models.LeadNew}
	require.NoError(t, db.Create(&lead).Error)
	project := models.Project{
		Name: "P", Status: models.ProjectPending, LeadID: lead.ID,
		Lines: []models.ProjectLine{{ProductID: inLine.ID, Price: 1, Quantity: 1}},
	}
	require.NoError(t, db.Create(&project).Error)

	customer := models.Customer{Name: "C", Email: "c@example.com", Phone: "1", Address: "a", IsActive: true}
	require.NoError(t, db.Create(&customer).Error)
	svc := models.CustomerService{
		CustomerID: customer.ID, ProductID: inService.ID, Price: 1,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Status: models.ServiceActive,
	}
	require.NoError(t, db.Create(&svc).Error)

	assert.ErrorIs(t, store.Delete(manager, inLine.ID), apperr.ErrInvalidState)
	assert.ErrorIs(t, store.Delete(manager, inService.ID), apperr.ErrInvalidState)

	require.NoError(t, store.Delete(manager, free.ID))
	_, err = store.Get(free.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	manager := seedManager(t, db)

	for _, p := range []ProductInput{
		{Name: "Residential Basic", Price: 299000, Type: models.ProductResidential, IsActive: true},
		{Name: "Residential Plus", Price: 499000, Type: models.ProductResidential, IsActive: false},
		{Name: "Business Basic", Price: 999000, Type: models.ProductBusiness, IsActive: true},
	} {
		_, err := store.Create(manager, p)
		require.NoError(t, err)
	}

	active, err := store.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	residential, err := store.List(ListFilter{Type: models.ProductResidential})
	require.NoError(t, err)
	assert.Len(t, residential, 2)

	basics, err := store.List(ListFilter{Search: "Basic"})
	require.NoError(t, err)
	assert.Len(t, basics, 2)
}
