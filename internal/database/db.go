package database

import (
	"log"
	"os"
	"time"

	"isp-crm/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(dsn string) {
	var err error

	const maxAttempts = 10
	for i := 1; i <= maxAttempts; i++ {
		log.Printf("trying to connect to DB (attempt %d/%d)...", i, maxAttempts)

		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			log.Println("connected to DB successfully")
			break
		}

		log.Printf("failed to connect to DB: %v", err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("failed to connect to db after %d attempts: %v", maxAttempts, err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	createDefaultAdmin()
	seedDefaultUsers()
	seedDefaultProducts()
}

// Migrate applies the schema. Shared with the test suites, which run it
// against their own database handles.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Product{},
		&models.Project{},
		&models.ProjectLine{},
		&models.Customer{},
		&models.CustomerService{},
		&models.AuditLog{},
	)
}

// admin comes from env/config only, never from the register endpoint
func createDefaultAdmin() {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@crm.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	var count int64
	if err := DB.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		log.Printf("failed to check admin user: %v", err)
		return
	}
	if count > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("failed to hash default admin password: %v", err)
		return
	}

	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}

	if err := DB.Create(&admin).Error; err != nil {
		log.Printf("failed to create default admin: %v", err)
		return
	}

	log.Printf("created default admin user: %s", email)
}

// demo accounts for the two non-admin roles
func seedDefaultUsers() {
	type seedUser struct {
		Name     string
		Email    string
		Password string
		Role     models.UserRole
	}

	users := []seedUser{
		{
			Name:     "Demo Manager",
			Email:    "manager@crm.local",
			Password: "Manager123!",
			Role:     models.RoleManager,
		},
		{
			Name:     "Demo Sales",
			Email:    "sales@crm.local",
			Password: "Sales123!",
			Role:     models.RoleSales,
		},
	}

	for _, u := range users {
		var count int64
		if err := DB.Model(&models.User{}).
			Where("email = ?", u.Email).
			Count(&count).Error; err != nil {
			log.Printf("failed to check seed user %s: %v", u.Email, err)
			continue
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("failed to hash password for %s: %v", u.Email, err)
			continue
		}

		user := models.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         u.Role,
		}

		if err := DB.Create(&user).Error; err != nil {
			log.Printf("failed to create seed user %s: %v", u.Email, err)
			continue
		}

		log.Printf("created seed user: %s (role=%s)", u.Email, u.Role)
	}
}

// the standard connectivity plans
func seedDefaultProducts() {
	var count int64
	if err := DB.Model(&models.Product{}).Count(&count).Error; err != nil {
		log.Printf("failed to check products: %v", err)
		return
	}
	if count > 0 {
		return
	}

	products := []models.Product{
		{Name: "Residential Basic", Description: "Entry home plan", Price: 299000, Speed: "20 Mbps", Type: models.ProductResidential, IsActive: true},
		{Name: "Residential Plus", Description: "Mid home plan", Price: 499000, Speed: "50 Mbps", Type: models.ProductResidential, IsActive: true},
		{Name: "Residential Premium", Description: "Top home plan", Price: 799000, Speed: "100 Mbps", Type: models.ProductResidential, IsActive: true},
		{Name: "Business Basic", Description: "Entry business plan", Price: 999000, Speed: "50 Mbps", Type: models.ProductBusiness, IsActive: true},
		{Name: "Business Plus", Description: "Mid business plan", Price: 1499000, Speed: "100 Mbps", Type: models.ProductBusiness, IsActive: true},
		{Name: "Business Premium", Description: "Top business plan", Price: 2999000, Speed: "500 Mbps", Type: models.ProductBusiness, IsActive: true},
		{Name: "Enterprise", Description: "Dedicated enterprise line", Price: 9999000, Speed: "1 Gbps", Type: models.ProductEnterprise, IsActive: true},
	}

	if err := DB.Create(&products).Error; err != nil {
		log.Printf("failed to seed products: %v", err)
		return
	}

	log.Printf("seeded %d products", len(products))
}
