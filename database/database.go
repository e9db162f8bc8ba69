package database

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"multiproduct/config"
	"multiproduct/models"
	"multiproduct/policy"
	"multiproduct/utils"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// GormConfig stamps every row in UTC and translates driver errors
// (duplicate keys) into gorm sentinels.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Open connects to the configured database and sets up pooling.
func Open(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database instance: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite has a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// ConnectDb opens, migrates and seeds the database, then stores it globally.
func ConnectDb(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := SeedRoles(db); err != nil {
		log.Fatalf("Role seeding failed: %v", err)
	}
	if err := SeedAdmin(db, AdminSeed{Email: cfg.AdminEmail, Password: cfg.AdminPassword, Phone: cfg.AdminPhone}, cfg.SaltRound); err != nil {
		log.Fatalf("Admin seeding failed: %v", err)
	}

	Database = DbInstance{Db: db}
	return db
}

// Migrate performs database migrations
func Migrate(db *gorm.DB) error {
	log.Println("Running Migrations...")

	err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.OTP{},
		&models.LoginTracking{},
		&models.Product{},
		&models.SubscriptionPlan{},
		&models.UserSubscription{},
		&models.Invoice{},
		&models.Transaction{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}

	log.Println("Migrations completed successfully.")
	return nil
}

// DefaultRoles are created on startup when missing.
var DefaultRoles = []models.Role{
	{
		Name:        models.RoleAdmin,
		Description: "Full access",
	},
	{
		Name:        models.RoleCustomer,
		Description: "Self-service subscriber",
		Permissions: customerPermissions(),
	},
}

func customerPermissions() []string {
	perms := make([]string, 0, len(policy.CustomerActions))
	for _, a := range policy.CustomerActions {
		perms = append(perms, string(a))
	}
	return perms
}

// SeedRoles inserts DefaultRoles that do not exist yet. Existing rows are left untouched.
func SeedRoles(db *gorm.DB) error {
	for _, r := range DefaultRoles {
		var existing models.Role
		err := db.Where("name = ?", r.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		role := r
		if err := db.Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
		log.Printf("Seeded role %s", r.Name)
	}
	return nil
}

type AdminSeed struct {
	Email    string
	Password string
	Phone    string
}

const defaultAdminPhone = "+10000000000"

// SeedAdmin makes sure one admin account exists when credentials are
// configured. Nothing happens if an admin is already present. An existing
// user with the seed email is promoted instead of duplicated.
func SeedAdmin(db *gorm.DB, seed AdminSeed, saltRound int) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return nil
	}
	role, err := RoleByName(db, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("load admin role: %w", err)
	}

	var admins int64
	if err := db.Model(&models.User{}).Where("role_id = ? AND is_deleted = ?", role.ID, false).Count(&admins).Error; err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"role_id":    role.ID,
			"is_active":  true,
			"is_deleted": false,
		}).Error; err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		log.Printf("Promoted %s to admin", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword(seed.Password, saltRound)
	if err != nil {
		return err
	}
	phone := seed.Phone
	if phone == "" {
		phone = defaultAdminPhone
	}
	username, _, _ := strings.Cut(email, "@")
	var taken int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		username = email
	}

	user = models.User{
		Username: username,
		Email:    email,
		Phone:    phone,
		Password: hash,
		IsActive: true,
		RoleID:   &role.ID,
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Printf("Seeded admin %s", email)
	return nil
}

// RoleByName loads a role, returning gorm.ErrRecordNotFound when absent.
func RoleByName(db *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	if err := db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}
