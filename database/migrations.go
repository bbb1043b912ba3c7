package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"rentease/config"
	"rentease/utils"
)

// Models lists every table in dependency order
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Property{},
		&PropertyImage{},
		&SavedProperty{},
		&Booking{},
		&Payment{},
		&Review{},
		&Notification{},
		&Message{},
		&Analytics{},
		&AuditLog{},
	}
}

// secondary indexes that need sort order or span embedded columns
var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_properties_city_status_type ON properties (address_city, status, property_type)",
	"CREATE INDEX IF NOT EXISTS idx_properties_price_status ON properties (price_amount, status)",
	"CREATE INDEX IF NOT EXISTS idx_properties_owner_status ON properties (owner_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_properties_location ON properties (location_latitude, location_longitude)",
	"CREATE INDEX IF NOT EXISTS idx_bookings_tenant_created ON bookings (tenant_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_payments_user_created ON payments (user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_reviews_property_created ON reviews (property_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_messages_booking_created ON messages (booking_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_messages_participants ON messages (sender_id, recipient_id)",
	"CREATE INDEX IF NOT EXISTS idx_analytics_property_date ON analytics (property_id, date DESC)",
	"CREATE INDEX IF NOT EXISTS idx_analytics_period_date ON analytics (period, date DESC)",
}

// Migrate creates or updates every table and index on db
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// RunMigrations runs all database migrations on the global connection
func RunMigrations(log *logrus.Logger) error {
	log.Info("Running database migrations...")

	if err := Migrate(DB); err != nil {
		log.WithError(err).Error("Migration failed")
		return err
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// SeedDefaultAdmin creates the admin account from config if no admin exists
func SeedDefaultAdmin(db *gorm.DB, cfg config.Config, log *logrus.Logger) error {
	if cfg.AdminPassword == "" {
		log.Info("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("check existing admin: %w", err)
	}
	if count > 0 {
		log.Info("Admin user already exists")
		return nil
	}

	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := User{
		Base:            Base{ID: uuid.New()},
		Firstname:       "Super",
		Lastname:        "Admin",
		Email:           strings.ToLower(cfg.AdminEmail),
		Phone:           cfg.AdminPhone,
		PasswordHash:    hash,
		Role:            RoleAdmin,
		Avatar:          Media{URL: DefaultAvatarURL},
		IsEmailVerified: true,
		IsActive:        true,
		Address:         UserAddress{Country: DefaultCountry},
	}

	if err := db.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("admin email or phone already taken: %w", err)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	log.WithField("email", admin.Email).Info("Default admin user created")
	return nil
}
