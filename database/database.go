package database

import (
	"fmt"
	"log"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/domain/enrollments"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with the named driver. TranslateError is on so unique
// violations surface as gorm.ErrDuplicatedKey on both drivers.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the checkout owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// catalog
		&courses.Course{},
		&courses.Coupon{},

		// checkout
		&billing.Order{},
		&billing.Payment{},
		&billing.WebhookEvent{},

		// access
		&enrollments.Enrollment{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	log.Println("Connected and migrated successfully")
	return nil
}
