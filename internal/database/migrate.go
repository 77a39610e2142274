package database

import (
	"fmt"

	"github.com/conecta-cl/marketplace/pkg/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the schema for all marketplace models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Professional{},
		&models.Certification{},
		&models.AvailabilityBlock{},
		&models.BlockedDate{},
		&models.Client{},
		&models.Favorite{},
		&models.ServiceCategory{},
		&models.ServiceTag{},
		&models.Service{},
		&models.Booking{},
		&models.BookingNote{},
		&models.Payment{},
		&models.Payout{},
		&models.PayoutBooking{},
		&models.Review{},
		&models.ReviewReport{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
