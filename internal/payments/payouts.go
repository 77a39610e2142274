package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatePayout opens a payout covering all of the professional's completed,
// paid bookings that are not yet part of any payout. The payout amount is the
// booking price minus the platform commission, summed over those bookings.
func (s *Service) CreatePayout(ctx context.Context, professionalID uuid.UUID, bankName, accountNumber, accountHolder string) (*models.Payout, error) {
	var bookings []models.Booking
	if err := s.db.WithContext(ctx).
		Where("professional_id = ? AND status = ? AND payment_status = ?",
			professionalID, models.BookingCompleted, models.BookingPaymentCompleted).
		Where("id NOT IN (?)", s.db.Model(&models.PayoutBooking{}).Select("booking_id")).
		Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to load payable bookings: %w", err)
	}
	if len(bookings) == 0 {
		return nil, errs.Invalidf("no bookings pending payout")
	}

	total := decimal.Zero
	for _, b := range bookings {
		total = total.Add(b.Price.Sub(b.CommissionAmount))
	}

	payout := &models.Payout{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		Amount:         total,
		Status:         models.PayoutPending,
		BankName:       bankName,
		AccountNumber:  accountNumber,
		AccountHolder:  accountHolder,
		CreatedAt:      time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payout).Error; err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}
		for _, b := range bookings {
			link := models.PayoutBooking{
				ID:        uuid.New(),
				PayoutID:  payout.ID,
				BookingID: b.ID,
				Amount:    b.Price.Sub(b.CommissionAmount),
			}
			if err := tx.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link booking to payout: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payout created",
		zap.String("payout_id", payout.ID.String()),
		zap.String("professional_id", professionalID.String()),
		zap.String("amount", total.String()),
		zap.Int("bookings", len(bookings)))
	return payout, nil
}

// GetPayout gets a payout by ID
func (s *Service) GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("payout not found")
		}
		return nil, fmt.Errorf("failed to find payout: %w", err)
	}
	return &payout, nil
}

// ListPayouts lists a professional's payouts, newest first
func (s *Service) ListPayouts(ctx context.Context, professionalID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := s.db.WithContext(ctx).
		Where("professional_id = ?", professionalID).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

// CompletePayout records a successful bank transfer
func (s *Service) CompletePayout(ctx context.Context, id uuid.UUID, transactionReference string) error {
	payout, err := s.GetPayout(ctx, id)
	if err != nil {
		return err
	}
	switch payout.Status {
	case models.PayoutPending, models.PayoutProcessing:
	default:
		return errs.Invalidf("payout cannot be completed in status %s", payout.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":                models.PayoutCompleted,
		"transaction_reference": transactionReference,
		"completed_at":          now,
	}
	if err := s.db.WithContext(ctx).Model(&models.Payout{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete payout: %w", err)
	}
	return nil
}

// FailPayout records a failed transfer and releases the bookings it covered
// so a later payout can pick them up again.
func (s *Service) FailPayout(ctx context.Context, id uuid.UUID, notes string) error {
	payout, err := s.GetPayout(ctx, id)
	if err != nil {
		return err
	}
	switch payout.Status {
	case models.PayoutPending, models.PayoutProcessing:
	default:
		return errs.Invalidf("payout cannot fail in status %s", payout.Status)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payout{}).Where("id = ?", id).
			Updates(map[string]interface{}{"status": models.PayoutFailed, "notes": notes}).Error; err != nil {
			return fmt.Errorf("failed to fail payout: %w", err)
		}
		if err := tx.Where("payout_id = ?", id).Delete(&models.PayoutBooking{}).Error; err != nil {
			return fmt.Errorf("failed to release payout bookings: %w", err)
		}
		return nil
	})
}
