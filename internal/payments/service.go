package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService defines payment and payout operations.
type PaymentService interface {
	Start() error
	Stop() error

	CreatePayment(ctx context.Context, bookingID uuid.UUID, gateway string) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	CompletePayment(ctx context.Context, id uuid.UUID, req *models.CompletePaymentRequest) (*models.Payment, error)
	FailPayment(ctx context.Context, id uuid.UUID, errorMessage string) (*models.Payment, error)
	Refund(ctx context.Context, id uuid.UUID, req *models.RefundRequest) (*models.Payment, error)

	CreatePayout(ctx context.Context, professionalID uuid.UUID, bankName, accountNumber, accountHolder string) (*models.Payout, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListPayouts(ctx context.Context, professionalID uuid.UUID) ([]models.Payout, error)
	CompletePayout(ctx context.Context, id uuid.UUID, transactionReference string) error
	FailPayout(ctx context.Context, id uuid.UUID, notes string) error
}

// BookingConfirmer confirms a booking after its payment completes
type BookingConfirmer interface {
	Confirm(ctx context.Context, id uuid.UUID) error
}

// Service implements PaymentService
type Service struct {
	logger    *zap.Logger
	db        *gorm.DB
	publisher messaging.Publisher
	bookings  BookingConfirmer
}

// NewService creates a new PaymentService
func NewService(logger *zap.Logger, db *gorm.DB, publisher messaging.Publisher, bookings BookingConfirmer) (PaymentService, error) {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &Service{
		logger:    logger,
		db:        db,
		publisher: publisher,
		bookings:  bookings,
	}, nil
}

// Start starts the payments service
func (s *Service) Start() error {
	s.logger.Info("Payments service started")
	return nil
}

// Stop stops the payments service
func (s *Service) Stop() error {
	s.logger.Info("Payments service stopped")
	return nil
}

// CreatePayment opens a payment for a booking awaiting payment. A booking has
// at most one payment.
func (s *Service) CreatePayment(ctx context.Context, bookingID uuid.UUID, gateway string) (*models.Payment, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if booking.Status != models.BookingPendingPayment {
		return nil, errs.Invalidf("booking is not awaiting payment")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("booking_id = ?", bookingID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if count > 0 {
		return nil, errs.Conflictf("payment already exists for booking")
	}

	if gateway == "" {
		gateway = "flow"
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		BookingID:    bookingID,
		Gateway:      gateway,
		Amount:       booking.Price,
		Currency:     "CLP",
		Status:       models.PaymentPending,
		RefundAmount: decimal.Zero,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

// GetPayment gets a payment by ID
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("payment not found")
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

// GetPaymentByBooking gets the payment attached to a booking
func (s *Service) GetPaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("payment not found")
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

// MarkProcessing moves a pending payment into processing while the gateway
// redirect is in flight.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentPending).
		Updates(map[string]interface{}{"status": models.PaymentProcessing, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to mark payment processing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.Invalidf("payment is not pending")
	}
	return nil
}

// CompletePayment records a successful gateway payment and confirms the booking
func (s *Service) CompletePayment(ctx context.Context, id uuid.UUID, req *models.CompletePaymentRequest) (*models.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case models.PaymentPending, models.PaymentProcessing:
	default:
		return nil, errs.Invalidf("payment cannot be completed in status %s", payment.Status)
	}

	now := time.Now()
	payment.Status = models.PaymentCompleted
	payment.GatewayTransactionID = req.GatewayTransactionID
	payment.PaymentMethod = req.PaymentMethod
	payment.GatewayResponse = req.GatewayResponse
	payment.CompletedAt = &now
	payment.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	if s.bookings != nil {
		if err := s.bookings.Confirm(ctx, payment.BookingID); err != nil {
			s.logger.Error("Failed to confirm booking after payment",
				zap.String("booking_id", payment.BookingID.String()), zap.Error(err))
		}
	}

	metrics.PaymentsProcessed.WithLabelValues(payment.Gateway, models.PaymentCompleted).Inc()
	s.publishEvent(ctx, messaging.TopicPaymentCompleted, payment)
	s.logger.Info("Payment completed",
		zap.String("payment_id", id.String()),
		zap.String("gateway", payment.Gateway))
	return payment, nil
}

// FailPayment records a gateway failure and flags the booking
func (s *Service) FailPayment(ctx context.Context, id uuid.UUID, errorMessage string) (*models.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case models.PaymentPending, models.PaymentProcessing:
	default:
		return nil, errs.Invalidf("payment cannot fail in status %s", payment.Status)
	}

	payment.Status = models.PaymentFailed
	payment.ErrorMessage = errorMessage
	payment.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", payment.BookingID).
		Updates(map[string]interface{}{"payment_status": models.BookingPaymentFailed, "updated_at": time.Now()}).Error; err != nil {
		s.logger.Warn("Failed to flag booking payment failure", zap.Error(err))
	}

	metrics.PaymentsProcessed.WithLabelValues(payment.Gateway, models.PaymentFailed).Inc()
	s.publishEvent(ctx, messaging.TopicPaymentFailed, payment)
	return payment, nil
}

// Refund refunds part or all of a completed payment. Refunds accumulate and
// are capped at the payment amount; the payment only moves to refunded once
// the full amount has been returned.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, req *models.RefundRequest) (*models.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.CanBeRefunded() {
		return nil, errs.Invalidf("payment cannot be refunded")
	}

	outstanding := payment.Amount.Sub(payment.RefundAmount)
	amount := outstanding
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, errs.Invalidf("refund amount must be positive")
	}
	if amount.GreaterThan(outstanding) {
		return nil, errs.Invalidf("refund exceeds outstanding amount of %s", outstanding)
	}

	now := time.Now()
	payment.RefundAmount = payment.RefundAmount.Add(amount)
	payment.RefundReason = req.Reason
	payment.RefundedAt = &now
	payment.UpdatedAt = now

	fullyRefunded := payment.RefundAmount.Equal(payment.Amount)
	if fullyRefunded {
		payment.Status = models.PaymentRefunded
	}

	if err := s.db.WithContext(ctx).Save(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	if fullyRefunded {
		if err := s.db.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ?", payment.BookingID).
			Updates(map[string]interface{}{"payment_status": models.BookingPaymentRefunded, "updated_at": now}).Error; err != nil {
			s.logger.Warn("Failed to flag booking refund", zap.Error(err))
		}
	}

	metrics.PaymentsProcessed.WithLabelValues(payment.Gateway, payment.Status).Inc()
	s.publishEvent(ctx, messaging.TopicPaymentRefunded, payment)
	s.logger.Info("Payment refunded",
		zap.String("payment_id", id.String()),
		zap.String("amount", amount.String()),
		zap.Bool("full", fullyRefunded))
	return payment, nil
}

func (s *Service) publishEvent(ctx context.Context, topic messaging.Topic, payment *models.Payment) {
	event := models.PaymentEvent{
		PaymentID:  payment.ID,
		BookingID:  payment.BookingID,
		Gateway:    payment.Gateway,
		Status:     payment.Status,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, topic, payment.ID.String(), event); err != nil {
		s.logger.Warn("Failed to publish payment event",
			zap.String("topic", string(topic)), zap.Error(err))
	}
}
