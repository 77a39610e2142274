package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookingService defines booking lifecycle operations.
type BookingService interface {
	Start() error
	Stop() error

	Create(ctx context.Context, clientID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, upcoming bool) ([]models.Booking, error)
	ListByProfessional(ctx context.Context, professionalID uuid.UUID, date *time.Time) ([]models.Booking, error)

	Confirm(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, byProfessional bool, reason string) (*models.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) error

	AddNote(ctx context.Context, bookingID uuid.UUID, note string) (*models.BookingNote, error)
	ListNotes(ctx context.Context, bookingID uuid.UUID) ([]models.BookingNote, error)

	SendReminders(ctx context.Context) (int, error)
}

// StatsUpdater refreshes denormalized counters after a booking completes
type StatsUpdater interface {
	UpdateStatistics(ctx context.Context, id uuid.UUID) error
}

// Config carries booking policy tunables
type Config struct {
	CommissionPercentage decimal.Decimal
	CancellationWindow   time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		CommissionPercentage: decimal.NewFromInt(10),
		CancellationWindow:   24 * time.Hour,
	}
}

// Service implements BookingService
type Service struct {
	logger            *zap.Logger
	db                *gorm.DB
	publisher         messaging.Publisher
	config            Config
	professionalStats StatsUpdater
	clientStats       StatsUpdater
	serviceStats      StatsUpdater
	cron              *cron.Cron
}

// NewService creates a new BookingService. The stats updaters may be nil.
func NewService(logger *zap.Logger, db *gorm.DB, publisher messaging.Publisher, config Config,
	professionalStats, clientStats, serviceStats StatsUpdater) (BookingService, error) {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if config.CommissionPercentage.IsZero() {
		config.CommissionPercentage = decimal.NewFromInt(10)
	}
	if config.CancellationWindow <= 0 {
		config.CancellationWindow = 24 * time.Hour
	}
	return &Service{
		logger:            logger,
		db:                db,
		publisher:         publisher,
		config:            config,
		professionalStats: professionalStats,
		clientStats:       clientStats,
		serviceStats:      serviceStats,
	}, nil
}

// Start starts the bookings service and its reminder schedule
func (s *Service) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if sent, err := s.SendReminders(ctx); err != nil {
			s.logger.Error("Reminder scan failed", zap.Error(err))
		} else if sent > 0 {
			s.logger.Info("Reminders sent", zap.Int("count", sent))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.cron.Start()
	s.logger.Info("Bookings service started")
	return nil
}

// Stop stops the bookings service
func (s *Service) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.logger.Info("Bookings service stopped")
	return nil
}

// Create books a slot on a service. The end time is derived from the service
// duration and the commission is computed at creation so later price changes
// do not affect existing bookings.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	var svc models.Service
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", req.ServiceID, true).First(&svc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("service not found")
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}

	var prof models.Professional
	if err := s.db.WithContext(ctx).Where("id = ?", svc.ProfessionalID).First(&prof).Error; err != nil {
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}
	if !prof.IsVerified() || !prof.IsActive {
		return nil, errs.Invalidf("professional is not accepting bookings")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, errs.Invalidf("invalid date: %v", err)
	}
	startAt, err := combine(date, req.StartTime)
	if err != nil {
		return nil, err
	}
	if startAt.Before(time.Now()) {
		return nil, errs.Invalidf("cannot book a past time slot")
	}

	endTime := addMinutes(req.StartTime, svc.DurationMinutes)

	participants := req.Participants
	if participants == 0 {
		participants = 1
	}
	if participants > svc.MaxParticipants {
		return nil, errs.Invalidf("participants exceed service capacity of %d", svc.MaxParticipants)
	}

	if err := s.checkAvailability(ctx, prof.ID, date, req.StartTime, endTime); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, prof.ID, date, req.StartTime, endTime); err != nil {
		return nil, err
	}

	commission := svc.Price.Mul(s.config.CommissionPercentage).Div(decimal.NewFromInt(100)).Round(2)

	booking := &models.Booking{
		ID:                   uuid.New(),
		ClientID:             clientID,
		ServiceID:            svc.ID,
		ProfessionalID:       prof.ID,
		Date:                 date,
		StartTime:            req.StartTime,
		EndTime:              endTime,
		Participants:         participants,
		ClientName:           req.ClientName,
		ClientEmail:          req.ClientEmail,
		ClientPhone:          req.ClientPhone,
		IsFirstTime:          req.IsFirstTime,
		ClientNotes:          req.ClientNotes,
		Status:               models.BookingPendingPayment,
		Price:                svc.Price,
		CommissionPercentage: s.config.CommissionPercentage,
		CommissionAmount:     commission,
		PaymentStatus:        models.BookingPaymentPending,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(booking).Error; err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	metrics.BookingsCreated.WithLabelValues(svc.Modality).Inc()
	s.publishEvent(ctx, messaging.TopicBookingCreated, booking)
	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("professional_id", prof.ID.String()),
		zap.String("date", req.Date),
		zap.String("start_time", req.StartTime))
	return booking, nil
}

// Get gets a booking by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

// ListByClient lists a client's bookings, optionally only upcoming ones
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, upcoming bool) ([]models.Booking, error) {
	query := s.db.WithContext(ctx).Where("client_id = ?", clientID)
	if upcoming {
		query = query.Where("date >= ? AND status IN ?",
			dayStart(time.Now()),
			[]string{models.BookingPendingPayment, models.BookingConfirmed})
	}

	var bookings []models.Booking
	if err := query.Order("date DESC, start_time DESC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListByProfessional lists a professional's bookings, optionally for one date
func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID, date *time.Time) ([]models.Booking, error) {
	query := s.db.WithContext(ctx).Where("professional_id = ?", professionalID)
	if date != nil {
		from := dayStart(*date)
		query = query.Where("date >= ? AND date < ?", from, from.Add(24*time.Hour))
	}

	var bookings []models.Booking
	if err := query.Order("date, start_time").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// Confirm moves a booking to confirmed after its payment completes
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) error {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingPendingPayment {
		return errs.Invalidf("booking is not pending payment")
	}

	updates := map[string]interface{}{
		"status":         models.BookingConfirmed,
		"payment_status": models.BookingPaymentCompleted,
		"updated_at":     time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}

	metrics.BookingsByStatus.WithLabelValues(models.BookingConfirmed).Inc()
	return nil
}

// Cancel cancels a booking. Clients must respect the cancellation window;
// professionals may cancel at any time before the session starts.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, byProfessional bool, reason string) (*models.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case models.BookingPendingPayment, models.BookingConfirmed:
	default:
		return nil, errs.Invalidf("booking cannot be cancelled in status %s", booking.Status)
	}
	if booking.IsPast() {
		return nil, errs.Invalidf("booking has already started")
	}
	if !byProfessional && time.Until(booking.StartsAt()) < s.config.CancellationWindow {
		return nil, errs.Invalidf("bookings must be cancelled at least %d hours in advance",
			int(s.config.CancellationWindow.Hours()))
	}

	status := models.BookingCancelledByClient
	if byProfessional {
		status = models.BookingCancelledByProfessional
	}
	now := time.Now()
	booking.Status = status
	booking.CancellationReason = reason
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(booking).Error; err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	metrics.BookingsByStatus.WithLabelValues(status).Inc()
	s.publishEvent(ctx, messaging.TopicBookingCancelled, booking)
	s.logger.Info("Booking cancelled",
		zap.String("booking_id", id.String()),
		zap.String("status", status))
	return booking, nil
}

// Complete marks a confirmed booking completed and refreshes the denormalized
// statistics of the professional, the client, and the service.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, errs.Invalidf("only confirmed bookings can be completed")
	}

	now := time.Now()
	booking.Status = models.BookingCompleted
	booking.CompletedAt = &now
	booking.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(booking).Error; err != nil {
		return nil, fmt.Errorf("failed to complete booking: %w", err)
	}

	s.refreshStats(ctx, booking)
	metrics.BookingsByStatus.WithLabelValues(models.BookingCompleted).Inc()
	s.publishEvent(ctx, messaging.TopicBookingCompleted, booking)
	return booking, nil
}

// MarkNoShow marks a confirmed booking where the client did not attend
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingConfirmed {
		return errs.Invalidf("only confirmed bookings can be marked no-show")
	}
	if !booking.IsPast() {
		return errs.Invalidf("booking has not started yet")
	}

	updates := map[string]interface{}{"status": models.BookingNoShow, "updated_at": time.Now()}
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark no-show: %w", err)
	}

	metrics.BookingsByStatus.WithLabelValues(models.BookingNoShow).Inc()
	return nil
}

// AddNote attaches a private professional note to a booking
func (s *Service) AddNote(ctx context.Context, bookingID uuid.UUID, note string) (*models.BookingNote, error) {
	if _, err := s.Get(ctx, bookingID); err != nil {
		return nil, err
	}

	n := &models.BookingNote{
		ID:        uuid.New(),
		BookingID: bookingID,
		Note:      note,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// ListNotes lists a booking's notes, newest first
func (s *Service) ListNotes(ctx context.Context, bookingID uuid.UUID) ([]models.BookingNote, error) {
	var notes []models.BookingNote
	if err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// checkAvailability verifies the slot falls inside the professional's weekly
// schedule and does not hit a blocked date.
func (s *Service) checkAvailability(ctx context.Context, professionalID uuid.UUID, date time.Time, startTime, endTime string) error {
	// weekday normalized to 0=Monday
	day := (int(date.Weekday()) + 6) % 7

	var blocks []models.AvailabilityBlock
	if err := s.db.WithContext(ctx).
		Where("professional_id = ? AND day_of_week = ? AND is_active = ?", professionalID, day, true).
		Find(&blocks).Error; err != nil {
		return fmt.Errorf("failed to load availability: %w", err)
	}
	covered := false
	for _, b := range blocks {
		if b.StartTime <= startTime && endTime <= b.EndTime {
			covered = true
			break
		}
	}
	if !covered {
		return errs.Invalidf("professional is not available at that time")
	}

	var blocked []models.BlockedDate
	from := dayStart(date)
	if err := s.db.WithContext(ctx).
		Where("professional_id = ? AND date >= ? AND date < ?", professionalID, from, from.Add(24*time.Hour)).
		Find(&blocked).Error; err != nil {
		return fmt.Errorf("failed to load blocked dates: %w", err)
	}
	for _, b := range blocked {
		if b.AllDay {
			return errs.Invalidf("professional is not available on that date")
		}
		if b.StartTime != nil && b.EndTime != nil && *b.StartTime < endTime && startTime < *b.EndTime {
			return errs.Invalidf("professional is not available at that time")
		}
	}
	return nil
}

// checkConflicts rejects slots overlapping an existing active booking
func (s *Service) checkConflicts(ctx context.Context, professionalID uuid.UUID, date time.Time, startTime, endTime string) error {
	var count int64
	from := dayStart(date)
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("professional_id = ? AND date >= ? AND date < ? AND status IN ?",
			professionalID, from, from.Add(24*time.Hour),
			[]string{models.BookingPendingPayment, models.BookingConfirmed}).
		Where("start_time < ? AND ? < end_time", endTime, startTime).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	if count > 0 {
		return errs.Conflictf("time slot is already booked")
	}
	return nil
}

// refreshStats fans out to the registered stats updaters; failures are logged
// and do not fail the booking transition.
func (s *Service) refreshStats(ctx context.Context, booking *models.Booking) {
	if s.professionalStats != nil {
		if err := s.professionalStats.UpdateStatistics(ctx, booking.ProfessionalID); err != nil {
			s.logger.Warn("Failed to refresh professional stats", zap.Error(err))
		}
	}
	if s.clientStats != nil {
		if err := s.clientStats.UpdateStatistics(ctx, booking.ClientID); err != nil {
			s.logger.Warn("Failed to refresh client stats", zap.Error(err))
		}
	}
	if s.serviceStats != nil {
		if err := s.serviceStats.UpdateStatistics(ctx, booking.ServiceID); err != nil {
			s.logger.Warn("Failed to refresh service stats", zap.Error(err))
		}
	}
}

func (s *Service) publishEvent(ctx context.Context, topic messaging.Topic, booking *models.Booking) {
	event := models.BookingEvent{
		BookingID:      booking.ID,
		ClientID:       booking.ClientID,
		ProfessionalID: booking.ProfessionalID,
		ServiceID:      booking.ServiceID,
		Status:         booking.Status,
		Date:           booking.Date.Format("2006-01-02"),
		StartTime:      booking.StartTime,
		OccurredAt:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, topic, booking.ID.String(), event); err != nil {
		s.logger.Warn("Failed to publish booking event",
			zap.String("topic", string(topic)), zap.Error(err))
	}
}

// dayStart truncates an instant to midnight UTC of its calendar day, matching
// how request dates are parsed.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// combine merges a date and an "HH:MM" time into one instant
func combine(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, errs.Invalidf("invalid time %q", hhmm)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), nil
}

// addMinutes advances an "HH:MM" string, capping at end of day
func addMinutes(hhmm string, minutes int) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	end := t.Add(time.Duration(minutes) * time.Minute)
	if end.Day() != t.Day() {
		return "23:59"
	}
	return end.Format("15:04")
}
