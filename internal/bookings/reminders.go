package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/pkg/models"
	"go.uber.org/zap"
)

// SendReminders publishes reminder events for confirmed bookings entering the
// 24h and 2h windows before their start time. Each window fires once per
// booking; the sent flags make the scan idempotent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := time.Now()

	// the range over-selects by a day on each side; the per-booking start time
	// check below does the precise filtering
	var candidates []models.Booking
	if err := s.db.WithContext(ctx).
		Where("status = ? AND date >= ? AND date <= ? AND (reminder_sent_24h = ? OR reminder_sent_2h = ?)",
			models.BookingConfirmed,
			now.Add(-24*time.Hour),
			now.Add(26*time.Hour),
			false, false).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("failed to load reminder candidates: %w", err)
	}

	sent := 0
	for i := range candidates {
		booking := &candidates[i]
		until := time.Until(booking.StartsAt())
		if until <= 0 {
			continue
		}

		if !booking.ReminderSent2h && until <= 2*time.Hour {
			if err := s.sendReminder(ctx, booking, "2h", "reminder_sent_2h"); err != nil {
				s.logger.Warn("Failed to send 2h reminder",
					zap.String("booking_id", booking.ID.String()), zap.Error(err))
				continue
			}
			sent++
			continue
		}
		if !booking.ReminderSent24h && until > 2*time.Hour && until <= 24*time.Hour {
			if err := s.sendReminder(ctx, booking, "24h", "reminder_sent_24h"); err != nil {
				s.logger.Warn("Failed to send 24h reminder",
					zap.String("booking_id", booking.ID.String()), zap.Error(err))
				continue
			}
			sent++
		}
	}
	return sent, nil
}

// sendReminder marks the window flag before publishing so a publish retry
// never double-notifies a client.
func (s *Service) sendReminder(ctx context.Context, booking *models.Booking, window, flagColumn string) error {
	result := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND "+flagColumn+" = ?", booking.ID, false).
		Updates(map[string]interface{}{flagColumn: true, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to flag reminder: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil // another scan got there first
	}

	event := models.ReminderEvent{
		BookingID:   booking.ID,
		ClientEmail: booking.ClientEmail,
		ClientPhone: booking.ClientPhone,
		Window:      window,
		Date:        booking.Date.Format("2006-01-02"),
		StartTime:   booking.StartTime,
		OccurredAt:  time.Now(),
	}
	return s.publisher.Publish(ctx, messaging.TopicBookingReminder, booking.ID.String(), event)
}
