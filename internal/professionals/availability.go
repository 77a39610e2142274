package professionals

import (
	"context"
	"fmt"
	"time"

	"github.com/conecta-cl/marketplace/pkg/errs"
	"github.com/conecta-cl/marketplace/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetAvailability replaces the professional's weekly availability blocks.
// Each block must end after it starts; blocks on the same day must not overlap.
func (s *Service) SetAvailability(ctx context.Context, professionalID uuid.UUID, blocks []models.AvailabilityBlockRequest) ([]models.AvailabilityBlock, error) {
	if _, err := s.GetProfile(ctx, professionalID); err != nil {
		return nil, err
	}

	for _, b := range blocks {
		if err := validateTimeRange(b.StartTime, b.EndTime); err != nil {
			return nil, err
		}
		if b.DayOfWeek < 0 || b.DayOfWeek > 6 {
			return nil, errs.Invalidf("invalid day of week: %d", b.DayOfWeek)
		}
	}
	for i := range blocks {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[i].DayOfWeek == blocks[j].DayOfWeek &&
				blocks[i].StartTime < blocks[j].EndTime && blocks[j].StartTime < blocks[i].EndTime {
				return nil, errs.Invalidf("availability blocks overlap on day %d", blocks[i].DayOfWeek)
			}
		}
	}

	created := make([]models.AvailabilityBlock, 0, len(blocks))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("professional_id = ?", professionalID).Delete(&models.AvailabilityBlock{}).Error; err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}
		for _, b := range blocks {
			block := models.AvailabilityBlock{
				ID:             uuid.New(),
				ProfessionalID: professionalID,
				DayOfWeek:      b.DayOfWeek,
				StartTime:      b.StartTime,
				EndTime:        b.EndTime,
				IsActive:       true,
			}
			if err := tx.Create(&block).Error; err != nil {
				return fmt.Errorf("failed to create availability block: %w", err)
			}
			created = append(created, block)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListAvailability lists the active weekly availability blocks
func (s *Service) ListAvailability(ctx context.Context, professionalID uuid.UUID) ([]models.AvailabilityBlock, error) {
	var blocks []models.AvailabilityBlock
	if err := s.db.WithContext(ctx).
		Where("professional_id = ? AND is_active = ?", professionalID, true).
		Order("day_of_week, start_time").
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	return blocks, nil
}

// AddBlockedDate blocks a date, or a time range within it
func (s *Service) AddBlockedDate(ctx context.Context, professionalID uuid.UUID, req *models.BlockedDateRequest) (*models.BlockedDate, error) {
	if _, err := s.GetProfile(ctx, professionalID); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, errs.Invalidf("invalid date: %v", err)
	}

	allDay := true
	if req.AllDay != nil {
		allDay = *req.AllDay
	}
	if !allDay {
		if req.StartTime == nil || req.EndTime == nil {
			return nil, errs.Invalidf("start_time and end_time are required for partial blocks")
		}
		if err := validateTimeRange(*req.StartTime, *req.EndTime); err != nil {
			return nil, err
		}
	}

	blocked := &models.BlockedDate{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		Date:           date,
		AllDay:         allDay,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Reason:         req.Reason,
		CreatedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(blocked).Error; err != nil {
		return nil, fmt.Errorf("failed to create blocked date: %w", err)
	}
	return blocked, nil
}

// ListBlockedDates lists blocked dates on or after the given date
func (s *Service) ListBlockedDates(ctx context.Context, professionalID uuid.UUID, from time.Time) ([]models.BlockedDate, error) {
	var dates []models.BlockedDate
	if err := s.db.WithContext(ctx).
		Where("professional_id = ? AND date >= ?", professionalID, from).
		Order("date").
		Find(&dates).Error; err != nil {
		return nil, fmt.Errorf("failed to list blocked dates: %w", err)
	}
	return dates, nil
}

// RemoveBlockedDate removes a blocked date owned by the professional
func (s *Service) RemoveBlockedDate(ctx context.Context, professionalID, blockedDateID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND professional_id = ?", blockedDateID, professionalID).
		Delete(&models.BlockedDate{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove blocked date: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFoundf("blocked date not found")
	}
	return nil
}

// validateTimeRange checks "HH:MM" strings and that end is after start
func validateTimeRange(start, end string) error {
	st, err := time.Parse("15:04", start)
	if err != nil {
		return errs.Invalidf("invalid start time %q", start)
	}
	et, err := time.Parse("15:04", end)
	if err != nil {
		return errs.Invalidf("invalid end time %q", end)
	}
	if !et.After(st) {
		return errs.Invalidf("end time must be after start time")
	}
	return nil
}
